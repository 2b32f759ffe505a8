package resilience

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"
)

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	HTTPStatusCode() int
}

// RetryAfterHinter is implemented by errors that carry a provider-supplied
// retry delay.
type RetryAfterHinter interface {
	RetryAfter() time.Duration
}

func statusCode(err error) int {
	var sc StatusCoder
	if errors.As(err, &sc) {
		return sc.HTTPStatusCode()
	}
	return 0
}

// IsRetryable reports whether err is transient under cfg.
func IsRetryable(err error, cfg RetryConfig) bool {
	if err == nil {
		return false
	}
	cfg = cfg.withDefaults()

	if errors.Is(err, context.Canceled) || IsCircuitOpen(err) {
		return false
	}

	if code := statusCode(err); code != 0 {
		for _, c := range cfg.RetryableStatusCodes {
			if c == code {
				return true
			}
		}
		if code >= 400 && code < 500 {
			return false
		}
	}

	msg := strings.ToLower(err.Error())
	for _, s := range cfg.NonRetryableErrors {
		if strings.Contains(msg, strings.ToLower(s)) {
			return false
		}
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	for _, s := range cfg.RetryableErrors {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}
	return false
}

// IsRateLimited reports whether err signals provider throttling.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if statusCode(err) == http.StatusTooManyRequests {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "rate limit") || strings.Contains(msg, "too many requests")
}

// retryAfterHint returns the provider's retry hint, or zero.
func retryAfterHint(err error) time.Duration {
	var h RetryAfterHinter
	if errors.As(err, &h) {
		return h.RetryAfter()
	}
	return 0
}
