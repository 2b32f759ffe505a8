package provider

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"
)

// APIError is a failed provider call with its HTTP status and any
// Retry-After hint the server sent.
type APIError struct {
	Provider   string
	StatusCode int
	Type       string
	Message    string
	retryAfter time.Duration
	err        error
}

func (e *APIError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s: status %d", e.Provider, e.StatusCode)
	if e.Type != "" {
		fmt.Fprintf(&sb, " (%s)", e.Type)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	return sb.String()
}

func (e *APIError) Unwrap() error { return e.err }

// HTTPStatusCode returns the response status.
func (e *APIError) HTTPStatusCode() int { return e.StatusCode }

// RetryAfter returns the server's requested delay, or zero.
func (e *APIError) RetryAfter() time.Duration { return e.retryAfter }

// IsRateLimited reports whether the provider throttled the call.
func (e *APIError) IsRateLimited() bool { return e.StatusCode == http.StatusTooManyRequests }

// wrapError converts go-openai errors into *APIError. Transport errors
// (no HTTP status) are returned wrapped but otherwise unchanged so that
// network classification still sees them.
func wrapError(provider string, err error, retryAfter time.Duration) error {
	if err == nil {
		return nil
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return &APIError{
			Provider:   provider,
			StatusCode: apiErr.HTTPStatusCode,
			Type:       apiErr.Type,
			Message:    apiErr.Message,
			retryAfter: retryAfter,
			err:        err,
		}
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		msg := ""
		if reqErr.Err != nil {
			msg = reqErr.Err.Error()
		}
		return &APIError{
			Provider:   provider,
			StatusCode: reqErr.HTTPStatusCode,
			Message:    msg,
			retryAfter: retryAfter,
			err:        err,
		}
	}

	return fmt.Errorf("%s: %w", provider, err)
}

// parseRetryAfter reads a Retry-After header in either delta-seconds or
// HTTP-date form. Returns zero when absent or unparseable.
func parseRetryAfter(value string, now time.Time) time.Duration {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
		return 0
	}
	if at, err := http.ParseTime(value); err == nil {
		if d := at.Sub(now); d > 0 {
			return d
		}
	}
	return 0
}
