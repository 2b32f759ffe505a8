package resilience

import "time"

// Retry defaults
const (
	DefaultMaxRetries        = 3
	DefaultBaseDelay         = 1 * time.Second
	DefaultMaxDelay          = 30 * time.Second
	DefaultBackoffMultiplier = 2.0
	DefaultFailureThreshold  = 5
	DefaultRecoveryTimeout   = 60 * time.Second
)

// Jitter bounds applied to every computed delay.
const (
	jitterMin  = 0.85
	jitterSpan = 0.30
)

// DefaultRetryableStatusCodes are HTTP statuses worth retrying.
var DefaultRetryableStatusCodes = []int{429, 500, 502, 503, 504}

// DefaultRetryableErrors are message fragments of transient failures.
var DefaultRetryableErrors = []string{
	"timeout",
	"timed out",
	"connection reset",
	"connection refused",
	"econnreset",
	"etimedout",
	"socket hang up",
	"no such host",
	"temporary failure",
	"temporarily unavailable",
	"service unavailable",
	"bad gateway",
	"gateway timeout",
	"internal server error",
	"overloaded",
	"rate limit",
	"too many requests",
	"unexpected eof",
}

// DefaultNonRetryableErrors are message fragments that mark a failure as
// permanent even when a retryable fragment is also present.
var DefaultNonRetryableErrors = []string{
	"unauthorized",
	"authentication",
	"invalid api key",
	"incorrect api key",
	"permission denied",
	"forbidden",
	"invalid request",
	"validation",
	"maximum context length",
	"context length exceeded",
}

// RetryConfig controls retries and the circuit breaker for one call.
// MaxRetries of zero disables retries; other zero fields take defaults.
type RetryConfig struct {
	MaxRetries        int           `mapstructure:"max_retries"`
	BaseDelay         time.Duration `mapstructure:"base_delay"`
	MaxDelay          time.Duration `mapstructure:"max_delay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier"`
	FailureThreshold  int           `mapstructure:"failure_threshold"`
	RecoveryTimeout   time.Duration `mapstructure:"recovery_timeout"`

	RetryableStatusCodes []int    `mapstructure:"retryable_status_codes"`
	RetryableErrors      []string `mapstructure:"retryable_errors"`
	NonRetryableErrors   []string `mapstructure:"non_retryable_errors"`
}

// DefaultRetryConfig returns the standard retry policy.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries:        DefaultMaxRetries,
		BaseDelay:         DefaultBaseDelay,
		MaxDelay:          DefaultMaxDelay,
		BackoffMultiplier: DefaultBackoffMultiplier,
		FailureThreshold:  DefaultFailureThreshold,
		RecoveryTimeout:   DefaultRecoveryTimeout,
	}
}

func (c RetryConfig) withDefaults() RetryConfig {
	if c.MaxRetries < 0 {
		c.MaxRetries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = DefaultBaseDelay
	}
	if c.MaxDelay <= 0 {
		c.MaxDelay = DefaultMaxDelay
	}
	if c.BackoffMultiplier < 1 {
		c.BackoffMultiplier = DefaultBackoffMultiplier
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.RecoveryTimeout <= 0 {
		c.RecoveryTimeout = DefaultRecoveryTimeout
	}
	if c.RetryableStatusCodes == nil {
		c.RetryableStatusCodes = DefaultRetryableStatusCodes
	}
	if c.RetryableErrors == nil {
		c.RetryableErrors = DefaultRetryableErrors
	}
	if c.NonRetryableErrors == nil {
		c.NonRetryableErrors = DefaultNonRetryableErrors
	}
	return c
}
