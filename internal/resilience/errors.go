package resilience

import (
	"errors"
	"fmt"
	"time"
)

// CircuitOpenError is returned without invoking the operation when the
// provider's breaker is open.
type CircuitOpenError struct {
	Operation string
	Provider  string
	Failures  int
	RetryIn   time.Duration // time left until a trial call is allowed
}

func (e *CircuitOpenError) Error() string {
	return fmt.Sprintf("%s: circuit open for provider %s after %d failures (retry in %s)",
		e.Operation, e.Provider, e.Failures, e.RetryIn.Round(time.Second))
}

// OperationError is a terminal failure of a retried operation.
type OperationError struct {
	Operation string
	Provider  string
	Attempts  int
	State     State
	Failures  int

	// Exhausted is true when every retry was used; false when the error
	// was not retryable.
	Exhausted bool
	Err       error
}

func (e *OperationError) Error() string {
	if e.Exhausted {
		return fmt.Sprintf("%s failed for provider %s after %d attempts (circuit %s, %d failures): %v",
			e.Operation, e.Provider, e.Attempts, e.State, e.Failures, e.Err)
	}
	return fmt.Sprintf("%s failed for provider %s (circuit %s, %d failures): %v",
		e.Operation, e.Provider, e.State, e.Failures, e.Err)
}

func (e *OperationError) Unwrap() error { return e.Err }

// IsCircuitOpen reports whether err came from an open breaker.
func IsCircuitOpen(err error) bool {
	var ce *CircuitOpenError
	return errors.As(err, &ce)
}
