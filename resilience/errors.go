package resilience

import (
	"errors"
	"fmt"
)

// Sentinel errors for resilience gates. A gating error means the gate
// itself refused or abandoned the call; when the wrapped operation runs
// and fails, its own error propagates unchanged.
var (
	// ErrCircuitOpen is returned when the circuit breaker is open and the
	// operation was not invoked.
	ErrCircuitOpen = errors.New("resilience: circuit breaker is open")

	// ErrRequestTimeout is returned when an operation exceeds its per-call
	// timeout.
	ErrRequestTimeout = errors.New("resilience: request timed out")

	// ErrBulkheadRejected is returned when the bulkhead has no free slot
	// and no queue capacity; the operation was not invoked.
	ErrBulkheadRejected = errors.New("resilience: bulkhead at capacity")

	// ErrBulkheadTimeout is returned when a queued caller gave up waiting
	// for a bulkhead slot; the operation was not invoked.
	ErrBulkheadTimeout = errors.New("resilience: bulkhead wait timed out")

	// ErrRateLimitExceeded is returned when the rate limit is exceeded.
	ErrRateLimitExceeded = errors.New("resilience: rate limit exceeded")
)

// ExhaustedError is returned by Retry.Execute when every attempt failed
// with a retryable error. The failure observed on the final attempt is
// preserved as the cause and remains inspectable via errors.Is/As.
type ExhaustedError struct {
	// Attempts is the number of invocations performed.
	Attempts int

	// Err is the failure observed on the final attempt.
	Err error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("resilience: %d attempts exhausted: %v", e.Attempts, e.Err)
}

// Unwrap exposes the final underlying failure.
func (e *ExhaustedError) Unwrap() error {
	return e.Err
}
