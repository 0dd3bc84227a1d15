package resilience

import (
	"context"
	"time"
)

// Executor composes multiple resilience gates around one operation. It is
// the closure-chain equivalent of decorating a call-site: each configured
// gate wraps the next, and the composed callable is reusable and safe for
// concurrent use.
type Executor struct {
	rateLimiter    *RateLimiter
	bulkhead       *Bulkhead
	circuitBreaker *CircuitBreaker
	retry          *Retry
	timeout        *Timeout
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// NewExecutor creates a new resilience executor.
func NewExecutor(opts ...ExecutorOption) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// WithRateLimiter adds rate limiting to the executor.
func WithRateLimiter(rl *RateLimiter) ExecutorOption {
	return func(e *Executor) {
		e.rateLimiter = rl
	}
}

// WithBulkhead adds concurrency isolation to the executor.
func WithBulkhead(b *Bulkhead) ExecutorOption {
	return func(e *Executor) {
		e.bulkhead = b
	}
}

// WithCircuitBreaker adds a circuit breaker to the executor.
func WithCircuitBreaker(cb *CircuitBreaker) ExecutorOption {
	return func(e *Executor) {
		e.circuitBreaker = cb
	}
}

// WithRetry adds retry logic to the executor.
func WithRetry(r *Retry) ExecutorOption {
	return func(e *Executor) {
		e.retry = r
	}
}

// WithTimeout adds a per-call timeout to the executor.
func WithTimeout(timeout time.Duration) ExecutorOption {
	return func(e *Executor) {
		e.timeout = NewTimeout(TimeoutConfig{Timeout: timeout})
	}
}

// WithTimeoutConfig adds a timeout with custom config to the executor.
func WithTimeoutConfig(t *Timeout) ExecutorOption {
	return func(e *Executor) {
		e.timeout = t
	}
}

// Execute runs the operation through all configured gates.
//
// The gate order, outermost to innermost:
//  1. Rate Limiter: sheds excess request rate
//  2. Bulkhead: bounds concurrency before any work is admitted
//  3. Circuit Breaker: fast-fails known-bad dependencies
//  4. Retry: re-invokes on retryable failure
//  5. Timeout: bounds each individual attempt
//
// A bulkhead rejection therefore never reaches the breaker, and retries
// happen inside one bulkhead slot rather than re-queueing per attempt.
func (e *Executor) Execute(ctx context.Context, op func(context.Context) error) error {
	execute := op

	// Wrap with timeout (innermost)
	if e.timeout != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.timeout.Execute(ctx, inner)
		}
	}

	// Wrap with retry
	if e.retry != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.retry.Execute(ctx, inner)
		}
	}

	// Wrap with circuit breaker
	if e.circuitBreaker != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.circuitBreaker.Execute(ctx, inner)
		}
	}

	// Wrap with bulkhead
	if e.bulkhead != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.bulkhead.Execute(ctx, inner)
		}
	}

	// Wrap with rate limiter (outermost)
	if e.rateLimiter != nil {
		inner := execute
		execute = func(ctx context.Context) error {
			return e.rateLimiter.Execute(ctx, inner)
		}
	}

	return execute(ctx)
}

// Go runs Execute on its own goroutine. The returned channel is buffered
// and delivers exactly one result.
func (e *Executor) Go(ctx context.Context, op func(context.Context) error) <-chan error {
	done := make(chan error, 1)
	go func() {
		done <- e.Execute(ctx, op)
	}()
	return done
}
