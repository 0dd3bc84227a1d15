// Package resilience provides composable protective gates for calls to
// unreliable dependencies.
//
// Each gate guards one failure mode and they compose freely:
//
//   - Circuit Breaker: fast-fails calls to a dependency that has exceeded
//     a failure threshold, and periodically admits trial traffic to
//     detect recovery.
//
//   - Retry: re-invokes a failed operation with configurable backoff
//     (exponential, linear, constant, fibonacci) and jitter (uniform,
//     exponential, decorrelated).
//
//   - Bulkhead: bounds the number of concurrent invocations, with
//     optional FIFO queueing, so one saturated dependency cannot starve
//     the rest of the process.
//
//   - Rate Limiter: sheds excess request rate before it reaches the
//     dependency.
//
//   - Timeout: bounds each individual call.
//
// # Usage
//
// Gates can be used independently or composed with an Executor:
//
//	cb := resilience.NewCircuitBreaker(resilience.CircuitBreakerConfig{
//	    FailureThreshold: 5,
//	    OpenTimeout:      30 * time.Second,
//	})
//
//	retry := resilience.NewRetry(resilience.RetryConfig{
//	    MaxAttempts: 3,
//	    BaseDelay:   100 * time.Millisecond,
//	    Strategy:    resilience.BackoffExponential,
//	    Jitter:      resilience.JitterUniform,
//	})
//
//	bh := resilience.NewBulkhead(resilience.BulkheadConfig{
//	    MaxConcurrent: 8,
//	    MaxQueue:      16,
//	    MaxWait:       time.Second,
//	})
//
//	executor := resilience.NewExecutor(
//	    resilience.WithBulkhead(bh),
//	    resilience.WithCircuitBreaker(cb),
//	    resilience.WithRetry(retry),
//	    resilience.WithTimeout(5*time.Second),
//	)
//
//	err := executor.Execute(ctx, func(ctx context.Context) error {
//	    return callExternalService(ctx)
//	})
//
// # Shared instances
//
// Call-sites that guard the same dependency should share one gate. A
// Registry hands out a single instance per name, created on first use:
//
//	cb := resilience.Default.CircuitBreaker("billing-api", cfg)
//
// # Failure classification
//
// Errors carry a failure Kind (timeout, connection, remote, validation,
// rate-limit) so gates can ignore failures that say nothing about the
// dependency's health; by default validation errors neither trip a
// breaker nor trigger a retry. Tag errors with WithKind or let Classify
// inspect them structurally.
package resilience
