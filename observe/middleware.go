package observe

import (
	"context"
	"time"
)

// Op is the signature of a guarded operation: the same shape the
// resilience gates wrap, so an instrumented Op drops straight into a
// gate chain.
type Op func(ctx context.Context) error

// Middleware wraps operation execution with observability (tracing,
// metrics, logging).
//
// Contract:
//   - Concurrency: Wrap() returns a thread-safe Op.
//   - Context: propagates context through tracing spans.
//   - Errors: errors from the wrapped operation are recorded and
//     propagated unchanged.
type Middleware struct {
	tracer  Tracer
	metrics Metrics
	logger  Logger
}

// NewMiddleware creates a new Middleware with the given observability components.
func NewMiddleware(tracer Tracer, metrics Metrics, logger Logger) *Middleware {
	return &Middleware{
		tracer:  tracer,
		metrics: metrics,
		logger:  logger,
	}
}

// Wrap instruments the operation with a span, execution metrics, and a
// completion log line carrying the scope. A scope without a name yields
// an Op that fails with ErrMissingScopeName.
func (m *Middleware) Wrap(scope Scope, op Op) Op {
	if scope.Name == "" {
		return func(ctx context.Context) error {
			return ErrMissingScopeName
		}
	}

	return func(ctx context.Context) error {
		ctx, span := m.tracer.StartSpan(ctx, scope)

		start := time.Now()
		err := op(ctx)
		duration := time.Since(start)

		// End span (records error status if err != nil)
		m.tracer.EndSpan(span, err)

		m.metrics.RecordExecution(ctx, scope, duration, err)

		logger := m.logger
		if ext, ok := logger.(ExtendedLogger); ok {
			logger = ext.WithScope(scope)
		}
		fields := []Field{
			{Key: "duration_ms", Value: float64(duration.Milliseconds())},
		}
		if err != nil {
			fields = append(fields, Field{Key: "error", Value: err.Error()})
			logger.Error(ctx, "operation failed", fields...)
		} else {
			logger.Info(ctx, "operation completed", fields...)
		}

		return err
	}
}

// MiddlewareFromObserver creates a Middleware from an Observer.
// This is a convenience function for common use cases.
func MiddlewareFromObserver(obs Observer) (*Middleware, error) {
	if obs == nil {
		return nil, ErrNilObserver
	}

	tracer := newTracer(obs.Tracer())

	metrics, err := newMetrics(obs.Meter())
	if err != nil {
		return nil, err
	}

	return NewMiddleware(tracer, metrics, obs.Logger()), nil
}
