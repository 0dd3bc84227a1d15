package resilience

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Sink receives telemetry from resilience gates.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Blocking: implementations must return quickly and never block a call.
// - Errors: implementations must not panic.
type Sink interface {
	// RecordCall records one protected call with its duration and outcome.
	RecordCall(ctx context.Context, name string, duration time.Duration, err error)

	// RecordStateChange records a circuit breaker transition.
	RecordStateChange(ctx context.Context, name string, from, to State)

	// RecordRetry records one retry attempt and the delay that preceded it.
	RecordRetry(ctx context.Context, name string, attempt int, delay time.Duration)

	// RecordRejection records a fast-fail (circuit open, bulkhead full).
	RecordRejection(ctx context.Context, name string, reason string)
}

// otelSink is a Sink backed by the OpenTelemetry metric API.
type otelSink struct {
	callCount    metric.Int64Counter
	errorCount   metric.Int64Counter
	durationHist metric.Float64Histogram
	transitions  metric.Int64Counter
	retries      metric.Int64Counter
	rejections   metric.Int64Counter
}

// NewOTelSink creates a Sink that publishes counters and histograms
// through the given meter. Instrument names are stable and prefixed with
// "resilience.".
func NewOTelSink(meter metric.Meter) (Sink, error) {
	callCount, err := meter.Int64Counter(
		"resilience.calls.total",
		metric.WithDescription("Total number of protected calls"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	errorCount, err := meter.Int64Counter(
		"resilience.calls.errors",
		metric.WithDescription("Total number of failed protected calls"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, err
	}

	durationHist, err := meter.Float64Histogram(
		"resilience.call.duration_ms",
		metric.WithDescription("Protected call duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return nil, err
	}

	transitions, err := meter.Int64Counter(
		"resilience.breaker.transitions",
		metric.WithDescription("Circuit breaker state transitions"),
		metric.WithUnit("{transition}"),
	)
	if err != nil {
		return nil, err
	}

	retries, err := meter.Int64Counter(
		"resilience.retry.attempts",
		metric.WithDescription("Retry attempts performed"),
		metric.WithUnit("{attempt}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		"resilience.rejections.total",
		metric.WithDescription("Calls rejected by a gate before invocation"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	return &otelSink{
		callCount:    callCount,
		errorCount:   errorCount,
		durationHist: durationHist,
		transitions:  transitions,
		retries:      retries,
		rejections:   rejections,
	}, nil
}

func (s *otelSink) RecordCall(ctx context.Context, name string, duration time.Duration, err error) {
	opt := metric.WithAttributes(attribute.String("gate", name))

	s.callCount.Add(ctx, 1, opt)
	if err != nil {
		s.errorCount.Add(ctx, 1, opt)
	}
	s.durationHist.Record(ctx, float64(duration.Milliseconds()), opt)
}

func (s *otelSink) RecordStateChange(ctx context.Context, name string, from, to State) {
	s.transitions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", name),
		attribute.String("from", from.String()),
		attribute.String("to", to.String()),
	))
}

func (s *otelSink) RecordRetry(ctx context.Context, name string, attempt int, delay time.Duration) {
	s.retries.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", name),
		attribute.Int("attempt", attempt),
	))
}

func (s *otelSink) RecordRejection(ctx context.Context, name string, reason string) {
	s.rejections.Add(ctx, 1, metric.WithAttributes(
		attribute.String("gate", name),
		attribute.String("reason", reason),
	))
}

// NopSink is a Sink that discards everything.
type NopSink struct{}

func (NopSink) RecordCall(ctx context.Context, name string, duration time.Duration, err error) {}
func (NopSink) RecordStateChange(ctx context.Context, name string, from, to State)             {}
func (NopSink) RecordRetry(ctx context.Context, name string, attempt int, delay time.Duration) {}
func (NopSink) RecordRejection(ctx context.Context, name string, reason string)                {}
