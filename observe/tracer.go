package observe

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	tracenoop "go.opentelemetry.io/otel/trace/noop"
)

// Scope identifies a guarded operation for telemetry purposes: which
// component owns it and what it is called.
type Scope struct {
	Component string // owning subsystem, e.g. "billing" (may be empty)
	Name      string // operation name (required)
	Version   string // component version (optional)
	Tags      []string
}

// SpanName returns the deterministic span name for this scope.
// Format: op.exec.<component>.<name> or op.exec.<name>
func (s Scope) SpanName() string {
	if s.Component != "" {
		return "op.exec." + s.Component + "." + s.Name
	}
	return "op.exec." + s.Name
}

// ID returns the fully qualified operation identifier.
func (s Scope) ID() string {
	if s.Component != "" {
		return s.Component + "." + s.Name
	}
	return s.Name
}

// Tracer wraps OpenTelemetry tracing with operation-scoped span
// management.
//
// Contract:
// - Concurrency: implementations must be safe for concurrent use.
// - Context: StartSpan must honor cancellation/deadlines.
// - Errors: EndSpan must be best-effort and must not panic.
type Tracer interface {
	// StartSpan starts a new span for a guarded operation.
	StartSpan(ctx context.Context, scope Scope) (context.Context, trace.Span)

	// EndSpan ends the span, recording any error.
	EndSpan(span trace.Span, err error)
}

// tracerImpl is the concrete implementation of Tracer.
type tracerImpl struct {
	tracer trace.Tracer
}

// newTracer creates a new Tracer wrapping the given OpenTelemetry tracer.
func newTracer(t trace.Tracer) Tracer {
	return &tracerImpl{tracer: t}
}

// StartSpan starts a new span with scope metadata as attributes.
func (t *tracerImpl) StartSpan(ctx context.Context, scope Scope) (context.Context, trace.Span) {
	attrs := []attribute.KeyValue{
		attribute.String("op.id", scope.ID()),
		attribute.String("op.name", scope.Name),
		attribute.Bool("op.error", false), // Will be updated in EndSpan if error
	}

	if scope.Component != "" {
		attrs = append(attrs, attribute.String("op.component", scope.Component))
	}
	if scope.Version != "" {
		attrs = append(attrs, attribute.String("op.version", scope.Version))
	}
	if len(scope.Tags) > 0 {
		attrs = append(attrs, attribute.StringSlice("op.tags", scope.Tags))
	}

	ctx, span := t.tracer.Start(ctx, scope.SpanName(),
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)

	return ctx, span
}

// EndSpan ends the span and records the error status if present.
func (t *tracerImpl) EndSpan(span trace.Span, err error) {
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		span.SetAttributes(attribute.Bool("op.error", true))
		span.RecordError(err)
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}

// noopTracer is a tracer that does nothing.
type noopTracer struct {
	noop trace.Tracer
}

// newNoopTracer creates a no-op tracer.
func newNoopTracer() Tracer {
	return &noopTracer{
		noop: tracenoop.NewTracerProvider().Tracer("noop"),
	}
}

func (t *noopTracer) StartSpan(ctx context.Context, scope Scope) (context.Context, trace.Span) {
	return t.noop.Start(ctx, scope.SpanName())
}

func (t *noopTracer) EndSpan(span trace.Span, err error) {
	span.End()
}
