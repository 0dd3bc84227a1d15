package observe

import (
	"context"
	"errors"
	"testing"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func newRecordingTracer() (Tracer, *tracetest.SpanRecorder) {
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	return newTracer(tp.Tracer("test")), recorder
}

// TestTracer_SpanName verifies the deterministic span naming scheme.
func TestTracer_SpanName(t *testing.T) {
	tests := []struct {
		scope Scope
		want  string
	}{
		{Scope{Name: "charge"}, "op.exec.charge"},
		{Scope{Component: "billing", Name: "charge"}, "op.exec.billing.charge"},
	}

	for _, tt := range tests {
		tracer, recorder := newRecordingTracer()

		_, span := tracer.StartSpan(context.Background(), tt.scope)
		tracer.EndSpan(span, nil)

		spans := recorder.Ended()
		if len(spans) != 1 {
			t.Fatalf("expected 1 span, got %d", len(spans))
		}
		if got := spans[0].Name(); got != tt.want {
			t.Errorf("span name = %q, want %q", got, tt.want)
		}
	}
}

// TestTracer_ScopeAttributes verifies scope metadata is attached as span attributes.
func TestTracer_ScopeAttributes(t *testing.T) {
	tracer, recorder := newRecordingTracer()

	scope := Scope{
		Component: "billing",
		Name:      "charge",
		Version:   "1.2.0",
		Tags:      []string{"payments", "external"},
	}

	_, span := tracer.StartSpan(context.Background(), scope)
	tracer.EndSpan(span, nil)

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}

	if got := attrs["op.id"].AsString(); got != "billing.charge" {
		t.Errorf("op.id = %q, want %q", got, "billing.charge")
	}
	if got := attrs["op.name"].AsString(); got != "charge" {
		t.Errorf("op.name = %q, want %q", got, "charge")
	}
	if got := attrs["op.component"].AsString(); got != "billing" {
		t.Errorf("op.component = %q, want %q", got, "billing")
	}
	if got := attrs["op.version"].AsString(); got != "1.2.0" {
		t.Errorf("op.version = %q, want %q", got, "1.2.0")
	}
	if got := attrs["op.error"].AsBool(); got {
		t.Error("op.error should be false on a clean span")
	}
}

// TestTracer_ErrorStatus verifies error recording on failed operations.
func TestTracer_ErrorStatus(t *testing.T) {
	tracer, recorder := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), Scope{Name: "charge"})
	tracer.EndSpan(span, errors.New("card declined"))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}

	if got := spans[0].Status().Code; got != codes.Error {
		t.Errorf("status code = %v, want %v", got, codes.Error)
	}
	if got := spans[0].Status().Description; got != "card declined" {
		t.Errorf("status description = %q, want %q", got, "card declined")
	}

	attrs := make(map[attribute.Key]attribute.Value)
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	if !attrs["op.error"].AsBool() {
		t.Error("op.error should be true after a failed operation")
	}

	if len(spans[0].Events()) == 0 {
		t.Error("expected a recorded error event on the span")
	}
}

// TestTracer_OkStatus verifies successful spans get an Ok status.
func TestTracer_OkStatus(t *testing.T) {
	tracer, recorder := newRecordingTracer()

	_, span := tracer.StartSpan(context.Background(), Scope{Name: "charge"})
	tracer.EndSpan(span, nil)

	spans := recorder.Ended()
	if got := spans[0].Status().Code; got != codes.Ok {
		t.Errorf("status code = %v, want %v", got, codes.Ok)
	}
}

// TestScope_ID verifies identifier derivation.
func TestScope_ID(t *testing.T) {
	tests := []struct {
		scope Scope
		want  string
	}{
		{Scope{Name: "charge"}, "charge"},
		{Scope{Component: "billing", Name: "charge"}, "billing.charge"},
	}

	for _, tt := range tests {
		if got := tt.scope.ID(); got != tt.want {
			t.Errorf("Scope%+v.ID() = %q, want %q", tt.scope, got, tt.want)
		}
	}
}
