package exporters

import (
	"context"
	"errors"
	"testing"
)

// TestTracingExporter_UnknownName verifies unsupported names are rejected.
func TestTracingExporter_UnknownName(t *testing.T) {
	_, err := NewTracingExporter(context.Background(), "zipkin")
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter, got %v", err)
	}
}

// TestTracingExporter_Stdout verifies the stdout exporter builds.
func TestTracingExporter_Stdout(t *testing.T) {
	exp, err := NewTracingExporter(context.Background(), "stdout")
	if err != nil {
		t.Fatalf("stdout tracing exporter: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
}

// TestTracingExporter_OtlpMissingEndpoint verifies OTLP requires an endpoint.
func TestTracingExporter_OtlpMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_TRACES_ENDPOINT", "")

	_, err := NewTracingExporter(context.Background(), "otlp")
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("expected ErrEndpointNotConfigured, got %v", err)
	}
}

// TestTracingExporter_OtlpWithEndpoint verifies OTLP builds once configured.
func TestTracingExporter_OtlpWithEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "http://localhost:4317")

	exp, err := NewTracingExporter(context.Background(), "otlp")
	if err != nil {
		t.Fatalf("otlp exporter with endpoint: %v", err)
	}
	if exp == nil {
		t.Fatal("expected non-nil exporter")
	}
}

// TestTracingExporter_JaegerMissingEndpoint verifies Jaeger requires an endpoint.
func TestTracingExporter_JaegerMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_JAEGER_ENDPOINT", "")

	_, err := NewTracingExporter(context.Background(), "jaeger")
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("expected ErrEndpointNotConfigured, got %v", err)
	}
}

// TestTracingExporter_NoneDiscards verifies "none" and "" both build a
// discarding exporter.
func TestTracingExporter_NoneDiscards(t *testing.T) {
	for _, name := range []string{"none", ""} {
		exp, err := NewTracingExporter(context.Background(), name)
		if err != nil {
			t.Fatalf("NewTracingExporter(%q): %v", name, err)
		}
		if exp == nil {
			t.Errorf("NewTracingExporter(%q) returned nil exporter", name)
		}
	}
}

// TestMetricsReader_Stdout verifies the stdout reader builds.
func TestMetricsReader_Stdout(t *testing.T) {
	reader, err := NewMetricsReader(context.Background(), "stdout")
	if err != nil {
		t.Fatalf("stdout metrics reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
}

// TestMetricsReader_Prometheus verifies the Prometheus reader builds.
func TestMetricsReader_Prometheus(t *testing.T) {
	reader, err := NewMetricsReader(context.Background(), "prometheus")
	if err != nil {
		t.Fatalf("prometheus reader: %v", err)
	}
	if reader == nil {
		t.Fatal("expected non-nil reader")
	}
}

// TestMetricsReader_OtlpMissingEndpoint verifies OTLP metrics require an endpoint.
func TestMetricsReader_OtlpMissingEndpoint(t *testing.T) {
	t.Setenv("OTEL_EXPORTER_OTLP_ENDPOINT", "")
	t.Setenv("OTEL_EXPORTER_OTLP_METRICS_ENDPOINT", "")

	_, err := NewMetricsReader(context.Background(), "otlp")
	if !errors.Is(err, ErrEndpointNotConfigured) {
		t.Errorf("expected ErrEndpointNotConfigured, got %v", err)
	}
}

// TestMetricsReader_UnknownName verifies unsupported names are rejected.
func TestMetricsReader_UnknownName(t *testing.T) {
	_, err := NewMetricsReader(context.Background(), "statsd")
	if !errors.Is(err, ErrUnknownExporter) {
		t.Errorf("expected ErrUnknownExporter, got %v", err)
	}
}

// TestMetricsReader_NoneDiscards verifies "none" and "" both build a
// discarding reader.
func TestMetricsReader_NoneDiscards(t *testing.T) {
	for _, name := range []string{"none", ""} {
		reader, err := NewMetricsReader(context.Background(), name)
		if err != nil {
			t.Fatalf("NewMetricsReader(%q): %v", name, err)
		}
		if reader == nil {
			t.Errorf("NewMetricsReader(%q) returned nil reader", name)
		}
	}
}
