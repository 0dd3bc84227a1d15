// Package observe provides the telemetry surface shared by the
// resilience and health packages: structured JSON logging with
// field redaction, OpenTelemetry tracing and metrics with pluggable
// exporters, and a middleware for instrumenting guarded operations.
//
// An Observer bundles the three concerns behind one configuration:
//
//	obs, err := observe.NewObserver(ctx, observe.Config{
//	    ServiceName: "billing",
//	    Tracing:     observe.TracingConfig{Enabled: true, Exporter: "otlp", SamplePct: 0.1},
//	    Metrics:     observe.MetricsConfig{Enabled: true, Exporter: "prometheus"},
//	    Logging:     observe.LoggingConfig{Enabled: true, Level: "info"},
//	})
//
// Operations are instrumented by wrapping the same func(ctx) error
// shape the resilience gates consume:
//
//	mw, _ := observe.MiddlewareFromObserver(obs)
//	op := mw.Wrap(observe.Scope{Component: "billing", Name: "charge"}, chargeCard)
package observe
