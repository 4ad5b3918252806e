package flow

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestDefaultObservabilityConfig(t *testing.T) {
	config := DefaultObservabilityConfig()

	if !config.EnableTracing {
		t.Error("Tracing should be enabled by default")
	}
	if !config.EnableMetrics {
		t.Error("Metrics should be enabled by default")
	}

	foundEngine := false
	for _, attr := range config.TracingAttributes {
		if attr.Key == "dataflow.engine" && attr.Value.AsString() == "gopher-flow" {
			foundEngine = true
		}
	}
	if !foundEngine {
		t.Error("Default tracing attributes should include dataflow.engine")
	}
}

func TestObservabilityInstrumentation(t *testing.T) {
	instruments := initObservability()

	if instruments.tracer == nil {
		t.Error("Tracer should be initialized")
	}
	if instruments.meter == nil {
		t.Error("Meter should be initialized")
	}
	if instruments.runDuration == nil {
		t.Error("Run duration histogram should be initialized")
	}
	if instruments.runCount == nil {
		t.Error("Run count counter should be initialized")
	}
	if instruments.recordsEmitted == nil {
		t.Error("Records emitted counter should be initialized")
	}
}

func TestObservabilityConfigCustomization(t *testing.T) {
	config := &ObservabilityConfig{
		EnableTracing: false,
		EnableMetrics: true,
		TracingAttributes: []attribute.KeyValue{
			attribute.String("custom.attr", "value"),
		},
	}

	if config.EnableTracing {
		t.Error("Tracing should be disabled")
	}
	if !config.EnableMetrics {
		t.Error("Metrics should be enabled")
	}
}

func TestRunSpanDisabled(t *testing.T) {
	instruments := initObservability()
	config := DefaultObservabilityConfig()
	config.EnableTracing = false

	_, span := instruments.startRunSpan(context.Background(), "g", config)
	if span != nil {
		t.Error("expected no span with tracing disabled")
	}

	// Finishing with a nil span must not panic.
	instruments.finishRunSpan(span, &RunSummary{}, nil, config)
}
