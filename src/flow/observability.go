package flow

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName    = "github.com/seuros/gopher-flow/src/flow"
	instrumentationVersion = "0.1.0"
)

// ObservabilityConfig controls telemetry collection for a run.
type ObservabilityConfig struct {
	// EnableTracing enables OpenTelemetry distributed tracing
	EnableTracing bool

	// EnableMetrics enables OpenTelemetry metrics collection
	EnableMetrics bool

	// TracingAttributes are additional attributes to add to all spans
	TracingAttributes []attribute.KeyValue

	// MetricAttributes are additional attributes to add to all metrics
	MetricAttributes []attribute.KeyValue
}

// DefaultObservabilityConfig returns default observability configuration
func DefaultObservabilityConfig() *ObservabilityConfig {
	return &ObservabilityConfig{
		EnableTracing: true,
		EnableMetrics: true,
		TracingAttributes: []attribute.KeyValue{
			attribute.String("dataflow.engine", "gopher-flow"),
			attribute.String("dataflow.engine.version", instrumentationVersion),
		},
		MetricAttributes: []attribute.KeyValue{
			attribute.String("dataflow.engine", "gopher-flow"),
		},
	}
}

// observabilityInstruments holds OpenTelemetry instruments
type observabilityInstruments struct {
	tracer trace.Tracer
	meter  metric.Meter

	// Metrics
	runDuration    metric.Float64Histogram
	runCount       metric.Int64Counter
	runErrors      metric.Int64Counter
	graphsExecuted metric.Int64Counter
	recordsEmitted metric.Int64Counter
}

var (
	instrumentsOnce sync.Once
	instruments     *observabilityInstruments
)

// observability returns the process-wide instruments, initialising them on
// first use.
func observability() *observabilityInstruments {
	instrumentsOnce.Do(func() {
		instruments = initObservability()
	})
	return instruments
}

func initObservability() *observabilityInstruments {
	tracer := otel.Tracer(instrumentationName, trace.WithInstrumentationVersion(instrumentationVersion))
	meter := otel.Meter(instrumentationName, metric.WithInstrumentationVersion(instrumentationVersion))

	oi := &observabilityInstruments{
		tracer: tracer,
		meter:  meter,
	}

	var err error

	oi.runDuration, err = meter.Float64Histogram(
		"dataflow.run.duration",
		metric.WithDescription("Duration of graph runs"),
		metric.WithUnit("s"),
	)
	if err != nil {
		otel.Handle(err)
	}

	oi.runCount, err = meter.Int64Counter(
		"dataflow.run.count",
		metric.WithDescription("Number of graph runs executed"),
	)
	if err != nil {
		otel.Handle(err)
	}

	oi.runErrors, err = meter.Int64Counter(
		"dataflow.run.errors",
		metric.WithDescription("Number of graph runs that failed"),
	)
	if err != nil {
		otel.Handle(err)
	}

	oi.graphsExecuted, err = meter.Int64Counter(
		"dataflow.graphs.executed",
		metric.WithDescription("Number of graphs executed across runs"),
	)
	if err != nil {
		otel.Handle(err)
	}

	oi.recordsEmitted, err = meter.Int64Counter(
		"dataflow.records.emitted",
		metric.WithDescription("Number of records emitted by root graphs"),
	)
	if err != nil {
		otel.Handle(err)
	}

	return oi
}

// RunSummary contains execution metadata for one Run invocation.
type RunSummary struct {
	// GraphName is the label of the root graph.
	GraphName string

	// ExecutionTime is the wall-clock duration of the run.
	ExecutionTime time.Duration

	// GraphsExecuted counts every graph in the topological order.
	GraphsExecuted int64

	// RecordsEmitted counts the records produced by the root graph.
	RecordsEmitted int64

	// ReplayBuffers counts the graphs that were materialised for fan-out.
	ReplayBuffers int64
}

// startRunSpan opens a tracing span for one run.
func (oi *observabilityInstruments) startRunSpan(ctx context.Context, graphName string, config *ObservabilityConfig) (context.Context, trace.Span) {
	if !config.EnableTracing {
		return ctx, nil
	}

	attrs := make([]attribute.KeyValue, 0, len(config.TracingAttributes)+1)
	attrs = append(attrs, config.TracingAttributes...)
	attrs = append(attrs, attribute.String("dataflow.graph", graphName))

	ctx, span := oi.tracer.Start(ctx, "dataflow.run",
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, span
}

// finishRunSpan completes a run span and records metrics.
func (oi *observabilityInstruments) finishRunSpan(span trace.Span, summary *RunSummary, err error, config *ObservabilityConfig) {
	if config.EnableMetrics {
		attrs := metric.WithAttributes(config.MetricAttributes...)

		oi.runDuration.Record(context.Background(), summary.ExecutionTime.Seconds(), attrs)
		if err != nil {
			oi.runErrors.Add(context.Background(), 1, attrs)
		} else {
			oi.runCount.Add(context.Background(), 1, attrs)
			oi.graphsExecuted.Add(context.Background(), summary.GraphsExecuted, attrs)
			if summary.RecordsEmitted > 0 {
				oi.recordsEmitted.Add(context.Background(), summary.RecordsEmitted, attrs)
			}
		}
	}

	if span == nil {
		return
	}
	span.SetAttributes(
		attribute.Int64("dataflow.run.graphs", summary.GraphsExecuted),
		attribute.Int64("dataflow.run.records", summary.RecordsEmitted),
		attribute.Int64("dataflow.run.replay_buffers", summary.ReplayBuffers),
	)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	} else {
		span.SetStatus(codes.Ok, "")
	}
	span.End()
}
