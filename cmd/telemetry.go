package cmd

import (
	"context"
	"log/slog"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
)

// slogSpanExporter writes finished spans to a logger at debug level.
type slogSpanExporter struct {
	logger *slog.Logger
}

func (e *slogSpanExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	for _, span := range spans {
		attrs := []any{
			"span", span.Name(),
			"trace_id", span.SpanContext().TraceID().String(),
			"duration", span.EndTime().Sub(span.StartTime()),
		}
		if span.Status().Description != "" {
			attrs = append(attrs, "status", span.Status().Description)
		}
		for _, kv := range span.Attributes() {
			attrs = append(attrs, string(kv.Key), kv.Value.Emit())
		}
		e.logger.DebugContext(ctx, "trace", attrs...)
	}
	return nil
}

func (e *slogSpanExporter) Shutdown(context.Context) error { return nil }

// newTracerProvider returns a provider that logs spans when --trace is set,
// and a no-op provider otherwise. The returned func flushes and releases it.
func newTracerProvider(logger *slog.Logger) (trace.TracerProvider, func(context.Context) error) {
	if !tracing {
		return noop.NewTracerProvider(), func(context.Context) error { return nil }
	}
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSyncer(&slogSpanExporter{logger: logger}),
	)
	return tp, tp.Shutdown
}
