// Package tracing mirrors the stage-scoped log stack (internal/stagelog)
// into OpenTelemetry spans, one per iteration/role stage.
package tracing

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/chembl-text2sql/text2sql/internal/iterate"

// Tracer wraps an otel trace.Tracer so callers don't need to name the
// instrumentation scope at every call site.
type Tracer struct {
	tracer trace.Tracer
}

// New returns a Tracer backed by the given provider, or the global
// provider set via otel.SetTracerProvider if provider is nil.
func New(provider trace.TracerProvider) Tracer {
	if provider == nil {
		provider = otel.GetTracerProvider()
	}
	return Tracer{tracer: provider.Tracer(instrumentationName)}
}

// StartStage opens a span named after the stage (e.g. "ITER_3", "JUDGE")
// and returns the child context plus an end function. Mirrors
// stagelog.Push's (ctx, pop) shape so the two can be composed at each
// call site: `ctx, endSpan := tracer.StartStage(ctx, name)`.
func (t Tracer) StartStage(ctx context.Context, stage string, attrs ...attribute.KeyValue) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, stage, trace.WithAttributes(attrs...))
	return ctx, func() { span.End() }
}

// RecordIterationOutcome stamps the current span (if any is active on ctx)
// with the iteration's stopping outcome and judge score.
func RecordIterationOutcome(ctx context.Context, outcome string, score float64) {
	span := trace.SpanFromContext(ctx)
	span.SetAttributes(
		attribute.String("text2sql.outcome", outcome),
		attribute.Float64("text2sql.judge_score", score),
	)
}
