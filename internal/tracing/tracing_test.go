package tracing

import (
	"context"
	"testing"

	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func TestStartStageRecordsSpan(t *testing.T) {
	exporter := tracetest.NewInMemoryExporter()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSyncer(exporter))
	defer provider.Shutdown(context.Background())

	tr := New(provider)
	ctx, end := tr.StartStage(context.Background(), "ITER_1")
	RecordIterationOutcome(ctx, "stopped", 0.95)
	end()

	spans := exporter.GetSpans()
	if len(spans) != 1 {
		t.Fatalf("expected 1 span, got %d", len(spans))
	}
	if spans[0].Name != "ITER_1" {
		t.Errorf("span name = %q, want ITER_1", spans[0].Name)
	}
}
