package stagelog

import (
	"context"
	"log/slog"
	"testing"
)

func TestPushPathNesting(t *testing.T) {
	ctx := context.Background()
	if Path(ctx) != "" {
		t.Fatalf("expected empty path, got %q", Path(ctx))
	}

	ctx1, pop1 := Push(ctx, "ITER_1")
	defer pop1()
	if Path(ctx1) != "ITER_1" {
		t.Errorf("Path = %q, want ITER_1", Path(ctx1))
	}

	ctx2, pop2 := Push(ctx1, "J_1")
	defer pop2()
	if Path(ctx2) != "ITER_1 > J_1" {
		t.Errorf("Path = %q, want ITER_1 > J_1", Path(ctx2))
	}

	// Parent context is untouched by the child push (stack immutability
	// is what gives us "guaranteed pop" for free).
	if Path(ctx1) != "ITER_1" {
		t.Errorf("parent path mutated: %q", Path(ctx1))
	}
}

func TestNullEmitterDiscardsSafely(t *testing.T) {
	var e NullEmitter
	e.Emit(context.Background(), slog.LevelInfo, "hello")
}

func TestSlogEmitterAttachesStage(t *testing.T) {
	var buf recordingHandler
	logger := slog.New(&buf)
	e := NewSlogEmitter(logger)

	ctx, pop := Push(context.Background(), "SQL_2")
	defer pop()

	e.Emit(ctx, slog.LevelInfo, "generated sql")

	if buf.lastStage != "SQL_2" {
		t.Errorf("stage attr = %q, want SQL_2", buf.lastStage)
	}
}

type recordingHandler struct {
	lastStage string
}

func (h *recordingHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *recordingHandler) Handle(_ context.Context, r slog.Record) error {
	r.Attrs(func(a slog.Attr) bool {
		if a.Key == "stage" {
			h.lastStage = a.Value.String()
		}
		return true
	})
	return nil
}

func (h *recordingHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *recordingHandler) WithGroup(string) slog.Handler      { return h }
