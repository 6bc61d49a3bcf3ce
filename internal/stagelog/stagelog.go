// Package stagelog provides the task-local stage stack that every log
// record in the iteration controller is tagged with, and the Emitter
// interface that renders records as text or JSON.
package stagelog

import (
	"context"
	"log/slog"
	"strings"
)

type stackKey struct{}

// Push enters a new stage, returning a context carrying the updated stack
// and a pop function the caller defers. The parent context's stack is never
// modified, so nested stages form a strict stack and leaving a stage on any
// exit path (normal return or panic unwind) is a return to the parent
// context; the returned pop function does nothing and keeps the (ctx, pop)
// shape at call sites.
func Push(ctx context.Context, name string) (context.Context, func()) {
	stack, _ := ctx.Value(stackKey{}).([]string)
	newStack := append(append([]string{}, stack...), name)
	newCtx := context.WithValue(ctx, stackKey{}, newStack)
	return newCtx, func() {}
}

// Path renders the current stage stack as an "a > b > c" string.
func Path(ctx context.Context) string {
	stack, _ := ctx.Value(stackKey{}).([]string)
	return strings.Join(stack, " > ")
}

// Emitter is the logging sink contract, grounded on the teacher's
// LogEmitter shape but rewritten around a stage path instead of
// RunID/Step/NodeID fields.
type Emitter interface {
	Emit(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr)
}

// SlogEmitter renders records through a slog.Logger, attaching the current
// stage path as a structured "stage" attribute on every record.
type SlogEmitter struct {
	logger *slog.Logger
}

func NewSlogEmitter(logger *slog.Logger) *SlogEmitter {
	return &SlogEmitter{logger: logger}
}

func (e *SlogEmitter) Emit(ctx context.Context, level slog.Level, msg string, attrs ...slog.Attr) {
	path := Path(ctx)
	allAttrs := make([]slog.Attr, 0, len(attrs)+1)
	if path != "" {
		allAttrs = append(allAttrs, slog.String("stage", path))
	}
	allAttrs = append(allAttrs, attrs...)
	e.logger.LogAttrs(ctx, level, msg, allAttrs...)
}

// NullEmitter discards every record; used in tests and as the iteration
// controller's default when no emitter is supplied.
type NullEmitter struct{}

func (NullEmitter) Emit(context.Context, slog.Level, string, ...slog.Attr) {}
