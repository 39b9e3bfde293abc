package telemetry

import (
	"context"
	"log/slog"
)

// SlogLogger adapts *slog.Logger to Logger, the ambient-stack logging choice
// carried from the teacher (log/slog dominates its call sites).
type SlogLogger struct {
	L *slog.Logger
}

// NewSlogLogger wraps l, defaulting to slog.Default() when l is nil.
func NewSlogLogger(l *slog.Logger) SlogLogger {
	if l == nil {
		l = slog.Default()
	}
	return SlogLogger{L: l}
}

func (s SlogLogger) Debug(ctx context.Context, msg string, kv ...any) { s.L.DebugContext(ctx, msg, kv...) }
func (s SlogLogger) Info(ctx context.Context, msg string, kv ...any)  { s.L.InfoContext(ctx, msg, kv...) }
func (s SlogLogger) Warn(ctx context.Context, msg string, kv ...any)  { s.L.WarnContext(ctx, msg, kv...) }
func (s SlogLogger) Error(ctx context.Context, msg string, kv ...any) { s.L.ErrorContext(ctx, msg, kv...) }
