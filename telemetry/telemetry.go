// Package telemetry provides the logging/metrics/tracing seams used by the
// Observability decorator (§4.4 step 2) and by process-level budget counters
// (§4.8). Implementations are pluggable: a slog-backed Logger, an
// OpenTelemetry-backed Tracer/Metrics, or no-ops for tests.
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger is a structured logger scoped to the calling component.
	Logger interface {
		Debug(ctx context.Context, msg string, kv ...any)
		Info(ctx context.Context, msg string, kv ...any)
		Warn(ctx context.Context, msg string, kv ...any)
		Error(ctx context.Context, msg string, kv ...any)
	}

	// Metrics records counters, timers, and gauges.
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
		RecordGauge(name string, value float64, tags ...string)
	}

	// Tracer starts spans parented to the context's current span, if any.
	Tracer interface {
		Start(ctx context.Context, name string, attrs ...Attr) (context.Context, Span)
	}

	// Span is an open observation span (§4.4 step 2: "stopped on all exit
	// paths").
	Span interface {
		SetAttr(key string, value any)
		SetStatus(err error)
		End()
	}

	// Attr is a key/value pair attached to a span at start time.
	Attr struct {
		Key   string
		Value any
	}
)

// A constructs an Attr.
func A(key string, value any) Attr { return Attr{Key: key, Value: value} }
