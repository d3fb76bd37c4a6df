// Package telemetry defines the Logger/Metrics/Tracer triad every core
// component accepts at construction time. Implementations range from no-op
// (tests, local demo) to OpenTelemetry/clue-backed (production).
package telemetry

import (
	"context"
	"time"
)

type (
	// Logger emits structured, leveled log messages. keyvals are alternating
	// key/value pairs, mirroring the teacher's logging convention so call
	// sites read the same regardless of backend.
	Logger interface {
		Debug(ctx context.Context, msg string, keyvals ...any)
		Info(ctx context.Context, msg string, keyvals ...any)
		Warn(ctx context.Context, msg string, keyvals ...any)
		Error(ctx context.Context, msg string, keyvals ...any)
	}

	// Metrics records counters and timers. Implementations decide how tags
	// are encoded (OTEL attributes, statsd tags, etc.).
	Metrics interface {
		IncCounter(name string, value float64, tags ...string)
		RecordTimer(name string, d time.Duration, tags ...string)
	}

	// Tracer creates spans for tracing component operations.
	Tracer interface {
		StartSpan(ctx context.Context, name string) (context.Context, Span)
	}

	// Span represents one tracing span.
	Span interface {
		End()
		SetError(err error)
		SetAttribute(key string, value any)
	}
)
