package observability

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"go.opentelemetry.io/otel/trace"
)

// TracingHandler adds the trace and span ids of the span carried by the
// record's context. Enabled is served by the embedded handler.
type TracingHandler struct {
	slog.Handler
}

// NewTracingHandler wraps inner. service and mode are bound before any group
// so they stay top-level keys.
func NewTracingHandler(inner slog.Handler, service string, mode Mode) *TracingHandler {
	return &TracingHandler{Handler: inner.WithAttrs([]slog.Attr{
		slog.String("service", service),
		slog.String("mode", string(mode)),
	})}
}

// Handle implements [slog.Handler].
func (th *TracingHandler) Handle(ctx context.Context, record slog.Record) error {
	if span := trace.SpanContextFromContext(ctx); span.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", span.TraceID().String()),
			slog.String("span_id", span.SpanID().String()),
		)
	}

	return th.Handler.Handle(ctx, record)
}

// WithAttrs implements [slog.Handler].
func (th *TracingHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &TracingHandler{Handler: th.Handler.WithAttrs(attrs)}
}

// WithGroup implements [slog.Handler].
func (th *TracingHandler) WithGroup(name string) slog.Handler {
	return &TracingHandler{Handler: th.Handler.WithGroup(name)}
}

// NewLogger builds the text or JSON logger cfg asks for.
func NewLogger(cfg Config) *slog.Logger {
	out := cfg.LogWriter
	if out == nil {
		out = os.Stderr
	}

	return slog.New(NewTracingHandler(newHandler(out, cfg), cfg.Service, cfg.Mode))
}

func newHandler(out io.Writer, cfg Config) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	if cfg.LogJSON {
		return slog.NewJSONHandler(out, opts)
	}

	return slog.NewTextHandler(out, opts)
}

// ParseLevel maps debug, info, warn or error (any case) to a level.
func ParseLevel(name string) (slog.Level, error) {
	var level slog.Level

	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo, fmt.Errorf("log level %q: %w", name, err)
	}

	return level, nil
}
