package observability_test

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"

	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
)

func TestTracingHandler_InjectsTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	logger := slog.New(observability.NewTracingHandler(inner, "test-svc", observability.ModeSoak))

	traceID, err := trace.TraceIDFromHex("0102030405060708090a0b0c0d0e0f10")
	require.NoError(t, err)

	spanID, err := trace.SpanIDFromHex("0102030405060708")
	require.NoError(t, err)

	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    traceID,
		SpanID:     spanID,
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	logger.InfoContext(ctx, "region inserted")

	var record map[string]any

	err = json.Unmarshal(buf.Bytes(), &record)
	require.NoError(t, err)

	assert.Equal(t, "0102030405060708090a0b0c0d0e0f10", record["trace_id"])
	assert.Equal(t, "0102030405060708", record["span_id"])
	assert.Equal(t, "test-svc", record["service"])
	assert.Equal(t, "soak", record["mode"])
}

func TestTracingHandler_NoTraceContext(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "regiontree", observability.ModeCLI))

	logger.InfoContext(context.Background(), "no span")

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.NotContains(t, record, "trace_id")
	assert.NotContains(t, record, "span_id")
	assert.Equal(t, "cli", record["mode"])
}

func TestTracingHandler_GroupKeepsServiceAtTopLevel(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	inner := slog.NewJSONHandler(&buf, nil)
	logger := slog.New(observability.NewTracingHandler(inner, "regiontree", observability.ModeCLI)).
		WithGroup("tree").With("height", 3)

	logger.Info("stats", "regions", 10)

	var record map[string]any

	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	assert.Equal(t, "regiontree", record["service"])

	group, ok := record["tree"].(map[string]any)
	require.True(t, ok)
	assert.InDelta(t, 3, group["height"], 0)
	assert.InDelta(t, 10, group["regions"], 0)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogWriter = &buf
	cfg.LogLevel = slog.LevelWarn

	logger := observability.NewLogger(cfg)
	logger.Info("hidden")
	logger.Warn("shown", "key", "value")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "service=regiontree")
	assert.Equal(t, 1, strings.Count(out, "\n"))
}

func TestParseLevel(t *testing.T) {
	t.Parallel()

	level, err := observability.ParseLevel("debug")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, level)

	level, err = observability.ParseLevel("WARN")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)

	_, err = observability.ParseLevel("loud")
	require.Error(t, err)
}
