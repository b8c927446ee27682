package observability_test

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
)

//nolint:paralleltest // Init replaces the global otel providers.
func TestInit_LoggingOnly(t *testing.T) {
	var buf bytes.Buffer

	cfg := observability.DefaultConfig()
	cfg.LogWriter = &buf

	tel, err := observability.Init(context.Background(), cfg)
	require.NoError(t, err)

	assert.Nil(t, tel.Scrape)

	_, span := tel.Tracer.Start(context.Background(), "noop")
	assert.False(t, span.SpanContext().IsValid())
	span.End()

	tel.Logger.Info("set ready")
	assert.Contains(t, buf.String(), "set ready")

	require.NoError(t, tel.Close(context.Background()))
}

//nolint:paralleltest // Init replaces the global otel providers.
func TestInit_PrometheusScrape(t *testing.T) {
	cfg := observability.DefaultConfig()
	cfg.Mode = observability.ModeSoak
	cfg.Prometheus = true
	cfg.Version = "test"
	cfg.LogWriter = &bytes.Buffer{}

	tel, err := observability.Init(context.Background(), cfg)
	require.NoError(t, err)
	require.NotNil(t, tel.Scrape)

	defer func() { require.NoError(t, tel.Close(context.Background())) }()

	tm, err := observability.NewTreeMetrics(tel.Meter)
	require.NoError(t, err)

	tm.RecordOp(context.Background(), "insert", nil)

	_, err = tm.Observe(func() observability.TreeStats {
		return observability.TreeStats{Regions: 2, Bytes: 8192, Height: 2}
	})
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	tel.Scrape.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody))

	assert.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `app_mode="soak"`)
	assert.Regexp(t, `regiontree[._]ops[._]total`, body)
	assert.Regexp(t, `regiontree[._]height`, body)
}

func TestParseHeaders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  string
		want map[string]string
	}{
		{name: "empty", raw: "", want: nil},
		{name: "no pairs", raw: "garbage", want: nil},
		{name: "trimmed", raw: " api-key = secret ,tenant=a", want: map[string]string{"api-key": "secret", "tenant": "a"}},
		{name: "skips bare keys", raw: "tenant=a,oops", want: map[string]string{"tenant": "a"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.want, observability.ParseHeaders(tt.raw))
		})
	}
}
