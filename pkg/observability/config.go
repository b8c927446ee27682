// Package observability wires slog, OpenTelemetry traces and OpenTelemetry
// metrics for the regiontree commands.
package observability

import (
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/samber/lo"
)

// Mode tells how the binary was launched. It is attached to every log line and
// to the otel resource.
type Mode string

const (
	// ModeCLI is a one-shot command.
	ModeCLI Mode = "cli"
	// ModeSoak is the long-running soak loop.
	ModeSoak Mode = "soak"
)

const (
	serviceName     = "regiontree"
	shutdownTimeout = 5 * time.Second
)

// OTLP names the collector traces and metrics are pushed to.
type OTLP struct {
	// Endpoint is a gRPC address such as "localhost:4317". Empty disables push export.
	Endpoint string
	Headers  map[string]string
	Insecure bool
	// SampleRatio of root spans kept. Zero keeps all of them.
	SampleRatio float64
}

// Config selects exporters and the log format.
type Config struct {
	Service string
	Version string
	Mode    Mode
	OTLP    OTLP

	// Prometheus exposes metrics through Telemetry.Scrape.
	Prometheus bool

	LogLevel slog.Level
	LogJSON  bool
	// LogWriter receives log output. Nil means os.Stderr.
	LogWriter io.Writer

	ShutdownTimeout time.Duration
}

// DefaultConfig logs at info to stderr and exports nothing.
func DefaultConfig() Config {
	return Config{
		Service:         serviceName,
		Mode:            ModeCLI,
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: shutdownTimeout,
	}
}

func (cfg Config) pushes() bool {
	return cfg.OTLP.Endpoint != ""
}

// ParseHeaders reads "key=value,key=value" collector headers. Pairs without
// '=' are skipped; nil is returned when nothing is left.
func ParseHeaders(raw string) map[string]string {
	entries := lo.FilterMap(strings.Split(raw, ","), func(pair string, _ int) (lo.Entry[string, string], bool) {
		key, value, ok := strings.Cut(pair, "=")

		return lo.Entry[string, string]{Key: strings.TrimSpace(key), Value: strings.TrimSpace(value)}, ok
	})

	if len(entries) == 0 {
		return nil
	}

	return lo.FromEntries(entries)
}
