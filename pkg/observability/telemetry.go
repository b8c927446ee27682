package observability

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/lo"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	promexporter "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

const instrumentationName = "github.com/Sumatoshi-tech/regiontree"

// Telemetry is what a command reports through.
type Telemetry struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Scrape serves the Prometheus exposition format. Nil unless Config.Prometheus is set.
	Scrape http.Handler

	closers []func(context.Context) error
	cfg     Config
}

// Init installs the global otel providers described by cfg. Without an OTLP
// endpoint or Prometheus, tracing and metrics are no-ops and only logging is live.
func Init(ctx context.Context, cfg Config) (*Telemetry, error) {
	res, err := resource.New(ctx, resource.WithAttributes(serviceAttributes(cfg)...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	tel := &Telemetry{Logger: NewLogger(cfg), cfg: cfg}

	tp, err := tel.tracerProvider(ctx, res)
	if err != nil {
		return nil, err
	}

	mp, err := tel.meterProvider(ctx, res)
	if err != nil {
		return nil, errors.Join(err, tel.Close(ctx))
	}

	otel.SetTracerProvider(tp)
	otel.SetMeterProvider(mp)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tel.Tracer = tp.Tracer(instrumentationName)
	tel.Meter = mp.Meter(instrumentationName)

	return tel, nil
}

// Close flushes pending spans and metrics, waiting at most Config.ShutdownTimeout.
func (tel *Telemetry) Close(ctx context.Context) error {
	timeout := tel.cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = shutdownTimeout
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	return errors.Join(lo.Map(tel.closers, func(closer func(context.Context) error, _ int) error {
		return closer(ctx)
	})...)
}

func serviceAttributes(cfg Config) []attribute.KeyValue {
	attrs := []attribute.KeyValue{
		semconv.ServiceName(cfg.Service),
		attribute.String("app.mode", string(cfg.Mode)),
	}

	if cfg.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(cfg.Version))
	}

	return attrs
}

func (tel *Telemetry) tracerProvider(ctx context.Context, res *resource.Resource) (trace.TracerProvider, error) {
	if !tel.cfg.pushes() {
		return nooptrace.NewTracerProvider(), nil
	}

	exporter, err := otlptracegrpc.New(ctx, traceExportOptions(tel.cfg.OTLP)...)
	if err != nil {
		return nil, fmt.Errorf("create trace exporter: %w", err)
	}

	tp := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(exporter),
		sdktrace.WithResource(res),
		sdktrace.WithSampler(sampler(tel.cfg.OTLP.SampleRatio)),
	)
	tel.closers = append(tel.closers, tp.Shutdown)

	return tp, nil
}

func (tel *Telemetry) meterProvider(ctx context.Context, res *resource.Resource) (metric.MeterProvider, error) {
	var readers []sdkmetric.Option

	if tel.cfg.Prometheus {
		registry := prometheus.NewRegistry()

		exporter, err := promexporter.New(promexporter.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("create prometheus exporter: %w", err)
		}

		readers = append(readers, sdkmetric.WithReader(exporter))
		tel.Scrape = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
	}

	if tel.cfg.pushes() {
		exporter, err := otlpmetricgrpc.New(ctx, metricExportOptions(tel.cfg.OTLP)...)
		if err != nil {
			return nil, fmt.Errorf("create metric exporter: %w", err)
		}

		readers = append(readers, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	if len(readers) == 0 {
		return noopmetric.NewMeterProvider(), nil
	}

	mp := sdkmetric.NewMeterProvider(append(readers, sdkmetric.WithResource(res))...)
	tel.closers = append(tel.closers, mp.Shutdown)

	return mp, nil
}

func sampler(ratio float64) sdktrace.Sampler {
	if ratio <= 0 {
		return sdktrace.ParentBased(sdktrace.AlwaysSample())
	}

	return sdktrace.ParentBased(sdktrace.TraceIDRatioBased(ratio))
}

func traceExportOptions(collector OTLP) []otlptracegrpc.Option {
	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(collector.Endpoint)}

	if collector.Insecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(collector.Headers) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(collector.Headers))
	}

	return opts
}

func metricExportOptions(collector OTLP) []otlpmetricgrpc.Option {
	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(collector.Endpoint)}

	if collector.Insecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}

	if len(collector.Headers) > 0 {
		opts = append(opts, otlpmetricgrpc.WithHeaders(collector.Headers))
	}

	return opts
}
