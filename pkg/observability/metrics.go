package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
)

const (
	metricOpsTotal    = "regiontree.ops.total"
	metricErrorsTotal = "regiontree.errors.total"
	metricRegions     = "regiontree.regions"
	metricBytes       = "regiontree.bytes"
	metricHeight      = "regiontree.height"

	attrOp     = "op"
	attrStatus = "status"

	statusOK    = "ok"
	statusError = "error"
)

// TreeStats is a point-in-time view of a region tree.
type TreeStats struct {
	Regions int64
	Bytes   int64
	Height  int64
}

// TreeMetrics holds the OTel instruments describing a region tree.
// A nil *TreeMetrics records nothing.
type TreeMetrics struct {
	meter metric.Meter

	opsTotal    metric.Int64Counter
	errorsTotal metric.Int64Counter
	regions     metric.Int64ObservableGauge
	bytes       metric.Int64ObservableGauge
	height      metric.Int64ObservableGauge
}

// NewTreeMetrics creates the tree instruments from the given meter.
func NewTreeMetrics(mt metric.Meter) (*TreeMetrics, error) {
	opsTotal, err := mt.Int64Counter(metricOpsTotal,
		metric.WithDescription("Total number of region set operations"),
		metric.WithUnit("{operation}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricOpsTotal, err)
	}

	errorsTotal, err := mt.Int64Counter(metricErrorsTotal,
		metric.WithDescription("Total number of rejected region set operations"),
		metric.WithUnit("{error}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricErrorsTotal, err)
	}

	regions, err := mt.Int64ObservableGauge(metricRegions,
		metric.WithDescription("Number of regions linked in the tree"),
		metric.WithUnit("{region}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricRegions, err)
	}

	bytes, err := mt.Int64ObservableGauge(metricBytes,
		metric.WithDescription("Total size of the tracked regions"),
		metric.WithUnit("By"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricBytes, err)
	}

	height, err := mt.Int64ObservableGauge(metricHeight,
		metric.WithDescription("Height of the tree"),
		metric.WithUnit("{node}"),
	)
	if err != nil {
		return nil, fmt.Errorf("create %s: %w", metricHeight, err)
	}

	return &TreeMetrics{
		meter:       mt,
		opsTotal:    opsTotal,
		errorsTotal: errorsTotal,
		regions:     regions,
		bytes:       bytes,
		height:      height,
	}, nil
}

// RecordOp counts one operation. A non-nil err marks it as failed.
func (tm *TreeMetrics) RecordOp(ctx context.Context, op string, err error) {
	if tm == nil {
		return
	}

	status := statusOK
	if err != nil {
		status = statusError
	}

	tm.opsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	))

	if err != nil {
		tm.errorsTotal.Add(ctx, 1, metric.WithAttributes(attribute.String(attrOp, op)))
	}
}

// Observe registers source as the provider of the gauges. source is called on
// every collection, from the collecting goroutine. A nil *TreeMetrics returns a
// no-op registration.
func (tm *TreeMetrics) Observe(source func() TreeStats) (metric.Registration, error) {
	if tm == nil {
		return noopmetric.Meter{}.RegisterCallback(nil)
	}

	reg, err := tm.meter.RegisterCallback(func(_ context.Context, obs metric.Observer) error {
		stats := source()

		obs.ObserveInt64(tm.regions, stats.Regions)
		obs.ObserveInt64(tm.bytes, stats.Bytes)
		obs.ObserveInt64(tm.height, stats.Height)

		return nil
	}, tm.regions, tm.bytes, tm.height)
	if err != nil {
		return nil, fmt.Errorf("register tree gauges: %w", err)
	}

	return reg, nil
}
