package commands

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/regiontree/internal/workload"
	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

// BenchCommand holds the flags of the bench command.
type BenchCommand struct {
	sizes   []int
	pattern string
	seed    int64
	plot    string
}

// BenchPoint is the measurement for one tree size.
type BenchPoint struct {
	Size        int
	Height      int
	BlackHeight int
	Bound       int
	Insert      time.Duration
	Lookup      time.Duration
	Remove      time.Duration
}

// WithinBound reports whether the height respects 2*log2(n+1).
func (p BenchPoint) WithinBound() bool {
	return p.Height <= p.Bound
}

// NewBenchCommand creates the bench command.
func NewBenchCommand() *cobra.Command {
	bc := &BenchCommand{}

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Measure operation cost and tree height across sizes",
		Long: `Bench fills region sets of increasing size, looks every region up, removes them
all again and checks that the height stays within 2*log2(n+1).

Examples:
  regiontree bench
  regiontree bench --sizes 1000,100000,1000000 --pattern ascending
  regiontree bench --plot height.html`,
		Args: cobra.NoArgs,
		RunE: bc.run,
	}

	cmd.Flags().IntSliceVar(&bc.sizes, "sizes", []int{1_000, 10_000, 100_000}, "tree sizes to measure")
	cmd.Flags().StringVar(&bc.pattern, "pattern", "random", "insert pattern: random, ascending or descending")
	cmd.Flags().Int64Var(&bc.seed, "seed", 1, "workload seed")
	cmd.Flags().StringVar(&bc.plot, "plot", "", "write an HTML height chart to this file")

	return cmd
}

func (bc *BenchCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer e.shutdown(cmd)

	pattern, err := parsePattern(bc.pattern)
	if err != nil {
		return err
	}

	ctx, span := e.tel.Tracer.Start(cmd.Context(), "regiontree.bench")
	defer span.End()

	points := make([]BenchPoint, 0, len(bc.sizes))

	for _, size := range bc.sizes {
		wcfg, cfgErr := e.workloadConfig(bc.seed, pattern)
		if cfgErr != nil {
			return cfgErr
		}

		point, benchErr := benchSize(cmd, e, wcfg, size)
		if benchErr != nil {
			return benchErr
		}

		e.tel.Logger.InfoContext(ctx, "bench size done",
			"size", size, "height", point.Height, "insert", point.Insert)

		points = append(points, point)
	}

	out := cmd.OutOrStdout()
	renderBench(out, points)

	if bc.plot != "" {
		err = writePlot(bc.plot, points)
		if err != nil {
			return err
		}

		fmt.Fprintf(out, "height chart written to %s\n", bc.plot)
	}

	failing := lo.Filter(points, func(p BenchPoint, _ int) bool { return !p.WithinBound() })
	for _, p := range failing {
		printStatus(out, false, "n=%d height %d exceeds %d", p.Size, p.Height, p.Bound)
	}

	if len(failing) > 0 {
		return fmt.Errorf("%w: %d sizes exceed the height bound", ErrChecksFailed, len(failing))
	}

	printStatus(out, true, "every height within 2*log2(n+1)")

	return nil
}

func benchSize(cmd *cobra.Command, e *env, wcfg workload.Config, size int) (BenchPoint, error) {
	ctx := cmd.Context()

	wcfg.Slots = 2 * size
	wcfg.RemoveRatio, wcfg.LookupRatio, wcfg.UpdateRatio = 0, 0, 0

	set, err := e.newSet(regions.WithCapacity(size))
	if err != nil {
		return BenchPoint{}, err
	}

	ops := workload.NewGenerator(wcfg).Ops(size)

	started := time.Now()

	for _, op := range ops {
		err = set.Insert(ctx, op.Region)
		if err != nil {
			return BenchPoint{}, fmt.Errorf("bench insert: %w", err)
		}
	}

	point := BenchPoint{
		Size:   size,
		Insert: time.Since(started),
		Bound:  heightBound(size),
	}

	stats := set.Stats()
	point.Height = stats.Height
	point.BlackHeight = stats.BlackHeight

	err = set.Verify()
	if err != nil {
		return point, err
	}

	started = time.Now()

	for _, op := range ops {
		_, found := set.Lookup(op.Region.Start + op.Region.Size/2)
		if !found {
			return point, fmt.Errorf("bench lookup: %s missing", op.Region)
		}
	}

	point.Lookup = time.Since(started)
	started = time.Now()

	for _, op := range ops {
		_, err = set.Remove(ctx, op.Region.Start)
		if err != nil {
			return point, fmt.Errorf("bench remove: %w", err)
		}
	}

	point.Remove = time.Since(started)

	return point, nil
}

func heightBound(n int) int {
	return int(math.Floor(2 * math.Log2(float64(n)+1)))
}

func perOp(total time.Duration, n int) string {
	if n == 0 {
		return "-"
	}

	return (total / time.Duration(n)).String()
}

func renderBench(w io.Writer, points []BenchPoint) {
	tbl := newTable(w, "Bench")
	tbl.AppendHeader(table.Row{"n", "height", "bound", "black height", "insert/op", "lookup/op", "remove/op", "status"})

	for _, p := range points {
		tbl.AppendRow(table.Row{
			humanize.Comma(int64(p.Size)),
			p.Height,
			p.Bound,
			p.BlackHeight,
			perOp(p.Insert, p.Size),
			perOp(p.Lookup, p.Size),
			perOp(p.Remove, p.Size),
			statusLabel(p.WithinBound()),
		})
	}

	tbl.Render()
}

// HeightChart plots the measured height against the 2*log2(n+1) bound.
func HeightChart(points []BenchPoint) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{
			Title:    "Tree height",
			Subtitle: "Measured height against the red-black bound 2*log2(n+1)",
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(true), Top: "5px"}),
		charts.WithXAxisOpts(opts.XAxis{Name: "regions"}),
		charts.WithYAxisOpts(opts.YAxis{Name: "levels"}),
	)

	line.SetXAxis(lo.Map(points, func(p BenchPoint, _ int) string { return strconv.Itoa(p.Size) }))
	line.AddSeries("height", lo.Map(points, func(p BenchPoint, _ int) opts.LineData {
		return opts.LineData{Value: p.Height}
	}))
	line.AddSeries("black height", lo.Map(points, func(p BenchPoint, _ int) opts.LineData {
		return opts.LineData{Value: p.BlackHeight}
	}))
	line.AddSeries("bound", lo.Map(points, func(p BenchPoint, _ int) opts.LineData {
		return opts.LineData{Value: p.Bound}
	}), charts.WithLineStyleOpts(opts.LineStyle{Type: "dashed"}))

	return line
}

func writePlot(path string, points []BenchPoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create plot: %w", err)
	}

	err = HeightChart(points).Render(f)
	if err != nil {
		f.Close()

		return fmt.Errorf("render plot: %w", err)
	}

	return f.Close()
}
