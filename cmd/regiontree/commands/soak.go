package commands

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/regiontree/internal/workload"
	"github.com/Sumatoshi-tech/regiontree/pkg/config"
	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

const (
	soakBatch          = 1024
	readHeaderTimeout  = 5 * time.Second
	serverShutdownWait = 5 * time.Second
)

// SoakCommand holds the flags of the soak command.
type SoakCommand struct {
	duration    time.Duration
	metricsAddr string
	seed        int64
}

// NewSoakCommand creates the soak command.
func NewSoakCommand() *cobra.Command {
	sc := &SoakCommand{}

	cmd := &cobra.Command{
		Use:   "soak",
		Short: "Drive a region set continuously and export its metrics",
		Long: `Soak applies generated operations to one long-lived region set until the
duration elapses or the process is interrupted. Every report period the set is
verified, compacted and summarised. With a metrics address the tree gauges and
operation counters are served for Prometheus at /metrics.

Examples:
  regiontree soak --duration 10m
  regiontree soak --metrics-addr :9090`,
		Args: cobra.NoArgs,
		RunE: sc.run,
	}

	cmd.Flags().DurationVar(&sc.duration, "duration", 0, "how long to run (default soak.duration)")
	cmd.Flags().StringVar(&sc.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address (default metrics.addr)")
	cmd.Flags().Int64Var(&sc.seed, "seed", 0, "workload seed (default workload.seed)")

	return cmd
}

// lockedSet serialises access to a set shared by the driver, the reporter and the metrics callback.
type lockedSet struct {
	mu  sync.Mutex
	set *regions.Set
}

func (ls *lockedSet) with(fn func(set *regions.Set) error) error {
	ls.mu.Lock()
	defer ls.mu.Unlock()

	return fn(ls.set)
}

func (sc *SoakCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd, observability.ModeSoak, func(cfg *config.Config) {
		if sc.metricsAddr != "" {
			cfg.Metrics.Addr = sc.metricsAddr
		}
	})
	if err != nil {
		return err
	}
	defer e.shutdown(cmd)

	duration := e.cfg.Soak.Duration
	if sc.duration > 0 {
		duration = sc.duration
	}

	seed := e.cfg.Workload.Seed
	if cmd.Flags().Changed("seed") {
		seed = sc.seed
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	opts, err := e.setOptions()
	if err != nil {
		return err
	}

	shared := &lockedSet{set: regions.New(opts...)}

	metrics, err := observability.NewTreeMetrics(e.tel.Meter)
	if err != nil {
		return err
	}

	registration, err := metrics.Observe(func() observability.TreeStats {
		var stats observability.TreeStats

		_ = shared.with(func(set *regions.Set) error {
			stats = set.TreeStats()

			return nil
		})

		return stats
	})
	if err != nil {
		return fmt.Errorf("observe tree: %w", err)
	}

	defer func() { _ = registration.Unregister() }()

	if e.tel.Scrape != nil {
		addr := e.cfg.Metrics.Addr

		stopServer, serveErr := serveMetrics(ctx, addr, e.tel.Scrape)
		if serveErr != nil {
			return serveErr
		}

		defer stopServer()

		e.tel.Logger.InfoContext(ctx, "serving metrics", "addr", addr)
	}

	wcfg, err := e.workloadConfig(seed, workload.PatternRandom)
	if err != nil {
		return err
	}

	driveErr := soak(ctx, e, shared, workload.NewGenerator(wcfg), e.cfg.Soak.ReportPeriod)

	var stats regions.Stats

	_ = shared.with(func(set *regions.Set) error {
		stats = set.Stats()

		return nil
	})

	if !e.quiet {
		renderStats(cmd.OutOrStdout(), stats)
	}

	if driveErr != nil {
		printStatus(cmd.OutOrStdout(), false, "soak: %v", driveErr)

		return fmt.Errorf("%w: %w", ErrChecksFailed, driveErr)
	}

	printStatus(cmd.OutOrStdout(), true, "soak finished after %s", duration)

	return nil
}

func soak(ctx context.Context, e *env, shared *lockedSet, gen *workload.Generator, period time.Duration) error {
	ticker := time.NewTicker(period)
	defer ticker.Stop()

	total := 0

	for {
		select {
		case <-ctx.Done():
			e.tel.Logger.InfoContext(ctx, "soak stopped", "ops", total)

			return nil
		case <-ticker.C:
			err := shared.with(func(set *regions.Set) error {
				verifyErr := set.Verify()
				if verifyErr != nil {
					return verifyErr
				}

				set.Hibernate()
				packed := set.PackedSize()
				set.Boot()

				e.tel.Logger.InfoContext(ctx, "soak report",
					"ops", humanize.Comma(int64(total)),
					"regions", set.Len(),
					"bytes", humanize.IBytes(set.Bytes()),
					"height", set.Stats().Height,
					"packed", humanize.IBytes(uint64(packed)))

				return nil
			})
			if err != nil {
				return err
			}
		default:
		}

		ops := gen.Ops(soakBatch)

		err := shared.with(func(set *regions.Set) error {
			for _, op := range ops {
				_, applyErr := workload.Apply(ctx, set, op)
				if applyErr != nil {
					return fmt.Errorf("%w: %s: %w", workload.ErrDiverged, op.Kind, applyErr)
				}
			}

			return nil
		})
		if err != nil {
			return err
		}

		total += len(ops)
	}
}

func serveMetrics(ctx context.Context, addr string, handler http.Handler) (func(), error) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", handler)

	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}

	server := &http.Server{Handler: mux, ReadHeaderTimeout: readHeaderTimeout}

	go func() { _ = server.Serve(listener) }()

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), serverShutdownWait)
		defer cancel()

		_ = server.Shutdown(shutdownCtx)
	}, nil
}
