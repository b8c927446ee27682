// Package commands implements the regiontree CLI subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/regiontree/internal/workload"
	"github.com/Sumatoshi-tech/regiontree/pkg/config"
	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
	"github.com/Sumatoshi-tech/regiontree/pkg/rbtree"
	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
	"github.com/Sumatoshi-tech/regiontree/pkg/version"
)

// Persistent flag names registered by the root command.
const (
	FlagConfig  = "config"
	FlagVerbose = "verbose"
	FlagQuiet   = "quiet"
)

// ErrChecksFailed is returned when a command finishes with failed checks.
var ErrChecksFailed = errors.New("checks failed")

// env is the state shared by every command run.
type env struct {
	cfg   *config.Config
	tel   *observability.Telemetry
	quiet bool
}

func loadEnv(cmd *cobra.Command, mode observability.Mode, overrides ...func(*config.Config)) (*env, error) {
	path, _ := cmd.Flags().GetString(FlagConfig)
	verbose, _ := cmd.Flags().GetBool(FlagVerbose)
	quiet, _ := cmd.Flags().GetBool(FlagQuiet)

	cfg, err := config.LoadConfig(path)
	if err != nil {
		return nil, err
	}

	for _, override := range overrides {
		override(cfg)
	}

	obsCfg, err := observabilityConfig(cfg, mode, verbose)
	if err != nil {
		return nil, err
	}

	obsCfg.LogWriter = cmd.ErrOrStderr()

	tel, err := observability.Init(cmd.Context(), obsCfg)
	if err != nil {
		return nil, fmt.Errorf("init observability: %w", err)
	}

	return &env{cfg: cfg, tel: tel, quiet: quiet}, nil
}

func observabilityConfig(cfg *config.Config, mode observability.Mode, verbose bool) (observability.Config, error) {
	obsCfg := observability.DefaultConfig()
	obsCfg.Version = version.Version
	obsCfg.Mode = mode
	obsCfg.OTLP = observability.OTLP{
		Endpoint:    cfg.Metrics.OTLPEndpoint,
		Headers:     observability.ParseHeaders(cfg.Metrics.OTLPHeaders),
		Insecure:    cfg.Metrics.OTLPInsecure,
		SampleRatio: cfg.Metrics.SampleRatio,
	}
	obsCfg.Prometheus = mode == observability.ModeSoak && cfg.Metrics.Addr != ""
	obsCfg.LogJSON = cfg.Logging.Format == "json"

	level, err := observability.ParseLevel(cfg.Logging.Level)
	if err != nil {
		return obsCfg, err
	}

	obsCfg.LogLevel = level

	if verbose {
		obsCfg.LogLevel = min(level, slog.LevelDebug)
	}

	return obsCfg, nil
}

func (e *env) shutdown(cmd *cobra.Command) {
	err := e.tel.Close(context.Background())
	if err != nil {
		e.tel.Logger.WarnContext(cmd.Context(), "observability shutdown failed", "error", err)
	}
}

// setOptions wires region sets to the configured logger, metrics and tree settings.
func (e *env) setOptions() ([]regions.Option, error) {
	metrics, err := observability.NewTreeMetrics(e.tel.Meter)
	if err != nil {
		return nil, err
	}

	return []regions.Option{
		regions.WithLogger(e.tel.Logger),
		regions.WithMetrics(metrics),
		regions.WithHibernationThreshold(e.cfg.Tree.HibernationThreshold),
		regions.WithTreeOptions(rbtree.WithGenerationCheck(e.cfg.Tree.CheckGeneration)),
	}, nil
}

func (e *env) newSet(extra ...regions.Option) (*regions.Set, error) {
	opts, err := e.setOptions()
	if err != nil {
		return nil, err
	}

	return regions.New(append(opts, extra...)...), nil
}

func (e *env) workloadConfig(seed int64, pattern workload.Pattern) (workload.Config, error) {
	regionSize, err := e.cfg.Workload.RegionBytes()
	if err != nil {
		return workload.Config{}, err
	}

	return workload.Config{
		Seed:        seed,
		Pattern:     pattern,
		RegionSize:  regionSize,
		Slots:       2 * e.cfg.Workload.Size,
		RemoveRatio: e.cfg.Workload.RemoveRatio,
		LookupRatio: lookupRatio,
		UpdateRatio: updateRatio,
	}, nil
}

const (
	lookupRatio = 0.2
	updateRatio = 0.05
)

var errUnknownPattern = errors.New("unknown pattern")

func parsePattern(name string) (workload.Pattern, error) {
	switch name {
	case "random":
		return workload.PatternRandom, nil
	case "ascending":
		return workload.PatternAscending, nil
	case "descending":
		return workload.PatternDescending, nil
	}

	return 0, fmt.Errorf("%w: %q (want random, ascending or descending)", errUnknownPattern, name)
}
