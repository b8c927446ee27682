package commands

import (
	"fmt"

	"github.com/dustin/go-humanize"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/regiontree/internal/workload"
	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
	"github.com/Sumatoshi-tech/regiontree/pkg/regions"
)

// RunCommand holds the flags of the run command.
type RunCommand struct {
	size        int
	seed        int64
	pattern     string
	verifyEvery int
	hibernate   bool
	printConfig bool
}

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	rc := &RunCommand{}

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply a generated workload to a region set and verify it",
		Long: `Run generates a deterministic stream of inserts, removals, lookups and updates,
applies it to a fresh region set and verifies every tree invariant afterwards.

Examples:
  regiontree run
  regiontree run --size 1000000 --seed 7 --verify-every 10000
  regiontree run --pattern ascending --hibernate
  regiontree run --print-config`,
		Args: cobra.NoArgs,
		RunE: rc.run,
	}

	cmd.Flags().IntVarP(&rc.size, "size", "n", 0, "number of operations (default workload.size)")
	cmd.Flags().Int64Var(&rc.seed, "seed", 0, "workload seed (default workload.seed)")
	cmd.Flags().StringVar(&rc.pattern, "pattern", "random", "insert pattern: random, ascending or descending")
	cmd.Flags().IntVar(&rc.verifyEvery, "verify-every", -1, "verify the tree every N operations (default workload.verify_every)")
	cmd.Flags().BoolVar(&rc.hibernate, "hibernate", false, "hibernate and boot the set before verifying")
	cmd.Flags().BoolVar(&rc.printConfig, "print-config", false, "print the effective configuration as YAML and exit")

	return cmd
}

func (rc *RunCommand) run(cmd *cobra.Command, _ []string) error {
	e, err := loadEnv(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer e.shutdown(cmd)

	out := cmd.OutOrStdout()

	if rc.printConfig {
		enc := yaml.NewEncoder(out)
		defer enc.Close()

		return enc.Encode(e.cfg)
	}

	pattern, err := parsePattern(rc.pattern)
	if err != nil {
		return err
	}

	size := e.cfg.Workload.Size
	if rc.size > 0 {
		size = rc.size
	}

	seed := e.cfg.Workload.Seed
	if cmd.Flags().Changed("seed") {
		seed = rc.seed
	}

	verifyEvery := e.cfg.Workload.VerifyEvery
	if rc.verifyEvery >= 0 {
		verifyEvery = rc.verifyEvery
	}

	ctx, span := e.tel.Tracer.Start(cmd.Context(), "regiontree.run")
	defer span.End()

	span.SetAttributes(
		attribute.Int("workload.size", size),
		attribute.Int64("workload.seed", seed),
		attribute.String("workload.pattern", rc.pattern),
	)

	wcfg, err := e.workloadConfig(seed, pattern)
	if err != nil {
		return err
	}

	set, err := e.newSet(regions.WithCapacity(size))
	if err != nil {
		return err
	}

	gen := workload.NewGenerator(wcfg)
	ops := gen.Ops(size)

	e.tel.Logger.InfoContext(ctx, "workload generated", "ops", len(ops), "seed", seed, "pattern", rc.pattern)

	result, runErr := workload.Run(ctx, set, ops, verifyEvery)
	if runErr == nil && rc.hibernate {
		runErr = hibernateRoundTrip(cmd, set)
	}

	if !e.quiet {
		renderRun(cmd, result)
		renderStats(out, set.Stats())
	}

	if runErr != nil {
		printStatus(out, false, "%v", runErr)
		span.RecordError(runErr)

		return fmt.Errorf("%w: %w", ErrChecksFailed, runErr)
	}

	printStatus(out, true, "%s operations, %d verifications, %d regions live",
		humanize.Comma(int64(result.Ops)), result.Verified, set.Len())

	return nil
}

func hibernateRoundTrip(cmd *cobra.Command, set *regions.Set) error {
	before := set.Regions()

	set.Hibernate()

	if set.Hibernated() {
		fmt.Fprintf(cmd.OutOrStdout(), "hibernated: link columns packed into %s\n", humanize.IBytes(uint64(set.PackedSize())))
	}

	set.Boot()

	after := set.Regions()
	if len(before) != len(after) {
		return fmt.Errorf("boot restored %d regions, expected %d", len(after), len(before))
	}

	for idx := range before {
		if before[idx] != after[idx] {
			return fmt.Errorf("boot changed region %d: %s became %s", idx, before[idx], after[idx])
		}
	}

	return set.Verify()
}

func renderRun(cmd *cobra.Command, result workload.Result) {
	tbl := newTable(cmd.OutOrStdout(), "Workload")
	tbl.AppendHeader(table.Row{"Operation", "Count"})

	for _, kind := range []workload.OpKind{workload.OpInsert, workload.OpRemove, workload.OpLookup, workload.OpUpdate} {
		tbl.AppendRow(table.Row{kind.String(), humanize.Comma(int64(result.ByKind[kind]))})
	}

	tbl.AppendSeparator()
	tbl.AppendRow(table.Row{"lookup hits", humanize.Comma(int64(result.Hits))})
	tbl.AppendRow(table.Row{"elapsed", result.Elapsed.String()})
	tbl.AppendRow(table.Row{"ops/s", humanize.CommafWithDigits(result.OpsPerSecond(), 0)})
	tbl.Render()
}
