package commands

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/regiontree/internal/scenario"
	"github.com/Sumatoshi-tech/regiontree/pkg/observability"
)

// ReplayCommand holds the flags of the replay command.
type ReplayCommand struct {
	printSchema bool
	failedOnly  bool
}

// NewReplayCommand creates the replay command.
func NewReplayCommand() *cobra.Command {
	rc := &ReplayCommand{}

	cmd := &cobra.Command{
		Use:   "replay <scenario.yaml>...",
		Short: "Replay YAML scenarios against a region set",
		Long: `Replay validates each scenario file against the scenario schema, runs its steps
against a fresh region set and reports every step that missed its expectation.

Examples:
  regiontree replay scenarios/lifecycle.yaml
  regiontree replay --failed-only scenarios/*.yaml
  regiontree replay --schema > scenario-schema.json`,
		RunE: rc.run,
	}

	cmd.Flags().BoolVar(&rc.printSchema, "schema", false, "print the scenario JSON schema and exit")
	cmd.Flags().BoolVar(&rc.failedOnly, "failed-only", false, "only list failing steps")

	return cmd
}

func (rc *ReplayCommand) run(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	if rc.printSchema {
		_, err := out.Write(scenario.Schema())

		return err
	}

	if len(args) == 0 {
		return fmt.Errorf("%w: no scenario files given", scenario.ErrInvalidScenario)
	}

	e, err := loadEnv(cmd, observability.ModeCLI)
	if err != nil {
		return err
	}
	defer e.shutdown(cmd)

	ctx, span := e.tel.Tracer.Start(cmd.Context(), "regiontree.replay")
	defer span.End()

	failures := 0

	for _, path := range args {
		sc, loadErr := scenario.Load(path)
		if loadErr != nil {
			return loadErr
		}

		opts, optsErr := e.setOptions()
		if optsErr != nil {
			return optsErr
		}

		set := sc.NewSet(opts...)
		report := scenario.Replay(ctx, set, sc)

		e.tel.Logger.InfoContext(ctx, "scenario replayed",
			"scenario", sc.Name, "steps", len(report.Steps), "failed", len(report.Failed()))

		if !e.quiet {
			rc.render(out, report)
		}

		printStatus(out, report.Passed(), "%s: %d steps, %d failed", sc.Name, len(report.Steps), len(report.Failed()))

		failures += len(report.Failed())
	}

	if failures > 0 {
		return fmt.Errorf("%w: %d scenario steps failed", ErrChecksFailed, failures)
	}

	return nil
}

func (rc *ReplayCommand) render(w io.Writer, report scenario.Report) {
	tbl := newTable(w, report.Name)
	tbl.AppendHeader(table.Row{"#", "step", "status", "detail"})

	for _, step := range report.Steps {
		if rc.failedOnly && step.Passed {
			continue
		}

		tbl.AppendRow(table.Row{step.Index, step.Op, statusLabel(step.Passed), step.Detail})
	}

	tbl.Render()
}
