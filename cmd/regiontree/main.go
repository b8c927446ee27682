// Package main provides the entry point for the regiontree CLI tool.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/regiontree/cmd/regiontree/commands"
)

func main() {
	err := newRootCommand().Execute()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "regiontree",
		Short: "Address-region tracking on an intrusive red-black tree",
		Long: `regiontree drives an ordered set of address regions built on an intrusive,
cursor-based red-black tree and checks the tree invariants along the way.

Commands:
  run       Apply a generated workload and verify the tree
  bench     Measure operation cost and tree height across sizes
  replay    Replay YAML scenarios
  soak      Run continuously and export metrics
  version   Show version information`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().String(commands.FlagConfig, "", "config file (default ./regiontree.yaml)")
	rootCmd.PersistentFlags().BoolP(commands.FlagVerbose, "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolP(commands.FlagQuiet, "q", false, "suppress tables")

	rootCmd.AddCommand(
		commands.NewRunCommand(),
		commands.NewBenchCommand(),
		commands.NewReplayCommand(),
		commands.NewSoakCommand(),
		commands.NewVersionCommand(),
	)

	return rootCmd
}
