package commands

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/regiontree/pkg/version"
)

var errUnknownFormat = errors.New("unknown output format")

// NewVersionCommand creates the version command.
func NewVersionCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			info := version.Get()
			out := cmd.OutOrStdout()

			switch output {
			case "text":
				fmt.Fprintln(out, info.String())

				return nil
			case "json":
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")

				return enc.Encode(info)
			case "yaml":
				return yaml.NewEncoder(out).Encode(info)
			}

			return fmt.Errorf("%w: %q", errUnknownFormat, output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "text", "output format: text, json or yaml")

	return cmd
}
