package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kbindex/kbindex/internal/output"
	"github.com/kbindex/kbindex/pkg/version"
)

func newVersionCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and build information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := output.New(cmd.OutOrStdout())

			if jsonOut {
				data, err := json.MarshalIndent(version.GetInfo(), "", "  ")
				if err != nil {
					return fmt.Errorf("failed to encode version info: %w", err)
				}
				out.Raw(string(data))
				return nil
			}

			out.Raw(version.String())
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}
