package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbindex/kbindex/internal/config"
	"github.com/kbindex/kbindex/internal/output"
	"github.com/kbindex/kbindex/internal/store"
)

func newStatsCmd() *cobra.Command {
	var jsonOut bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show index statistics",
		Long: `Stats reports what the index currently holds: document and
category counts, total content size, and when the last pass ran.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runStats(cmd.Context(), cmd, jsonOut)
		},
	}

	cmd.Flags().BoolVar(&jsonOut, "json", false, "Output as JSON")

	return cmd
}

func runStats(ctx context.Context, cmd *cobra.Command, jsonOut bool) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	st, err := store.OpenReadOnly(cfg.StorePath(root))
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	stats, err := st.Stats(ctx)
	if err != nil {
		return err
	}

	if jsonOut {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode stats: %w", err)
		}
		out.Raw(string(data))
		return nil
	}

	out.Statusf("📚", "%d documents, %s of content", stats.DocumentCount, formatBytes(stats.TotalBytes))
	if !stats.LastIndexedAt.IsZero() {
		out.Statusf("🕐", "last indexed %s", stats.LastIndexedAt.Local().Format(time.RFC1123))
	}
	out.Statusf("💾", "store: %s (%s)", stats.StorePath, formatBytes(stats.StoreSize))

	if len(stats.Categories) > 0 {
		out.Newline()
		out.Status("", "Categories:")

		names := make([]string, 0, len(stats.Categories))
		for name := range stats.Categories {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			out.Statusf("", "  %-24s %d", name, stats.Categories[name])
		}
	}

	return nil
}

// formatBytes renders a byte count in human units.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}
