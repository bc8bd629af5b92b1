package cmd

import (
	"context"
	"log/slog"
	"strings"

	"github.com/spf13/cobra"

	"github.com/kbindex/kbindex/internal/config"
	"github.com/kbindex/kbindex/internal/output"
	"github.com/kbindex/kbindex/internal/search"
	"github.com/kbindex/kbindex/internal/store"
)

// queryOptions holds CLI flags for query.
type queryOptions struct {
	limit      int
	category   string
	format     string
	maxSnippet int
}

func newQueryCmd() *cobra.Command {
	var opts queryOptions

	cmd := &cobra.Command{
		Use:   "query <terms...>",
		Short: "Search the indexed knowledge base",
		Long: `Query runs a ranked full-text search and prints results with
context snippets. Plain terms are matched with implicit AND; quote a
phrase to match it exactly.

Examples:
  kbindex query circuit breaker
  kbindex query "exact phrase"
  kbindex query deployment --category guides --limit 5
  kbindex query caching --format text`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd.Context(), cmd, strings.Join(args, " "), opts)
		},
	}

	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.category, "category", "c", "", "Restrict to one category")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "jsonl", "Output format: jsonl, json, text")
	cmd.Flags().IntVarP(&opts.maxSnippet, "max-snippet", "s", 0, "Maximum snippet length in bytes (default from config)")

	return cmd
}

func runQuery(ctx context.Context, cmd *cobra.Command, query string, opts queryOptions) error {
	// Query output is for piping, so it stays plain even on a terminal
	out := output.NewPlain(cmd.OutOrStdout())

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

	limit := opts.limit
	if limit <= 0 {
		limit = cfg.Search.DefaultResultLimit
	}
	maxSnippet := opts.maxSnippet
	if maxSnippet <= 0 {
		maxSnippet = cfg.Search.MaxSnippetLength
	}

	engine := search.NewEngine(st, slog.Default())
	results, err := engine.Search(ctx, query, search.Options{
		Category:         opts.category,
		Limit:            limit,
		MaxSnippetLength: maxSnippet,
	})
	if err != nil {
		return err
	}

	rendered, err := search.Render(results, query, search.Format(opts.format))
	if err != nil {
		return err
	}

	out.Raw(rendered)
	return nil
}
