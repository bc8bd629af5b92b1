package cmd

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kbindex/kbindex/internal/config"
	"github.com/kbindex/kbindex/internal/index"
	"github.com/kbindex/kbindex/internal/output"
)

// indexOptions holds CLI flags for index.
type indexOptions struct {
	force   bool
	watch   bool
	verify  bool
	workers int
}

func newIndexCmd() *cobra.Command {
	var opts indexOptions

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Build or update the search index",
		Long: `Index walks the knowledge base, hashes every eligible document,
and writes only what changed: new files are inserted, modified files
replaced, deleted files removed, unchanged files skipped.

Examples:
  kbindex index
  kbindex index --root ~/kb --force
  kbindex index --watch`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runIndex(cmd.Context(), cmd, opts)
		},
	}

	cmd.Flags().BoolVar(&opts.force, "force", false, "Re-index every document regardless of content hash")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and re-index on file changes")
	cmd.Flags().BoolVar(&opts.verify, "verify", false, "Check index consistency without indexing")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Concurrent file readers (0 = number of CPUs)")

	return cmd
}

func runIndex(ctx context.Context, cmd *cobra.Command, opts indexOptions) error {
	out := output.New(cmd.OutOrStdout())

	root, err := resolveRoot()
	if err != nil {
		return err
	}

	cfg, err := config.Load(root)
	if err != nil {
		return err
	}

	workers := opts.workers
	if workers <= 0 {
		workers = cfg.Index.Workers
	}

	runner, err := index.NewRunner(index.Options{
		RootDir:            root,
		StorePath:          cfg.StorePath(root),
		Workers:            workers,
		Force:              opts.force,
		MaxFileSize:        cfg.Index.MaxFileSize,
		Extensions:         cfg.Index.Extensions,
		ExcludePatterns:    cfg.Index.Exclude,
		RespectIgnoreFiles: cfg.Index.RespectIgnoreFiles,
	}, slog.Default())
	if err != nil {
		return err
	}

	if opts.verify {
		if err := runner.Verify(ctx); err != nil {
			return err
		}
		out.Success("index is consistent")
		return nil
	}

	if opts.watch {
		return runWatch(ctx, runner, cfg, out)
	}

	summary, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	printSummary(out, summary)
	return nil
}

// runWatch blocks re-indexing on changes until interrupted.
func runWatch(ctx context.Context, runner *index.Runner, cfg *config.Config, out *output.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	w := index.NewWatcher(runner, cfg.WatchDebounceDuration(), slog.Default())
	w.OnPass = func(summary *index.Summary, err error) {
		if err != nil {
			out.Errorf("index pass failed: %v", err)
			return
		}
		printSummary(out, summary)
	}

	out.Statusf("👀", "watching for changes (ctrl-c to stop)")
	return w.Watch(ctx)
}

func printSummary(out *output.Writer, s *index.Summary) {
	out.Successf("indexed %d documents in %s: %d new, %d updated, %d deleted, %d unchanged",
		s.Total, s.Duration.Round(time.Millisecond), s.Inserted, s.Updated, s.Deleted, s.Skipped)
	if s.Failed > 0 {
		out.Warningf("%d documents could not be read (see logs)", s.Failed)
	}
}
