// Package cmd provides the CLI commands for kbindex.
package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/spf13/cobra"

	kberrors "github.com/kbindex/kbindex/internal/errors"
	"github.com/kbindex/kbindex/internal/logging"
	"github.com/kbindex/kbindex/internal/profiling"
	"github.com/kbindex/kbindex/pkg/version"
)

var (
	rootDir        string
	debugMode      bool
	loggingCleanup func()

	profileCPU   string
	profileMem   string
	profileTrace string
	profiler     = profiling.NewProfiler()
	cpuCleanup   func()
	traceCleanup func()
)

// NewRootCmd creates the root command for the kbindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kbindex",
		Short: "Full-text search over a markdown knowledge base",
		Long: `kbindex maintains a SQLite FTS5 index over a directory tree of
markdown and text documents, and answers ranked queries with context
snippets.

Indexing is incremental: unchanged files are skipped by content hash,
deleted files drop out of the index, and a query never sees a
half-written document.

Typical use:
  kbindex index --root ~/knowledge-base
  kbindex query "circuit breaker" --category patterns
  kbindex stats --json`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.SetVersionTemplate("kbindex version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&rootDir, "root", ".", "Knowledge base root directory")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging to stderr and ~/.kbindex/logs/")
	cmd.PersistentFlags().StringVar(&profileCPU, "profile-cpu", "", "Write CPU profile to file")
	cmd.PersistentFlags().StringVar(&profileMem, "profile-mem", "", "Write memory profile to file")
	cmd.PersistentFlags().StringVar(&profileTrace, "profile-trace", "", "Write execution trace to file")

	cmd.PersistentPreRunE = setupRun
	cmd.PersistentPostRunE = teardownRun

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newQueryCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setupRun configures file-based structured logging and starts any
// requested profiling for the run.
func setupRun(_ *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig()
	if debugMode {
		cfg = logging.DebugConfig()
	}

	// Logging must never block the actual work
	if logger, cleanup, err := logging.Setup(cfg); err == nil {
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		slog.Debug("logging_ready", slog.String("version", version.Short()))
	}

	if profileCPU != "" {
		cleanup, err := profiler.StartCPU(profileCPU)
		if err != nil {
			return err
		}
		cpuCleanup = cleanup
	}

	if profileTrace != "" {
		cleanup, err := profiler.StartTrace(profileTrace)
		if err != nil {
			if cpuCleanup != nil {
				cpuCleanup()
				cpuCleanup = nil
			}
			return err
		}
		traceCleanup = cleanup
	}

	return nil
}

func teardownRun(_ *cobra.Command, _ []string) error {
	if cpuCleanup != nil {
		cpuCleanup()
		cpuCleanup = nil
	}
	if traceCleanup != nil {
		traceCleanup()
		traceCleanup = nil
	}

	if profileMem != "" {
		if err := profiler.WriteHeap(profileMem); err != nil {
			return err
		}
	}

	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
	return nil
}

// resolveRoot returns the absolute knowledge base root.
func resolveRoot() (string, error) {
	abs, err := filepath.Abs(rootDir)
	if err != nil {
		return "", fmt.Errorf("cannot resolve root directory: %w", err)
	}
	return abs, nil
}

// Execute runs the root command, formatting structured errors for the
// terminal before exiting non-zero.
func Execute() error {
	cmd := NewRootCmd()
	if err := cmd.Execute(); err != nil {
		fmt.Fprint(cmd.ErrOrStderr(), kberrors.FormatForCLI(err))
		return err
	}
	return nil
}
