package index

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"golang.org/x/sync/errgroup"

	kberrors "github.com/kbindex/kbindex/internal/errors"
	"github.com/kbindex/kbindex/internal/scanner"
	"github.com/kbindex/kbindex/internal/store"
)

// Options configures an indexing pass.
type Options struct {
	// RootDir is the knowledge base root to index.
	RootDir string

	// StorePath is the SQLite index file.
	StorePath string

	// Workers is the number of concurrent file readers (0 = NumCPU).
	Workers int

	// Force re-indexes every document regardless of content hash.
	Force bool

	// MaxFileSize caps document size in bytes (0 = scanner default).
	MaxFileSize int64

	// Extensions lists eligible file extensions (empty = scanner default).
	Extensions []string

	// ExcludePatterns are extra exclusion patterns from configuration.
	ExcludePatterns []string

	// RespectIgnoreFiles enables .kbignore handling.
	RespectIgnoreFiles bool
}

// Summary reports the outcome of one indexing pass.
type Summary struct {
	Inserted int           `json:"inserted"`
	Updated  int           `json:"updated"`
	Deleted  int           `json:"deleted"`
	Skipped  int           `json:"skipped"`
	Failed   int           `json:"failed"`
	Total    int           `json:"total"`
	Duration time.Duration `json:"duration"`
}

// Runner executes incremental indexing passes.
type Runner struct {
	opts Options
	scan *scanner.Scanner
	log  *slog.Logger
}

// NewRunner creates a Runner for the given options.
func NewRunner(opts Options, log *slog.Logger) (*Runner, error) {
	if log == nil {
		log = slog.Default()
	}
	s, err := scanner.New()
	if err != nil {
		return nil, err
	}
	return &Runner{opts: opts, scan: s, log: log}, nil
}

// candidate is a document read and hashed by a worker, before the
// writer decides whether the store needs it. path is set even when the
// read failed, so an unreadable file is never mistaken for a deleted
// one.
type candidate struct {
	path string
	doc  *store.Document
	err  error
}

// Run performs one incremental pass: scan the tree, hash every
// eligible document concurrently, then apply inserts, updates and
// deletions through a single writer. A cross-process lock serializes
// passes; a second concurrent pass fails fast instead of queueing.
func (r *Runner) Run(ctx context.Context) (*Summary, error) {
	start := time.Now()

	lock := NewPassLock(filepath.Dir(r.opts.StorePath))
	acquired, err := lock.TryLock()
	if err != nil {
		return nil, err
	}
	if !acquired {
		return nil, kberrors.IndexLockedError(lock.Path())
	}
	defer func() { _ = lock.Unlock() }()

	st, err := store.Open(r.opts.StorePath)
	if err != nil {
		return nil, err
	}
	defer func() { _ = st.Close() }()

	return r.runPass(ctx, st, start)
}

// Verify checks that the documents table and the FTS table agree
// without writing anything. Divergence means a past pass was
// interrupted outside a transaction, which the store design rules out;
// finding one is reported as an invariant violation.
func (r *Runner) Verify(ctx context.Context) error {
	st, err := store.OpenReadOnly(r.opts.StorePath)
	if err != nil {
		return err
	}
	defer func() { _ = st.Close() }()

	return st.CheckConsistency(ctx)
}

// runPass does the work once the lock and store are held.
func (r *Runner) runPass(ctx context.Context, st *store.SQLiteStore, start time.Time) (*Summary, error) {
	// Snapshot stored hashes up front so the compare step never reads
	// stored content
	known, err := st.ContentHashes(ctx)
	if err != nil {
		return nil, err
	}

	results, err := r.scan.Scan(ctx, &scanner.ScanOptions{
		RootDir:            r.opts.RootDir,
		Extensions:         r.opts.Extensions,
		ExcludePatterns:    r.opts.ExcludePatterns,
		RespectIgnoreFiles: r.opts.RespectIgnoreFiles,
		MaxFileSize:        r.opts.MaxFileSize,
	})
	if err != nil {
		return nil, err
	}

	workers := r.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	candidates := make(chan candidate, workers*2)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			for res := range results {
				if res.Error != nil {
					return res.Error
				}
				c := r.readDocument(res.File)
				select {
				case candidates <- c:
				case <-gctx.Done():
					return gctx.Err()
				}
			}
			return nil
		})
	}

	var scanErr error
	go func() {
		scanErr = g.Wait()
		close(candidates)
	}()

	// Single writer: SQLite holds one write connection, so all store
	// mutations happen here
	summary := &Summary{}
	seen := make(map[string]struct{}, len(known))

	for c := range candidates {
		if c.err != nil {
			// Skip, don't delete: the file still exists on disk, so any
			// previously indexed version stays in the store
			seen[c.path] = struct{}{}
			summary.Failed++
			r.log.Warn("document_read_failed", kberrors.ToLogAttrs(c.err)...)
			continue
		}

		doc := c.doc
		seen[doc.Path] = struct{}{}

		prev, exists := known[doc.Path]
		switch {
		case !exists:
			if err := st.Upsert(ctx, doc); err != nil {
				return nil, err
			}
			summary.Inserted++
			r.log.Debug("document_inserted", slog.String("path", doc.Path))
		case prev != doc.ContentHash || r.opts.Force:
			if err := st.Upsert(ctx, doc); err != nil {
				return nil, err
			}
			summary.Updated++
			r.log.Debug("document_updated", slog.String("path", doc.Path))
		default:
			summary.Skipped++
		}
	}

	if scanErr != nil {
		return nil, scanErr
	}

	// Remove documents whose files are gone from disk
	var stale []string
	for path := range known {
		if _, ok := seen[path]; !ok {
			stale = append(stale, path)
		}
	}
	if len(stale) > 0 {
		if err := st.Delete(ctx, stale); err != nil {
			return nil, err
		}
		summary.Deleted = len(stale)
	}

	if err := st.CheckConsistency(ctx); err != nil {
		return nil, err
	}

	summary.Total = summary.Inserted + summary.Updated + summary.Skipped
	summary.Duration = time.Since(start)

	r.log.Info("index_pass_complete",
		slog.Int("inserted", summary.Inserted),
		slog.Int("updated", summary.Updated),
		slog.Int("deleted", summary.Deleted),
		slog.Int("skipped", summary.Skipped),
		slog.Int("failed", summary.Failed),
		slog.Duration("duration", summary.Duration))

	return summary, nil
}

// readDocument loads a scanned file and derives its stored form.
func (r *Runner) readDocument(f *scanner.FileInfo) candidate {
	content, err := os.ReadFile(f.AbsPath)
	if err != nil {
		return candidate{path: f.Path, err: kberrors.DocumentReadError(f.Path, err)}
	}

	text := string(content)
	return candidate{path: f.Path, doc: &store.Document{
		Path:        f.Path,
		Category:    DeriveCategory(f.Path),
		Title:       DeriveTitle(text, f.Path),
		Content:     text,
		ContentHash: HashContent(content),
		SizeBytes:   int64(len(content)),
		IndexedAt:   time.Now(),
	}}
}
