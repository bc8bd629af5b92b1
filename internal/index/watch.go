package index

import (
	"context"
	"io/fs"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/kbindex/kbindex/internal/scanner"
)

// DefaultDebounceWindow coalesces rapid editor save bursts into one pass.
const DefaultDebounceWindow = 500 * time.Millisecond

// Watcher keeps the index current by re-running incremental passes
// when the document tree changes. Hash gating makes a full pass cheap,
// so there is no per-file event bookkeeping: any burst of events
// triggers one pass after the debounce window.
type Watcher struct {
	runner   *Runner
	root     string
	debounce time.Duration
	log      *slog.Logger

	// OnPass, when set, is called after every completed pass with its
	// summary or error. The CLI uses it to print progress.
	OnPass func(*Summary, error)
}

// NewWatcher creates a Watcher around an existing runner.
func NewWatcher(runner *Runner, debounce time.Duration, log *slog.Logger) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounceWindow
	}
	if log == nil {
		log = slog.Default()
	}
	return &Watcher{
		runner:   runner,
		root:     runner.opts.RootDir,
		debounce: debounce,
		log:      log,
	}
}

// report forwards a pass outcome to the OnPass callback, if set.
func (w *Watcher) report(summary *Summary, err error) {
	if w.OnPass != nil {
		w.OnPass(summary, err)
	}
}

// Watch runs an initial pass, then blocks re-indexing on changes until
// the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	summary, err := w.runner.Run(ctx)
	w.report(summary, err)
	if err != nil {
		return err
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := w.addDirs(fw, w.root); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if w.ignoreEvent(event) {
				continue
			}
			// New directories need their own watch before the next pass
			if event.Op.Has(fsnotify.Create) {
				_ = w.addDirs(fw, event.Name)
			}
			w.log.Debug("fs_event",
				slog.String("op", event.Op.String()),
				slog.String("path", event.Name))

			if timer == nil {
				timer = time.NewTimer(w.debounce)
			} else {
				if !timer.Stop() {
					select {
					case <-timer.C:
					default:
					}
				}
				timer.Reset(w.debounce)
			}
			fire = timer.C

		case <-fire:
			fire = nil
			timer = nil
			summary, err := w.runner.Run(ctx)
			w.report(summary, err)
			if err != nil && ctx.Err() != nil {
				return nil
			}

		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch_error", slog.String("error", err.Error()))
		}
	}
}

// addDirs registers path and all non-hidden directories under it.
func (w *Watcher) addDirs(fw *fsnotify.Watcher, path string) error {
	return filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if p != w.root && strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		if err := fw.Add(p); err != nil {
			w.log.Warn("watch_add_failed",
				slog.String("path", p),
				slog.String("error", err.Error()))
		}
		return nil
	})
}

// ignoreEvent filters events that never affect the index: hidden
// files (except .kbignore, which changes what is indexed), lock files,
// and the store's own writes.
func (w *Watcher) ignoreEvent(event fsnotify.Event) bool {
	base := filepath.Base(event.Name)
	if strings.HasPrefix(base, ".") && base != scanner.IgnoreFileName {
		return true
	}
	switch {
	case strings.HasSuffix(base, ".db"),
		strings.HasSuffix(base, ".db-wal"),
		strings.HasSuffix(base, ".db-shm"),
		strings.HasSuffix(base, ".lock"):
		return true
	}
	return false
}
