package index

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kberrors "github.com/kbindex/kbindex/internal/errors"
	"github.com/kbindex/kbindex/internal/store"
)

// testTree builds a knowledge base and returns (root, storePath).
func testTree(t *testing.T, files map[string]string) (string, string) {
	t.Helper()
	root := t.TempDir()
	for rel, content := range files {
		path := filepath.Join(root, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	return root, filepath.Join(root, ".kbindex", "index.db")
}

func run(t *testing.T, root, storePath string, force bool) *Summary {
	t.Helper()
	r, err := NewRunner(Options{
		RootDir:   root,
		StorePath: storePath,
		Force:     force,
	}, nil)
	require.NoError(t, err)

	summary, err := r.Run(context.Background())
	require.NoError(t, err)
	return summary
}

func TestRun_InitialPassInsertsEverything(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"patterns/singleton.md": "# Singleton\na creational pattern",
		"patterns/observer.md":  "# Observer\nevent subscription",
		"guides/setup.md":       "# Setup\ninstall and run",
	})

	summary := run(t, root, storePath, false)

	assert.Equal(t, 3, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 0, summary.Deleted)
	assert.Equal(t, 0, summary.Skipped)
	assert.Equal(t, 3, summary.Total)
}

func TestRun_SecondPassIsIdempotent(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"patterns/singleton.md": "# Singleton\ncontent",
		"guides/setup.md":       "# Setup\ncontent",
	})

	run(t, root, storePath, false)
	summary := run(t, root, storePath, false)

	// Unchanged files are hash-gated out of the write path
	assert.Equal(t, 0, summary.Inserted)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 2, summary.Skipped)
}

func TestRun_TouchedFileIsNotReindexed(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"notes.md": "# Notes\nsame content",
	})

	run(t, root, storePath, false)

	// Bump mtime without changing content
	now := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(filepath.Join(root, "notes.md"), now, now))

	summary := run(t, root, storePath, false)
	assert.Equal(t, 0, summary.Updated)
	assert.Equal(t, 1, summary.Skipped)
}

func TestVerify_ConsistentStore(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"notes.md": "# Notes\ncontent",
	})

	run(t, root, storePath, false)

	r, err := NewRunner(Options{RootDir: root, StorePath: storePath}, nil)
	require.NoError(t, err)
	assert.NoError(t, r.Verify(context.Background()))
}

func TestRun_ModifiedFileIsUpdated(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"notes.md": "# Notes\noriginal",
	})

	run(t, root, storePath, false)

	require.NoError(t, os.WriteFile(filepath.Join(root, "notes.md"),
		[]byte("# Notes\nrevised"), 0o644))

	summary := run(t, root, storePath, false)
	assert.Equal(t, 1, summary.Updated)
	assert.Equal(t, 0, summary.Inserted)

	// The store reflects the new content
	st, err := store.OpenReadOnly(storePath)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	hits, err := st.Search(context.Background(), "revised", store.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "notes.md", hits[0].Path)
}

func TestRun_DeletedFileIsRemoved(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"keep.md":   "# Keep\nstays",
		"remove.md": "# Remove\ngoes away",
	})

	run(t, root, storePath, false)
	require.NoError(t, os.Remove(filepath.Join(root, "remove.md")))

	summary := run(t, root, storePath, false)
	assert.Equal(t, 1, summary.Deleted)

	st, err := store.OpenReadOnly(storePath)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	paths, err := st.AllPaths(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"keep.md"}, paths)
}

func TestRun_ForceRewritesUnchangedFiles(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"a.md": "# A\ncontent",
		"b.md": "# B\ncontent",
	})

	run(t, root, storePath, false)
	summary := run(t, root, storePath, true)

	assert.Equal(t, 2, summary.Updated)
	assert.Equal(t, 0, summary.Skipped)
}

func TestRun_UnreadableFileIsCountedAndSkipped(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}

	root, storePath := testTree(t, map[string]string{
		"good.md": "# Good\nreadable",
		"bad.md":  "# Bad\nunreadable",
	})
	require.NoError(t, os.Chmod(filepath.Join(root, "bad.md"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "bad.md"), 0o644) })

	summary := run(t, root, storePath, false)

	// The pass continues past the failure
	assert.Equal(t, 1, summary.Inserted)
	assert.Equal(t, 1, summary.Failed)
}

func TestRun_IndexedFileTurningUnreadableIsKept(t *testing.T) {
	if os.Geteuid() == 0 {
		t.Skip("root ignores file permissions")
	}

	root, storePath := testTree(t, map[string]string{
		"patterns/a.md": "# A\nindexed once",
		"patterns/b.md": "# B\nstays readable",
	})

	run(t, root, storePath, false)

	// The file still exists, it just cannot be read this pass
	require.NoError(t, os.Chmod(filepath.Join(root, "patterns/a.md"), 0o000))
	t.Cleanup(func() { _ = os.Chmod(filepath.Join(root, "patterns/a.md"), 0o644) })

	summary := run(t, root, storePath, false)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0, summary.Deleted)

	// The previously indexed version survives in the store
	st, err := store.OpenReadOnly(storePath)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	paths, err := st.AllPaths(context.Background())
	require.NoError(t, err)
	assert.Contains(t, paths, "patterns/a.md")
}

func TestRun_ConcurrentPassFailsFast(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"a.md": "# A\ncontent",
	})

	// Given: a lock already held (as if another process is indexing)
	lock := NewPassLock(filepath.Dir(storePath))
	acquired, err := lock.TryLock()
	require.NoError(t, err)
	require.True(t, acquired)
	defer func() { _ = lock.Unlock() }()

	r, err := NewRunner(Options{RootDir: root, StorePath: storePath}, nil)
	require.NoError(t, err)

	_, err = r.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, kberrors.ErrCodeIndexLocked, kberrors.GetCode(err))
}

func TestRun_IndexedTreeIsSearchable(t *testing.T) {
	root, storePath := testTree(t, map[string]string{
		"patterns/singleton.md": "# Singleton\nEnsure a class has one instance.",
		"patterns/observer.md":  "# Observer\nNotify subscribers of events.",
		"guides/logging.md":     "# Logging\nStructured logs with slog.",
	})

	run(t, root, storePath, false)

	st, err := store.OpenReadOnly(storePath)
	require.NoError(t, err)
	defer func() { _ = st.Close() }()

	ctx := context.Background()

	hits, err := st.Search(ctx, "subscribers", store.SearchOptions{})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "patterns/observer.md", hits[0].Path)
	assert.Equal(t, "patterns", hits[0].Category)
	assert.Equal(t, "Observer", hits[0].Title)

	// Category metadata flows through to stats
	stats, err := st.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.DocumentCount)
	assert.Equal(t, map[string]int{"patterns": 2, "guides": 1}, stats.Categories)
}
