package ignore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatcher_BasicPatterns(t *testing.T) {
	tests := []struct {
		name    string
		pattern string
		path    string
		isDir   bool
		want    bool
	}{
		{"exact file", "notes.md", "notes.md", false, true},
		{"exact file in subdir", "notes.md", "patterns/notes.md", false, true},
		{"wildcard extension", "*.tmp", "scratch.tmp", false, true},
		{"wildcard no match", "*.tmp", "scratch.md", false, false},
		{"dir only matches dir", "drafts/", "drafts", true, true},
		{"dir only matches contents", "drafts/", "drafts/todo.md", false, true},
		{"dir only skips file of same name", "drafts/", "drafts", false, false},
		{"anchored root only", "/README.md", "README.md", false, true},
		{"anchored misses nested", "/README.md", "docs/README.md", false, false},
		{"double star", "**/archive", "deep/nested/archive", true, true},
		{"question mark", "v?.md", "v1.md", false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New()
			m.AddPattern(tt.pattern)
			assert.Equal(t, tt.want, m.Match(tt.path, tt.isDir))
		})
	}
}

func TestMatcher_Negation(t *testing.T) {
	// Given: exclude all markdown except the index
	m := New()
	m.AddPattern("*.md")
	m.AddPattern("!index.md")

	// Then: later negation re-includes
	assert.True(t, m.Match("anything.md", false))
	assert.False(t, m.Match("index.md", false))
}

func TestMatcher_CommentsAndBlanksSkipped(t *testing.T) {
	m := New()
	m.AddPattern("# just a comment")
	m.AddPattern("   ")
	m.AddPattern("")

	assert.Equal(t, 0, m.Len())
}

func TestMatcher_BaseScoping(t *testing.T) {
	// Given: a pattern from a nested ignore file under "guides"
	m := New()
	m.AddPatternWithBase("*.txt", "guides")

	// Then: it only applies under that base
	assert.True(t, m.Match("guides/raw.txt", false))
	assert.False(t, m.Match("patterns/raw.txt", false))
}

func TestMatcher_AddFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".kbignore")
	content := "# scratch space\ndrafts/\n*.bak\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	m := New()
	require.NoError(t, m.AddFromFile(path, ""))

	assert.True(t, m.Match("drafts/wip.md", false))
	assert.True(t, m.Match("old.bak", false))
	assert.False(t, m.Match("patterns/singleton.md", false))
}

func TestCache_ReusesCompiledMatcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".kbignore")
	require.NoError(t, os.WriteFile(path, []byte("*.bak\n"), 0o644))

	cache, err := NewCache()
	require.NoError(t, err)

	m1, err := cache.Load(path, "")
	require.NoError(t, err)
	m2, err := cache.Load(path, "")
	require.NoError(t, err)

	// Same mtime yields the same compiled matcher
	assert.Same(t, m1, m2)
	assert.True(t, m1.Match("old.bak", false))
}

func TestCache_MissingFile(t *testing.T) {
	cache, err := NewCache()
	require.NoError(t, err)

	_, err = cache.Load(filepath.Join(t.TempDir(), "absent"), "")
	assert.Error(t, err)
}
