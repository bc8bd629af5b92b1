package ignore

import (
	"fmt"
	"os"

	lru "github.com/hashicorp/golang-lru/v2"
)

// cacheSize bounds the number of compiled ignore files kept in memory.
// Knowledge bases rarely carry more than a handful of .kbignore files,
// but watch mode re-resolves them on every pass.
const cacheSize = 128

// Cache memoizes compiled .kbignore matchers keyed by file path and
// modification time, so repeated indexing passes do not recompile
// unchanged ignore files.
type Cache struct {
	matchers *lru.Cache[string, *Matcher]
}

// NewCache creates a matcher cache.
func NewCache() (*Cache, error) {
	c, err := lru.New[string, *Matcher](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create ignore cache: %w", err)
	}
	return &Cache{matchers: c}, nil
}

// Load returns a compiled matcher for the ignore file at path, whose
// patterns apply under base. The compiled matcher is cached until the
// file's modification time changes.
func (c *Cache) Load(path, base string) (*Matcher, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to stat ignore file: %w", err)
	}

	key := fmt.Sprintf("%s|%s|%d", path, base, info.ModTime().UnixNano())
	if m, ok := c.matchers.Get(key); ok {
		return m, nil
	}

	m := New()
	if err := m.AddFromFile(path, base); err != nil {
		return nil, err
	}
	c.matchers.Add(key, m)
	return m, nil
}
