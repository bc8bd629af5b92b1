// Package store persists indexed documents in SQLite with an FTS5
// full-text index for BM25-ranked retrieval.
package store

import "time"

// Document is an indexed knowledge base document.
type Document struct {
	Path        string    // Relative path, unique within the store
	Category    string    // First-level directory, or "uncategorized"
	Title       string    // Extracted markdown heading or derived from filename
	Content     string    // Full document text
	ContentHash string    // SHA-256 hex digest of the content
	SizeBytes   int64     // Content size in bytes
	IndexedAt   time.Time // When the document was last written to the store
}

// SearchHit is a single ranked search result.
type SearchHit struct {
	Path      string
	Category  string
	Title     string
	Content   string
	IndexedAt time.Time
	// Rank is the raw FTS5 bm25() score. Lower (more negative) is a
	// better match; results arrive ordered best-first.
	Rank float64
}

// SearchOptions narrows a search.
type SearchOptions struct {
	// Category restricts hits to one category. Empty means all.
	Category string
	// Limit caps the number of hits. Zero or negative means DefaultLimit.
	Limit int
}

// DefaultLimit is the search result cap used when none is given.
const DefaultLimit = 10

// Stats summarizes store contents.
type Stats struct {
	DocumentCount int            `json:"document_count"`
	Categories    map[string]int `json:"categories"`
	TotalBytes    int64          `json:"total_bytes"`
	LastIndexedAt time.Time      `json:"last_indexed_at"`
	StorePath     string         `json:"store_path"`
	StoreSize     int64          `json:"store_size_bytes"`
}
