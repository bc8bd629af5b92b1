// Package search turns user queries into ranked results with context
// snippets, and renders them for terminals and agent pipelines.
package search

// Result is a single ranked hit, ready for rendering.
type Result struct {
	Path     string  `json:"path"`
	Category string  `json:"category"`
	Title    string  `json:"title"`
	Snippet  string  `json:"snippet"`
	Rank     float64 `json:"rank"`
}

// Options narrows and shapes a search.
type Options struct {
	// Category restricts hits to one category. Empty means all.
	Category string

	// Limit caps the number of hits (0 = store default).
	Limit int

	// MaxSnippetLength bounds snippet size in bytes, ellipses included
	// (0 = DefaultMaxSnippetLength).
	MaxSnippetLength int
}

// DefaultMaxSnippetLength bounds snippets when no length is configured.
const DefaultMaxSnippetLength = 500

// Format selects the output rendering.
type Format string

const (
	// FormatJSONL emits one compact JSON object per result, the
	// default for agent consumption.
	FormatJSONL Format = "jsonl"
	// FormatJSON emits one pretty-printed document with query and count.
	FormatJSON Format = "json"
	// FormatText emits a numbered human-readable list.
	FormatText Format = "text"
)

// ValidFormat reports whether f names a known output format.
func ValidFormat(f Format) bool {
	switch f {
	case FormatJSONL, FormatJSON, FormatText:
		return true
	}
	return false
}
