package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveCategory(t *testing.T) {
	tests := []struct {
		name string
		path string
		want string
	}{
		{"first-level dir", "patterns/singleton.md", "patterns"},
		{"nested path uses first level", "patterns/creational/factory.md", "patterns"},
		{"root file", "README.md", UncategorizedCategory},
		{"windows separators", `guides\setup.md`, "guides"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveCategory(tt.path))
		})
	}
}

func TestDeriveTitle(t *testing.T) {
	tests := []struct {
		name    string
		content string
		path    string
		want    string
	}{
		{
			"heading on first line",
			"# Circuit Breaker\n\nIsolates failures.",
			"patterns/circuit-breaker.md",
			"Circuit Breaker",
		},
		{
			"heading after preamble",
			"some preamble\n\n# Real Title\nbody",
			"notes.md",
			"Real Title",
		},
		{
			"heading too deep is ignored",
			"l1\nl2\nl3\nl4\nl5\nl6\nl7\nl8\nl9\nl10\n# Late Title",
			"retry_with_backoff.md",
			"Retry With Backoff",
		},
		{
			"h2 does not count",
			"## Subheading\nbody",
			"event-sourcing.md",
			"Event Sourcing",
		},
		{
			"no heading falls back to filename",
			"plain text without headings",
			"guides/api_design_basics.md",
			"Api Design Basics",
		},
		{
			"empty heading falls back",
			"# \nbody",
			"misc/notes.txt",
			"Notes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DeriveTitle(tt.content, tt.path))
		})
	}
}

func TestHashContent(t *testing.T) {
	a := HashContent([]byte("same content"))
	b := HashContent([]byte("same content"))
	c := HashContent([]byte("different content"))

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.Len(t, a, 64)
}
