package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
)

func TestExtractSnippet_MatchInMiddle(t *testing.T) {
	content := strings.Repeat("padding before ", 30) +
		"the actual answer lives here" +
		strings.Repeat(" padding after", 30)

	snippet := ExtractSnippet(content, "answer", 120)

	assert.Contains(t, snippet, "answer")
	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.LessOrEqual(t, len(snippet), 120)
}

func TestExtractSnippet_MatchAtStart(t *testing.T) {
	content := "answer first, then a long tail " + strings.Repeat("x ", 200)

	snippet := ExtractSnippet(content, "answer", 100)

	assert.False(t, strings.HasPrefix(snippet, "..."), "no leading ellipsis at content start")
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.Contains(t, snippet, "answer")
}

func TestExtractSnippet_MatchAtEnd(t *testing.T) {
	content := strings.Repeat("x ", 200) + "the answer"

	snippet := ExtractSnippet(content, "answer", 100)

	assert.True(t, strings.HasPrefix(snippet, "..."))
	assert.False(t, strings.HasSuffix(snippet, "..."), "no trailing ellipsis at content end")
	assert.Contains(t, snippet, "answer")
}

func TestExtractSnippet_ShortContentReturnedWhole(t *testing.T) {
	content := "a short note mentioning caching"

	snippet := ExtractSnippet(content, "caching", 500)

	assert.Equal(t, content, snippet)
}

func TestExtractSnippet_NoMatchFallsBackToLeadingContent(t *testing.T) {
	content := "this document never mentions the term " + strings.Repeat("filler ", 100)

	snippet := ExtractSnippet(content, "zebra", 60)

	assert.True(t, strings.HasPrefix(snippet, "this document"))
	assert.True(t, strings.HasSuffix(snippet, "..."))
	assert.LessOrEqual(t, len(snippet), 60)
}

func TestExtractSnippet_CaseInsensitive(t *testing.T) {
	snippet := ExtractSnippet("Kafka Streams handles state.", "KAFKA", 500)
	assert.Contains(t, snippet, "Kafka Streams")
}

func TestExtractSnippet_MultiTermFallsBackToFirstTerm(t *testing.T) {
	// The exact phrase is absent but one term appears
	content := strings.Repeat("pad ", 100) + "circuit isolation logic" + strings.Repeat(" pad", 100)

	snippet := ExtractSnippet(content, "circuit breaker", 100)

	assert.Contains(t, snippet, "circuit")
}

func TestExtractSnippet_NeverSplitsRunes(t *testing.T) {
	content := strings.Repeat("héllo wörld ", 100)

	for _, max := range []int{20, 33, 50, 77} {
		snippet := ExtractSnippet(content, "wörld", max)
		assert.True(t, utf8.ValidString(snippet), "max=%d produced invalid UTF-8", max)
		assert.LessOrEqual(t, len(snippet), max)
	}
}

func TestExtractSnippet_BudgetIncludesEllipses(t *testing.T) {
	content := strings.Repeat("a", 50) + " needle " + strings.Repeat("b", 400)

	snippet := ExtractSnippet(content, "needle", 100)

	assert.LessOrEqual(t, len(snippet), 100)
	assert.Contains(t, snippet, "needle")
}

func TestExtractSnippet_TinyBudgetNeverExceeded(t *testing.T) {
	content := strings.Repeat("a", 50) + " needle " + strings.Repeat("b", 400)

	// Budgets smaller than the ellipsis marker still hold
	for _, max := range []int{1, 2, 3, 4} {
		snippet := ExtractSnippet(content, "needle", max)
		assert.LessOrEqual(t, len(snippet), max, "maxLength=%d", max)
	}
}
