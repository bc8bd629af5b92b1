package search

import (
	"strings"
	"unicode/utf8"
)

const ellipsis = "..."

// ExtractSnippet returns a context window around the first occurrence
// of the query in content. The window keeps roughly one third of the
// budget before the match and two thirds after it. Truncated edges are
// marked with ellipses, and the whole snippet, ellipses included,
// never exceeds maxLength bytes.
//
// Matching is case-insensitive, trying the full query first and then
// each individual term. Without any match the snippet is the leading
// content.
func ExtractSnippet(content, query string, maxLength int) string {
	if maxLength <= 0 {
		maxLength = DefaultMaxSnippetLength
	}

	pos, matchLen := findMatch(content, query)
	if pos < 0 {
		return leadingSnippet(content, maxLength)
	}

	start := pos - maxLength/3
	if start < 0 {
		start = 0
	}
	end := pos + matchLen + 2*maxLength/3
	if end > len(content) {
		end = len(content)
	}

	// Never cut a multi-byte rune in half
	start = alignRuneStart(content, start)
	end = alignRuneStart(content, end)

	snippet := strings.TrimSpace(content[start:end])
	if start > 0 {
		snippet = ellipsis + snippet
	}
	if end < len(content) {
		snippet += ellipsis
	}

	return capLength(snippet, maxLength)
}

// findMatch locates the query in content, case-insensitively.
// Returns the byte offset and match length, or (-1, 0).
func findMatch(content, query string) (int, int) {
	contentLower := strings.ToLower(content)
	queryLower := strings.ToLower(strings.TrimSpace(query))

	if queryLower != "" {
		if pos := strings.Index(contentLower, queryLower); pos >= 0 {
			return pos, len(queryLower)
		}
	}

	// Multi-term queries rarely occur verbatim; fall back to the first
	// term that appears
	for _, term := range Tokenize(query) {
		if pos := strings.Index(contentLower, term); pos >= 0 {
			return pos, len(term)
		}
	}

	return -1, 0
}

// leadingSnippet returns the start of the content, truncated to fit.
func leadingSnippet(content string, maxLength int) string {
	if len(content) <= maxLength {
		return strings.TrimSpace(content)
	}
	end := alignRuneStart(content, maxLength)
	return capLength(strings.TrimSpace(content[:end])+ellipsis, maxLength)
}

// capLength enforces the byte budget, replacing the tail with an
// ellipsis when the snippet runs over.
func capLength(snippet string, maxLength int) string {
	if len(snippet) <= maxLength {
		return snippet
	}
	if maxLength < len(ellipsis) {
		// No room for a marker, so just hard-truncate
		return snippet[:alignRuneStart(snippet, maxLength)]
	}
	cut := alignRuneStart(snippet, maxLength-len(ellipsis))
	return strings.TrimSpace(snippet[:cut]) + ellipsis
}

// alignRuneStart moves a byte offset left until it sits on a rune boundary.
func alignRuneStart(s string, i int) int {
	for i > 0 && i < len(s) && !utf8.RuneStart(s[i]) {
		i--
	}
	return i
}
