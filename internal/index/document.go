// Package index builds and maintains the document store from a
// knowledge base directory tree. Passes are incremental: a document is
// re-written only when its content hash changed.
package index

import (
	"crypto/sha256"
	"encoding/hex"
	"path"
	"strings"
	"unicode"
)

// titleScanLines is how many leading lines are searched for a heading.
const titleScanLines = 10

// UncategorizedCategory is assigned to documents at the root of the tree.
const UncategorizedCategory = "uncategorized"

// HashContent returns the SHA-256 hex digest of document content.
func HashContent(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// DeriveCategory maps a relative document path to its category: the
// first-level directory name, or "uncategorized" for root-level files.
func DeriveCategory(relPath string) string {
	relPath = path.Clean(strings.ReplaceAll(relPath, "\\", "/"))
	if i := strings.IndexByte(relPath, '/'); i > 0 {
		return relPath[:i]
	}
	return UncategorizedCategory
}

// DeriveTitle extracts a document title: the first markdown H1 heading
// within the first few lines, otherwise the filename stem with
// separators spaced out and title-cased.
func DeriveTitle(content, relPath string) string {
	lines := strings.Split(content, "\n")
	if len(lines) > titleScanLines {
		lines = lines[:titleScanLines]
	}
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "# ") {
			if title := strings.TrimSpace(line[2:]); title != "" {
				return title
			}
		}
	}
	return titleFromFilename(relPath)
}

// titleFromFilename turns "patterns/circuit-breaker.md" into "Circuit Breaker".
func titleFromFilename(relPath string) string {
	base := path.Base(strings.ReplaceAll(relPath, "\\", "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = strings.ReplaceAll(stem, "_", " ")
	stem = strings.ReplaceAll(stem, "-", " ")

	words := strings.Fields(stem)
	for i, w := range words {
		runes := []rune(w)
		runes[0] = unicode.ToUpper(runes[0])
		words[i] = string(runes)
	}
	if len(words) == 0 {
		return stem
	}
	return strings.Join(words, " ")
}
