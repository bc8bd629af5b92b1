package search

import (
	"encoding/json"
	"fmt"
	"strings"
)

// compactResult carries the single-letter keys of the jsonl format.
type compactResult struct {
	P string  `json:"p"`
	C string  `json:"c"`
	T string  `json:"t"`
	S string  `json:"s"`
	R float64 `json:"r"`
}

// jsonDocument is the envelope of the pretty json format.
type jsonDocument struct {
	Query   string   `json:"query"`
	Count   int      `json:"count"`
	Results []Result `json:"results"`
}

// emptyJSON is emitted by both JSON formats when nothing matched.
const emptyJSON = `{"results":[],"count":0}`

// Render formats results for output. It is a pure function of its
// inputs, so every command renders through the same path.
func Render(results []Result, query string, format Format) (string, error) {
	if !ValidFormat(format) {
		return "", fmt.Errorf("unknown output format: %s", format)
	}

	if len(results) == 0 {
		if format == FormatText {
			return "No results found.", nil
		}
		return emptyJSON, nil
	}

	switch format {
	case FormatJSONL:
		return renderJSONL(results)
	case FormatJSON:
		return renderJSON(results, query)
	default:
		return renderText(results, query), nil
	}
}

// renderJSONL emits one compact object per line for agent pipelines.
func renderJSONL(results []Result) (string, error) {
	lines := make([]string, 0, len(results))
	for _, r := range results {
		data, err := json.Marshal(compactResult{
			P: r.Path,
			C: r.Category,
			T: r.Title,
			S: r.Snippet,
			R: r.Rank,
		})
		if err != nil {
			return "", fmt.Errorf("failed to encode result: %w", err)
		}
		lines = append(lines, string(data))
	}
	return strings.Join(lines, "\n"), nil
}

// renderJSON emits one pretty-printed document.
func renderJSON(results []Result, query string) (string, error) {
	data, err := json.MarshalIndent(jsonDocument{
		Query:   query,
		Count:   len(results),
		Results: results,
	}, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode results: %w", err)
	}
	return string(data), nil
}

// renderText emits a numbered human-readable list.
func renderText(results []Result, query string) string {
	var lines []string
	lines = append(lines, fmt.Sprintf("Found %d results for '%s':\n", len(results), query))

	for i, r := range results {
		lines = append(lines, fmt.Sprintf("%d. [%s] %s", i+1, r.Category, r.Title))
		lines = append(lines, fmt.Sprintf("   Path: %s", r.Path))
		lines = append(lines, fmt.Sprintf("   %s\n", r.Snippet))
	}

	return strings.Join(lines, "\n")
}
