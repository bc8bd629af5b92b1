package search

import (
	"context"
	"log/slog"
	"strings"
	"time"
	"unicode"

	kberrors "github.com/kbindex/kbindex/internal/errors"
	"github.com/kbindex/kbindex/internal/store"
)

// Store is the slice of the document store the engine needs.
type Store interface {
	Search(ctx context.Context, match string, opts store.SearchOptions) ([]store.SearchHit, error)
}

// Engine executes queries against a document store.
type Engine struct {
	store Store
	log   *slog.Logger
}

// NewEngine creates a search engine over an open store.
func NewEngine(st Store, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	return &Engine{store: st, log: log}
}

// Search runs a query and returns ranked results with snippets.
// Blank queries are rejected; malformed match syntax propagates from
// the store as ErrCodeQuerySyntax.
func (e *Engine) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, kberrors.EmptyQueryError()
	}

	maxSnippet := opts.MaxSnippetLength
	if maxSnippet <= 0 {
		maxSnippet = DefaultMaxSnippetLength
	}

	start := time.Now()

	hits, err := e.store.Search(ctx, BuildMatch(query), store.SearchOptions{
		Category: opts.Category,
		Limit:    opts.Limit,
	})
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(hits))
	for _, h := range hits {
		results = append(results, Result{
			Path:     h.Path,
			Category: h.Category,
			Title:    h.Title,
			Snippet:  ExtractSnippet(h.Content, query, maxSnippet),
			Rank:     h.Rank,
		})
	}

	e.log.Debug("search_complete",
		slog.String("query", query),
		slog.Int("hits", len(results)),
		slog.Duration("duration", time.Since(start)))

	return results, nil
}

// BuildMatch converts a user query into an FTS5 MATCH expression.
// Plain queries are lowercased and reduced to bare terms, which FTS5
// combines with implicit AND. Queries containing a double quote are
// passed through verbatim so phrase and operator syntax keep working.
func BuildMatch(query string) string {
	if strings.Contains(query, `"`) {
		return query
	}

	tokens := Tokenize(query)
	if len(tokens) == 0 {
		// Nothing alphanumeric survived; let FTS5 judge the raw query
		return query
	}
	return strings.Join(tokens, " ")
}

// Tokenize splits a query into lowercased alphanumeric terms.
func Tokenize(query string) []string {
	return strings.FieldsFunc(strings.ToLower(query), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
