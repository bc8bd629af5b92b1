package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	kberrors "github.com/kbindex/kbindex/internal/errors"
)

// schemaVersion is bumped on incompatible schema changes.
const schemaVersion = 1

// SQLiteStore implements document storage on SQLite FTS5.
// WAL mode allows a query to run while an indexing pass is writing.
type SQLiteStore struct {
	mu     sync.RWMutex
	db     *sql.DB
	path   string
	closed bool
}

// validateIntegrity checks an existing database file before opening.
// Returns nil if the file is absent or healthy.
func validateIntegrity(path string) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	db, err := sql.Open("sqlite", path+"?mode=ro")
	if err != nil {
		return fmt.Errorf("cannot open for validation: %w", err)
	}
	defer func() { _ = db.Close() }()

	var result string
	if err := db.QueryRow("PRAGMA integrity_check").Scan(&result); err != nil {
		return fmt.Errorf("integrity check failed: %w", err)
	}
	if result != "ok" {
		return fmt.Errorf("database corrupted: %s", result)
	}

	var count int
	err = db.QueryRow(`SELECT COUNT(*) FROM sqlite_master
                       WHERE type='table' AND name='docs_fts'`).Scan(&count)
	if err != nil {
		return fmt.Errorf("cannot query schema: %w", err)
	}
	if count == 0 {
		return fmt.Errorf("FTS5 table 'docs_fts' missing")
	}

	return nil
}

// Open opens the store for writing, creating it if needed.
// A corrupted store is cleared and rebuilt from scratch, since the
// index can always be regenerated from the document tree.
func Open(path string) (*SQLiteStore, error) {
	var dsn string
	if path == "" {
		// In-memory store for testing
		dsn = ":memory:"
	} else {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, kberrors.StoreInitError(fmt.Sprintf("failed to create directory %s", dir), err)
		}

		if validErr := validateIntegrity(path); validErr != nil {
			slog.Warn("store_corrupted",
				slog.String("path", path),
				slog.String("error", validErr.Error()))

			if removeErr := os.Remove(path); removeErr != nil && !os.IsNotExist(removeErr) {
				return nil, kberrors.StoreInitError(
					fmt.Sprintf("store corrupted at %s and cannot remove (original error: %v)", path, validErr), removeErr)
			}
			_ = os.Remove(path + "-wal")
			_ = os.Remove(path + "-shm")

			slog.Info("store_cleared",
				slog.String("path", path),
				slog.String("reason", "corruption detected, rebuilding"))
		}

		dsn = path + "?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000"
	}

	db, err := openDB(dsn)
	if err != nil {
		return nil, kberrors.StoreInitError("failed to open index database", err)
	}

	s := &SQLiteStore{db: db, path: path}

	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, kberrors.StoreInitError("failed to initialize schema", err)
	}

	return s, nil
}

// OpenReadOnly opens an existing store for queries.
// Returns ErrCodeStoreNotFound if the store has not been built yet and
// ErrCodeStoreCorrupt if it fails its integrity check.
func OpenReadOnly(path string) (*SQLiteStore, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, kberrors.StoreNotFoundError(path)
	}

	if validErr := validateIntegrity(path); validErr != nil {
		return nil, kberrors.New(kberrors.ErrCodeStoreCorrupt,
			fmt.Sprintf("index corrupted: %s", path), validErr).
			WithSuggestion("run 'kbindex index --force' to rebuild the index")
	}

	db, err := openDB(path + "?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, kberrors.StoreInitError("failed to open index database", err)
	}

	return &SQLiteStore{db: db, path: path}, nil
}

// openDB opens a connection and applies the shared pragma set.
func openDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Single connection prevents writer lock contention
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// DSN params may be ignored by modernc.org/sqlite, so set pragmas
	// explicitly on the connection
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	return db, nil
}

// initSchema creates the document table and the FTS5 virtual table.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	CREATE TABLE IF NOT EXISTS documents (
		path TEXT PRIMARY KEY,
		category TEXT NOT NULL,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		content_hash TEXT NOT NULL,
		size_bytes INTEGER NOT NULL,
		indexed_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_documents_category ON documents(category);
	CREATE INDEX IF NOT EXISTS idx_documents_hash ON documents(content_hash);

	-- FTS5 virtual table for BM25 search. path is stored but not
	-- searchable; title and content are both match targets.
	CREATE VIRTUAL TABLE IF NOT EXISTS docs_fts USING fts5(
		path UNINDEXED,
		title,
		content,
		tokenize='unicode61'
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	_, err := s.db.Exec(`INSERT OR IGNORE INTO schema_version (version) VALUES (?)`, schemaVersion)
	return err
}

// Upsert writes a document and its FTS entry in one transaction.
// Both rows land or neither does, keeping the two tables consistent.
func (s *SQLiteStore) Upsert(ctx context.Context, doc *Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// FTS5 virtual tables don't support REPLACE, so delete first
	if _, err := tx.ExecContext(ctx,
		`DELETE FROM docs_fts WHERE path = ?`, doc.Path); err != nil {
		return fmt.Errorf("failed to delete FTS entry for %s: %w", doc.Path, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO docs_fts(path, title, content) VALUES (?, ?, ?)`,
		doc.Path, doc.Title, doc.Content); err != nil {
		return fmt.Errorf("failed to index %s: %w", doc.Path, err)
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO documents(path, category, title, content, content_hash, size_bytes, indexed_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(path) DO UPDATE SET
			category = excluded.category,
			title = excluded.title,
			content = excluded.content,
			content_hash = excluded.content_hash,
			size_bytes = excluded.size_bytes,
			indexed_at = excluded.indexed_at`,
		doc.Path, doc.Category, doc.Title, doc.Content,
		doc.ContentHash, doc.SizeBytes, formatTime(doc.IndexedAt)); err != nil {
		return fmt.Errorf("failed to store %s: %w", doc.Path, err)
	}

	return tx.Commit()
}

// Delete removes documents and their FTS entries in one transaction.
// Paths not present in the store are ignored.
func (s *SQLiteStore) Delete(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	placeholders := make([]string, len(paths))
	args := make([]any, len(paths))
	for i, p := range paths {
		placeholders[i] = "?"
		args[i] = p
	}
	inClause := strings.Join(placeholders, ",")

	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM docs_fts WHERE path IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete from FTS: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM documents WHERE path IN (%s)", inClause), args...); err != nil {
		return fmt.Errorf("failed to delete documents: %w", err)
	}

	return tx.Commit()
}

// Get returns a single document by path, or nil if absent.
func (s *SQLiteStore) Get(ctx context.Context, path string) (*Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT path, category, title, content, content_hash, size_bytes, indexed_at
		 FROM documents WHERE path = ?`, path)

	var doc Document
	var indexedAt string
	err := row.Scan(&doc.Path, &doc.Category, &doc.Title, &doc.Content,
		&doc.ContentHash, &doc.SizeBytes, &indexedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document: %w", err)
	}
	doc.IndexedAt = parseTime(indexedAt)
	return &doc, nil
}

// AllPaths returns every indexed document path, sorted.
func (s *SQLiteStore) AllPaths(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path FROM documents ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("failed to query paths: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan path: %w", err)
		}
		paths = append(paths, p)
	}
	return paths, rows.Err()
}

// ContentHashes returns a path -> content hash map for the whole store.
// The indexer uses it to decide which files changed without re-reading
// stored content.
func (s *SQLiteStore) ContentHashes(ctx context.Context) (map[string]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	rows, err := s.db.QueryContext(ctx, `SELECT path, content_hash FROM documents`)
	if err != nil {
		return nil, fmt.Errorf("failed to query hashes: %w", err)
	}
	defer func() { _ = rows.Close() }()

	hashes := make(map[string]string)
	for rows.Next() {
		var path, hash string
		if err := rows.Scan(&path, &hash); err != nil {
			return nil, fmt.Errorf("failed to scan hash: %w", err)
		}
		hashes[path] = hash
	}
	return hashes, rows.Err()
}

// Search runs an FTS5 MATCH query and returns hits ordered by BM25
// rank (best first), ties broken by most recently indexed. Malformed
// match expressions surface as ErrCodeQuerySyntax rather than silently
// returning nothing.
func (s *SQLiteStore) Search(ctx context.Context, match string, opts SearchOptions) ([]SearchHit, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	limit := opts.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT d.path, d.category, d.title, d.content, d.indexed_at,
		       bm25(docs_fts) AS rank
		FROM docs_fts f
		JOIN documents d ON d.path = f.path
		WHERE docs_fts MATCH ?`
	args := []any{match}

	if opts.Category != "" {
		query += ` AND d.category = ?`
		args = append(args, opts.Category)
	}

	// bm25() is negative, lower = better, so ascending order is best-first
	query += `
		ORDER BY rank, d.indexed_at DESC
		LIMIT ?`
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		if isFTSSyntaxError(err) {
			return nil, kberrors.QuerySyntaxError(match, err)
		}
		return nil, fmt.Errorf("search failed: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var hits []SearchHit
	for rows.Next() {
		var h SearchHit
		var indexedAt string
		if err := rows.Scan(&h.Path, &h.Category, &h.Title, &h.Content, &indexedAt, &h.Rank); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		h.IndexedAt = parseTime(indexedAt)
		hits = append(hits, h)
	}
	if err := rows.Err(); err != nil {
		// Some drivers only report FTS5 parse errors on iteration
		if isFTSSyntaxError(err) {
			return nil, kberrors.QuerySyntaxError(match, err)
		}
		return nil, err
	}
	return hits, nil
}

// Stats returns aggregate store statistics.
func (s *SQLiteStore) Stats(ctx context.Context) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return nil, fmt.Errorf("store is closed")
	}

	stats := &Stats{
		Categories: make(map[string]int),
		StorePath:  s.path,
	}

	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(size_bytes), 0) FROM documents`).
		Scan(&stats.DocumentCount, &stats.TotalBytes)
	if err != nil {
		return nil, fmt.Errorf("failed to query totals: %w", err)
	}

	var lastIndexed string
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(indexed_at), '') FROM documents`).Scan(&lastIndexed); err != nil {
		return nil, fmt.Errorf("failed to query last indexed: %w", err)
	}
	if lastIndexed != "" {
		stats.LastIndexedAt = parseTime(lastIndexed)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*) FROM documents GROUP BY category ORDER BY category`)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var cat string
		var count int
		if err := rows.Scan(&cat, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		stats.Categories[cat] = count
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if s.path != "" {
		if info, err := os.Stat(s.path); err == nil {
			stats.StoreSize = info.Size()
		}
	}

	return stats, nil
}

// CheckConsistency verifies the document table and the FTS index hold
// the same set of paths. Returns ErrCodeInvariantViolation on drift.
func (s *SQLiteStore) CheckConsistency(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	var missing int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM documents d
		 WHERE NOT EXISTS (SELECT 1 FROM docs_fts f WHERE f.path = d.path)`).Scan(&missing)
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}
	if missing > 0 {
		return kberrors.InvariantViolationError(
			fmt.Sprintf("%d documents missing from the search index", missing))
	}

	var orphaned int
	err = s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM docs_fts f
		 WHERE NOT EXISTS (SELECT 1 FROM documents d WHERE d.path = f.path)`).Scan(&orphaned)
	if err != nil {
		return fmt.Errorf("consistency check failed: %w", err)
	}
	if orphaned > 0 {
		return kberrors.InvariantViolationError(
			fmt.Sprintf("%d search index entries reference deleted documents", orphaned))
	}

	return nil
}

// Checkpoint forces a WAL checkpoint so all changes land in the main
// database file.
func (s *SQLiteStore) Checkpoint() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return fmt.Errorf("store is closed")
	}

	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Close checkpoints and closes the store. Idempotent.
func (s *SQLiteStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}

	s.closed = true
	if s.db != nil {
		_, _ = s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
		return s.db.Close()
	}
	return nil
}

// isFTSSyntaxError reports whether an error came from FTS5 query
// parsing, as opposed to some other FTS5-internal failure. The parser
// has a small set of fixed messages.
func isFTSSyntaxError(err error) bool {
	msg := err.Error()
	for _, phrase := range []string{
		"fts5: syntax error",
		"unterminated string",
		"unknown special query",
	} {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
