package scanner

import (
	"bytes"
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/kbindex/kbindex/internal/ignore"
)

// Scanner discovers indexable documents in a knowledge base directory.
type Scanner struct {
	// ignoreCache caches parsed .kbignore matchers by directory so that
	// repeated passes (watch mode) do not recompile unchanged files.
	ignoreCache *ignore.Cache
}

// New creates a new Scanner instance.
func New() (*Scanner, error) {
	cache, err := ignore.NewCache()
	if err != nil {
		return nil, fmt.Errorf("failed to create scanner: %w", err)
	}
	return &Scanner{ignoreCache: cache}, nil
}

// Scan discovers all indexable documents under the root directory.
// It returns a channel of ScanResult that streams files as they are
// discovered. The channel is closed when scanning is complete.
func (s *Scanner) Scan(ctx context.Context, opts *ScanOptions) (<-chan ScanResult, error) {
	if opts == nil {
		opts = &ScanOptions{}
	}

	rootDir := opts.RootDir
	if rootDir == "" {
		rootDir = "."
	}

	absRoot, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, fmt.Errorf("failed to get absolute path: %w", err)
	}

	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to stat root directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("root path is not a directory: %s", absRoot)
	}

	maxFileSize := opts.MaxFileSize
	if maxFileSize <= 0 {
		maxFileSize = DefaultMaxFileSize
	}

	extensions := opts.Extensions
	if len(extensions) == 0 {
		extensions = DefaultExtensions
	}
	extSet := make(map[string]bool, len(extensions))
	for _, ext := range extensions {
		extSet[strings.ToLower(ext)] = true
	}

	// Configured excludes share the .kbignore pattern engine
	excludes := ignore.New()
	excludes.AddPatterns(opts.ExcludePatterns)

	results := make(chan ScanResult, 64)

	go func() {
		defer close(results)
		s.scan(ctx, absRoot, opts, excludes, extSet, maxFileSize, results)
	}()

	return results, nil
}

// scan performs the directory traversal.
func (s *Scanner) scan(ctx context.Context, absRoot string, opts *ScanOptions, excludes *ignore.Matcher, extSet map[string]bool, maxFileSize int64, results chan<- ScanResult) {
	err := filepath.WalkDir(absRoot, func(path string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if err != nil {
			return nil // Skip entries we can't access
		}

		relPath, err := filepath.Rel(absRoot, path)
		if err != nil {
			return nil
		}

		// Skip the root directory itself
		if relPath == "." {
			return nil
		}

		if d.IsDir() {
			if s.shouldExcludeDir(relPath, absRoot, d.Name(), opts, excludes) {
				return filepath.SkipDir
			}
			return nil
		}

		if d.Type()&fs.ModeSymlink != 0 && !opts.FollowSymlinks {
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if s.shouldExcludeFile(relPath, absRoot, opts, excludes) {
			return nil
		}

		// Only documents with eligible extensions are indexable
		if !extSet[strings.ToLower(filepath.Ext(relPath))] {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}

		if info.Size() > maxFileSize {
			return nil
		}

		if s.isBinaryFile(path) {
			return nil
		}

		fileInfo := &FileInfo{
			Path:    filepath.ToSlash(relPath),
			AbsPath: path,
			Size:    info.Size(),
			ModTime: info.ModTime(),
		}

		select {
		case results <- ScanResult{File: fileInfo}:
		case <-ctx.Done():
			return ctx.Err()
		}

		return nil
	})

	if err != nil && err != context.Canceled {
		select {
		case results <- ScanResult{Error: err}:
		case <-ctx.Done():
		}
	}
}

// shouldExcludeDir checks if a directory should be skipped entirely.
func (s *Scanner) shouldExcludeDir(relPath, absRoot, name string, opts *ScanOptions, excludes *ignore.Matcher) bool {
	// Hidden directories (.git, .kbindex, .obsidian, ...) never hold documents
	if strings.HasPrefix(name, ".") {
		return true
	}

	if excludes.Match(filepath.ToSlash(relPath), true) {
		return true
	}

	if opts.RespectIgnoreFiles && s.isIgnored(relPath, absRoot, true) {
		return true
	}

	return false
}

// shouldExcludeFile checks if a file should be excluded.
func (s *Scanner) shouldExcludeFile(relPath, absRoot string, opts *ScanOptions, excludes *ignore.Matcher) bool {
	baseName := filepath.Base(relPath)

	// Hidden files and index artifacts are never documents
	if strings.HasPrefix(baseName, ".") {
		return true
	}
	for _, pattern := range storeArtifactPatterns {
		if matched, _ := filepath.Match(pattern, baseName); matched {
			return true
		}
	}

	if excludes.Match(filepath.ToSlash(relPath), false) {
		return true
	}

	if opts.RespectIgnoreFiles && s.isIgnored(relPath, absRoot, false) {
		return true
	}

	return false
}

// isBinaryFile checks if a file is binary by looking for null bytes.
func (s *Scanner) isBinaryFile(path string) bool {
	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer func() { _ = f.Close() }()

	buf := make([]byte, 512)
	n, err := f.Read(buf)
	if err != nil {
		return false
	}

	return bytes.Contains(buf[:n], []byte{0})
}

// isIgnored checks if a path is excluded by any .kbignore file on the
// way from the root down to the path's directory.
func (s *Scanner) isIgnored(relPath, absRoot string, isDir bool) bool {
	if m := s.getIgnoreMatcher(absRoot, ""); m != nil && m.Match(relPath, isDir) {
		return true
	}

	parts := strings.Split(filepath.Dir(relPath), string(filepath.Separator))
	currentDir := absRoot
	currentBase := ""

	for _, part := range parts {
		if part == "." {
			continue
		}
		currentDir = filepath.Join(currentDir, part)
		if currentBase == "" {
			currentBase = part
		} else {
			currentBase = filepath.Join(currentBase, part)
		}

		if m := s.getIgnoreMatcher(currentDir, currentBase); m != nil && m.Match(relPath, isDir) {
			return true
		}
	}

	return false
}

// getIgnoreMatcher returns a compiled matcher for the directory's
// .kbignore file, or nil if the directory has none.
func (s *Scanner) getIgnoreMatcher(dir, base string) *ignore.Matcher {
	path := filepath.Join(dir, IgnoreFileName)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	m, err := s.ignoreCache.Load(path, filepath.ToSlash(base))
	if err != nil {
		return nil
	}
	return m
}

// storeArtifactPatterns are index files that must never be re-indexed
// as documents, even when placed inside the knowledge base.
var storeArtifactPatterns = []string{
	"*.db",
	"*.db-wal",
	"*.db-shm",
	"*.lock",
}
