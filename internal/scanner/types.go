// Package scanner discovers indexable documents in a knowledge base
// directory tree, respecting exclusion patterns and .kbignore rules.
package scanner

import "time"

// FileInfo contains metadata about a discovered document.
type FileInfo struct {
	Path    string    // Relative path to the knowledge base root
	AbsPath string    // Absolute path
	Size    int64     // File size in bytes
	ModTime time.Time // Last modification time
}

// ScanOptions configures the scanner behavior.
type ScanOptions struct {
	// RootDir is the knowledge base root directory to scan.
	RootDir string

	// Extensions lists eligible file extensions (with dot).
	// Empty means DefaultExtensions.
	Extensions []string

	// ExcludePatterns specifies additional patterns to exclude.
	ExcludePatterns []string

	// RespectIgnoreFiles enables .kbignore parsing.
	RespectIgnoreFiles bool

	// MaxFileSize is the maximum file size to include in bytes (0 = 10MB default).
	MaxFileSize int64

	// FollowSymlinks enables following symbolic links (default: false).
	FollowSymlinks bool
}

// ScanResult is returned from the scanner channel.
type ScanResult struct {
	File  *FileInfo
	Error error
}

// DefaultMaxFileSize is the default maximum file size (10MB).
const DefaultMaxFileSize = 10 * 1024 * 1024

// DefaultExtensions lists the document types indexed by default.
var DefaultExtensions = []string{".md", ".markdown", ".txt"}

// IgnoreFileName is the per-directory exclusion file.
const IgnoreFileName = ".kbignore"
