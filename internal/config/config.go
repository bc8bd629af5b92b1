// Package config loads kbindex configuration.
// Precedence, lowest to highest: hardcoded defaults, the project's
// .kbindex.yaml, then KBINDEX_* environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	kberrors "github.com/kbindex/kbindex/internal/errors"
)

// Config is the complete kbindex configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" json:"store"`
	Search SearchConfig `yaml:"search" json:"search"`
	Index  IndexConfig  `yaml:"index" json:"index"`
	Log    LogConfig    `yaml:"log" json:"log"`
}

// StoreConfig locates the SQLite index.
type StoreConfig struct {
	// Path is the index database file. Empty means
	// <root>/.kbindex/index.db.
	Path string `yaml:"path" json:"path"`
}

// SearchConfig shapes query behavior.
type SearchConfig struct {
	// MaxSnippetLength bounds snippets in bytes, ellipses included.
	MaxSnippetLength int `yaml:"max_snippet_length" json:"max_snippet_length"`

	// DefaultResultLimit caps results when --limit is not given.
	DefaultResultLimit int `yaml:"default_result_limit" json:"default_result_limit"`
}

// IndexConfig shapes indexing passes.
type IndexConfig struct {
	// Workers is the number of concurrent file readers.
	Workers int `yaml:"workers" json:"workers"`

	// MaxFileSize caps document size in bytes.
	MaxFileSize int64 `yaml:"max_file_size" json:"max_file_size"`

	// Extensions lists eligible file extensions (with dot).
	Extensions []string `yaml:"extensions" json:"extensions"`

	// Exclude holds extra exclusion patterns on top of .kbignore.
	Exclude []string `yaml:"exclude" json:"exclude"`

	// RespectIgnoreFiles enables .kbignore handling.
	RespectIgnoreFiles bool `yaml:"respect_ignore_files" json:"respect_ignore_files"`

	// WatchDebounce is the coalescing window for watch mode.
	WatchDebounce string `yaml:"watch_debounce" json:"watch_debounce"`
}

// LogConfig shapes structured logging.
type LogConfig struct {
	Level string `yaml:"level" json:"level"`
}

// ConfigFileName is the project configuration file.
const ConfigFileName = ".kbindex.yaml"

// NewConfig returns the hardcoded defaults.
func NewConfig() *Config {
	return &Config{
		Search: SearchConfig{
			MaxSnippetLength:   500,
			DefaultResultLimit: 10,
		},
		Index: IndexConfig{
			Workers:            runtime.NumCPU(),
			MaxFileSize:        10 * 1024 * 1024,
			Extensions:         []string{".md", ".markdown", ".txt"},
			RespectIgnoreFiles: true,
			WatchDebounce:      "500ms",
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load loads configuration for the knowledge base rooted at dir.
func Load(dir string) (*Config, error) {
	cfg := NewConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadFromFile merges .kbindex.yaml or .kbindex.yml from dir, if present.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{ConfigFileName, ".kbindex.yml"} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	// No config file is fine, defaults apply
	return nil
}

// loadYAML loads and merges configuration from a YAML file.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return kberrors.New(kberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to read config file %s", path), err)
	}

	var parsed Config
	if err := yaml.Unmarshal(data, &parsed); err != nil {
		return kberrors.New(kberrors.ErrCodeConfigInvalid,
			fmt.Sprintf("failed to parse config file %s", path), err)
	}

	c.mergeWith(&parsed)
	return nil
}

// mergeWith merges non-zero values from other into c.
func (c *Config) mergeWith(other *Config) {
	if other.Store.Path != "" {
		c.Store.Path = other.Store.Path
	}

	if other.Search.MaxSnippetLength != 0 {
		c.Search.MaxSnippetLength = other.Search.MaxSnippetLength
	}
	if other.Search.DefaultResultLimit != 0 {
		c.Search.DefaultResultLimit = other.Search.DefaultResultLimit
	}

	if other.Index.Workers != 0 {
		c.Index.Workers = other.Index.Workers
	}
	if other.Index.MaxFileSize != 0 {
		c.Index.MaxFileSize = other.Index.MaxFileSize
	}
	if len(other.Index.Extensions) > 0 {
		c.Index.Extensions = other.Index.Extensions
	}
	if len(other.Index.Exclude) > 0 {
		// Merge with defaults rather than replace
		c.Index.Exclude = append(c.Index.Exclude, other.Index.Exclude...)
	}
	if other.Index.WatchDebounce != "" {
		c.Index.WatchDebounce = other.Index.WatchDebounce
	}

	if other.Log.Level != "" {
		c.Log.Level = other.Log.Level
	}
}

// applyEnvOverrides applies KBINDEX_* environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("KBINDEX_STORE_PATH"); v != "" {
		c.Store.Path = v
	}
	if v := os.Getenv("KBINDEX_MAX_SNIPPET"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.MaxSnippetLength = n
		}
	}
	if v := os.Getenv("KBINDEX_RESULT_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Search.DefaultResultLimit = n
		}
	}
	if v := os.Getenv("KBINDEX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			c.Index.Workers = n
		}
	}
	if v := os.Getenv("KBINDEX_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
}

// Validate checks the final configuration.
func (c *Config) Validate() error {
	if c.Search.MaxSnippetLength <= 0 {
		return kberrors.New(kberrors.ErrCodeConfigInvalid,
			"search.max_snippet_length must be positive", nil)
	}
	if c.Search.DefaultResultLimit <= 0 {
		return kberrors.New(kberrors.ErrCodeConfigInvalid,
			"search.default_result_limit must be positive", nil)
	}
	if c.Index.Workers <= 0 {
		return kberrors.New(kberrors.ErrCodeConfigInvalid,
			"index.workers must be positive", nil)
	}
	if c.Index.MaxFileSize <= 0 {
		return kberrors.New(kberrors.ErrCodeConfigInvalid,
			"index.max_file_size must be positive", nil)
	}
	if c.Index.WatchDebounce != "" {
		if _, err := time.ParseDuration(c.Index.WatchDebounce); err != nil {
			return kberrors.New(kberrors.ErrCodeConfigInvalid,
				fmt.Sprintf("index.watch_debounce is not a duration: %s", c.Index.WatchDebounce), err)
		}
	}
	return nil
}

// StorePath resolves the index database path for a knowledge base root.
func (c *Config) StorePath(root string) string {
	if c.Store.Path != "" {
		if filepath.IsAbs(c.Store.Path) {
			return c.Store.Path
		}
		return filepath.Join(root, c.Store.Path)
	}
	return filepath.Join(root, ".kbindex", "index.db")
}

// WatchDebounceDuration parses the configured debounce window.
// Validate has already checked the format.
func (c *Config) WatchDebounceDuration() time.Duration {
	d, err := time.ParseDuration(c.Index.WatchDebounce)
	if err != nil {
		return 500 * time.Millisecond
	}
	return d
}
