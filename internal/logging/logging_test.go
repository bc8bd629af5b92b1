package logging

import (
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesJSONToFile(t *testing.T) {
	// Given: logging configured to a temp file
	dir := t.TempDir()
	cfg := Config{
		Level:     "info",
		FilePath:  filepath.Join(dir, "kbindex.log"),
		MaxSizeMB: 1,
		MaxFiles:  2,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	// When: logging a structured event
	logger.Info("index_complete", slog.Int("inserted", 3))
	cleanup()

	// Then: the file contains the JSON event
	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"index_complete"`)
	assert.Contains(t, string(data), `"inserted":3`)
}

func TestSetup_RespectsLevel(t *testing.T) {
	dir := t.TempDir()
	cfg := Config{
		Level:     "warn",
		FilePath:  filepath.Join(dir, "kbindex.log"),
		MaxSizeMB: 1,
		MaxFiles:  2,
	}

	logger, cleanup, err := Setup(cfg)
	require.NoError(t, err)

	logger.Debug("too quiet")
	logger.Warn("loud enough")
	cleanup()

	data, err := os.ReadFile(cfg.FilePath)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "too quiet")
	assert.Contains(t, string(data), "loud enough")
}

func TestRotatingWriter_RotatesAtMaxSize(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "kbindex.log")

	// maxSize of 1MB; write slightly more than that in big chunks
	w, err := NewRotatingWriter(path, 1, 3)
	require.NoError(t, err)

	chunk := strings.Repeat("x", 512*1024)
	for i := 0; i < 3; i++ {
		_, err := w.Write([]byte(chunk))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	// Rotated file exists alongside the live one
	_, err = os.Stat(path)
	assert.NoError(t, err)
	_, err = os.Stat(path + ".1")
	assert.NoError(t, err)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARNING"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}
