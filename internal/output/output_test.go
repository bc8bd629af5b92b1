package output

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWriter_PlainWhenNotTerminal(t *testing.T) {
	// Given: a writer backed by a buffer (not a TTY)
	var buf bytes.Buffer
	w := New(&buf)

	// When: emitting status messages
	w.Success("indexed 12 documents")
	w.Warning("skipped binary file")
	w.Error("index not found")

	// Then: no icons leak into piped output
	out := buf.String()
	assert.Contains(t, out, "indexed 12 documents\n")
	assert.Contains(t, out, "skipped binary file\n")
	assert.Contains(t, out, "index not found\n")
	assert.NotContains(t, out, "✅")
	assert.NotContains(t, out, "❌")
}

func TestWriter_Statusf(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Statusf("", "updated %d of %d", 3, 10)

	assert.Equal(t, "updated 3 of 10\n", buf.String())
}

func TestWriter_RawAndNewline(t *testing.T) {
	var buf bytes.Buffer
	w := NewPlain(&buf)

	w.Raw(`{"results":[],"count":0}`)
	w.Newline()

	assert.Equal(t, "{\"results\":[],\"count\":0}\n\n", buf.String())
}
