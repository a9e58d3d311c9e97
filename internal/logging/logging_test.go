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

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, parseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, parseLevel("info"))
	assert.Equal(t, slog.LevelWarn, parseLevel("WARN"))
	assert.Equal(t, slog.LevelWarn, parseLevel("warning"))
	assert.Equal(t, slog.LevelError, parseLevel("error"))
	assert.Equal(t, slog.LevelInfo, parseLevel("bogus"))
}

func TestSetupWritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "novelindex.log")
	logger, cleanup, err := Setup(Config{Level: "debug", FilePath: path, WriteToStderr: false})
	require.NoError(t, err)

	logger.Info("indexing_started", slog.String("project", "mynovel"))
	cleanup()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"msg":"indexing_started"`)
	assert.Contains(t, string(data), `"project":"mynovel"`)
}

func TestRotatingWriterRotates(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.log")
	w, err := NewRotatingWriter(path, 1)
	require.NoError(t, err)

	// Pretend the file is already near the limit, then trip rotation.
	w.written = w.maxSize
	_, err = w.Write([]byte(strings.Repeat("x", 128) + "\n"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	_, err = os.Stat(path + ".1")
	assert.NoError(t, err, "rotated file should exist")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotEmpty(t, data)
}
