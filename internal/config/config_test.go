package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yomogi/novelindex/internal/errors"
)

func TestLoad_DefaultsWhenNoFile(t *testing.T) {
	cfg, err := Load(t.TempDir())
	require.NoError(t, err)

	assert.Equal(t, 512, cfg.Chunk.MaxTokens)
	assert.InDelta(t, 0.1, cfg.Chunk.Overlap, 1e-9)
	assert.Equal(t, 10, cfg.Search.DefaultK)
	assert.Equal(t, "ollama", cfg.Embed.Provider)
	assert.Equal(t, 500, cfg.Watch.DebounceMS)
	assert.Empty(t, cfg.Vector.URL)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
chunk:
  max_tokens: 256
search:
  default_k: 5
vector:
  url: http://localhost:6333
  dimensions: 384
watch:
  extensions: [".md"]
  ignore_patterns: ["*.bak"]
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 256, cfg.Chunk.MaxTokens)
	assert.Equal(t, 5, cfg.Search.DefaultK)
	assert.Equal(t, "http://localhost:6333", cfg.Vector.URL)
	assert.Equal(t, 384, cfg.Vector.Dimensions)
	assert.Equal(t, []string{".md"}, cfg.Watch.Extensions)
	assert.Contains(t, cfg.Watch.IgnorePatterns, "*.bak")

	// Untouched sections keep their defaults.
	assert.Equal(t, 2, cfg.Keyword.MinWordLength)
	assert.Equal(t, "nomic-embed-text", cfg.Embed.Model)
}

func TestLoad_ExplicitZeroOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	content := `
chunk:
  max_tokens: 256
  overlap: 0
vector:
  score_threshold: 0
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	// Zero is a meaningful value for these keys, not "unset".
	assert.Zero(t, cfg.Chunk.Overlap)
	assert.Zero(t, cfg.Vector.ScoreThreshold)

	// The sibling non-zero key and absent keys behave as before.
	assert.Equal(t, 256, cfg.Chunk.MaxTokens)
	assert.Equal(t, 10, cfg.Search.DefaultK)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("chunk:\n  max_tokens: 256\n"), 0o644))

	t.Setenv("NOVELINDEX_CHUNK_MAX_TOKENS", "128")
	t.Setenv("NOVELINDEX_LOG_LEVEL", "debug")
	t.Setenv("NOVELINDEX_WATCH_EXTENSIONS", "md, rst")

	cfg, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 128, cfg.Chunk.MaxTokens)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, []string{".md", ".rst"}, cfg.Watch.Extensions)
}

func TestLoad_InvalidYAML(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte("chunk: ["), 0o644))

	_, err := Load(dir)
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"defaults are valid", func(*Config) {}, true},
		{"zero max_tokens", func(c *Config) { c.Chunk.MaxTokens = 0 }, false},
		{"overlap above one", func(c *Config) { c.Chunk.Overlap = 1.5 }, false},
		{"max_k below default_k", func(c *Config) { c.Search.MaxK = 1 }, false},
		{"unknown provider", func(c *Config) { c.Embed.Provider = "openai" }, false},
		{"static provider", func(c *Config) { c.Embed.Provider = "static" }, true},
		{"negative threshold", func(c *Config) { c.Vector.ScoreThreshold = -0.1 }, false},
		{"zero debounce", func(c *Config) { c.Watch.DebounceMS = 0 }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.valid {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeConfigInvalid))
			}
		})
	}
}

func TestWriteYAMLRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Chunk.MaxTokens = 300

	path := filepath.Join(dir, FileName)
	require.NoError(t, cfg.WriteYAML(path))

	loaded, err := Load(dir)
	require.NoError(t, err)
	assert.Equal(t, 300, loaded.Chunk.MaxTokens)
}
