// Package config loads novelindex configuration from YAML with environment
// variable overrides. Precedence: defaults < config file < NOVELINDEX_* env.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/yomogi/novelindex/internal/chunk"
	apperrors "github.com/yomogi/novelindex/internal/errors"
)

// FileName is the project config file name, with FileNameAlt as fallback.
const (
	FileName    = ".novelindex.yaml"
	FileNameAlt = ".novelindex.yml"
)

// Config is the complete novelindex configuration.
type Config struct {
	Chunk   ChunkConfig   `yaml:"chunk"`
	Search  SearchConfig  `yaml:"search"`
	Keyword KeywordConfig `yaml:"keyword"`
	Vector  VectorConfig  `yaml:"vector"`
	Embed   EmbedConfig   `yaml:"embed"`
	Watch   WatchConfig   `yaml:"watch"`
	Log     LogConfig     `yaml:"log"`
}

// ChunkConfig configures manuscript splitting.
type ChunkConfig struct {
	// MaxTokens is the per-chunk token budget.
	MaxTokens int `yaml:"max_tokens"`

	// Overlap is the fraction of a chunk carried into the next (0-1).
	Overlap float64 `yaml:"overlap"`
}

// SearchConfig configures result counts.
type SearchConfig struct {
	DefaultK int `yaml:"default_k"`
	MaxK     int `yaml:"max_k"`
}

// KeywordConfig configures the lexical backend.
type KeywordConfig struct {
	// MinWordLength drops tokens shorter than this many runes.
	MinWordLength int `yaml:"min_word_length"`

	SnippetLength int `yaml:"snippet_length"`
}

// VectorConfig configures the semantic backend. The backend is wired only
// when URL is set.
type VectorConfig struct {
	// URL is the vector store endpoint, e.g. http://localhost:6333.
	URL string `yaml:"url"`

	Collection string `yaml:"collection"`

	// ScoreThreshold drops results scoring below it.
	ScoreThreshold float64 `yaml:"score_threshold"`

	// Dimensions must match the embedder's output dimension.
	Dimensions int `yaml:"dimensions"`

	SnippetLength int `yaml:"snippet_length"`
}

// EmbedConfig configures embedding generation.
type EmbedConfig struct {
	// Provider selects the embedder: "ollama" or "static".
	Provider string `yaml:"provider"`

	Model      string `yaml:"model"`
	BatchSize  int    `yaml:"batch_size"`
	OllamaHost string `yaml:"ollama_host"`

	// CacheSize is the embedding cache capacity in entries.
	CacheSize int `yaml:"cache_size"`
}

// WatchConfig configures the file watch coordinator.
type WatchConfig struct {
	DebounceMS     int      `yaml:"debounce_ms"`
	Extensions     []string `yaml:"extensions"`
	IgnorePatterns []string `yaml:"ignore_patterns"`
}

// LogConfig configures logging output.
type LogConfig struct {
	Level string `yaml:"level"`

	// FilePath enables file logging when set.
	FilePath string `yaml:"file_path"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	return &Config{
		Chunk: ChunkConfig{
			MaxTokens: chunk.DefaultMaxTokens,
			Overlap:   chunk.DefaultOverlapRatio,
		},
		Search: SearchConfig{
			DefaultK: 10,
			MaxK:     50,
		},
		Keyword: KeywordConfig{
			MinWordLength: 2,
			SnippetLength: 120,
		},
		Vector: VectorConfig{
			Collection:     "novelindex",
			ScoreThreshold: 0.3,
			Dimensions:     768,
			SnippetLength:  120,
		},
		Embed: EmbedConfig{
			Provider:   "ollama",
			Model:      "nomic-embed-text",
			BatchSize:  32,
			OllamaHost: "http://localhost:11434",
			CacheSize:  1024,
		},
		Watch: WatchConfig{
			DebounceMS: 500,
			Extensions: []string{".md", ".txt"},
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load builds the effective configuration for a project root.
func Load(dir string) (*Config, error) {
	cfg := DefaultConfig()

	if err := cfg.loadFromFile(dir); err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// loadFromFile applies the project config file if one exists. A missing
// file is fine, defaults apply.
func (c *Config) loadFromFile(dir string) error {
	for _, name := range []string{FileName, FileNameAlt} {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return c.loadYAML(path)
		}
	}
	return nil
}

// loadYAML unmarshals the file over the default-populated receiver. Only
// keys present in the document are set, so absent keys keep their defaults
// while explicit zero values (overlap: 0, score_threshold: 0) apply as
// written.
func (c *Config) loadYAML(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeFileRead, err).WithDetail("path", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeConfigInvalid, err).WithDetail("path", path)
	}
	return nil
}

// applyEnvOverrides applies NOVELINDEX_* environment variables, the highest
// precedence layer.
func (c *Config) applyEnvOverrides() {
	setString := func(key string, dst *string) {
		if v := os.Getenv(key); v != "" {
			*dst = v
		}
	}
	setInt := func(key string, dst *int) {
		if v := os.Getenv(key); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				*dst = n
			}
		}
	}
	setFloat := func(key string, dst *float64) {
		if v := os.Getenv(key); v != "" {
			if f, err := strconv.ParseFloat(v, 64); err == nil {
				*dst = f
			}
		}
	}

	setInt("NOVELINDEX_CHUNK_MAX_TOKENS", &c.Chunk.MaxTokens)
	setFloat("NOVELINDEX_CHUNK_OVERLAP", &c.Chunk.Overlap)
	setInt("NOVELINDEX_SEARCH_DEFAULT_K", &c.Search.DefaultK)
	setInt("NOVELINDEX_SEARCH_MAX_K", &c.Search.MaxK)
	setString("NOVELINDEX_VECTOR_URL", &c.Vector.URL)
	setString("NOVELINDEX_VECTOR_COLLECTION", &c.Vector.Collection)
	setFloat("NOVELINDEX_VECTOR_SCORE_THRESHOLD", &c.Vector.ScoreThreshold)
	setInt("NOVELINDEX_VECTOR_DIMENSIONS", &c.Vector.Dimensions)
	setString("NOVELINDEX_EMBED_PROVIDER", &c.Embed.Provider)
	setString("NOVELINDEX_EMBED_MODEL", &c.Embed.Model)
	setString("NOVELINDEX_EMBED_OLLAMA_HOST", &c.Embed.OllamaHost)
	setInt("NOVELINDEX_WATCH_DEBOUNCE_MS", &c.Watch.DebounceMS)
	setString("NOVELINDEX_LOG_LEVEL", &c.Log.Level)

	if v := os.Getenv("NOVELINDEX_WATCH_EXTENSIONS"); v != "" {
		parts := strings.Split(v, ",")
		exts := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			if !strings.HasPrefix(p, ".") {
				p = "." + p
			}
			exts = append(exts, p)
		}
		if len(exts) > 0 {
			c.Watch.Extensions = exts
		}
	}
}

// Validate checks the final configuration for out-of-range values.
func (c *Config) Validate() error {
	fail := func(format string, args ...any) error {
		return apperrors.Newf(apperrors.ErrCodeConfigInvalid, format, args...)
	}

	if c.Chunk.MaxTokens <= 0 {
		return fail("chunk.max_tokens must be positive, got %d", c.Chunk.MaxTokens)
	}
	if c.Chunk.Overlap < 0 || c.Chunk.Overlap > 1 {
		return fail("chunk.overlap must be in [0,1], got %g", c.Chunk.Overlap)
	}
	if c.Search.DefaultK <= 0 {
		return fail("search.default_k must be positive, got %d", c.Search.DefaultK)
	}
	if c.Search.MaxK < c.Search.DefaultK {
		return fail("search.max_k (%d) must be >= search.default_k (%d)", c.Search.MaxK, c.Search.DefaultK)
	}
	if c.Keyword.MinWordLength < 1 {
		return fail("keyword.min_word_length must be at least 1, got %d", c.Keyword.MinWordLength)
	}
	if c.Vector.ScoreThreshold < 0 || c.Vector.ScoreThreshold > 1 {
		return fail("vector.score_threshold must be in [0,1], got %g", c.Vector.ScoreThreshold)
	}
	if c.Vector.Dimensions <= 0 {
		return fail("vector.dimensions must be positive, got %d", c.Vector.Dimensions)
	}
	switch c.Embed.Provider {
	case "ollama", "static":
	default:
		return fail("embed.provider must be ollama or static, got %q", c.Embed.Provider)
	}
	if c.Watch.DebounceMS <= 0 {
		return fail("watch.debounce_ms must be positive, got %d", c.Watch.DebounceMS)
	}
	return nil
}

// WriteYAML writes the configuration to path.
func (c *Config) WriteYAML(path string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}
