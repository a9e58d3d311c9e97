package cmd

import (
	"log/slog"
	"time"

	"github.com/yomogi/novelindex/internal/analyze"
	"github.com/yomogi/novelindex/internal/config"
	"github.com/yomogi/novelindex/internal/embed"
	"github.com/yomogi/novelindex/internal/index"
	"github.com/yomogi/novelindex/internal/index/keyword"
	"github.com/yomogi/novelindex/internal/index/vector"
	"github.com/yomogi/novelindex/internal/logging"
)

// setupLogging configures the process logger from config and returns a
// cleanup function.
func setupLogging(cfg *config.Config) (*slog.Logger, func(), error) {
	logCfg := logging.DefaultConfig()
	logCfg.Level = cfg.Log.Level
	logCfg.FilePath = cfg.Log.FilePath
	return logging.Setup(logCfg)
}

// buildBackends wires the retrieval backends from config. The keyword
// backend is always present; the vector backend joins when vector.url is
// configured. The returned cleanup closes every backend.
func buildBackends(cfg *config.Config, logger *slog.Logger) ([]index.Backend, func(), error) {
	var analyzer analyze.Analyzer
	if kagome, err := analyze.NewKagomeAnalyzer(); err != nil {
		logger.Warn("morphological analyzer unavailable, using fallback tokenization",
			slog.String("error", err.Error()),
		)
	} else {
		analyzer = kagome
	}

	kw, err := keyword.New(analyzer, keyword.Config{
		MinWordLength: cfg.Keyword.MinWordLength,
		SnippetLength: cfg.Keyword.SnippetLength,
	})
	if err != nil {
		return nil, nil, err
	}
	backends := []index.Backend{kw}

	if cfg.Vector.URL != "" {
		store, err := vector.NewQdrantStore(cfg.Vector.URL)
		if err != nil {
			closeBackends(backends, logger)
			return nil, nil, err
		}
		backends = append(backends, vector.New(store, buildEmbedder(cfg), vector.Config{
			Collection:     cfg.Vector.Collection,
			Dimensions:     cfg.Vector.Dimensions,
			ScoreThreshold: float32(cfg.Vector.ScoreThreshold),
			SnippetLength:  cfg.Vector.SnippetLength,
		}))
	}

	cleanup := func() { closeBackends(backends, logger) }
	return backends, cleanup, nil
}

// buildEmbedder selects the embedding provider and wraps it in the LRU cache.
func buildEmbedder(cfg *config.Config) embed.Embedder {
	var inner embed.Embedder
	switch cfg.Embed.Provider {
	case "static":
		inner = embed.NewStaticEmbedder(cfg.Vector.Dimensions)
	default:
		inner = embed.NewOllamaEmbedder(embed.OllamaConfig{
			Host:       cfg.Embed.OllamaHost,
			Model:      cfg.Embed.Model,
			Dimensions: cfg.Vector.Dimensions,
			BatchSize:  cfg.Embed.BatchSize,
			Timeout:    60 * time.Second,
		})
	}
	return embed.NewCachedEmbedder(inner, cfg.Embed.CacheSize)
}

func closeBackends(backends []index.Backend, logger *slog.Logger) {
	for _, b := range backends {
		if err := b.Close(); err != nil {
			logger.Warn("backend close failed",
				slog.String("backend", b.Name()),
				slog.String("error", err.Error()),
			)
		}
	}
}
