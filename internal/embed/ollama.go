package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	apperrors "github.com/yomogi/novelindex/internal/errors"
)

// OllamaConfig configures the Ollama embedder.
type OllamaConfig struct {
	Host       string        // API endpoint (default: DefaultOllamaHost)
	Model      string        // Model name (default: DefaultOllamaModel)
	Dimensions int           // Expected output dimension; 0 skips validation
	BatchSize  int           // Texts per request (default: DefaultBatchSize)
	Timeout    time.Duration // Per-request timeout (default: DefaultTimeout)
	MaxRetries int           // Retry attempts per batch (default: DefaultMaxRetries)
}

// OllamaEmbedder generates embeddings through Ollama's /api/embed endpoint.
type OllamaEmbedder struct {
	client *http.Client
	config OllamaConfig
}

var _ Embedder = (*OllamaEmbedder)(nil)

// ollamaEmbedRequest is the /api/embed request body.
type ollamaEmbedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

// ollamaEmbedResponse is the /api/embed response body.
type ollamaEmbedResponse struct {
	Model      string      `json:"model"`
	Embeddings [][]float64 `json:"embeddings"`
}

// NewOllamaEmbedder creates an Ollama embedder, applying defaults.
func NewOllamaEmbedder(cfg OllamaConfig) *OllamaEmbedder {
	if cfg.Host == "" {
		cfg.Host = DefaultOllamaHost
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOllamaModel
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultBatchSize
	}
	if cfg.BatchSize > MaxBatchSize {
		cfg.BatchSize = MaxBatchSize
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = DefaultMaxRetries
	}
	return &OllamaEmbedder{
		client: &http.Client{},
		config: cfg,
	}
}

// Embed generates embeddings for texts, splitting into batches.
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch, err := e.embedBatch(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batch...)
	}
	return vectors, nil
}

// embedBatch sends one batch with bounded retry and backoff.
func (e *OllamaEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var lastErr error
	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := time.Duration(attempt) * 500 * time.Millisecond
			slog.Debug("embedding_retry",
				slog.Int("attempt", attempt),
				slog.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		vectors, err := e.doEmbed(ctx, texts)
		if err == nil {
			return vectors, nil
		}
		if apperrors.HasCode(err, apperrors.ErrCodeDimensionMismatch) {
			return nil, err // configuration error, retrying cannot help
		}
		lastErr = err
	}
	return nil, apperrors.Wrap(apperrors.ErrCodeEmbeddingFailed, lastErr)
}

func (e *OllamaEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	reqCtx, cancel := context.WithTimeout(ctx, e.config.Timeout)
	defer cancel()

	body, err := json.Marshal(ollamaEmbedRequest{Model: e.config.Model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, e.config.Host+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to reach embedding service: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("embedding service returned %d: %s", resp.StatusCode, msg)
	}

	var parsed ollamaEmbedResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode embed response: %w", err)
	}
	if len(parsed.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding count mismatch: sent %d texts, got %d vectors", len(texts), len(parsed.Embeddings))
	}

	vectors := make([][]float32, len(parsed.Embeddings))
	for i, emb := range parsed.Embeddings {
		if e.config.Dimensions > 0 && len(emb) != e.config.Dimensions {
			return nil, apperrors.DimensionMismatch(e.config.Dimensions, len(emb))
		}
		vec := make([]float32, len(emb))
		for j, v := range emb {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

// Dimensions returns the configured output dimension.
func (e *OllamaEmbedder) Dimensions() int {
	if e.config.Dimensions > 0 {
		return e.config.Dimensions
	}
	return DefaultDimensions
}

// ModelName returns the model identifier.
func (e *OllamaEmbedder) ModelName() string {
	return e.config.Model
}
