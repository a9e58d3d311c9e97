// Package embed provides the embedding generation capability consumed by
// the vector index: an Ollama HTTP backend, an LRU-cached wrapper that
// avoids re-embedding unchanged content, and a deterministic static
// embedder for offline use and tests.
package embed

import (
	"context"
	"time"
)

// Common embedding constants.
const (
	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps batch size to prevent memory exhaustion.
	MaxBatchSize = 256

	// DefaultTimeout is the per-request timeout for embedding calls.
	DefaultTimeout = 60 * time.Second

	// DefaultMaxRetries is the default number of retry attempts.
	DefaultMaxRetries = 3

	// DefaultOllamaHost is the default Ollama API endpoint.
	DefaultOllamaHost = "http://localhost:11434"

	// DefaultOllamaModel is the default embedding model.
	DefaultOllamaModel = "nomic-embed-text"

	// DefaultDimensions is the default embedding dimension.
	DefaultDimensions = 768

	// StaticDimensions is the dimension of the static hash embedder.
	StaticDimensions = 256
)

// Embedder generates fixed-dimension embeddings for batches of texts.
// Implementations are stateless from the caller's perspective and safe for
// concurrent use by multiple indexing operations.
type Embedder interface {
	// Embed returns one vector per input text, in input order.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the fixed output dimension.
	Dimensions() int

	// ModelName identifies the underlying model, for cache keys and logs.
	ModelName() string
}
