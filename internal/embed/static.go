package embed

import (
	"context"
	"hash/fnv"
	"math"
	"regexp"
	"strings"
)

// Weights for static vector generation.
const (
	tokenWeight = 0.7
	ngramWeight = 0.3
	ngramSize   = 3
)

// staticTokenRegex matches alphanumeric sequences.
var staticTokenRegex = regexp.MustCompile(`[a-zA-Z0-9]+`)

// StaticEmbedder generates deterministic hash-based embeddings without any
// external service. Semantic quality is reduced; it exists for offline
// operation and tests.
type StaticEmbedder struct {
	dims int
}

var _ Embedder = (*StaticEmbedder)(nil)

// NewStaticEmbedder creates a static embedder with the given dimension
// (default: StaticDimensions).
func NewStaticEmbedder(dims int) *StaticEmbedder {
	if dims <= 0 {
		dims = StaticDimensions
	}
	return &StaticEmbedder{dims: dims}
}

// Embed generates one deterministic vector per text.
func (e *StaticEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}
		vectors[i] = e.generate(text)
	}
	return vectors, nil
}

func (e *StaticEmbedder) generate(text string) []float32 {
	vector := make([]float32, e.dims)
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return vector
	}

	lower := strings.ToLower(trimmed)
	for _, token := range staticTokenRegex.FindAllString(lower, -1) {
		vector[hashToIndex(token, e.dims)] += tokenWeight
	}

	// Character n-grams catch scripts the token regex misses.
	runes := []rune(lower)
	for i := 0; i+ngramSize <= len(runes); i++ {
		vector[hashToIndex(string(runes[i:i+ngramSize]), e.dims)] += ngramWeight
	}

	return normalizeVector(vector)
}

// Dimensions returns the configured dimension.
func (e *StaticEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the static model identifier.
func (e *StaticEmbedder) ModelName() string {
	return "static-hash"
}

// hashToIndex maps a string into [0, dims).
func hashToIndex(s string, dims int) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(dims))
}

// normalizeVector scales a vector to unit length.
func normalizeVector(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
	return v
}
