package embed

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/yomogi/novelindex/internal/errors"
)

func TestStaticEmbedderDeterministic(t *testing.T) {
	e := NewStaticEmbedder(64)
	ctx := context.Background()

	first, err := e.Embed(ctx, []string{"the wizard walked", "魔法使いは歩いた"})
	require.NoError(t, err)
	second, err := e.Embed(ctx, []string{"the wizard walked", "魔法使いは歩いた"})
	require.NoError(t, err)

	require.Len(t, first, 2)
	assert.Equal(t, first, second)
	assert.Len(t, first[0], 64)
	assert.NotEqual(t, first[0], first[1])
}

func TestStaticEmbedderNormalized(t *testing.T) {
	e := NewStaticEmbedder(0)
	vecs, err := e.Embed(context.Background(), []string{"some text about towers"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, StaticDimensions, len(vecs[0]))

	var sum float64
	for _, x := range vecs[0] {
		sum += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, sum, 1e-3)
}

func TestStaticEmbedderEmptyText(t *testing.T) {
	e := NewStaticEmbedder(16)
	vecs, err := e.Embed(context.Background(), []string{""})
	require.NoError(t, err)
	assert.Equal(t, make([]float32, 16), vecs[0])
}

func TestCachedEmbedderSkipsRecomputation(t *testing.T) {
	var calls atomic.Int64
	inner := &countingEmbedder{inner: NewStaticEmbedder(32), calls: &calls}
	cached := NewCachedEmbedder(inner, 100)
	ctx := context.Background()

	_, err := cached.Embed(ctx, []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, int64(2), calls.Load())

	// Second pass with one repeat and one new text embeds only the new one.
	vecs, err := cached.Embed(ctx, []string{"a", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 2)
	assert.Equal(t, int64(3), calls.Load())
	assert.Equal(t, 3, cached.Len())
}

func TestCachedEmbedderEmptyBatch(t *testing.T) {
	cached := NewCachedEmbedder(NewStaticEmbedder(8), 10)
	vecs, err := cached.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}

type countingEmbedder struct {
	inner Embedder
	calls *atomic.Int64
}

func (c *countingEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls.Add(int64(len(texts)))
	return c.inner.Embed(ctx, texts)
}
func (c *countingEmbedder) Dimensions() int   { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string { return c.inner.ModelName() }

func TestOllamaEmbedder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/embed", r.URL.Path)
		var req ollamaEmbedRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		resp := ollamaEmbedResponse{Model: req.Model}
		for range req.Input {
			resp.Embeddings = append(resp.Embeddings, []float64{0.1, 0.2, 0.3})
		}
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Model: "test-model", Dimensions: 3, BatchSize: 2})
	vecs, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	require.Len(t, vecs, 3)
	assert.Equal(t, []float32{0.1, 0.2, 0.3}, vecs[0])
}

func TestOllamaEmbedderDimensionMismatchIsFatal(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{0.1, 0.2}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 3, MaxRetries: 3})
	_, err := e.Embed(context.Background(), []string{"a"})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDimensionMismatch))
	assert.Equal(t, int64(1), requests.Load(), "dimension mismatch must not be retried")
}

func TestOllamaEmbedderRetriesServerErrors(t *testing.T) {
	var requests atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if requests.Add(1) == 1 {
			http.Error(w, "overloaded", http.StatusInternalServerError)
			return
		}
		_ = json.NewEncoder(w).Encode(ollamaEmbedResponse{Embeddings: [][]float64{{1, 0}}})
	}))
	defer srv.Close()

	e := NewOllamaEmbedder(OllamaConfig{Host: srv.URL, Dimensions: 2, MaxRetries: 3})
	vecs, err := e.Embed(context.Background(), []string{"a"})
	require.NoError(t, err)
	require.Len(t, vecs, 1)
	assert.Equal(t, int64(2), requests.Load())
}

func TestOllamaEmbedderEmptyInput(t *testing.T) {
	e := NewOllamaEmbedder(OllamaConfig{Host: "http://nowhere.invalid"})
	vecs, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vecs)
}
