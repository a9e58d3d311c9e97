package vector

import (
	"context"
	"fmt"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yomogi/novelindex/internal/chunk"
	"github.com/yomogi/novelindex/internal/embed"
	apperrors "github.com/yomogi/novelindex/internal/errors"
)

// memStore is an in-memory Store with brute-force cosine search.
type memStore struct {
	created    bool
	dimensions int
	points     map[string]Point
}

func newMemStore() *memStore {
	return &memStore{points: make(map[string]Point)}
}

func (m *memStore) EnsureCollection(_ context.Context, _ string, dimensions int) error {
	if m.created && m.dimensions != dimensions {
		return fmt.Errorf("collection has dimension %d, want %d", m.dimensions, dimensions)
	}
	m.created = true
	m.dimensions = dimensions
	return nil
}

func (m *memStore) Upsert(_ context.Context, _ string, points []Point) error {
	for _, p := range points {
		m.points[p.ID] = p
	}
	return nil
}

func (m *memStore) DeleteByIDs(_ context.Context, _ string, ids []string) error {
	for _, id := range ids {
		delete(m.points, id)
	}
	return nil
}

func (m *memStore) DeleteByFilter(_ context.Context, _ string, f Filter) error {
	for id, p := range m.points {
		if matchesFilter(p, f) {
			delete(m.points, id)
		}
	}
	return nil
}

func (m *memStore) Query(_ context.Context, _ string, vector []float32, k int, f Filter, threshold float32) ([]Scored, error) {
	var hits []Scored
	for _, p := range m.points {
		if !matchesFilter(p, f) {
			continue
		}
		score := cosine(vector, p.Vector)
		if threshold > 0 && score < threshold {
			continue
		}
		hits = append(hits, Scored{ID: p.ID, Score: score, Payload: p.Payload})
	}
	for i := 0; i < len(hits); i++ {
		for j := i + 1; j < len(hits); j++ {
			if hits[j].Score > hits[i].Score {
				hits[i], hits[j] = hits[j], hits[i]
			}
		}
	}
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func matchesFilter(p Point, f Filter) bool {
	if f.Project != "" && p.Payload["project"] != f.Project {
		return false
	}
	if f.File != "" && p.Payload["file"] != f.File {
		return false
	}
	return true
}

func cosine(a, b []float32) float32 {
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return float32(dot / (math.Sqrt(na) * math.Sqrt(nb)))
}

func newTestIndex(t *testing.T) (*Index, *memStore) {
	t.Helper()
	store := newMemStore()
	embedder := embed.NewStaticEmbedder(embed.StaticDimensions)
	idx := New(store, embedder, Config{ScoreThreshold: 0.01})
	return idx, store
}

func testChunk(title, content, file, project string, chunkIndex int) *chunk.Chunk {
	return &chunk.Chunk{
		Title:      title,
		Content:    content,
		FilePath:   file,
		StartLine:  1 + chunkIndex*10,
		EndLine:    9 + chunkIndex*10,
		ChunkIndex: chunkIndex,
		ProjectID:  project,
		FileType:   chunk.FileTypeContent,
	}
}

func TestVectorAddAndSearch(t *testing.T) {
	idx, store := newTestIndex(t)
	ctx := context.Background()

	chunks := []*chunk.Chunk{
		testChunk("Chapter 1", "The wizard cast powerful spells in the ancient tower.", "novel1/ch1.md", "novel1", 0),
		testChunk("Chapter 2", "The merchant counted coins at the harbor market.", "novel1/ch1.md", "novel1", 1),
	}
	require.NoError(t, idx.Add(ctx, chunks))
	assert.Len(t, store.points, 2)

	results, err := idx.Search(ctx, "wizard spells tower", 5, "novel1")
	require.NoError(t, err)
	require.NotEmpty(t, results)
	assert.Equal(t, chunks[0].ID(), results[0].ID)
	assert.Equal(t, "novel1/ch1.md", results[0].Payload.File)
	assert.NotEmpty(t, results[0].Snippet)
}

func TestVectorScoreBounds(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "dragons guard the mountain pass", "novel1/ch1.md", "novel1", 0),
	}))

	results, err := idx.Search(ctx, "dragons mountain", 5, "novel1")
	require.NoError(t, err)
	for _, r := range results {
		assert.GreaterOrEqual(t, r.Score, 0.0)
		assert.LessOrEqual(t, r.Score, 1.0)
	}
}

func TestVectorEmptyQuery(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "some content", "novel1/ch1.md", "novel1", 0),
	}))

	results, err := idx.Search(ctx, "   ", 5, "novel1")
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestVectorNamespaceIsolation(t *testing.T) {
	idx, _ := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "the wizard studied arcane tomes", "novel1/ch1.md", "novel1", 0),
		testChunk("Chapter 1", "the wizard studied arcane tomes", "novel2/ch1.md", "novel2", 0),
	}))

	results, err := idx.Search(ctx, "wizard arcane", 10, "novel1")
	require.NoError(t, err)
	for _, r := range results {
		assert.Equal(t, "novel1/ch1.md", r.Payload.File)
	}
}

func TestVectorUpdateChunksClassification(t *testing.T) {
	idx, store := newTestIndex(t)
	ctx := context.Background()

	original := []*chunk.Chunk{
		testChunk("Chapter 1", "the knight rode north", "novel1/ch1.md", "novel1", 0),
		testChunk("Chapter 2", "the knight rested at an inn", "novel1/ch1.md", "novel1", 1),
	}
	result, err := idx.UpdateChunks(ctx, original)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Added)

	t.Run("unchanged chunks are not re-added", func(t *testing.T) {
		result, err := idx.UpdateChunks(ctx, original)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Added)
		assert.Equal(t, 0, result.Updated)
		assert.Equal(t, 2, result.Unchanged)
	})

	t.Run("edited content is classified as updated", func(t *testing.T) {
		edited := []*chunk.Chunk{
			original[0],
			testChunk("Chapter 2", "the knight rested at a roadside inn", "novel1/ch1.md", "novel1", 1),
		}
		result, err := idx.UpdateChunks(ctx, edited)
		require.NoError(t, err)
		assert.Equal(t, 0, result.Added)
		assert.Equal(t, 1, result.Updated)
		assert.Equal(t, 1, result.Unchanged)

		_, stale := store.points[original[1].ID()]
		assert.False(t, stale, "old point should be deleted on update")
	})

	t.Run("dropped chunks are removed implicitly", func(t *testing.T) {
		result, err := idx.UpdateChunks(ctx, original[:1])
		require.NoError(t, err)
		assert.Equal(t, 1, result.Unchanged)
		assert.Len(t, store.points, 1)
	})
}

func TestVectorRemoveByID(t *testing.T) {
	idx, store := newTestIndex(t)
	ctx := context.Background()

	chunks := []*chunk.Chunk{
		testChunk("Chapter 1", "content one", "novel1/ch1.md", "novel1", 0),
		testChunk("Chapter 2", "content two", "novel1/ch1.md", "novel1", 1),
	}
	require.NoError(t, idx.Add(ctx, chunks))

	require.NoError(t, idx.Remove(ctx, []string{chunks[0].ID(), "no-such-id"}))
	assert.Len(t, store.points, 1)
	_, kept := store.points[chunks[1].ID()]
	assert.True(t, kept)
}

func TestVectorRemoveByFile(t *testing.T) {
	idx, store := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "content one", "novel1/ch1.md", "novel1", 0),
		testChunk("Chapter 1", "content two", "novel1/ch2.md", "novel1", 0),
	}))
	require.NoError(t, idx.RemoveByFile(ctx, "novel1/ch1.md"))
	assert.Len(t, store.points, 1)

	results, err := idx.Search(ctx, "content one", 5, "novel1")
	require.NoError(t, err)
	for _, r := range results {
		assert.NotEqual(t, "novel1/ch1.md", r.Payload.File)
	}
}

func TestVectorRemoveByNovel(t *testing.T) {
	idx, store := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "first novel", "novel1/ch1.md", "novel1", 0),
		testChunk("Chapter 1", "second novel", "novel2/ch1.md", "novel2", 0),
	}))
	require.NoError(t, idx.RemoveByNovel(ctx, "novel1"))
	require.Len(t, store.points, 1)

	for _, p := range store.points {
		assert.Equal(t, "novel2", p.Payload["project"])
	}
}

func TestVectorClear(t *testing.T) {
	idx, store := newTestIndex(t)
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "content", "novel1/ch1.md", "novel1", 0),
	}))
	require.NoError(t, idx.Clear(ctx))
	assert.Empty(t, store.points)

	stats, err := idx.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Chunks)
}

func TestVectorUnwiredBackend(t *testing.T) {
	idx := New(nil, nil, Config{})
	err := idx.Add(context.Background(), []*chunk.Chunk{
		testChunk("Chapter 1", "content", "novel1/ch1.md", "novel1", 0),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBackendUnwired))
}

func TestVectorDimensionMismatch(t *testing.T) {
	store := newMemStore()
	idx := New(store, embed.NewStaticEmbedder(embed.StaticDimensions), Config{Dimensions: 1024})

	err := idx.Add(context.Background(), []*chunk.Chunk{
		testChunk("Chapter 1", "content", "novel1/ch1.md", "novel1", 0),
	})
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeDimensionMismatch))
}

func TestVectorClosed(t *testing.T) {
	idx, _ := newTestIndex(t)
	require.NoError(t, idx.Close())

	_, err := idx.Search(context.Background(), "query", 5, "novel1")
	assert.ErrorIs(t, err, apperrors.ErrNotInitialized)
}

func TestVectorThresholdConfig(t *testing.T) {
	store := newMemStore()
	embedder := embed.NewStaticEmbedder(embed.StaticDimensions)

	// Zero is a real threshold meaning keep everything non-negative, only a
	// negative value asks for the default.
	idx := New(store, embedder, Config{})
	assert.Zero(t, idx.config.ScoreThreshold)

	idx = New(store, embedder, Config{ScoreThreshold: -1})
	assert.InDelta(t, float32(DefaultScoreThreshold), idx.config.ScoreThreshold, 1e-9)
}

func TestVectorZeroThresholdKeepsWeakMatches(t *testing.T) {
	store := newMemStore()
	embedder := embed.NewStaticEmbedder(embed.StaticDimensions)
	idx := New(store, embedder, Config{})
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "the dragon slept on gold", "novel1/ch1.md", "novel1", 0),
	}))

	results, err := idx.Search(ctx, "the dragon slept on gold", 5, "novel1")
	require.NoError(t, err)
	assert.NotEmpty(t, results)
}

func TestVectorScoreThreshold(t *testing.T) {
	idx, _ := newTestIndex(t)
	idx.config.ScoreThreshold = 0.99
	ctx := context.Background()

	require.NoError(t, idx.Add(ctx, []*chunk.Chunk{
		testChunk("Chapter 1", "the dragon slept on gold", "novel1/ch1.md", "novel1", 0),
	}))

	results, err := idx.Search(ctx, "completely unrelated topic about cooking pasta", 5, "novel1")
	require.NoError(t, err)
	assert.Empty(t, results)
}
