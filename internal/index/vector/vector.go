package vector

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/yomogi/novelindex/internal/chunk"
	"github.com/yomogi/novelindex/internal/embed"
	apperrors "github.com/yomogi/novelindex/internal/errors"
	"github.com/yomogi/novelindex/internal/index"
)

// DefaultCollection is the default vector collection name.
const DefaultCollection = "novelindex"

// DefaultScoreThreshold drops weakly-similar results entirely rather than
// deprioritizing them.
const DefaultScoreThreshold = 0.3

// Config configures the vector index.
type Config struct {
	// Collection is the vector store collection name.
	Collection string

	// Dimensions is the collection's vector dimension. Must match the
	// embedder's output dimension; mismatch is a fatal configuration error.
	Dimensions int

	// ScoreThreshold is the minimum similarity for a result to be kept.
	// Zero keeps every non-negative match; a negative value selects
	// DefaultScoreThreshold.
	ScoreThreshold float32

	// SnippetLength bounds result snippets.
	SnippetLength int
}

// Index is the semantic retrieval backend. It owns a local chunk map for
// diffing and snippets; the vectors themselves live in the external store.
type Index struct {
	mu       sync.Mutex
	store    Store
	embedder embed.Embedder
	config   Config

	chunks      map[string]*chunk.Chunk // by chunk id
	initialized bool
	closed      bool
	lastUpdated time.Time
}

var _ index.Backend = (*Index)(nil)

// New creates a vector index over the given store and embedder.
// Collection creation is deferred to the first operation.
func New(store Store, embedder embed.Embedder, cfg Config) *Index {
	if cfg.Collection == "" {
		cfg.Collection = DefaultCollection
	}
	if cfg.ScoreThreshold < 0 {
		cfg.ScoreThreshold = DefaultScoreThreshold
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = index.DefaultSnippetLength
	}
	return &Index{
		store:    store,
		embedder: embedder,
		config:   cfg,
		chunks:   make(map[string]*chunk.Chunk),
	}
}

// Name identifies the backend variant.
func (s *Index) Name() string { return "vector" }

// ensureInit validates wiring and idempotently creates the collection.
// Called with the mutex held.
func (s *Index) ensureInit(ctx context.Context) error {
	if s.closed {
		return apperrors.ErrNotInitialized
	}
	if s.initialized {
		return nil
	}
	if s.store == nil || s.embedder == nil {
		return apperrors.New(apperrors.ErrCodeBackendUnwired, "vector backend missing store or embedder", nil)
	}
	if s.config.Dimensions == 0 {
		s.config.Dimensions = s.embedder.Dimensions()
	}
	if s.embedder.Dimensions() != s.config.Dimensions {
		return apperrors.DimensionMismatch(s.config.Dimensions, s.embedder.Dimensions())
	}
	if err := s.store.EnsureCollection(ctx, s.config.Collection, s.config.Dimensions); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeVectorStore, err)
	}
	s.initialized = true
	return nil
}

// embedText is what gets embedded per chunk: the title gives short chunks
// useful context.
func embedText(c *chunk.Chunk) string {
	return c.Title + "\n" + c.Content
}

// Add embeds chunks in batches and upserts them keyed by chunk id.
func (s *Index) Add(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInit(ctx); err != nil {
		return err
	}
	return s.addLocked(ctx, chunks)
}

func (s *Index) addLocked(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = embedText(c)
	}
	vectors, err := s.embedder.Embed(ctx, texts)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeEmbeddingFailed, err)
	}

	points := make([]Point, len(chunks))
	for i, c := range chunks {
		if len(vectors[i]) != s.config.Dimensions {
			return apperrors.DimensionMismatch(s.config.Dimensions, len(vectors[i]))
		}
		points[i] = Point{
			ID:     c.ID(),
			Vector: vectors[i],
			Payload: map[string]any{
				"id":      c.ID(),
				"project": c.ProjectID,
				"file":    c.FilePath,
				"start":   c.StartLine,
				"end":     c.EndLine,
				"tags":    tagsToAny(c.Tags),
				"content": c.Content,
			},
		}
	}
	if err := s.store.Upsert(ctx, s.config.Collection, points); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeVectorStore, err)
	}

	for _, c := range chunks {
		s.chunks[c.ID()] = c
	}
	s.lastUpdated = time.Now()
	return nil
}

// Remove deletes chunks by id. Unknown ids are ignored.
func (s *Index) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	if err := s.store.DeleteByIDs(ctx, s.config.Collection, ids); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeVectorStore, err)
	}
	for _, id := range ids {
		delete(s.chunks, id)
	}
	s.lastUpdated = time.Now()
	return nil
}

// UpdateChunks diffs incoming chunks per file; unchanged content is never
// re-embedded.
func (s *Index) UpdateChunks(ctx context.Context, chunks []*chunk.Chunk) (*index.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}

	total := &index.UpdateResult{}
	for key, group := range index.GroupByFile(chunks) {
		existing := make(map[string]index.Indexed)
		for id, c := range s.chunks {
			if c.ProjectID == key.Project && c.FilePath == key.File {
				existing[c.BaseID()] = index.Indexed{ID: id, Hash: c.Hash()}
			}
		}

		diff := index.Diff(existing, group)
		if len(diff.RemovedIDs) > 0 {
			if err := s.store.DeleteByIDs(ctx, s.config.Collection, diff.RemovedIDs); err != nil {
				return nil, apperrors.Wrap(apperrors.ErrCodeVectorStore, err)
			}
			for _, id := range diff.RemovedIDs {
				delete(s.chunks, id)
			}
		}
		if err := s.addLocked(ctx, append(diff.Added, diff.Updated...)); err != nil {
			return nil, err
		}

		counts := diff.Counts()
		total.Added += counts.Added
		total.Updated += counts.Updated
		total.Unchanged += counts.Unchanged
	}
	return total, nil
}

// RemoveByFile issues a metadata-filtered delete for the file's chunks.
func (s *Index) RemoveByFile(ctx context.Context, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	if err := s.store.DeleteByFilter(ctx, s.config.Collection, Filter{File: relPath}); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeVectorStore, err)
	}
	for id, c := range s.chunks {
		if c.FilePath == relPath {
			delete(s.chunks, id)
		}
	}
	s.lastUpdated = time.Now()
	return nil
}

// RemoveByNovel issues a metadata-filtered delete for the namespace.
func (s *Index) RemoveByNovel(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	if err := s.store.DeleteByFilter(ctx, s.config.Collection, Filter{Project: projectID}); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeVectorStore, err)
	}
	for id, c := range s.chunks {
		if c.ProjectID == projectID {
			delete(s.chunks, id)
		}
	}
	s.lastUpdated = time.Now()
	return nil
}

// Search embeds the query and performs thresholded nearest-neighbor
// retrieval within the project namespace.
func (s *Index) Search(ctx context.Context, query string, k int, projectID string) ([]*index.SearchResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInit(ctx); err != nil {
		return nil, err
	}
	if strings.TrimSpace(query) == "" || k <= 0 {
		return []*index.SearchResult{}, nil
	}

	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeEmbeddingFailed, err).WithDetail("backend", s.Name())
	}

	scored, err := s.store.Query(ctx, s.config.Collection, vectors[0], k, Filter{Project: projectID}, s.config.ScoreThreshold)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeVectorStore, err).WithDetail("backend", s.Name())
	}

	results := make([]*index.SearchResult, 0, len(scored))
	for _, hit := range scored {
		if hit.Score < s.config.ScoreThreshold {
			continue
		}
		results = append(results, s.toResult(hit, query))
		if len(results) == k {
			break
		}
	}
	return results, nil
}

// toResult projects a scored point into the shared result shape, preferring
// the locally-held chunk and falling back to payload metadata.
func (s *Index) toResult(hit Scored, query string) *index.SearchResult {
	result := &index.SearchResult{
		ID:    hit.ID,
		Score: index.ClampScore(float64(hit.Score)),
	}
	if c, ok := s.chunks[hit.ID]; ok {
		result.Snippet = index.Snippet(c.Content, query, s.config.SnippetLength)
		result.Payload = index.Payload{File: c.FilePath, Start: c.StartLine, End: c.EndLine, Tags: c.Tags}
		return result
	}

	content, _ := hit.Payload["content"].(string)
	result.Snippet = index.Snippet(content, query, s.config.SnippetLength)
	file, _ := hit.Payload["file"].(string)
	result.Payload = index.Payload{
		File:  file,
		Start: payloadInt(hit.Payload["start"]),
		End:   payloadInt(hit.Payload["end"]),
		Tags:  payloadTags(hit.Payload["tags"]),
	}
	return result
}

// Clear removes all points and local state.
func (s *Index) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ensureInit(ctx); err != nil {
		return err
	}

	if err := s.store.DeleteByFilter(ctx, s.config.Collection, Filter{}); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeVectorStore, err)
	}
	s.chunks = make(map[string]*chunk.Chunk)
	s.lastUpdated = time.Now()
	return nil
}

// Stats returns best-effort statistics from the local chunk map.
func (s *Index) Stats(ctx context.Context) (*index.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.ErrNotInitialized
	}

	var bytes int64
	for _, c := range s.chunks {
		bytes += int64(len(c.Content)) + int64(s.config.Dimensions*4)
	}
	return &index.Stats{
		Chunks:      len(s.chunks),
		MemoryBytes: bytes,
		LastUpdated: s.lastUpdated,
	}, nil
}

// Close marks the backend unusable. The external store is shared and is
// not torn down here.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func tagsToAny(tags []string) []any {
	out := make([]any, len(tags))
	for i, t := range tags {
		out[i] = t
	}
	return out
}

func payloadInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return 0
	}
}

func payloadTags(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	tags := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			tags = append(tags, s)
		}
	}
	return tags
}
