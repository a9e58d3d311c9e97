// Package keyword implements the lexical retrieval backend on bleve, with
// language-aware tokenization supplied by the morphological analysis
// capability.
package keyword

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"

	"github.com/yomogi/novelindex/internal/analyze"
	"github.com/yomogi/novelindex/internal/chunk"
	apperrors "github.com/yomogi/novelindex/internal/errors"
	"github.com/yomogi/novelindex/internal/index"
)

const (
	// DefaultMinWordLength is the minimum surface length (in runes) for an
	// indexable token.
	DefaultMinWordLength = 2

	// DefaultSnippetLength is the snippet window in bytes.
	DefaultSnippetLength = index.DefaultSnippetLength
)

// Config configures the keyword index.
type Config struct {
	// MinWordLength is the minimum token surface length (default: 2).
	MinWordLength int

	// SnippetLength bounds result snippets (default: DefaultSnippetLength).
	SnippetLength int
}

// Index is the lexical retrieval backend. Each instance exclusively owns
// its bleve index and chunk map.
type Index struct {
	mu       sync.RWMutex
	idx      bleve.Index
	analyzer analyze.Analyzer
	config   Config

	chunks      map[string]*chunk.Chunk // by chunk id
	lastUpdated time.Time
	closed      bool
}

var _ index.Backend = (*Index)(nil)

// New creates a keyword index with an in-memory bleve index. The analyzer
// may be nil; tokenization then always takes the fallback path.
func New(a analyze.Analyzer, cfg Config) (*Index, error) {
	if cfg.MinWordLength <= 0 {
		cfg.MinWordLength = DefaultMinWordLength
	}
	if cfg.SnippetLength <= 0 {
		cfg.SnippetLength = DefaultSnippetLength
	}

	mapping, err := buildIndexMapping(a, cfg.MinWordLength)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, err)
	}
	idx, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, err)
	}

	return &Index{
		idx:      idx,
		analyzer: a,
		config:   cfg,
		chunks:   make(map[string]*chunk.Chunk),
	}, nil
}

// Name identifies the backend variant.
func (s *Index) Name() string { return "keyword" }

// Add upserts chunks by id.
func (s *Index) Add(ctx context.Context, chunks []*chunk.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrNotInitialized
	}
	return s.addLocked(chunks)
}

func (s *Index) addLocked(chunks []*chunk.Chunk) error {
	batch := s.idx.NewBatch()
	for _, c := range chunks {
		doc := bleveDocument{
			Title:   c.Title,
			Content: c.Content,
			Tags:    c.Tags,
			Project: c.ProjectID,
			File:    c.FilePath,
		}
		if err := batch.Index(c.ID(), doc); err != nil {
			return apperrors.Wrap(apperrors.ErrCodeIndexWrite, err).WithDetail("chunk", c.ID())
		}
	}
	if err := s.idx.Batch(batch); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeIndexWrite, err)
	}
	for _, c := range chunks {
		s.chunks[c.ID()] = c
	}
	s.lastUpdated = time.Now()
	return nil
}

func (s *Index) deleteLocked(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	batch := s.idx.NewBatch()
	for _, id := range ids {
		batch.Delete(id)
	}
	if err := s.idx.Batch(batch); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeIndexWrite, err)
	}
	for _, id := range ids {
		delete(s.chunks, id)
	}
	s.lastUpdated = time.Now()
	return nil
}

// Remove deletes chunks by id. Unknown ids are ignored.
func (s *Index) Remove(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrNotInitialized
	}
	return s.deleteLocked(ids)
}

// UpdateChunks diffs incoming chunks file by file against the indexed
// state and applies only the necessary writes. Chunks of the affected
// files whose baseId is absent from the incoming set are removed without
// being counted.
func (s *Index) UpdateChunks(ctx context.Context, chunks []*chunk.Chunk) (*index.UpdateResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, apperrors.ErrNotInitialized
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
		if err := s.deleteLocked(diff.RemovedIDs); err != nil {
			return nil, err
		}
		if err := s.addLocked(append(diff.Added, diff.Updated...)); err != nil {
			return nil, err
		}

		counts := diff.Counts()
		total.Added += counts.Added
		total.Updated += counts.Updated
		total.Unchanged += counts.Unchanged
	}
	return total, nil
}

// RemoveByFile removes every chunk whose relative file path matches,
// across all projects.
func (s *Index) RemoveByFile(ctx context.Context, relPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrNotInitialized
	}

	var ids []string
	for id, c := range s.chunks {
		if c.FilePath == relPath {
			ids = append(ids, id)
		}
	}
	return s.deleteLocked(ids)
}

// RemoveByNovel removes every chunk in the project namespace.
func (s *Index) RemoveByNovel(ctx context.Context, projectID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrNotInitialized
	}

	var ids []string
	for id, c := range s.chunks {
		if c.ProjectID == projectID {
			ids = append(ids, id)
		}
	}
	return s.deleteLocked(ids)
}

// Search returns up to k results for the query within the project
// namespace, ordered by descending normalized score.
func (s *Index) Search(ctx context.Context, query string, k int, projectID string) ([]*index.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, apperrors.ErrNotInitialized
	}
	if strings.TrimSpace(query) == "" {
		return []*index.SearchResult{}, nil
	}
	if k <= 0 {
		return []*index.SearchResult{}, nil
	}

	title := bleve.NewMatchQuery(query)
	title.SetField("title")
	content := bleve.NewMatchQuery(query)
	content.SetField("content")
	tags := bleve.NewMatchQuery(query)
	tags.SetField("tags")
	fields := bleve.NewDisjunctionQuery(title, content, tags)

	project := bleve.NewTermQuery(projectID)
	project.SetField("project")

	req := bleve.NewSearchRequest(bleve.NewConjunctionQuery(fields, project))
	req.Size = k

	res, err := s.idx.SearchInContext(ctx, req)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, err).WithDetail("backend", s.Name())
	}

	results := make([]*index.SearchResult, 0, len(res.Hits))
	for _, hit := range res.Hits {
		c, ok := s.chunks[hit.ID]
		if !ok {
			continue
		}
		results = append(results, &index.SearchResult{
			ID:      hit.ID,
			Score:   index.ClampScore(hit.Score / (hit.Score + 1)),
			Snippet: index.Snippet(c.Content, query, s.config.SnippetLength),
			Payload: index.Payload{
				File:  c.FilePath,
				Start: c.StartLine,
				End:   c.EndLine,
				Tags:  c.Tags,
			},
		})
	}
	return results, nil
}

// Clear removes all indexed state, recreating the bleve index.
func (s *Index) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperrors.ErrNotInitialized
	}

	mapping, err := buildIndexMapping(s.analyzer, s.config.MinWordLength)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, err)
	}
	fresh, err := bleve.NewMemOnly(mapping)
	if err != nil {
		return apperrors.Wrap(apperrors.ErrCodeBackendUnavailable, err)
	}

	_ = s.idx.Close()
	s.idx = fresh
	s.chunks = make(map[string]*chunk.Chunk)
	s.lastUpdated = time.Now()
	return nil
}

// Stats returns best-effort index statistics.
func (s *Index) Stats(ctx context.Context) (*index.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, apperrors.ErrNotInitialized
	}

	var bytes int64
	for _, c := range s.chunks {
		bytes += int64(len(c.Content) + len(c.Title))
	}
	return &index.Stats{
		Chunks:      len(s.chunks),
		MemoryBytes: bytes,
		LastUpdated: s.lastUpdated,
	}, nil
}

// Close releases the bleve index. Subsequent operations fail with an
// index-not-initialized error.
func (s *Index) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.idx.Close()
}
