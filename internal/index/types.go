// Package index defines the retrieval backend contract shared by the
// keyword and vector variants, plus the diff engine that keeps backend
// writes incremental.
package index

import (
	"context"
	"time"

	"github.com/yomogi/novelindex/internal/chunk"
)

// Payload is the location metadata attached to a search result.
type Payload struct {
	File  string   `json:"file"`
	Start int      `json:"start"`
	End   int      `json:"end"`
	Tags  []string `json:"tags,omitempty"`
}

// SearchResult is the query-time projection of a chunk. It is constructed
// per query and never persisted.
type SearchResult struct {
	// ID is the full chunk id (baseId@hash).
	ID string
	// Score is normalized into [0, 1].
	Score float64
	// Snippet is a bounded-length excerpt of the chunk content.
	Snippet string
	// Payload carries file path, line range and tags.
	Payload Payload
}

// UpdateResult reports how UpdateChunks classified the incoming set.
// Implicit removals (chunks whose baseId left the file) are applied but
// not counted here.
type UpdateResult struct {
	Added     int
	Updated   int
	Unchanged int
}

// Stats is best-effort backend introspection; values are non-authoritative
// snapshots.
type Stats struct {
	Chunks      int
	MemoryBytes int64
	LastUpdated time.Time
}

// Backend is the uniform retrieval contract implemented by the keyword and
// vector variants. Each instance exclusively owns its index state; all
// operations scoped to a projectId are isolated from other projects.
type Backend interface {
	// Name identifies the backend variant for logging and error context.
	Name() string

	// Add upserts chunks by id. It does not remove superseded ids; callers
	// pair it with removal when a predecessor changes.
	Add(ctx context.Context, chunks []*chunk.Chunk) error

	// Remove deletes chunks by id. Unknown ids are ignored.
	Remove(ctx context.Context, ids []string) error

	// UpdateChunks diffs the incoming chunks against the indexed state of
	// the files they belong to, applying only the necessary writes. Chunks
	// previously indexed for those files whose baseId is absent from the
	// incoming set are removed.
	UpdateChunks(ctx context.Context, chunks []*chunk.Chunk) (*UpdateResult, error)

	// RemoveByFile removes every chunk whose relative file path matches.
	RemoveByFile(ctx context.Context, relPath string) error

	// RemoveByNovel removes every chunk in the given project namespace.
	RemoveByNovel(ctx context.Context, projectID string) error

	// Search returns up to k results for the query, restricted to the
	// project namespace, ordered by descending score. An empty query
	// yields an empty result set.
	Search(ctx context.Context, query string, k int, projectID string) ([]*SearchResult, error)

	// Clear removes all indexed state.
	Clear(ctx context.Context) error

	// Stats returns best-effort index statistics.
	Stats(ctx context.Context) (*Stats, error)

	// Close releases backend resources. Operations after Close fail with
	// an index-not-initialized error.
	Close() error
}

// ClampScore bounds a raw relevance score into [0, 1].
func ClampScore(s float64) float64 {
	if s < 0 {
		return 0
	}
	if s > 1 {
		return 1
	}
	return s
}
