// Package vector implements the semantic retrieval backend: chunks are
// embedded in batches and stored in an external vector store keyed by
// chunk id, with project/file metadata for filtered deletes and
// namespace-scoped queries.
package vector

import (
	"context"
)

// Point is one vector with its chunk id and filterable payload.
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// Scored is one nearest-neighbor result.
type Scored struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// Filter selects points by metadata. Zero-value fields are not applied;
// a zero Filter matches every point.
type Filter struct {
	Project string
	File    string
}

// Store is the vector store capability. Implementations are stateless from
// the caller's perspective and safe for concurrent use.
type Store interface {
	// EnsureCollection idempotently creates the collection or validates
	// that an existing one has the given dimension.
	EnsureCollection(ctx context.Context, collection string, dims int) error

	// Upsert inserts or replaces points by id.
	Upsert(ctx context.Context, collection string, points []Point) error

	// DeleteByIDs removes points by chunk id.
	DeleteByIDs(ctx context.Context, collection string, ids []string) error

	// DeleteByFilter removes every point matching the filter. Filtered
	// deletes stay efficient at scale; callers never enumerate ids for
	// file- or project-wide removal.
	DeleteByFilter(ctx context.Context, collection string, f Filter) error

	// Query returns up to k nearest neighbors of vec matching the filter,
	// dropping results scoring below threshold.
	Query(ctx context.Context, collection string, vec []float32, k int, f Filter, threshold float32) ([]Scored, error)
}
