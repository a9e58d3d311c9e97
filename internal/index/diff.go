package index

import (
	"github.com/yomogi/novelindex/internal/chunk"
)

// Indexed is the identity of an already-indexed chunk, as tracked by a
// backend: the full id plus its hash segment.
type Indexed struct {
	ID   string
	Hash string
}

// DiffResult classifies an incoming chunk set against the indexed state.
type DiffResult struct {
	// Added are chunks whose baseId was not indexed before.
	Added []*chunk.Chunk
	// Updated are chunks sharing a baseId with an indexed chunk but
	// carrying a different hash.
	Updated []*chunk.Chunk
	// RemovedIDs are the ids to delete: superseded predecessors of Updated
	// chunks plus implicitly-removed chunks whose baseId left the set.
	RemovedIDs []string
	// Unchanged counts incoming chunks identical to their indexed version.
	Unchanged int
}

// Diff classifies incoming chunks against existing indexed identities keyed
// by baseId. Existing entries whose baseId is absent from the incoming set
// are scheduled for removal so the file's chunk set stays exact.
func Diff(existing map[string]Indexed, incoming []*chunk.Chunk) *DiffResult {
	res := &DiffResult{}
	seen := make(map[string]struct{}, len(incoming))

	for _, c := range incoming {
		baseID := c.BaseID()
		seen[baseID] = struct{}{}
		prev, ok := existing[baseID]
		switch {
		case !ok:
			res.Added = append(res.Added, c)
		case prev.Hash != c.Hash():
			res.Updated = append(res.Updated, c)
			res.RemovedIDs = append(res.RemovedIDs, prev.ID)
		default:
			res.Unchanged++
		}
	}

	for baseID, prev := range existing {
		if _, ok := seen[baseID]; !ok {
			res.RemovedIDs = append(res.RemovedIDs, prev.ID)
		}
	}

	return res
}

// Counts converts a diff into the counts reported by UpdateChunks.
func (r *DiffResult) Counts() *UpdateResult {
	return &UpdateResult{
		Added:     len(r.Added),
		Updated:   len(r.Updated),
		Unchanged: r.Unchanged,
	}
}

// GroupByFile buckets chunks by (projectId, relative file path) so that
// implicit removal scopes to exactly the files present in the incoming set.
func GroupByFile(chunks []*chunk.Chunk) map[FileKey][]*chunk.Chunk {
	groups := make(map[FileKey][]*chunk.Chunk)
	for _, c := range chunks {
		key := FileKey{Project: c.ProjectID, File: c.FilePath}
		groups[key] = append(groups[key], c)
	}
	return groups
}

// FileKey identifies a file within a project namespace.
type FileKey struct {
	Project string
	File    string
}
