// Package watcher observes a project root for manuscript changes and drives
// incremental re-indexing through the retrieval backends. Filesystem events
// are debounced per path, resolved to a project namespace, and dispatched
// sequentially so updates to the same file never interleave.
package watcher

import (
	"path/filepath"
	"strings"
	"time"
)

// EventType classifies a filesystem event after coalescing.
type EventType int

const (
	// EventAdd indicates a new file appeared.
	EventAdd EventType = iota
	// EventChange indicates an existing file was modified.
	EventChange
	// EventUnlink indicates a file was removed.
	EventUnlink
)

// String returns a human-readable representation of the event type.
func (t EventType) String() string {
	switch t {
	case EventAdd:
		return "add"
	case EventChange:
		return "change"
	case EventUnlink:
		return "unlink"
	default:
		return "unknown"
	}
}

// FileEvent is a debounced filesystem event for a single path.
type FileEvent struct {
	// Path is relative to the watch root, slash-separated.
	Path string

	// Type is the final event type observed within the debounce window.
	Type EventType

	// Timestamp is when the latest underlying event was detected.
	Timestamp time.Time
}

// Options configures the watch coordinator.
type Options struct {
	// DebounceWindow is how long a path must stay quiet before its
	// coalesced event is emitted. Default: 500ms.
	DebounceWindow time.Duration

	// Extensions is the set of recognized file extensions, with leading
	// dots. Default: .md and .txt.
	Extensions []string

	// IgnorePatterns are glob patterns matched against relative paths
	// and base names.
	IgnorePatterns []string

	// EventBufferSize is the size of the debounced event channel buffer.
	// Default: 256.
	EventBufferSize int
}

// DefaultOptions returns the default watch options.
func DefaultOptions() Options {
	return Options{
		DebounceWindow:  500 * time.Millisecond,
		Extensions:      []string{".md", ".txt"},
		EventBufferSize: 256,
	}
}

// WithDefaults returns options with defaults applied for zero values.
func (o Options) WithDefaults() Options {
	defaults := DefaultOptions()
	if o.DebounceWindow == 0 {
		o.DebounceWindow = defaults.DebounceWindow
	}
	if len(o.Extensions) == 0 {
		o.Extensions = defaults.Extensions
	}
	if o.EventBufferSize == 0 {
		o.EventBufferSize = defaults.EventBufferSize
	}
	return o
}

// recognized reports whether relPath has a watched extension.
func (o Options) recognized(relPath string) bool {
	ext := strings.ToLower(filepath.Ext(relPath))
	for _, allowed := range o.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

// ignored reports whether relPath matches an ignore pattern.
func (o Options) ignored(relPath string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range o.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}

// hiddenPath reports whether any segment of relPath starts with a dot.
func hiddenPath(relPath string) bool {
	for _, seg := range strings.Split(filepath.ToSlash(relPath), "/") {
		if strings.HasPrefix(seg, ".") {
			return true
		}
	}
	return false
}

// ProjectID resolves the project namespace from a root-relative path: the
// first path segment, which must be a non-hidden directory name. Paths
// directly under the root or under hidden segments yield "".
func ProjectID(relPath string) string {
	rel := filepath.ToSlash(relPath)
	idx := strings.Index(rel, "/")
	if idx <= 0 {
		return ""
	}
	first := rel[:idx]
	if strings.HasPrefix(first, ".") {
		return ""
	}
	return first
}
