package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/yomogi/novelindex/internal/chunk"
	apperrors "github.com/yomogi/novelindex/internal/errors"
	"github.com/yomogi/novelindex/internal/index"
)

// State tracks the coordinator lifecycle.
type State int

const (
	StateStopped State = iota
	StateStarting
	StateWatching
	StateStopping
)

// String returns a human-readable representation of the state.
func (s State) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StateStarting:
		return "starting"
	case StateWatching:
		return "watching"
	case StateStopping:
		return "stopping"
	default:
		return "unknown"
	}
}

// Coordinator watches a project root and feeds debounced file events to the
// retrieval backends. Events are dispatched from a single loop, so updates
// to the same file are applied in emission order.
type Coordinator struct {
	root     string
	opts     Options
	splitter *chunk.Splitter
	backends []index.Backend
	logger   *slog.Logger

	mu        sync.Mutex
	state     State
	fsWatcher *fsnotify.Watcher
	debouncer *Debouncer
	stopCh    chan struct{}
	wg        sync.WaitGroup
}

// NewCoordinator creates a coordinator over the given backends. The splitter
// re-chunks changed files before they reach the backends.
func NewCoordinator(root string, splitter *chunk.Splitter, backends []index.Backend, opts Options, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		root:     root,
		opts:     opts.WithDefaults(),
		splitter: splitter,
		backends: backends,
		logger:   logger,
		state:    StateStopped,
	}
}

// State returns the current lifecycle state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Start begins watching. Starting while already watching is a no-op with a
// warning. The coordinator runs until Stop is called or ctx is cancelled.
func (c *Coordinator) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateStopped {
		state := c.state
		c.mu.Unlock()
		c.logger.Warn("watch already active, ignoring start",
			slog.String("state", state.String()),
		)
		return nil
	}
	c.state = StateStarting
	c.mu.Unlock()

	absRoot, err := filepath.Abs(c.root)
	if err != nil {
		c.setState(StateStopped)
		return apperrors.Wrap(apperrors.ErrCodeConfigInvalid, err).WithDetail("root", c.root)
	}
	c.root = absRoot

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		c.setState(StateStopped)
		return apperrors.Wrap(apperrors.ErrCodeInternal, err)
	}

	if err := c.addRecursive(fsw, absRoot); err != nil {
		_ = fsw.Close()
		c.setState(StateStopped)
		return apperrors.Wrap(apperrors.ErrCodeFileNotFound, err).WithDetail("root", absRoot)
	}

	c.mu.Lock()
	c.fsWatcher = fsw
	c.debouncer = NewDebouncer(c.opts.DebounceWindow, c.opts.EventBufferSize)
	c.stopCh = make(chan struct{})
	c.state = StateWatching
	c.mu.Unlock()

	c.wg.Add(2)
	go c.watchLoop(ctx)
	go c.dispatchLoop(ctx)

	c.logger.Info("watching for changes",
		slog.String("root", absRoot),
		slog.Duration("debounce", c.opts.DebounceWindow),
	)
	return nil
}

// Stop ceases event emission and waits for dispatched updates to finish.
// Safe to call when not watching.
func (c *Coordinator) Stop() error {
	c.mu.Lock()
	if c.state != StateWatching {
		c.mu.Unlock()
		return nil
	}
	c.state = StateStopping
	fsw := c.fsWatcher
	debouncer := c.debouncer
	close(c.stopCh)
	c.mu.Unlock()

	if fsw != nil {
		_ = fsw.Close()
	}
	debouncer.Stop()
	c.wg.Wait()

	c.setState(StateStopped)
	c.logger.Info("watch stopped")
	return nil
}

func (c *Coordinator) setState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

// addRecursive registers root and every non-hidden subdirectory.
func (c *Coordinator) addRecursive(fsw *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		rel, _ := filepath.Rel(root, path)
		if rel != "." && hiddenPath(rel) {
			return filepath.SkipDir
		}
		return fsw.Add(path)
	})
}

// watchLoop translates raw fsnotify events into debounced file events.
func (c *Coordinator) watchLoop(ctx context.Context) {
	defer c.wg.Done()

	for {
		select {
		case <-ctx.Done():
			return
		case <-c.stopCh:
			return
		case event, ok := <-c.fsWatcher.Events:
			if !ok {
				return
			}
			c.handleRawEvent(event)
		case err, ok := <-c.fsWatcher.Errors:
			if !ok {
				return
			}
			c.logger.Warn("watch error", slog.String("error", err.Error()))
		}
	}
}

// handleRawEvent filters and converts a single fsnotify event.
func (c *Coordinator) handleRawEvent(event fsnotify.Event) {
	rel, err := filepath.Rel(c.root, event.Name)
	if err != nil {
		return
	}
	rel = filepath.ToSlash(rel)
	if rel == "." || hiddenPath(rel) || c.opts.ignored(rel) {
		return
	}

	if info, statErr := os.Stat(event.Name); statErr == nil && info.IsDir() {
		// New directories join the watch set; they carry no content.
		if event.Op&fsnotify.Create != 0 {
			_ = c.fsWatcher.Add(event.Name)
		}
		return
	}

	if !c.opts.recognized(rel) {
		return
	}

	var eventType EventType
	switch {
	case event.Op&fsnotify.Create != 0:
		eventType = EventAdd
	case event.Op&fsnotify.Write != 0:
		eventType = EventChange
	case event.Op&(fsnotify.Remove|fsnotify.Rename) != 0:
		eventType = EventUnlink
	default:
		return
	}

	c.debouncer.Add(FileEvent{
		Path:      rel,
		Type:      eventType,
		Timestamp: time.Now(),
	})
}

// dispatchLoop processes debounced events one at a time. Per-file errors are
// logged and the loop continues.
func (c *Coordinator) dispatchLoop(ctx context.Context) {
	defer c.wg.Done()

	for event := range c.debouncer.Output() {
		if err := c.Process(ctx, event); err != nil {
			c.logger.Error("event processing failed",
				slog.String("path", event.Path),
				slog.String("type", event.Type.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// Process applies one debounced event to every backend. Exported so bulk
// indexing and tests share the watch path's update logic.
func (c *Coordinator) Process(ctx context.Context, event FileEvent) error {
	projectID := ProjectID(event.Path)
	if projectID == "" {
		c.logger.Debug("path outside a project namespace, ignoring",
			slog.String("path", event.Path),
		)
		return nil
	}

	if event.Type == EventUnlink {
		return c.removeFile(ctx, event.Path)
	}
	return c.reindexFile(ctx, event.Path, projectID)
}

// reindexFile reads, re-chunks, and diffs a file into every backend.
func (c *Coordinator) reindexFile(ctx context.Context, relPath, projectID string) error {
	data, err := os.ReadFile(filepath.Join(c.root, filepath.FromSlash(relPath)))
	if err != nil {
		if os.IsNotExist(err) {
			// Deleted between debounce and dispatch.
			return c.removeFile(ctx, relPath)
		}
		return apperrors.Wrap(apperrors.ErrCodeFileRead, err).WithDetail("path", relPath)
	}

	chunks := c.splitter.Split(string(data), relPath, projectID)
	for _, backend := range c.backends {
		result, err := backend.UpdateChunks(ctx, chunks)
		if err != nil {
			c.logger.Error("backend update failed",
				slog.String("backend", backend.Name()),
				slog.String("path", relPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		c.logger.Info("file re-indexed",
			slog.String("backend", backend.Name()),
			slog.String("path", relPath),
			slog.String("project", projectID),
			slog.Int("added", result.Added),
			slog.Int("updated", result.Updated),
			slog.Int("unchanged", result.Unchanged),
		)
	}
	return nil
}

// removeFile drops a file's chunks from every backend.
func (c *Coordinator) removeFile(ctx context.Context, relPath string) error {
	for _, backend := range c.backends {
		if err := backend.RemoveByFile(ctx, relPath); err != nil {
			c.logger.Error("backend removal failed",
				slog.String("backend", backend.Name()),
				slog.String("path", relPath),
				slog.String("error", err.Error()),
			)
			continue
		}
		c.logger.Info("file removed from index",
			slog.String("backend", backend.Name()),
			slog.String("path", relPath),
		)
	}
	return nil
}
