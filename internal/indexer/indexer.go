// Package indexer performs bulk indexing of a manuscript root: every
// project directory is walked, recognized files are chunked, and the
// resulting chunks are diffed into the retrieval backends.
package indexer

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/yomogi/novelindex/internal/chunk"
	apperrors "github.com/yomogi/novelindex/internal/errors"
	"github.com/yomogi/novelindex/internal/index"
)

// DefaultConcurrency bounds how many files are indexed at once. Each file is
// handled by exactly one worker, so per-file ordering is preserved.
const DefaultConcurrency = 4

// Options configures a bulk indexing run.
type Options struct {
	// Extensions is the set of recognized file extensions, with leading
	// dots. Default: .md and .txt.
	Extensions []string

	// IgnorePatterns are glob patterns matched against relative paths
	// and base names.
	IgnorePatterns []string

	// Concurrency bounds parallel file indexing. Default: 4.
	Concurrency int
}

// Result summarizes a bulk indexing run.
type Result struct {
	Files     int
	Failed    int
	Added     int
	Updated   int
	Unchanged int
}

// Indexer walks project directories and feeds their files to the backends.
type Indexer struct {
	splitter *chunk.Splitter
	backends []index.Backend
	opts     Options
	logger   *slog.Logger
}

// New creates a bulk indexer over the given backends.
func New(splitter *chunk.Splitter, backends []index.Backend, opts Options, logger *slog.Logger) *Indexer {
	if len(opts.Extensions) == 0 {
		opts.Extensions = []string{".md", ".txt"}
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Indexer{
		splitter: splitter,
		backends: backends,
		opts:     opts,
		logger:   logger,
	}
}

// IndexRoot indexes every project directory under root. Per-file failures
// are logged and counted, never abort the run. Only a failure to read the
// root itself is returned as an error.
func (ix *Indexer) IndexRoot(ctx context.Context, root string) (*Result, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeConfigInvalid, err).WithDetail("root", root)
	}

	files, err := ix.collectFiles(absRoot)
	if err != nil {
		return nil, err
	}

	var (
		mu    sync.Mutex
		total Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(ix.opts.Concurrency)

	for _, relPath := range files {
		g.Go(func() error {
			result, err := ix.indexFile(gctx, absRoot, relPath)

			mu.Lock()
			defer mu.Unlock()
			total.Files++
			if err != nil {
				total.Failed++
				ix.logger.Warn("file skipped",
					slog.String("path", relPath),
					slog.String("error", err.Error()),
				)
				return nil
			}
			total.Added += result.Added
			total.Updated += result.Updated
			total.Unchanged += result.Unchanged
			return nil
		})
	}
	_ = g.Wait()

	ix.logger.Info("bulk indexing complete",
		slog.String("root", absRoot),
		slog.Int("files", total.Files),
		slog.Int("failed", total.Failed),
		slog.Int("added", total.Added),
		slog.Int("updated", total.Updated),
		slog.Int("unchanged", total.Unchanged),
	)
	return &total, nil
}

// collectFiles walks root and returns root-relative paths of every
// recognized file inside a non-hidden project directory.
func (ix *Indexer) collectFiles(absRoot string) ([]string, error) {
	entries, err := os.ReadDir(absRoot)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeFileNotFound, err).WithDetail("root", absRoot)
	}

	var files []string
	for _, entry := range entries {
		if !entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}
		project := entry.Name()
		projectRoot := filepath.Join(absRoot, project)

		walkErr := filepath.WalkDir(projectRoot, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				ix.logger.Warn("skipping unreadable path",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				if d.IsDir() {
					return filepath.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}

			rel, relErr := filepath.Rel(absRoot, path)
			if relErr != nil {
				return nil
			}
			rel = filepath.ToSlash(rel)
			if !ix.recognized(rel) || ix.ignored(rel) {
				return nil
			}
			files = append(files, rel)
			return nil
		})
		if walkErr != nil {
			ix.logger.Warn("project walk failed",
				slog.String("project", project),
				slog.String("error", walkErr.Error()),
			)
		}
	}
	return files, nil
}

// indexFile reads, chunks, and updates a single file in every backend.
func (ix *Indexer) indexFile(ctx context.Context, absRoot, relPath string) (*index.UpdateResult, error) {
	data, err := os.ReadFile(filepath.Join(absRoot, filepath.FromSlash(relPath)))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrCodeFileRead, err).WithDetail("path", relPath)
	}

	projectID := strings.SplitN(relPath, "/", 2)[0]
	chunks := ix.splitter.Split(string(data), relPath, projectID)

	// Backends see the same chunks, so the first one's counts stand for
	// the file.
	total := &index.UpdateResult{}
	for i, backend := range ix.backends {
		result, err := backend.UpdateChunks(ctx, chunks)
		if err != nil {
			return nil, apperrors.Wrap(apperrors.ErrCodeIndexWrite, err).WithDetail("backend", backend.Name())
		}
		if i == 0 {
			total = result
		}
	}
	return total, nil
}

func (ix *Indexer) recognized(relPath string) bool {
	ext := strings.ToLower(filepath.Ext(relPath))
	for _, allowed := range ix.opts.Extensions {
		if ext == strings.ToLower(allowed) {
			return true
		}
	}
	return false
}

func (ix *Indexer) ignored(relPath string) bool {
	base := filepath.Base(relPath)
	for _, pattern := range ix.opts.IgnorePatterns {
		if ok, _ := filepath.Match(pattern, relPath); ok {
			return true
		}
		if ok, _ := filepath.Match(pattern, base); ok {
			return true
		}
	}
	return false
}
