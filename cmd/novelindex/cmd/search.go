package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/yomogi/novelindex/internal/chunk"
	"github.com/yomogi/novelindex/internal/config"
	apperrors "github.com/yomogi/novelindex/internal/errors"
	"github.com/yomogi/novelindex/internal/index"
	"github.com/yomogi/novelindex/internal/indexer"
)

// searchOptions holds CLI flags for search.
type searchOptions struct {
	root    string
	project string
	limit   int
	backend string // "keyword" or "vector"
	format  string // "text" or "json"
}

func newSearchCmd() *cobra.Command {
	var opts searchOptions

	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search a novel project",
		Long: `Search indexes the manuscript root and runs the query against one
backend, scoped to a single project namespace.

Examples:
  novelindex search "魔法使い" --root ./manuscripts --project mynovel
  novelindex search "the old lighthouse" -r ./manuscripts -p mynovel -n 5
  novelindex search "betrayal scene" -p mynovel --backend vector --format json`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			query := strings.Join(args, " ")
			return runSearch(cmd, query, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.root, "root", "r", ".", "Manuscript root directory")
	cmd.Flags().StringVarP(&opts.project, "project", "p", "", "Project namespace to search (required)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "Maximum number of results (default from config)")
	cmd.Flags().StringVarP(&opts.backend, "backend", "b", "keyword", "Backend: keyword or vector")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "Output format: text or json")
	_ = cmd.MarkFlagRequired("project")

	return cmd
}

func runSearch(cmd *cobra.Command, query string, opts searchOptions) error {
	cfg, err := config.Load(opts.root)
	if err != nil {
		return err
	}
	logger, logCleanup, err := setupLogging(cfg)
	if err != nil {
		return err
	}
	defer logCleanup()

	k := opts.limit
	if k <= 0 {
		k = cfg.Search.DefaultK
	}
	if k > cfg.Search.MaxK {
		k = cfg.Search.MaxK
	}

	backends, cleanup, err := buildBackends(cfg, logger)
	if err != nil {
		return err
	}
	defer cleanup()

	var target index.Backend
	for _, b := range backends {
		if b.Name() == opts.backend {
			target = b
		}
	}
	if target == nil {
		return apperrors.Newf(apperrors.ErrCodeBackendUnwired,
			"backend %q is not configured (set vector.url to enable semantic search)", opts.backend)
	}

	splitter := chunk.NewSplitter(chunk.Options{
		MaxTokens:    cfg.Chunk.MaxTokens,
		OverlapRatio: cfg.Chunk.Overlap,
	})
	ix := indexer.New(splitter, backends, indexer.Options{
		Extensions:     cfg.Watch.Extensions,
		IgnorePatterns: cfg.Watch.IgnorePatterns,
	}, logger)
	if _, err := ix.IndexRoot(cmd.Context(), opts.root); err != nil {
		return err
	}

	results, err := target.Search(cmd.Context(), query, k, opts.project)
	if err != nil {
		return err
	}
	return printResults(cmd, results, opts.format)
}

func printResults(cmd *cobra.Command, results []*index.SearchResult, format string) error {
	out := cmd.OutOrStdout()

	if format == "json" {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(results)
	}

	if len(results) == 0 {
		fmt.Fprintln(out, "No results.")
		return nil
	}
	for i, r := range results {
		fmt.Fprintf(out, "%d. %s (score %.3f)\n", i+1, r.ID, r.Score)
		fmt.Fprintf(out, "   %s:%d-%d\n", r.Payload.File, r.Payload.Start, r.Payload.End)
		if len(r.Payload.Tags) > 0 {
			fmt.Fprintf(out, "   tags: %s\n", strings.Join(r.Payload.Tags, ", "))
		}
		if r.Snippet != "" {
			fmt.Fprintf(out, "   %s\n", r.Snippet)
		}
	}
	return nil
}
