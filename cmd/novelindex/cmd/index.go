package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yomogi/novelindex/internal/chunk"
	"github.com/yomogi/novelindex/internal/config"
	"github.com/yomogi/novelindex/internal/indexer"
)

func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index <dir>",
		Short: "Index every novel project under a manuscript root",
		Long: `Index walks each project directory under <dir>, chunks recognized
manuscript files by heading structure, and loads them into the configured
retrieval backends.

Examples:
  novelindex index ./manuscripts
  NOVELINDEX_VECTOR_URL=http://localhost:6333 novelindex index ./manuscripts`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			root := args[0]

			cfg, err := config.Load(root)
			if err != nil {
				return err
			}
			logger, logCleanup, err := setupLogging(cfg)
			if err != nil {
				return err
			}
			defer logCleanup()

			backends, cleanup, err := buildBackends(cfg, logger)
			if err != nil {
				return err
			}
			defer cleanup()

			splitter := chunk.NewSplitter(chunk.Options{
				MaxTokens:    cfg.Chunk.MaxTokens,
				OverlapRatio: cfg.Chunk.Overlap,
			})
			ix := indexer.New(splitter, backends, indexer.Options{
				Extensions:     cfg.Watch.Extensions,
				IgnorePatterns: cfg.Watch.IgnorePatterns,
			}, logger)

			result, err := ix.IndexRoot(cmd.Context(), root)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(),
				"Indexed %d files (%d failed): %d added, %d updated, %d unchanged\n",
				result.Files, result.Failed, result.Added, result.Updated, result.Unchanged)
			return nil
		},
	}
}
