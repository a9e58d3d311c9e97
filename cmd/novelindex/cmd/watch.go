package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/yomogi/novelindex/internal/chunk"
	"github.com/yomogi/novelindex/internal/config"
	"github.com/yomogi/novelindex/internal/indexer"
	"github.com/yomogi/novelindex/internal/watcher"
)

func newWatchCmd() *cobra.Command {
	var skipInitial bool

	cmd := &cobra.Command{
		Use:   "watch <dir>",
		Short: "Watch a manuscript root and re-index on change",
		Long: `Watch performs an initial bulk index of <dir>, then observes the
directory tree and incrementally re-indexes files as they are added,
modified, or removed. Runs until interrupted.

Examples:
  novelindex watch ./manuscripts
  novelindex watch ./manuscripts --skip-initial`,
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

			if !skipInitial {
				ix := indexer.New(splitter, backends, indexer.Options{
					Extensions:     cfg.Watch.Extensions,
					IgnorePatterns: cfg.Watch.IgnorePatterns,
				}, logger)
				result, err := ix.IndexRoot(cmd.Context(), root)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Initial index: %d files (%d failed)\n",
					result.Files, result.Failed)
			}

			coordinator := watcher.NewCoordinator(root, splitter, backends, watcher.Options{
				DebounceWindow: time.Duration(cfg.Watch.DebounceMS) * time.Millisecond,
				Extensions:     cfg.Watch.Extensions,
				IgnorePatterns: cfg.Watch.IgnorePatterns,
			}, logger)

			if err := coordinator.Start(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Watching %s (Ctrl-C to stop)\n", root)

			<-cmd.Context().Done()
			return coordinator.Stop()
		},
	}

	cmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "Skip the initial bulk index")
	return cmd
}
