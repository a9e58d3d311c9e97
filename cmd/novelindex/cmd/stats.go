package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/yomogi/novelindex/internal/chunk"
	"github.com/yomogi/novelindex/internal/config"
	"github.com/yomogi/novelindex/internal/indexer"
)

func newStatsCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "stats <dir>",
		Short: "Show per-backend index statistics for a manuscript root",
		Long: `Stats indexes the manuscript root and reports chunk counts and
estimated memory usage per backend.

Examples:
  novelindex stats ./manuscripts
  novelindex stats ./manuscripts --format json`,
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
			if _, err := ix.IndexRoot(cmd.Context(), root); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			type backendStats struct {
				Backend     string `json:"backend"`
				Chunks      int    `json:"chunks"`
				MemoryBytes int64  `json:"memory_bytes"`
				LastUpdated string `json:"last_updated,omitempty"`
			}
			var all []backendStats
			for _, b := range backends {
				stats, err := b.Stats(cmd.Context())
				if err != nil {
					logger.Warn("stats unavailable", "backend", b.Name(), "error", err.Error())
					continue
				}
				entry := backendStats{
					Backend:     b.Name(),
					Chunks:      stats.Chunks,
					MemoryBytes: stats.MemoryBytes,
				}
				if !stats.LastUpdated.IsZero() {
					entry.LastUpdated = stats.LastUpdated.Format("2006-01-02 15:04:05")
				}
				all = append(all, entry)
			}

			if format == "json" {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				return enc.Encode(all)
			}
			for _, s := range all {
				fmt.Fprintf(out, "%-8s  %6d chunks  %8d bytes", s.Backend, s.Chunks, s.MemoryBytes)
				if s.LastUpdated != "" {
					fmt.Fprintf(out, "  updated %s", s.LastUpdated)
				}
				fmt.Fprintln(out)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&format, "format", "f", "text", "Output format: text or json")
	return cmd
}
