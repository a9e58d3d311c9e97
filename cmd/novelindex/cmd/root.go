// Package cmd provides the CLI commands for novelindex.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "dev"

// NewRootCmd creates the root command for the novelindex CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "novelindex",
		Short: "Index and search novel manuscripts",
		Long: `novelindex chunks novel manuscripts by heading structure and serves
keyword and semantic search over them, one namespace per project directory.

The manuscript root contains one directory per novel project:

  manuscripts/
    mynovel/
      chapters/ch1.md
      settings/characters.md`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}
	cmd.SetVersionTemplate("novelindex version {{.Version}}\n")

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newStatsCmd())

	return cmd
}

// Execute runs the root command with signal-aware context cancellation.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}
