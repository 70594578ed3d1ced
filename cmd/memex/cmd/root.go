// Package cmd provides the CLI commands for memex.
package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rshah/memex/internal/logging"
)

var loggingCleanup func()

// NewRootCmd builds the memex root command and its subcommands.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "memex",
		Short: "Local semantic memory engine over a markdown/text corpus",
		Long: `memex indexes a directory of markdown and text files into a local
vector store and answers natural-language queries against it — entirely
on-device, no network calls beyond a local embedding service.`,
		SilenceUsage: true,
	}

	cmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		logCfg := logging.DefaultConfig()
		logCfg.WriteToStderr = false
		logger, cleanup, err := logging.Setup(logCfg)
		if err != nil {
			// Logging is not critical to the CLI's function.
			return nil
		}
		loggingCleanup = cleanup
		slog.SetDefault(logger)
		return nil
	}
	cmd.PersistentPostRunE = func(_ *cobra.Command, _ []string) error {
		if loggingCleanup != nil {
			loggingCleanup()
			loggingCleanup = nil
		}
		return nil
	}

	cmd.AddCommand(newIndexCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// Execute runs the root command with a signal-aware context so an in-flight
// indexing pass can be cancelled by Ctrl+C.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return NewRootCmd().ExecuteContext(ctx)
}
