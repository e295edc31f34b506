// Package cmd defines the CLI commands of the carsnbids executable.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var cfgFile string

// newRootCmd creates the root command and attaches subcommands.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "carsnbids",
		Short: "Daily loader for Cars & Bids past auctions.",
		Long: `carsnbids scrapes recently closed auctions from carsandbids.com with a
headless browser and stores them as one Parquet object per day.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); environment variables use the CARSNBIDS_ prefix")

	cmd.AddCommand(newRunCmd())
	cmd.AddCommand(newInspectCmd())
	return cmd
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}
