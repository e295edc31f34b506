package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/carsnbids-loader/internal/app"
	"github.com/JakeFAU/carsnbids-loader/internal/clock/system"
	"github.com/JakeFAU/carsnbids-loader/internal/config"
	"github.com/JakeFAU/carsnbids-loader/internal/logging"
	"github.com/JakeFAU/carsnbids-loader/internal/pipeline"
)

// ErrNotPersisted is returned by the run command when the batch could not be
// stored and run.fail_on_persist_error is set.
var ErrNotPersisted = errors.New("batch was not persisted")

// Runner executes one daily load.
type Runner interface {
	Run(ctx context.Context) (pipeline.Summary, error)
}

// newRunner is the application factory. It is a variable so tests can
// replace it.
var newRunner = func(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...app.Option) (Runner, func(), error) {
	a, err := app.New(ctx, cfg, logger, opts...)
	if err != nil {
		return nil, nil, err
	}
	return a.Runner(), a.Close, nil
}

func newRunCmd() *cobra.Command {
	var today string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Scrape, collect and store one day of auctions",
		Long: `Discovers auctions on the first run.max_pages listing pages, fetches at
most run.max_auctions of them on run.pool_size concurrent browser sessions and
writes the batch to {run.key_prefix}/{yesterday}.parquet.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLoad(cmd, today)
		},
	}
	cmd.Flags().StringVar(&today, "today", "", "treat this date (YYYY-MM-DD) as today; the object is keyed by the day before")
	return cmd
}

func runLoad(cmd *cobra.Command, today string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return err
	}

	var opts []app.Option
	if today != "" {
		day, err := time.Parse(time.DateOnly, today)
		if err != nil {
			return fmt.Errorf("parse --today: %w", err)
		}
		opts = append(opts, app.WithClock(system.Fixed{At: day}))
	}

	runner, closeFn, err := newRunner(cmd.Context(), cfg, logger, opts...)
	if err != nil {
		_ = logger.Sync()
		return fmt.Errorf("initialize application services: %w", err)
	}
	defer closeFn()

	sum, err := runner.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("run: %w", err)
	}
	if !sum.Persist.Written && cfg.Run.FailOnPersistError {
		if sum.PersistErr != nil {
			return fmt.Errorf("%w: %w", ErrNotPersisted, sum.PersistErr)
		}
		return fmt.Errorf("%w: %s", ErrNotPersisted, sum.Persist.Key)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "run %s: %d discovered, %d attempted, %d stored, written=%t key=%s\n",
		sum.RunID, sum.Discovered, sum.Attempted, sum.Succeeded, sum.Persist.Written, sum.Persist.Key)
	return nil
}
