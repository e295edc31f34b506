// Package pipeline runs one daily load: discover, truncate, collect, persist,
// then record the run.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
	"github.com/JakeFAU/carsnbids-loader/internal/logging"
	"github.com/JakeFAU/carsnbids-loader/internal/metrics"
	"github.com/JakeFAU/carsnbids-loader/internal/persister"
	"github.com/JakeFAU/carsnbids-loader/internal/storage/postgres"
)

// Collector gathers fetched records into a batch.
type Collector interface {
	Collect(ctx context.Context, ids []auction.Identifier, poolSize int) *auction.Batch
}

// Persister stores a batch.
type Persister interface {
	Persist(ctx context.Context, batch *auction.Batch) (persister.Result, error)
}

// Ledger records a finished run.
type Ledger interface {
	RecordRun(ctx context.Context, record postgres.RunRecord) error
}

// Config bounds one run.
type Config struct {
	MaxPages    int
	MaxAuctions int
	PoolSize    int
	Push        metrics.PushConfig
}

// Deps wires the collaborators of a Runner. Ledger and Recorder are optional.
type Deps struct {
	Discoverer auction.Discoverer
	Collector  Collector
	Persister  Persister
	Ledger     Ledger
	Recorder   *metrics.Recorder
	Clock      auction.Clock
	IDs        auction.IDGenerator
	Logger     *zap.Logger
}

// Summary reports what a run did.
type Summary struct {
	RunID      string
	RunDate    time.Time
	Discovered int
	Attempted  int
	Succeeded  int
	Persist    persister.Result
	PersistErr error
	StartedAt  time.Time
	FinishedAt time.Time
}

// Failed is the number of identifiers that produced no record.
func (s Summary) Failed() int {
	return s.Attempted - s.Succeeded
}

// Runner executes daily runs.
type Runner struct {
	cfg  Config
	deps Deps
}

// New validates deps and returns a Runner.
func New(cfg Config, deps Deps) (*Runner, error) {
	if deps.Discoverer == nil {
		return nil, fmt.Errorf("discoverer is required")
	}
	if deps.Collector == nil {
		return nil, fmt.Errorf("collector is required")
	}
	if deps.Persister == nil {
		return nil, fmt.Errorf("persister is required")
	}
	if deps.Clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if deps.IDs == nil {
		return nil, fmt.Errorf("id generator is required")
	}
	if cfg.MaxPages <= 0 {
		return nil, fmt.Errorf("max pages must be > 0")
	}
	if cfg.MaxAuctions <= 0 {
		return nil, fmt.Errorf("max auctions must be > 0")
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Runner{cfg: cfg, deps: deps}, nil
}

// Run performs one load. A discovery failure aborts the run before any fetch
// and is returned as a *auction.DiscoveryError. Persist failures are reported
// in the Summary, not returned.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	runID, err := r.deps.IDs.NewID()
	if err != nil {
		return Summary{}, fmt.Errorf("new run id: %w", err)
	}
	started := r.deps.Clock.Now()
	sum := Summary{
		RunID:     runID,
		RunDate:   started.AddDate(0, 0, -1).Truncate(24 * time.Hour),
		StartedAt: started,
	}
	logger := logging.ForRun(r.deps.Logger, runID, sum.RunDate)
	defer r.pushMetrics(logger, runID)

	logger.Info("run started",
		zap.Int("max_pages", r.cfg.MaxPages),
		zap.Int("max_auctions", r.cfg.MaxAuctions),
		zap.Int("pool_size", r.cfg.PoolSize),
	)

	ids, err := r.deps.Discoverer.Discover(ctx, r.cfg.MaxPages)
	if err != nil {
		var discoveryErr *auction.DiscoveryError
		if !errors.As(err, &discoveryErr) {
			err = &auction.DiscoveryError{Err: err}
		}
		logger.Error("discovery failed", zap.Error(err))
		sum.FinishedAt = r.deps.Clock.Now()
		return sum, err
	}
	sum.Discovered = len(ids)
	r.deps.Recorder.ObserveDiscovered(len(ids))

	if len(ids) > r.cfg.MaxAuctions {
		ids = ids[:r.cfg.MaxAuctions]
	}
	sum.Attempted = len(ids)
	logger.Info("auctions discovered", zap.Int("discovered", sum.Discovered), zap.Int("attempted", sum.Attempted))

	batch := r.deps.Collector.Collect(ctx, ids, r.cfg.PoolSize)
	sum.Succeeded = batch.Len()
	r.deps.Recorder.SetBatchRecords(sum.Succeeded)
	logger.Info("collection finished", zap.Int("succeeded", sum.Succeeded), zap.Int("failed", sum.Failed()))

	sum.Persist, sum.PersistErr = r.deps.Persister.Persist(ctx, batch)
	if sum.PersistErr != nil {
		logger.Error("persist failed", zap.Error(sum.PersistErr))
	}
	sum.FinishedAt = r.deps.Clock.Now()

	r.record(ctx, logger, sum)

	logger.Info("run finished",
		zap.String("key", sum.Persist.Key),
		zap.Bool("persisted", sum.Persist.Written),
		zap.Duration("elapsed", sum.FinishedAt.Sub(sum.StartedAt)),
	)
	return sum, nil
}

func (r *Runner) record(ctx context.Context, logger *zap.Logger, sum Summary) {
	if r.deps.Ledger == nil {
		return
	}
	err := r.deps.Ledger.RecordRun(ctx, postgres.RunRecord{
		RunID:      sum.RunID,
		RunDate:    sum.RunDate,
		ObjectKey:  sum.Persist.Key,
		ObjectSHA:  sum.Persist.SHA256,
		Discovered: sum.Discovered,
		Attempted:  sum.Attempted,
		Succeeded:  sum.Succeeded,
		Failed:     sum.Failed(),
		Persisted:  sum.Persist.Written,
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
	})
	if err != nil {
		logger.Warn("record run failed", zap.Error(err))
	}
}

func (r *Runner) pushMetrics(logger *zap.Logger, runID string) {
	if r.cfg.Push.URL == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := r.deps.Recorder.Push(ctx, r.cfg.Push, runID); err != nil {
		logger.Warn("push metrics failed", zap.Error(err))
	}
}
