// Package collector fans auction detail fetches out over a bounded worker pool
// and gathers the successful records into one batch.
package collector

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
	"github.com/JakeFAU/carsnbids-loader/internal/metrics"
)

// Collector runs one fetch per identifier over a fixed-size pool.
type Collector struct {
	fetcher  auction.Fetcher
	recorder *metrics.Recorder
	logger   *zap.Logger
}

// New constructs a Collector. recorder may be nil.
func New(fetcher auction.Fetcher, recorder *metrics.Recorder, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{
		fetcher:  fetcher,
		recorder: recorder,
		logger:   logger,
	}
}

// Collect fetches every identifier with at most poolSize fetches in flight
// and returns a frozen batch holding the successful records in completion
// order. Failed fetches are logged and dropped. Collect returns only after
// every identifier has produced a result; it never stops early.
func (c *Collector) Collect(ctx context.Context, ids []auction.Identifier, poolSize int) *auction.Batch {
	batch := auction.NewBatch()
	if len(ids) == 0 {
		batch.Freeze()
		return batch
	}
	if poolSize <= 0 {
		poolSize = 1
	}
	if poolSize > len(ids) {
		poolSize = len(ids)
	}

	jobs := make(chan auction.Identifier, len(ids))
	for _, id := range ids {
		jobs <- id
	}
	close(jobs)

	results := make(chan auction.Result)
	var wg sync.WaitGroup
	for i := 0; i < poolSize; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			for id := range jobs {
				results <- c.run(ctx, worker, id)
			}
		}(i)
	}
	go func() {
		wg.Wait()
		close(results)
	}()

	var failed int
	for res := range results {
		if res.OK() {
			batch.Append(res.Record)
			continue
		}
		failed++
		c.logger.Warn("auction fetch failed", zap.String("url", res.Identifier.String()), zap.Error(res.Err))
	}
	batch.Freeze()

	c.logger.Info("collection finished",
		zap.Int("pool_size", poolSize),
		zap.Int("attempted", len(ids)),
		zap.Int("succeeded", batch.Len()),
		zap.Int("failed", failed),
	)
	return batch
}

// run executes one fetch and converts every outcome, including a panic,
// into a Result.
func (c *Collector) run(ctx context.Context, worker int, id auction.Identifier) (res auction.Result) {
	c.recorder.IncActiveWorkers()
	start := time.Now()
	res.Identifier = id
	defer func() {
		if r := recover(); r != nil {
			res.Record = nil
			res.Err = &auction.FetchError{Identifier: id, Err: fmt.Errorf("panic: %v", r)}
		}
		if res.Err == nil && res.Record == nil {
			res.Err = &auction.FetchError{Identifier: id, Err: auction.ErrEmptyPage}
		}
		status := metrics.StatusSuccess
		if res.Err != nil {
			status = metrics.StatusFailure
		}
		c.recorder.ObserveFetch(status, time.Since(start))
		c.recorder.DecActiveWorkers()
	}()

	c.logger.Debug("fetching auction", zap.Int("worker", worker), zap.String("url", id.String()))
	record, err := c.fetcher.Fetch(ctx, id)
	if err != nil {
		res.Err = err
		return res
	}
	res.Record = record
	return res
}
