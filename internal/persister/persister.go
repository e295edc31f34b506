// Package persister writes a finished batch to object storage as one
// Parquet object keyed by the previous day's date.
package persister

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
	"github.com/JakeFAU/carsnbids-loader/internal/columnar"
	"github.com/JakeFAU/carsnbids-loader/internal/hash/sha256"
	"github.com/JakeFAU/carsnbids-loader/internal/metrics"
)

// FailureMessage is the alert text sent when a batch cannot be stored.
const FailureMessage = "Error uploading file to s3"

// DefaultPrefix is the key prefix objects are written under.
const DefaultPrefix = "carsnbids"

// Config names where batches go and where alerts are sent.
type Config struct {
	Bucket string
	Prefix string
	Topic  string
}

// Result describes one persist attempt. SHA256 is the hex digest of the
// encoded object and is set whenever encoding succeeded.
type Result struct {
	Key     string
	Rows    int
	Bytes   int
	SHA256  string
	Written bool
}

// Persister encodes and stores batches.
type Persister struct {
	sink     auction.Sink
	notifier auction.Notifier
	clock    auction.Clock
	recorder *metrics.Recorder
	cfg      Config
	logger   *zap.Logger
}

// New constructs a Persister. recorder may be nil.
func New(
	sink auction.Sink,
	notifier auction.Notifier,
	clock auction.Clock,
	recorder *metrics.Recorder,
	cfg Config,
	logger *zap.Logger,
) (*Persister, error) {
	if sink == nil {
		return nil, fmt.Errorf("storage sink is required")
	}
	if notifier == nil {
		return nil, fmt.Errorf("notifier is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Persister{
		sink:     sink,
		notifier: notifier,
		clock:    clock,
		recorder: recorder,
		cfg:      cfg,
		logger:   logger,
	}, nil
}

// StorageKey returns "{prefix}/{YYYY-MM-DD}.parquet" for the day before now.
func StorageKey(prefix string, now time.Time) string {
	prefix = strings.Trim(prefix, "/")
	day := now.AddDate(0, 0, -1).Format(time.DateOnly)
	if prefix == "" {
		return day + ".parquet"
	}
	return fmt.Sprintf("%s/%s.parquet", prefix, day)
}

// Persist encodes batch and writes it with one put. A storage failure sends
// exactly one alert and is otherwise swallowed: the returned error is nil and
// Result.Written is false. An encoding failure is alerted and returned as a
// *auction.PersistError. Empty batches are written as zero-row objects.
func (p *Persister) Persist(ctx context.Context, batch *auction.Batch) (Result, error) {
	if batch == nil {
		batch = auction.NewBatch()
	}
	batch.Freeze()
	records := batch.Records()
	res := Result{
		Key:  StorageKey(p.cfg.Prefix, p.clock.Now()),
		Rows: len(records),
	}
	logger := p.logger.With(zap.String("bucket", p.cfg.Bucket), zap.String("key", res.Key))

	data, err := columnar.Encode(records)
	if err != nil {
		p.fail(ctx, logger, err, 0)
		return res, &auction.PersistError{Key: res.Key, Err: err}
	}
	res.Bytes = len(data)
	res.SHA256 = sha256.Hex(data)

	if err := p.sink.Put(ctx, p.cfg.Bucket, res.Key, data); err != nil {
		p.fail(ctx, logger, err, res.Bytes)
		return res, nil
	}
	res.Written = true
	p.recorder.ObservePersist(metrics.StatusSuccess, res.Bytes)
	logger.Info("batch stored", zap.Int("rows", res.Rows), zap.Int("bytes", res.Bytes), zap.String("sha256", res.SHA256))
	return res, nil
}

func (p *Persister) fail(ctx context.Context, logger *zap.Logger, err error, size int) {
	logger.Error("batch store failed", zap.Error(err))
	p.recorder.ObservePersist(metrics.StatusFailure, size)
	p.notifier.Notify(ctx, p.cfg.Topic, FailureMessage)
}
