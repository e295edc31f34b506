package persister

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
	"github.com/JakeFAU/carsnbids-loader/internal/columnar"
	"github.com/JakeFAU/carsnbids-loader/internal/hash/sha256"
	"github.com/JakeFAU/carsnbids-loader/internal/metrics"
	memorynotify "github.com/JakeFAU/carsnbids-loader/internal/notify/memory"
	memorystorage "github.com/JakeFAU/carsnbids-loader/internal/storage/memory"
)

type fakeClock struct {
	now time.Time
}

func (f fakeClock) Now() time.Time {
	return f.now
}

var runDay = fakeClock{now: time.Date(2025, 11, 15, 6, 30, 0, 0, time.UTC)}

func newPersister(t *testing.T) (*Persister, *memorystorage.Sink, *memorynotify.Notifier) {
	t.Helper()

	sink := memorystorage.NewSink()
	notifier := memorynotify.New()
	p, err := New(sink, notifier, runDay, metrics.NewRecorder(), Config{
		Bucket: "raw-auctions",
		Topic:  "auction-alerts",
	}, zap.NewNop())
	require.NoError(t, err)
	return p, sink, notifier
}

func TestStorageKey(t *testing.T) {
	t.Parallel()

	require.Equal(t, "carsnbids/2025-11-14.parquet", StorageKey("carsnbids", runDay.now))
	require.Equal(t, "carsnbids/2025-02-28.parquet", StorageKey("/carsnbids/", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)))
	require.Equal(t, "2024-12-31.parquet", StorageKey("", time.Date(2025, 1, 1, 23, 59, 0, 0, time.UTC)))
}

func TestPersistWritesBatch(t *testing.T) {
	t.Parallel()

	p, sink, notifier := newPersister(t)
	batch := auction.NewBatch()
	batch.Append(auction.Record{auction.FieldURL: "https://carsandbids.com/auctions/a", "make": "Audi"})
	batch.Append(auction.Record{auction.FieldURL: "https://carsandbids.com/auctions/b", "mileage": int64(10)})

	res, err := p.Persist(context.Background(), batch)
	require.NoError(t, err)
	require.True(t, res.Written)
	require.Equal(t, "carsnbids/2025-11-14.parquet", res.Key)
	require.Equal(t, 2, res.Rows)
	require.Empty(t, notifier.Messages())
	require.True(t, batch.Frozen())

	data, ok := sink.Object("raw-auctions", "carsnbids/2025-11-14.parquet")
	require.True(t, ok)
	require.Equal(t, len(data), res.Bytes)
	require.Equal(t, sha256.Hex(data), res.SHA256)
	columns, records, err := columnar.Decode(data)
	require.NoError(t, err)
	require.Len(t, columns, 3)
	require.Equal(t, "make", columns[0].Name)
	require.Equal(t, "int64", columns[1].Type())
	require.Equal(t, "url", columns[2].Name)
	require.Equal(t, batch.Records(), records)
}

func TestPersistEmptyBatchWritesZeroRows(t *testing.T) {
	t.Parallel()

	p, sink, notifier := newPersister(t)
	res, err := p.Persist(context.Background(), auction.NewBatch())
	require.NoError(t, err)
	require.True(t, res.Written)
	require.Zero(t, res.Rows)
	require.Equal(t, 1, sink.Puts())
	require.Empty(t, notifier.Messages())

	data, ok := sink.Object("raw-auctions", res.Key)
	require.True(t, ok)
	_, records, err := columnar.Decode(data)
	require.NoError(t, err)
	require.Empty(t, records)

	res, err = p.Persist(context.Background(), nil)
	require.NoError(t, err)
	require.True(t, res.Written)
}

func TestPersistStorageFailureNotifiesOnce(t *testing.T) {
	t.Parallel()

	p, sink, notifier := newPersister(t)
	sink.FailWith(errors.New("AccessDenied"))
	batch := auction.NewBatch()
	batch.Append(auction.Record{auction.FieldURL: "https://carsandbids.com/auctions/a"})

	res, err := p.Persist(context.Background(), batch)
	require.NoError(t, err)
	require.False(t, res.Written)
	require.Equal(t, 1, sink.Puts())
	require.Equal(t, []memorynotify.Message{{Topic: "auction-alerts", Message: FailureMessage}}, notifier.Messages())
}

func TestNewValidation(t *testing.T) {
	t.Parallel()

	sink := memorystorage.NewSink()
	notifier := memorynotify.New()
	_, err := New(nil, notifier, runDay, nil, Config{}, nil)
	require.Error(t, err)
	_, err = New(sink, nil, runDay, nil, Config{}, nil)
	require.Error(t, err)
	_, err = New(sink, notifier, nil, nil, Config{}, nil)
	require.Error(t, err)

	p, err := New(sink, notifier, runDay, nil, Config{}, nil)
	require.NoError(t, err)
	require.Equal(t, DefaultPrefix, p.cfg.Prefix)
}
