// Package app initializes and holds the long-lived services of a run, acting
// as a dependency injection container.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	gcstorage "cloud.google.com/go/storage"
	pubsub "cloud.google.com/go/pubsub/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/carsnbids-loader/internal/auction"
	"github.com/JakeFAU/carsnbids-loader/internal/browser"
	"github.com/JakeFAU/carsnbids-loader/internal/clock/system"
	"github.com/JakeFAU/carsnbids-loader/internal/collector"
	"github.com/JakeFAU/carsnbids-loader/internal/columnar"
	"github.com/JakeFAU/carsnbids-loader/internal/config"
	"github.com/JakeFAU/carsnbids-loader/internal/id/uuid"
	"github.com/JakeFAU/carsnbids-loader/internal/metrics"
	"github.com/JakeFAU/carsnbids-loader/internal/notify"
	"github.com/JakeFAU/carsnbids-loader/internal/notify/ntfy"
	pubsubnotify "github.com/JakeFAU/carsnbids-loader/internal/notify/pubsub"
	"github.com/JakeFAU/carsnbids-loader/internal/persister"
	"github.com/JakeFAU/carsnbids-loader/internal/pipeline"
	"github.com/JakeFAU/carsnbids-loader/internal/scraper/carsandbids"
	"github.com/JakeFAU/carsnbids-loader/internal/storage/gcs"
	"github.com/JakeFAU/carsnbids-loader/internal/storage/local"
	"github.com/JakeFAU/carsnbids-loader/internal/storage/memory"
	"github.com/JakeFAU/carsnbids-loader/internal/storage/postgres"
	"github.com/JakeFAU/carsnbids-loader/internal/storage/s3"
)

// App holds the shared services of one process.
type App struct {
	logger   *zap.Logger
	recorder *metrics.Recorder
	sink     auction.Sink
	notifier auction.Notifier
	runner   *pipeline.Runner
	closers  []closer
}

type closer struct {
	name  string
	close func() error
}

// Option overrides a collaborator, mainly for tests and backfills.
type Option func(*options)

type options struct {
	launcher browser.Launcher
	clock    auction.Clock
	sink     auction.Sink
	notifier auction.Notifier
	client   *http.Client
}

// WithLauncher replaces the chromedp launcher.
func WithLauncher(l browser.Launcher) Option {
	return func(o *options) { o.launcher = l }
}

// WithClock replaces the system clock, e.g. to backfill a past day.
func WithClock(c auction.Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithSink replaces the configured storage backend.
func WithSink(s auction.Sink) Option {
	return func(o *options) { o.sink = s }
}

// WithNotifier replaces the configured alert backend.
func WithNotifier(n auction.Notifier) Option {
	return func(o *options) { o.notifier = n }
}

// WithHTTPClient sets the client used by the ntfy notifier and the S3 SDK.
func WithHTTPClient(c *http.Client) Option {
	return func(o *options) { o.client = c }
}

// Runner returns the wired pipeline.
func (a *App) Runner() *pipeline.Runner {
	return a.runner
}

// New builds every collaborator described by cfg. It fails fast if any
// backend cannot be initialized; anything built before the failure is closed.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{
		logger:   logger,
		recorder: metrics.NewRecorder(),
	}
	if err := a.build(ctx, cfg, o); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.String("storage_backend", cfg.Storage.Backend),
		zap.String("notify_backend", cfg.Notify.Backend),
		zap.Bool("runlog_enabled", cfg.RunLog.DSN != ""),
	)
	return a, nil
}

func (a *App) build(ctx context.Context, cfg config.Config, o options) error {
	launcher := o.launcher
	if launcher == nil {
		chrome, err := browser.NewChrome(browser.Config{
			Headless:             cfg.Browser.Headless,
			UserAgent:            cfg.Browser.UserAgent,
			ExecPath:             cfg.Browser.ExecPath,
			NavigationTimeout:    cfg.NavigationTimeout(),
			Settle:               cfg.Settle(),
			NavigationsPerSecond: cfg.Browser.NavigationsPerSecond,
		}, a.logger.Named("browser"))
		if err != nil {
			return fmt.Errorf("init browser: %w", err)
		}
		launcher = chrome
	}

	scraper, err := carsandbids.New(carsandbids.Config{
		BaseURL:     cfg.Source.BaseURL,
		ListingPath: cfg.Source.ListingPath,
	}, launcher, a.logger.Named("scraper"))
	if err != nil {
		return fmt.Errorf("init scraper: %w", err)
	}

	a.sink = o.sink
	if a.sink == nil {
		if a.sink, err = a.buildSink(ctx, cfg.Storage, o.client); err != nil {
			return err
		}
	}

	a.notifier = o.notifier
	if a.notifier == nil {
		if a.notifier, err = a.buildNotifier(ctx, cfg.Notify, o.client); err != nil {
			return err
		}
	}

	clock := o.clock
	if clock == nil {
		clock = system.New()
	}

	p, err := persister.New(a.sink, a.notifier, clock, a.recorder, persister.Config{
		Bucket: cfg.Storage.Bucket,
		Prefix: cfg.Run.KeyPrefix,
		Topic:  cfg.Notify.Topic,
	}, a.logger.Named("persister"))
	if err != nil {
		return fmt.Errorf("init persister: %w", err)
	}

	deps := pipeline.Deps{
		Discoverer: scraper,
		Collector:  collector.New(scraper, a.recorder, a.logger.Named("collector")),
		Persister:  p,
		Recorder:   a.recorder,
		Clock:      clock,
		IDs:        uuid.New(),
		Logger:     a.logger.Named("pipeline"),
	}
	if cfg.RunLog.DSN != "" {
		store, err := a.buildLedger(ctx, cfg.RunLog)
		if err != nil {
			return err
		}
		deps.Ledger = store
	}

	a.runner, err = pipeline.New(pipeline.Config{
		MaxPages:    cfg.Run.MaxPages,
		MaxAuctions: cfg.Run.MaxAuctions,
		PoolSize:    cfg.Run.PoolSize,
		Push: metrics.PushConfig{
			URL: cfg.Metrics.PushgatewayURL,
			Job: cfg.Metrics.Job,
		},
	}, deps)
	if err != nil {
		return fmt.Errorf("init pipeline: %w", err)
	}
	return nil
}

func (a *App) buildSink(ctx context.Context, cfg config.StorageConfig, client *http.Client) (auction.Sink, error) {
	switch cfg.Backend {
	case config.BackendS3:
		a.logger.Info("using s3 storage", zap.String("bucket", cfg.Bucket), zap.String("region", cfg.Region))
		sink, err := s3.NewFromConfig(ctx, s3.Config{
			Region:          cfg.Region,
			Endpoint:        cfg.Endpoint,
			AccessKeyID:     cfg.AccessKeyID,
			SecretAccessKey: cfg.SecretAccessKey,
			HTTPClient:      client,
		}, columnar.ContentType)
		if err != nil {
			return nil, fmt.Errorf("init s3 storage: %w", err)
		}
		return sink, nil
	case config.BackendGCS:
		a.logger.Info("using gcs storage", zap.String("bucket", cfg.Bucket))
		gcsClient, err := gcstorage.NewClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init gcs client: %w", err)
		}
		sink, err := gcs.New(gcsClient, columnar.ContentType)
		if err != nil {
			_ = gcsClient.Close()
			return nil, fmt.Errorf("init gcs storage: %w", err)
		}
		a.closers = append(a.closers, closer{name: "gcs", close: sink.Close})
		return sink, nil
	case config.BackendLocal:
		a.logger.Info("using local storage", zap.String("dir", cfg.LocalDir))
		sink, err := local.New(cfg.LocalDir)
		if err != nil {
			return nil, fmt.Errorf("init local storage: %w", err)
		}
		return sink, nil
	case config.BackendMemory:
		a.logger.Warn("using in-memory storage; the batch is discarded at exit")
		return memory.NewSink(), nil
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Backend)
	}
}

func (a *App) buildNotifier(ctx context.Context, cfg config.NotifyConfig, client *http.Client) (auction.Notifier, error) {
	switch cfg.Backend {
	case config.NotifyNtfy:
		n, err := ntfy.New(ntfy.Config{
			Server:  cfg.NtfyServer,
			Title:   "carsnbids",
			Timeout: 10 * time.Second,
		}, client, a.logger.Named("ntfy"))
		if err != nil {
			return nil, fmt.Errorf("init ntfy notifier: %w", err)
		}
		return n, nil
	case config.NotifyPubSub:
		a.logger.Info("using pubsub notifier", zap.String("project", cfg.ProjectID), zap.String("topic", cfg.Topic))
		psClient, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("init pubsub client: %w", err)
		}
		n := pubsubnotify.New(psClient.Publisher(cfg.Topic), a.logger.Named("pubsub"))
		a.closers = append(a.closers, closer{name: "pubsub", close: func() error {
			n.Close()
			return psClient.Close()
		}})
		return n, nil
	case config.NotifyLog:
		return notify.NewLogNotifier(a.logger.Named("alerts")), nil
	default:
		return nil, fmt.Errorf("unknown notify backend: %s", cfg.Backend)
	}
}

func (a *App) buildLedger(ctx context.Context, cfg config.RunLogConfig) (*postgres.RunStore, error) {
	store, err := postgres.NewRunStore(ctx, postgres.RunStoreConfig{
		DSN:      cfg.DSN,
		Table:    cfg.Table,
		MaxConns: 2,
	})
	if err != nil {
		return nil, fmt.Errorf("init run ledger: %w", err)
	}
	a.closers = append(a.closers, closer{name: "postgres", close: func() error {
		store.Close()
		return nil
	}})
	if err := store.EnsureTable(ctx); err != nil {
		return nil, fmt.Errorf("init run ledger: %w", err)
	}
	return store, nil
}

// Close releases clients in reverse construction order and flushes the logger.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		c := a.closers[i]
		if err := c.close(); err != nil {
			a.logger.Warn("error closing client", zap.String("client", c.name), zap.Error(err))
		}
	}
	a.closers = nil
	_ = a.logger.Sync()
}
