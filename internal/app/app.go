// Package app initializes and holds long-lived application services, acting as a
// dependency injection container for the CLI commands.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/catalog"
	"github.com/JakeFAU/konut-crawler/internal/clock/system"
	"github.com/JakeFAU/konut-crawler/internal/config"
	"github.com/JakeFAU/konut-crawler/internal/crawler"
	"github.com/JakeFAU/konut-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/konut-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/konut-crawler/internal/id/uuid"
	"github.com/JakeFAU/konut-crawler/internal/policy/ratelimit"
	"github.com/JakeFAU/konut-crawler/internal/progress"
	amqppublisher "github.com/JakeFAU/konut-crawler/internal/publisher/amqp"
	"github.com/JakeFAU/konut-crawler/internal/publisher/memory"
	pubsubpublisher "github.com/JakeFAU/konut-crawler/internal/publisher/pubsub"
	"github.com/JakeFAU/konut-crawler/internal/storage"
	"github.com/JakeFAU/konut-crawler/internal/storage/gcs"
	"github.com/JakeFAU/konut-crawler/internal/storage/local"
	memorystore "github.com/JakeFAU/konut-crawler/internal/storage/memory"
	"github.com/JakeFAU/konut-crawler/internal/storage/postgres"
	"github.com/JakeFAU/konut-crawler/internal/storage/s3"
	"github.com/JakeFAU/konut-crawler/internal/storage/sqlite"
)

// App holds the shared, long-lived services: transport, extractor, catalog,
// snapshot sinks, event publishers and the progress tracker. It is built once per
// process and hands out orchestrators for either crawl mode.
type App struct {
	cfg       config.Config
	logger    *zap.Logger
	fetcher   *collyfetcher.Fetcher
	extractor *extract.Extractor
	catalog   crawler.RegionCatalog
	sink      crawler.Sink
	publisher crawler.Publisher
	events    *memory.Publisher
	tracker   *progress.Tracker
	clock     *system.Clock
	closers   []func() error
}

// NewApp creates and initializes every service named by cfg. It fails fast if any
// backend cannot be reached; services opened before the failure are closed.
func NewApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &App{
		cfg:     cfg,
		logger:  logger,
		tracker: progress.NewTracker(logger.Named("progress")),
		clock:   system.New(),
	}

	limiter := ratelimit.New(cfg.RateLimit())
	a.fetcher = collyfetcher.New(cfg.Fetcher(),
		collyfetcher.WithLimiter(limiter),
		collyfetcher.WithLogger(logger.Named("fetcher")),
	)

	ex, err := extract.New(cfg.Selectors)
	if err != nil {
		return nil, fmt.Errorf("compile selectors: %w", err)
	}
	a.extractor = ex

	switch cfg.Catalog.Source {
	case config.CatalogFile:
		a.catalog = catalog.NewFileCatalog(cfg.Catalog.Path)
	default:
		a.catalog = catalog.NewHTMLCatalog(a.fetcher, cfg.Catalog.URL)
	}

	if err := a.initSinks(ctx); err != nil {
		a.Close()
		return nil, err
	}
	if err := a.initPublisher(ctx); err != nil {
		a.Close()
		return nil, err
	}
	logger.Info("application services initialized",
		zap.Strings("storage", cfg.Storage.Backends),
		zap.String("publisher", cfg.Publisher.Driver),
		zap.String("catalog", cfg.Catalog.Source),
	)
	return a, nil
}

func (a *App) initSinks(ctx context.Context) error {
	sc := a.cfg.Storage
	sinks := make([]crawler.Sink, 0, len(sc.Backends))
	for _, backend := range sc.Backends {
		switch backend {
		case config.BackendLocal:
			store, err := local.New(sc.Local)
			if err != nil {
				return fmt.Errorf("init local storage: %w", err)
			}
			sinks = append(sinks, storage.NewBlobSink(store, sc.Prefix))
		case config.BackendMemory:
			sinks = append(sinks, storage.NewBlobSink(memorystore.NewBlobStore(), sc.Prefix))
		case config.BackendGCS:
			store, err := gcs.Open(ctx, sc.GCS)
			if err != nil {
				return fmt.Errorf("init gcs storage: %w", err)
			}
			a.closers = append(a.closers, store.Close)
			sinks = append(sinks, storage.NewBlobSink(store, firstNonEmpty(sc.GCS.Prefix, sc.Prefix)))
		case config.BackendS3:
			store, err := s3.New(ctx, sc.S3)
			if err != nil {
				return fmt.Errorf("init s3 storage: %w", err)
			}
			sinks = append(sinks, storage.NewBlobSink(store, firstNonEmpty(sc.S3.Prefix, sc.Prefix)))
		case config.BackendPostgres:
			sink, err := postgres.New(ctx, sc.Postgres)
			if err != nil {
				return fmt.Errorf("init postgres storage: %w", err)
			}
			a.closers = append(a.closers, func() error { sink.Close(); return nil })
			sinks = append(sinks, sink)
		case config.BackendSQLite:
			sink, err := sqlite.Open(sc.SQLite.Path)
			if err != nil {
				return fmt.Errorf("init sqlite storage: %w", err)
			}
			a.closers = append(a.closers, sink.Close)
			sinks = append(sinks, sink)
		default:
			return fmt.Errorf("unknown storage backend %q", backend)
		}
	}
	if len(sinks) == 1 {
		a.sink = sinks[0]
		return nil
	}
	a.sink = storage.NewFanoutSink(sinks...)
	return nil
}

func (a *App) initPublisher(ctx context.Context) error {
	pc := a.cfg.Publisher
	if pc.Driver == "" || pc.Driver == config.PublisherNone {
		return nil
	}
	a.events = memory.New(pc.History)
	switch pc.Driver {
	case config.PublisherMemory:
		a.publisher = a.events
	case config.PublisherPubSub:
		pub, err := pubsubpublisher.Open(ctx, pc.ProjectID)
		if err != nil {
			return fmt.Errorf("init pubsub publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		a.publisher = teePublisher{primary: pub, log: a.events}
	case config.PublisherAMQP:
		pub, err := amqppublisher.Open(pc.AMQP)
		if err != nil {
			return fmt.Errorf("init amqp publisher: %w", err)
		}
		a.closers = append(a.closers, pub.Close)
		a.publisher = teePublisher{primary: pub, log: a.events}
	default:
		return fmt.Errorf("unknown publisher driver %q", pc.Driver)
	}
	return nil
}

// NewOrchestrator builds an orchestrator for mode; an empty mode uses crawler.mode.
func (a *App) NewOrchestrator(mode crawler.Mode) (*crawler.Orchestrator, error) {
	cc, err := a.cfg.CrawlerFor(mode)
	if err != nil {
		return nil, err
	}
	opts := []crawler.Option{
		crawler.WithProgress(a.tracker),
		crawler.WithClock(a.clock),
		crawler.WithPauser(a.clock),
		crawler.WithIDGenerator(uuid.New(string(cc.Mode))),
	}
	if a.publisher != nil {
		opts = append(opts, crawler.WithPublisher(a.publisher))
	}
	return crawler.NewOrchestrator(cc, a.catalog, a.fetcher, a.extractor, a.sink, a.logger.Named("orchestrator"), opts...)
}

// Logger returns the shared zap logger.
func (a *App) Logger() *zap.Logger { return a.logger }

// Config returns the loaded configuration.
func (a *App) Config() config.Config { return a.cfg }

// Catalog returns the configured region catalog.
func (a *App) Catalog() crawler.RegionCatalog { return a.catalog }

// Tracker returns the progress tracker shared by every orchestrator.
func (a *App) Tracker() *progress.Tracker { return a.tracker }

// Events returns the recent event log, or nil when publishing is disabled.
func (a *App) Events() *memory.Publisher { return a.events }

// Close releases every backend client and flushes the logger.
func (a *App) Close() {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	if err := errors.Join(errs...); err != nil {
		a.logger.Warn("error closing application services", zap.Error(err))
	}
	_ = a.logger.Sync()
}

// teePublisher publishes to a broker and records the event for the status API.
type teePublisher struct {
	primary crawler.Publisher
	log     *memory.Publisher
}

func (t teePublisher) Publish(ctx context.Context, topic string, payload any) (string, error) {
	id, err := t.primary.Publish(ctx, topic, payload)
	if err != nil {
		return "", err
	}
	// The local log is best effort; the broker id is authoritative.
	_, _ = t.log.Publish(context.WithoutCancel(ctx), topic, payload)
	return id, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
