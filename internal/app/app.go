// Package app builds the scrape pipeline from configuration and runs it.
package app

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/moviemeter-scraper/internal/clock/system"
	"github.com/JakeFAU/moviemeter-scraper/internal/config"
	"github.com/JakeFAU/moviemeter-scraper/internal/extract"
	collyfetcher "github.com/JakeFAU/moviemeter-scraper/internal/fetcher/colly"
	"github.com/JakeFAU/moviemeter-scraper/internal/id/uuid"
	"github.com/JakeFAU/moviemeter-scraper/internal/logging"
	"github.com/JakeFAU/moviemeter-scraper/internal/metrics"
	"github.com/JakeFAU/moviemeter-scraper/internal/policy/ratelimit"
	"github.com/JakeFAU/moviemeter-scraper/internal/pool"
	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
	csvsink "github.com/JakeFAU/moviemeter-scraper/internal/sink/csv"
	pgsink "github.com/JakeFAU/moviemeter-scraper/internal/sink/postgres"
)

// Clock measures the duration of a run.
type Clock interface {
	Now() time.Time
	Since(time.Time) time.Duration
}

// IDGenerator names runs in logs.
type IDGenerator interface {
	NewID() (string, error)
}

// App holds the long-lived pieces of one scrape: the fetcher, the catalog
// collector, the extractor, and the sink they write to. The sink is opened
// by Run only after the catalog has been collected.
type App struct {
	cfg       config.Config
	runID     string
	logger    *zap.Logger
	clock     Clock
	console   io.Writer
	fetcher   scraper.Fetcher
	collector scraper.Collector
	extractor scraper.Extractor
	poolOpts  []pool.Option
	sink      scraper.Sink
	registry  *prometheus.Registry
}

// Option customizes an App.
type Option func(*options)

type options struct {
	console io.Writer
	clock   Clock
	ids     IDGenerator
	fetcher scraper.Fetcher
	sink    scraper.Sink
}

// WithConsole redirects the record lines and the final timing line.
func WithConsole(w io.Writer) Option {
	return func(o *options) { o.console = w }
}

// WithClock replaces the wall clock used for the elapsed time report.
func WithClock(c Clock) Option {
	return func(o *options) { o.clock = c }
}

// WithIDGenerator replaces the UUIDv7 run ID generator.
func WithIDGenerator(g IDGenerator) Option {
	return func(o *options) { o.ids = g }
}

// WithFetcher replaces the HTTP fetcher built from cfg.HTTP.
func WithFetcher(f scraper.Fetcher) Option {
	return func(o *options) { o.fetcher = f }
}

// WithSink replaces the sink selected by cfg.Sink.Driver.
func WithSink(s scraper.Sink) Option {
	return func(o *options) { o.sink = s }
}

// New wires every component from cfg. Nothing is written until Run.
func New(cfg config.Config, logger *zap.Logger, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	o := options{console: os.Stdout, clock: system.New(), ids: uuid.New()}
	for _, opt := range opts {
		opt(&o)
	}

	runID, err := o.ids.NewID()
	if err != nil {
		return nil, err
	}
	logger = logging.ForRun(logger, runID)

	registry := prometheus.NewRegistry()
	pipeline, err := metrics.NewPipeline(registry)
	if err != nil {
		return nil, err
	}

	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = collyfetcher.New(collyfetcher.Config{
			UserAgent:    cfg.HTTP.UserAgent,
			Timeout:      cfg.HTTP.Timeout,
			FailOnStatus: cfg.HTTP.FailOnStatus,
		}, logger.Named("fetcher"))
	}

	collector, err := extract.NewLinkCollector(cfg.Layout, cfg.Catalog.Origin, logger.Named("collector"))
	if err != nil {
		return nil, fmt.Errorf("init collector: %w", err)
	}

	poolOpts := []pool.Option{
		pool.WithJitter(pool.UniformJitter{Max: cfg.Scrape.JitterMax}),
		pool.WithMetrics(pipeline),
		pool.WithConsole(o.console),
		pool.WithLogger(logger.Named("pool")),
	}
	if cfg.Scrape.RequestsPerSecond > 0 {
		limiter := ratelimit.New(ratelimit.Config{
			RPS:   cfg.Scrape.RequestsPerSecond,
			Burst: cfg.Scrape.Burst,
		}, pipeline)
		poolOpts = append(poolOpts, pool.WithPacer(limiter))
	}

	return &App{
		cfg:       cfg,
		runID:     runID,
		logger:    logger,
		clock:     o.clock,
		console:   o.console,
		fetcher:   fetcher,
		collector: collector,
		extractor: extract.NewFieldExtractor(cfg.Layout),
		poolOpts:  poolOpts,
		sink:      o.sink,
		registry:  registry,
	}, nil
}

func openSink(ctx context.Context, cfg config.SinkConfig, logger *zap.Logger) (scraper.Sink, error) {
	switch cfg.Driver {
	case config.DriverCSV:
		s, err := csvsink.Open(cfg.CSV, logger)
		if err != nil {
			return nil, fmt.Errorf("open csv sink: %w", err)
		}
		logger.Info("appending records to csv", zap.String("path", s.Path()))
		return s, nil
	case config.DriverPostgres:
		s, err := pgsink.Open(ctx, cfg.Postgres, logger)
		if err != nil {
			return nil, fmt.Errorf("open postgres sink: %w", err)
		}
		logger.Info("appending records to postgres")
		return s, nil
	default:
		return nil, fmt.Errorf("unknown sink driver: %s", cfg.Driver)
	}
}

// RunID identifies this run in logs.
func (a *App) RunID() string {
	return a.runID
}

// Registry exposes the run's metrics.
func (a *App) Registry() *prometheus.Registry {
	return a.registry
}

// Run fetches the catalog, collects its detail links, and drives them through
// the pool. A catalog that cannot be fetched or no longer has its landmarks
// aborts the run before the sink is opened, so the store is left untouched.
// The elapsed time is printed to the console once the pool has drained.
func (a *App) Run(ctx context.Context) (pool.Summary, error) {
	start := a.clock.Now()
	a.logger.Info("scrape started", zap.String("catalog", a.cfg.Catalog.URL))

	urls, err := a.collect(ctx)
	if err != nil {
		return pool.Summary{}, err
	}
	a.logger.Info("catalog collected", zap.Int("detail_urls", len(urls)))

	if a.sink == nil {
		a.sink, err = openSink(ctx, a.cfg.Sink, a.logger.Named("sink"))
		if err != nil {
			return pool.Summary{}, err
		}
	}
	workers, err := pool.New(a.cfg.Scrape.Concurrency, a.fetcher, a.extractor, a.sink, a.poolOpts...)
	if err != nil {
		return pool.Summary{}, fmt.Errorf("init pool: %w", err)
	}

	summary, runErr := workers.Run(ctx, urls)
	elapsed := a.clock.Since(start)
	if _, err := fmt.Fprintf(a.console, "Total time taken: %v\n", elapsed); err != nil {
		a.logger.Warn("console write failed", zap.Error(err))
	}

	a.logger.Info("scrape finished",
		zap.Duration("elapsed", elapsed),
		zap.Int("workers", summary.Workers),
		zap.Int("written", summary.Written),
		zap.Int("misses", summary.Misses),
		zap.Int("fetch_errors", summary.FetchErrors),
		zap.Int("sink_errors", summary.SinkErrors),
		zap.Int("canceled", summary.Canceled),
	)

	if path := a.cfg.Metrics.Textfile; path != "" {
		if err := metrics.WriteTextfile(path, a.registry); err != nil {
			runErr = multierr.Append(runErr, err)
		}
	}
	return summary, runErr
}

func (a *App) collect(ctx context.Context) ([]scraper.DetailURL, error) {
	catalog, err := a.fetcher.Fetch(ctx, a.cfg.Catalog.URL)
	if err != nil {
		return nil, fmt.Errorf("fetch catalog: %w", err)
	}
	urls, err := a.collector.Collect(catalog)
	if err != nil {
		return nil, fmt.Errorf("collect detail links: %w", err)
	}
	return urls, nil
}

// Close releases the sink, if one was opened, and flushes the logger.
func (a *App) Close() error {
	a.logger.Debug("shutting down")
	var err error
	if a.sink != nil {
		err = a.sink.Close()
	}
	// Syncing stderr fails on some platforms; it is not worth reporting.
	_ = a.logger.Sync()
	return err
}
