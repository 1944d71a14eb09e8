// Package pool drives detail URLs through fetch, extract, and append with a
// bounded number of concurrent workers.
package pool

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/JakeFAU/moviemeter-scraper/internal/metrics"
	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

// DefaultMaxWorkers bounds concurrency when no limit is configured.
const DefaultMaxWorkers = 10

// Pacer blocks until a request to url may be issued.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Summary reports what a run did.
type Summary struct {
	Workers     int
	Dispatched  int
	Written     int
	Misses      int
	FetchErrors int
	SinkErrors  int
	Canceled    int
}

// Pool applies fetch, extract, and append to each URL.
type Pool struct {
	maxWorkers int
	fetcher    scraper.Fetcher
	extractor  scraper.Extractor
	sink       scraper.Sink

	jitter  Jitter
	pacer   Pacer
	metrics *metrics.Pipeline
	logger  *zap.Logger

	consoleMu sync.Mutex
	console   io.Writer
}

// Option customizes a Pool.
type Option func(*Pool)

// WithJitter replaces the default 0-200ms uniform jitter.
func WithJitter(j Jitter) Option {
	return func(p *Pool) { p.jitter = j }
}

// WithPacer adds a shared pacer consulted after the jitter delay.
func WithPacer(pacer Pacer) Option {
	return func(p *Pool) { p.pacer = pacer }
}

// WithMetrics records per-item outcomes.
func WithMetrics(m *metrics.Pipeline) Option {
	return func(p *Pool) { p.metrics = m }
}

// WithConsole receives one line per written record.
func WithConsole(w io.Writer) Option {
	return func(p *Pool) { p.console = w }
}

// WithLogger sets the pool logger.
func WithLogger(logger *zap.Logger) Option {
	return func(p *Pool) { p.logger = logger }
}

// New builds a Pool running at most maxWorkers workers.
func New(maxWorkers int, fetcher scraper.Fetcher, extractor scraper.Extractor, sink scraper.Sink, opts ...Option) (*Pool, error) {
	if fetcher == nil || extractor == nil || sink == nil {
		return nil, errors.New("pool requires a fetcher, extractor, and sink")
	}
	if maxWorkers <= 0 {
		maxWorkers = DefaultMaxWorkers
	}
	p := &Pool{
		maxWorkers: maxWorkers,
		fetcher:    fetcher,
		extractor:  extractor,
		sink:       sink,
		jitter:     UniformJitter{Max: 200 * time.Millisecond},
		console:    io.Discard,
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.jitter == nil {
		p.jitter = UniformJitter{}
	}
	if p.console == nil {
		p.console = io.Discard
	}
	if p.logger == nil {
		p.logger = zap.NewNop()
	}
	return p, nil
}

// Run processes every URL and returns once all of them have finished. At most
// min(maxWorkers, len(urls)) workers are started. Fetch failures and
// incomplete pages are counted and dropped; sink failures are returned.
func (p *Pool) Run(ctx context.Context, urls []scraper.DetailURL) (Summary, error) {
	summary := Summary{Workers: min(p.maxWorkers, len(urls))}
	if summary.Workers == 0 {
		return summary, nil
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		runErrs error
	)
	jobs := make(chan scraper.DetailURL)
	for i := 0; i < summary.Workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			p.metrics.IncActiveWorkers()
			defer p.metrics.DecActiveWorkers()
			logger := p.logger.With(zap.Int("worker", id))

			for u := range jobs {
				outcome, err := p.process(ctx, u, logger)
				p.metrics.ObserveItem(string(u), outcome)

				mu.Lock()
				switch outcome {
				case metrics.OutcomeWritten:
					summary.Written++
				case metrics.OutcomeMiss:
					summary.Misses++
				case metrics.OutcomeFetchError:
					summary.FetchErrors++
				case metrics.OutcomeSinkError:
					summary.SinkErrors++
				case metrics.OutcomeCanceled:
					summary.Canceled++
				}
				runErrs = multierr.Append(runErrs, err)
				mu.Unlock()
			}
		}(i)
	}

feed:
	for _, u := range urls {
		select {
		case <-ctx.Done():
			break feed
		case jobs <- u:
			summary.Dispatched++
		}
	}
	close(jobs)
	wg.Wait()

	if err := ctx.Err(); err != nil {
		runErrs = multierr.Append(runErrs, fmt.Errorf("run interrupted after %d of %d urls: %w", summary.Dispatched, len(urls), err))
	}
	return summary, runErrs
}

// process runs one URL through the pipeline. Only sink failures produce an
// error; the outcome says what happened otherwise.
func (p *Pool) process(ctx context.Context, u scraper.DetailURL, logger *zap.Logger) (metrics.Outcome, error) {
	url := string(u)

	delay := p.jitter.Next()
	p.metrics.ObserveJitter(delay)
	if err := pause(ctx, delay); err != nil {
		return metrics.OutcomeCanceled, nil
	}
	if p.pacer != nil {
		if err := p.pacer.Wait(ctx, url); err != nil {
			logger.Debug("pacer wait aborted", zap.String("url", url), zap.Error(err))
			if ctx.Err() != nil {
				return metrics.OutcomeCanceled, nil
			}
			return metrics.OutcomeFetchError, nil
		}
	}

	start := time.Now()
	raw, err := p.fetcher.Fetch(ctx, url)
	p.metrics.ObserveFetch(url, time.Since(start))
	if err != nil {
		logger.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		// A fetch cut short by the run's own cancellation is not a transport failure.
		if ctx.Err() != nil {
			return metrics.OutcomeCanceled, nil
		}
		return metrics.OutcomeFetchError, nil
	}

	record, err := p.extractor.Extract(raw)
	if err != nil {
		logger.Debug("no record extracted", zap.String("url", url), zap.Error(err))
		return metrics.OutcomeMiss, nil
	}

	if err := p.sink.Append(ctx, record); err != nil {
		logger.Error("append failed", zap.String("url", url), zap.String("title", record.Title), zap.Error(err))
		return metrics.OutcomeSinkError, fmt.Errorf("append %s: %w", url, err)
	}
	p.announce(record)
	return metrics.OutcomeWritten, nil
}

func (p *Pool) announce(r scraper.Record) {
	p.consoleMu.Lock()
	defer p.consoleMu.Unlock()
	if _, err := fmt.Fprintln(p.console, r.Title, r.ReleaseDate, r.Rating, r.Synopsis); err != nil {
		p.logger.Warn("console write failed", zap.Error(err))
	}
}
