// Package collyfetcher implements scraper.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/moviemeter-scraper/internal/scraper"
)

const defaultTimeout = 30 * time.Second

// Config controls collector behavior. It is captured at construction and never
// mutated afterwards.
type Config struct {
	UserAgent string
	Timeout   time.Duration
	// FailOnStatus turns non-2xx responses into fetch errors instead of
	// passing their bodies through.
	FailOnStatus bool
}

// Fetcher implements scraper.Fetcher using the Colly collector.
type Fetcher struct {
	cfg           Config
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher.
func New(cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
		colly.IgnoreRobotsTxt(),
	)
	c.UserAgent = cfg.UserAgent
	c.ParseHTTPErrorResponse = !cfg.FailOnStatus
	c.WithTransport(newHTTPTransport())
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET. Only transport failures (and non-2xx
// statuses when FailOnStatus is set) are returned as *scraper.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (scraper.RawPage, error) {
	var (
		result   scraper.RawPage
		fetchErr *scraper.FetchError
	)
	collector := f.baseCollector.Clone()
	// Bind the request to ctx so a canceled run aborts the in-flight GET
	// instead of leaving Visit running until the client timeout.
	collector.Context = ctx
	f.configureCollectorHooks(collector, url, &result, &fetchErr)

	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return scraper.RawPage{}, classify(url, nil, ctx.Err())
	case err := <-done:
		if ctxErr := ctx.Err(); ctxErr != nil {
			return scraper.RawPage{}, classify(url, nil, ctxErr)
		}
		if fetchErr != nil {
			return scraper.RawPage{}, fetchErr
		}
		if err != nil {
			return scraper.RawPage{}, classify(url, nil, fmt.Errorf("colly visit failed: %w", err))
		}
		f.logger.Debug("page fetched",
			zap.String("url", result.URL),
			zap.Int("status_code", result.StatusCode),
			zap.Int("bytes", len(result.Body)),
		)
		return result, nil
	}
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	url string,
	result *scraper.RawPage,
	fetchErr **scraper.FetchError,
) {
	hooks.OnRequest(func(r *colly.Request) {
		if f.cfg.UserAgent != "" {
			r.Headers.Set("User-Agent", f.cfg.UserAgent)
		}
	})

	hooks.OnResponse(func(r *colly.Response) {
		*result = scraper.RawPage{
			URL:        url,
			StatusCode: r.StatusCode,
			Body:       append([]byte(nil), r.Body...),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		*fetchErr = classify(url, r, err)
	})
}

// classify maps a collector failure onto a fetch reason. Colly reports
// transport failures with an empty response and status failures with the
// response status code.
func classify(url string, r *colly.Response, err error) *scraper.FetchError {
	if err == nil {
		err = errors.New("unknown colly error")
	}
	fe := &scraper.FetchError{URL: url, Reason: scraper.ReasonNetwork, Err: err}
	if r != nil && r.StatusCode != 0 {
		fe.Reason = scraper.ReasonHTTPStatus
		fe.StatusCode = r.StatusCode
		return fe
	}
	if errors.Is(err, context.DeadlineExceeded) {
		fe.Reason = scraper.ReasonTimeout
		return fe
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		fe.Reason = scraper.ReasonTimeout
	}
	return fe
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   16,
		IdleConnTimeout:       90 * time.Second,
	}
}
