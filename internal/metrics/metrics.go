// Package metrics exposes Prometheus collectors for the scrape pipeline.
package metrics

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels the terminal state of one detail URL.
type Outcome string

// Item outcomes.
const (
	OutcomeWritten    Outcome = "written"
	OutcomeMiss       Outcome = "miss"
	OutcomeFetchError Outcome = "fetch_error"
	OutcomeSinkError  Outcome = "sink_error"
	// OutcomeCanceled marks items abandoned because the run was canceled
	// before or during their fetch.
	OutcomeCanceled   Outcome = "canceled"
)

// Pipeline owns the collectors updated by the worker pool. A nil *Pipeline is
// valid and records nothing.
type Pipeline struct {
	items          *prometheus.CounterVec
	activeWorkers  prometheus.Gauge
	fetchDuration  *prometheus.HistogramVec
	jitterDelay    prometheus.Histogram
	rateLimitDelay prometheus.Histogram
}

// NewPipeline registers the collectors against reg.
func NewPipeline(reg prometheus.Registerer) (*Pipeline, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	p := &Pipeline{
		items: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "scraper_items_total",
			Help: "Detail pages processed, partitioned by site and outcome.",
		}, []string{"site", "outcome"}),
		activeWorkers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "scraper_active_workers",
			Help: "Number of pool workers currently running.",
		}),
		fetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "scraper_fetch_duration_seconds",
			Help:    "Detail page fetch latency partitioned by site.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		}, []string{"site"}),
		jitterDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_jitter_delay_seconds",
			Help:    "Random delay inserted before each fetch.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.15, 0.2, 0.5},
		}),
		rateLimitDelay: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "scraper_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the shared rate limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10},
		}),
	}
	for _, collector := range []prometheus.Collector{
		p.items,
		p.activeWorkers,
		p.fetchDuration,
		p.jitterDelay,
		p.rateLimitDelay,
	} {
		if err := reg.Register(collector); err != nil {
			return nil, fmt.Errorf("register pipeline collector: %w", err)
		}
	}
	return p, nil
}

// ObserveItem counts one finished detail URL.
func (p *Pipeline) ObserveItem(rawURL string, outcome Outcome) {
	if p == nil {
		return
	}
	p.items.WithLabelValues(SanitizeSite(rawURL), string(outcome)).Inc()
}

// ObserveFetch records fetch latency.
func (p *Pipeline) ObserveFetch(rawURL string, d time.Duration) {
	if p == nil {
		return
	}
	p.fetchDuration.WithLabelValues(SanitizeSite(rawURL)).Observe(d.Seconds())
}

// ObserveJitter records a pre-fetch jitter delay.
func (p *Pipeline) ObserveJitter(d time.Duration) {
	if p == nil {
		return
	}
	p.jitterDelay.Observe(d.Seconds())
}

// ObserveRateLimitDelay records a rate limiter wait.
func (p *Pipeline) ObserveRateLimitDelay(d time.Duration) {
	if p == nil {
		return
	}
	p.rateLimitDelay.Observe(d.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func (p *Pipeline) IncActiveWorkers() {
	if p == nil {
		return
	}
	p.activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func (p *Pipeline) DecActiveWorkers() {
	if p == nil {
		return
	}
	p.activeWorkers.Dec()
}

// SanitizeSite extracts a lowercase hostname, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// WriteTextfile dumps the gatherer in the node exporter textfile format.
func WriteTextfile(path string, g prometheus.Gatherer) error {
	if err := prometheus.WriteToTextfile(path, g); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
