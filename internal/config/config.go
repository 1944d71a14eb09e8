// Package config loads and validates scraper configuration via Viper.
package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/JakeFAU/moviemeter-scraper/internal/extract"
	csvsink "github.com/JakeFAU/moviemeter-scraper/internal/sink/csv"
	pgsink "github.com/JakeFAU/moviemeter-scraper/internal/sink/postgres"
)

// DefaultUserAgent is sent with every request unless overridden.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/42.0.2311.135 Safari/537.36 Edge/12.246"

// Sink drivers.
const (
	DriverCSV      = "csv"
	DriverPostgres = "postgres"
)

// Config captures every knob of a scrape run. It is built once and treated as
// immutable afterwards.
type Config struct {
	Catalog CatalogConfig  `mapstructure:"catalog"`
	HTTP    HTTPConfig     `mapstructure:"http"`
	Scrape  ScrapeConfig   `mapstructure:"scrape"`
	Sink    SinkConfig     `mapstructure:"sink"`
	Layout  extract.Layout `mapstructure:"layout"`
	Logging LoggingConfig  `mapstructure:"logging"`
	Metrics MetricsConfig  `mapstructure:"metrics"`
}

// CatalogConfig locates the listing page and the origin its links resolve against.
type CatalogConfig struct {
	URL    string `mapstructure:"url"`
	Origin string `mapstructure:"origin"`
}

// HTTPConfig configures the page fetcher.
type HTTPConfig struct {
	UserAgent    string        `mapstructure:"user_agent"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailOnStatus bool          `mapstructure:"fail_on_status"`
}

// ScrapeConfig governs the worker pool.
type ScrapeConfig struct {
	Concurrency       int           `mapstructure:"concurrency"`
	JitterMax         time.Duration `mapstructure:"jitter_max"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
	Burst             int           `mapstructure:"burst"`
}

// SinkConfig selects and configures the record store.
type SinkConfig struct {
	Driver   string         `mapstructure:"driver"`
	CSV      csvsink.Config `mapstructure:"csv"`
	Postgres pgsink.Config  `mapstructure:"postgres"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool `mapstructure:"development"`
}

// MetricsConfig controls where run metrics are written.
type MetricsConfig struct {
	// Textfile, when set, receives the metric registry in the node exporter
	// text format at the end of a run.
	Textfile string `mapstructure:"textfile"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"concurrency": "scrape.concurrency",
	"output":      "sink.csv.path",
}

// Load builds a Config from defaults, an optional file, MOVIES_* environment
// variables and, when flags is non-nil, any of the flags in flagKeys.
func Load(path string, flags *pflag.FlagSet) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("MOVIES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if flags != nil {
		for name, key := range flagKeys {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return Config{}, fmt.Errorf("bind flag %s: %w", name, err)
			}
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("catalog.url", "https://www.imdb.com/chart/moviemeter/?ref_=nv_mv_mpm")
	v.SetDefault("catalog.origin", "https://imdb.com")
	v.SetDefault("http.user_agent", DefaultUserAgent)
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.fail_on_status", false)
	v.SetDefault("scrape.concurrency", 10)
	v.SetDefault("scrape.jitter_max", "200ms")
	v.SetDefault("scrape.requests_per_second", 0)
	v.SetDefault("scrape.burst", 1)
	v.SetDefault("sink.driver", DriverCSV)
	v.SetDefault("sink.csv.path", "movies.csv")
	v.SetDefault("sink.csv.header", false)
	v.SetDefault("sink.postgres.dsn", "")
	v.SetDefault("sink.postgres.table", "movies")
	v.SetDefault("sink.postgres.max_conns", 10)
	v.SetDefault("sink.postgres.max_conn_lifetime", "30m")
	v.SetDefault("logging.development", true)
	v.SetDefault("metrics.textfile", "")

	layout := extract.DefaultLayout()
	v.SetDefault("layout.catalog_container", layout.CatalogContainer)
	v.SetDefault("layout.catalog_list", layout.CatalogList)
	v.SetDefault("layout.catalog_item", layout.CatalogItem)
	v.SetDefault("layout.catalog_link", layout.CatalogLink)
	v.SetDefault("layout.section", layout.Section)
	v.SetDefault("layout.section_child", layout.SectionChild)
	v.SetDefault("layout.heading_index", layout.HeadingIndex)
	v.SetDefault("layout.heading", layout.Heading)
	v.SetDefault("layout.heading_label", layout.HeadingLabel)
	v.SetDefault("layout.release_marker", layout.ReleaseMarker)
	v.SetDefault("layout.rating", layout.Rating)
	v.SetDefault("layout.synopsis", layout.Synopsis)
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if err := requireAbsolute("catalog.url", c.Catalog.URL); err != nil {
		return err
	}
	if err := requireAbsolute("catalog.origin", c.Catalog.Origin); err != nil {
		return err
	}
	if strings.TrimSpace(c.HTTP.UserAgent) == "" {
		return fmt.Errorf("http.user_agent must be set")
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.Scrape.Concurrency <= 0 {
		return fmt.Errorf("scrape.concurrency must be > 0")
	}
	if c.Scrape.JitterMax < 0 {
		return fmt.Errorf("scrape.jitter_max must be >= 0")
	}
	if c.Scrape.RequestsPerSecond < 0 {
		return fmt.Errorf("scrape.requests_per_second must be >= 0")
	}
	switch c.Sink.Driver {
	case DriverCSV:
		if strings.TrimSpace(c.Sink.CSV.Path) == "" {
			return fmt.Errorf("sink.csv.path must be set when sink.driver is %q", DriverCSV)
		}
	case DriverPostgres:
		if c.Sink.Postgres.DSN == "" {
			return fmt.Errorf("sink.postgres.dsn must be set when sink.driver is %q", DriverPostgres)
		}
	default:
		return fmt.Errorf("unknown sink.driver %q", c.Sink.Driver)
	}
	if err := c.Layout.Validate(); err != nil {
		return fmt.Errorf("invalid layout: %w", err)
	}
	return nil
}

func requireAbsolute(key, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("%s must be an absolute URL, got %q", key, raw)
	}
	return nil
}
