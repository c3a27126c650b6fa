// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
	"github.com/JakeFAU/konut-crawler/internal/extract"
	collyfetcher "github.com/JakeFAU/konut-crawler/internal/fetcher/colly"
	"github.com/JakeFAU/konut-crawler/internal/logging"
	"github.com/JakeFAU/konut-crawler/internal/policy/ratelimit"
	amqppublisher "github.com/JakeFAU/konut-crawler/internal/publisher/amqp"
	"github.com/JakeFAU/konut-crawler/internal/storage/gcs"
	"github.com/JakeFAU/konut-crawler/internal/storage/local"
	"github.com/JakeFAU/konut-crawler/internal/storage/postgres"
	"github.com/JakeFAU/konut-crawler/internal/storage/s3"
)

// Config captures all service configuration knobs loaded via Viper.
type Config struct {
	Site      SiteConfig        `mapstructure:"site"`
	Crawler   CrawlerConfig     `mapstructure:"crawler"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	Catalog   CatalogConfig     `mapstructure:"catalog"`
	Selectors extract.Selectors `mapstructure:"selectors"`
	Storage   StorageConfig     `mapstructure:"storage"`
	Publisher PublisherConfig   `mapstructure:"publisher"`
	Status    StatusConfig      `mapstructure:"status"`
	Schedule  ScheduleConfig    `mapstructure:"schedule"`
	Logging   logging.Config    `mapstructure:"logging"`
}

// SiteConfig points the crawler at the listing site.
type SiteConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CrawlerConfig governs the orchestrator and its worker pools.
type CrawlerConfig struct {
	Mode           string        `mapstructure:"mode"`
	PageWorkers    int           `mapstructure:"page_workers"`
	ListingWorkers int           `mapstructure:"listing_workers"`
	SubregionDelay time.Duration `mapstructure:"subregion_delay"`
	PageSize       int           `mapstructure:"page_size"`
	MaxPages       int           `mapstructure:"max_pages"`
	MaxRegions     int           `mapstructure:"max_regions"`
	Regions        []string      `mapstructure:"regions"`
	// CheckpointEvery < 0 keeps the mode default; 0 disables checkpoints.
	CheckpointEvery int `mapstructure:"checkpoint_every"`
}

// HTTPConfig configures the transport, its retry policy and host throttling.
type HTTPConfig struct {
	UserAgent      string            `mapstructure:"user_agent"`
	Headers        map[string]string `mapstructure:"headers"`
	Timeout        time.Duration     `mapstructure:"timeout"`
	PoolSize       int               `mapstructure:"pool_size"`
	MaxRetries     int               `mapstructure:"max_retries"`
	BackoffInitial time.Duration     `mapstructure:"backoff_initial"`
	BackoffMax     time.Duration     `mapstructure:"backoff_max"`
	RetryStatuses  []int             `mapstructure:"retry_statuses"`
	RateLimitRPS   float64           `mapstructure:"rate_limit_rps"`
	RateLimitBurst int               `mapstructure:"rate_limit_burst"`
	// RateLimitHosts holds per-host overrides as "host=rps" entries.
	RateLimitHosts []string          `mapstructure:"rate_limit_hosts"`
}

func (h HTTPConfig) hostRates() (map[string]float64, error) {
	if len(h.RateLimitHosts) == 0 {
		return nil, nil
	}
	out := make(map[string]float64, len(h.RateLimitHosts))
	for _, entry := range h.RateLimitHosts {
		host, raw, ok := strings.Cut(entry, "=")
		host = strings.TrimSpace(host)
		if !ok || host == "" {
			return nil, fmt.Errorf("http.rate_limit_hosts entry %q must be host=rps", entry)
		}
		rps, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
		if err != nil {
			return nil, fmt.Errorf("http.rate_limit_hosts entry %q: %w", entry, err)
		}
		out[host] = rps
	}
	return out, nil
}

// Catalog sources.
const (
	CatalogHTML = "html"
	CatalogFile = "file"
)

// CatalogConfig selects where the region catalog comes from.
type CatalogConfig struct {
	Source string `mapstructure:"source"`
	URL    string `mapstructure:"url"`
	Path   string `mapstructure:"path"`
}

// Storage backend names accepted in storage.backends.
const (
	BackendLocal    = "local"
	BackendMemory   = "memory"
	BackendGCS      = "gcs"
	BackendS3       = "s3"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// StorageConfig lists the snapshot backends and their settings. Every snapshot is
// written to each backend.
type StorageConfig struct {
	Backends []string        `mapstructure:"backends"`
	Prefix   string          `mapstructure:"prefix"`
	Local    local.Config    `mapstructure:"local"`
	GCS      gcs.Config      `mapstructure:"gcs"`
	S3       s3.Config       `mapstructure:"s3"`
	Postgres postgres.Config `mapstructure:"postgres"`
	SQLite   SQLiteConfig    `mapstructure:"sqlite"`
}

// SQLiteConfig locates the SQLite database file.
type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

// Publisher drivers.
const (
	PublisherNone   = "none"
	PublisherMemory = "memory"
	PublisherPubSub = "pubsub"
	PublisherAMQP   = "amqp"
)

// PublisherConfig selects where snapshot events go.
type PublisherConfig struct {
	Driver    string               `mapstructure:"driver"`
	Topic     string               `mapstructure:"topic"`
	ProjectID string               `mapstructure:"project_id"`
	AMQP      amqppublisher.Config `mapstructure:"amqp"`
	// History is how many events the status API keeps for /v1/events.
	History int `mapstructure:"history"`
}

// StatusConfig controls the status HTTP server. An empty Addr disables it.
type StatusConfig struct {
	Addr   string `mapstructure:"addr"`
	APIKey string `mapstructure:"api_key"`
}

// ScheduleConfig repeats runs on a cron expression. Empty runs once.
type ScheduleConfig struct {
	Cron string `mapstructure:"cron"`
}

// Load builds a Config from disk/environment using a private Viper instance.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("KONUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	SetDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}
	return FromViper(v)
}

// FromViper decodes and validates the configuration held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// SetDefaults registers the default value of every key on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("site.base_url", "https://www.emlakjet.com")

	v.SetDefault("crawler.mode", string(crawler.ModeRent))
	v.SetDefault("crawler.page_workers", crawler.DefaultPageWorkers)
	v.SetDefault("crawler.listing_workers", crawler.DefaultListingWorkers)
	v.SetDefault("crawler.subregion_delay", crawler.DefaultSubregionDelay)
	v.SetDefault("crawler.page_size", crawler.DefaultPageSize)
	v.SetDefault("crawler.max_pages", crawler.DefaultMaxPages)
	v.SetDefault("crawler.max_regions", 0)
	v.SetDefault("crawler.regions", []string{})
	v.SetDefault("crawler.checkpoint_every", -1)

	v.SetDefault("http.user_agent", collyfetcher.DefaultUserAgent)
	v.SetDefault("http.timeout", "20s")
	v.SetDefault("http.pool_size", 20)
	v.SetDefault("http.max_retries", 3)
	v.SetDefault("http.backoff_initial", "1s")
	v.SetDefault("http.backoff_max", "30s")
	v.SetDefault("http.retry_statuses", collyfetcher.DefaultRetryStatuses)
	v.SetDefault("http.rate_limit_rps", 0)
	v.SetDefault("http.rate_limit_burst", 1)
	v.SetDefault("http.rate_limit_hosts", []string{})

	v.SetDefault("catalog.source", CatalogHTML)
	v.SetDefault("catalog.url", "https://www.drdatastats.com/turkiye-il-ve-ilceler-listesi/")

	sel := extract.DefaultSelectors()
	v.SetDefault("selectors.price", sel.Price)
	v.SetDefault("selectors.location", sel.Location)
	v.SetDefault("selectors.about_items", sel.AboutItems)
	v.SetDefault("selectors.count", sel.Count)
	v.SetDefault("selectors.listing_links", sel.ListingLinks)
	v.SetDefault("selectors.no_results_text", sel.NoResultsText)

	v.SetDefault("storage.backends", []string{BackendLocal})
	v.SetDefault("storage.local.base_dir", "data")
	v.SetDefault("storage.postgres.table", "listing_snapshots")
	v.SetDefault("storage.sqlite.path", "data/konut.db")

	v.SetDefault("publisher.driver", PublisherNone)
	v.SetDefault("publisher.topic", "konut-snapshots")
	v.SetDefault("publisher.history", 100)
	v.SetDefault("publisher.amqp.exchange", "konut")
	v.SetDefault("publisher.amqp.publish_timeout", "10s")

	v.SetDefault("status.addr", "")
	v.SetDefault("schedule.cron", "")
	v.SetDefault("logging.development", false)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if _, err := crawler.ParseMode(c.Crawler.Mode); err != nil {
		return fmt.Errorf("crawler.mode: %w", err)
	}
	if _, err := c.CrawlerFor(""); err != nil {
		return err
	}
	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be > 0")
	}
	if c.HTTP.MaxRetries < 0 {
		return fmt.Errorf("http.max_retries must be >= 0")
	}
	if c.HTTP.BackoffMax < c.HTTP.BackoffInitial {
		return fmt.Errorf("http.backoff_max must be >= http.backoff_initial")
	}
	if _, err := c.HTTP.hostRates(); err != nil {
		return err
	}
	switch c.Catalog.Source {
	case CatalogHTML:
	case CatalogFile:
		if c.Catalog.Path == "" {
			return fmt.Errorf("catalog.path is required for the file source")
		}
	default:
		return fmt.Errorf("unknown catalog.source %q", c.Catalog.Source)
	}
	if err := c.Storage.validate(); err != nil {
		return err
	}
	if err := c.Publisher.validate(); err != nil {
		return err
	}
	if c.Schedule.Cron != "" {
		if _, err := cron.ParseStandard(c.Schedule.Cron); err != nil {
			return fmt.Errorf("schedule.cron: %w", err)
		}
	}
	return nil
}

func (s StorageConfig) validate() error {
	if len(s.Backends) == 0 {
		return fmt.Errorf("storage.backends must name at least one backend")
	}
	for _, b := range s.Backends {
		switch b {
		case BackendLocal:
			if s.Local.BaseDir == "" {
				return fmt.Errorf("storage.local.base_dir is required")
			}
		case BackendMemory:
		case BackendGCS:
			if s.GCS.Bucket == "" {
				return fmt.Errorf("storage.gcs.bucket is required")
			}
		case BackendS3:
			if s.S3.Bucket == "" {
				return fmt.Errorf("storage.s3.bucket is required")
			}
		case BackendPostgres:
			if s.Postgres.DSN == "" {
				return fmt.Errorf("storage.postgres.dsn is required")
			}
		case BackendSQLite:
			if s.SQLite.Path == "" {
				return fmt.Errorf("storage.sqlite.path is required")
			}
		default:
			return fmt.Errorf("unknown storage backend %q", b)
		}
	}
	return nil
}

func (p PublisherConfig) validate() error {
	switch p.Driver {
	case "", PublisherNone, PublisherMemory:
	case PublisherPubSub:
		if p.ProjectID == "" {
			return fmt.Errorf("publisher.project_id is required for pubsub")
		}
	case PublisherAMQP:
		if p.AMQP.URL == "" {
			return fmt.Errorf("publisher.amqp.url is required for amqp")
		}
	default:
		return fmt.Errorf("unknown publisher.driver %q", p.Driver)
	}
	if p.Driver != "" && p.Driver != PublisherNone && p.Topic == "" {
		return fmt.Errorf("publisher.topic is required")
	}
	return nil
}

// CrawlerFor builds the orchestrator config. An empty mode uses crawler.mode.
func (c Config) CrawlerFor(mode crawler.Mode) (crawler.Config, error) {
	if mode == "" {
		m, err := crawler.ParseMode(c.Crawler.Mode)
		if err != nil {
			return crawler.Config{}, err
		}
		mode = m
	}
	cc := crawler.Config{
		Mode:            mode,
		BaseURL:         c.Site.BaseURL,
		PageWorkers:     c.Crawler.PageWorkers,
		ListingWorkers:  c.Crawler.ListingWorkers,
		SubregionDelay:  c.Crawler.SubregionDelay,
		PageSize:        c.Crawler.PageSize,
		MaxPages:        c.Crawler.MaxPages,
		MaxRegions:      c.Crawler.MaxRegions,
		Regions:         append([]string(nil), c.Crawler.Regions...),
		CheckpointEvery: c.Crawler.CheckpointEvery,
	}
	cc.CheckpointProvided = c.Crawler.CheckpointEvery >= 0
	if d := c.Publisher.Driver; d != "" && d != PublisherNone {
		cc.PublishTopic = c.Publisher.Topic
	}
	if err := cc.Validate(); err != nil {
		return crawler.Config{}, err
	}
	return cc, nil
}

// Fetcher converts the HTTP section into the transport config.
func (c Config) Fetcher() collyfetcher.Config {
	headers := make(http.Header, len(c.HTTP.Headers))
	for k, v := range c.HTTP.Headers {
		headers.Set(k, v)
	}
	return collyfetcher.Config{
		UserAgent:     c.HTTP.UserAgent,
		Headers:       headers,
		Timeout:       c.HTTP.Timeout,
		PoolSize:      c.HTTP.PoolSize,
		MaxRetries:    c.HTTP.MaxRetries,
		BackoffBase:   c.HTTP.BackoffInitial,
		BackoffMax:    c.HTTP.BackoffMax,
		RetryStatuses: append([]int(nil), c.HTTP.RetryStatuses...),
	}
}

// RateLimit converts the HTTP section into the host limiter config.
func (c Config) RateLimit() ratelimit.Config {
	hosts, _ := c.HTTP.hostRates()
	return ratelimit.Config{
		DefaultRPS:   c.HTTP.RateLimitRPS,
		DefaultBurst: c.HTTP.RateLimitBurst,
		Hosts:        hosts,
	}
}
