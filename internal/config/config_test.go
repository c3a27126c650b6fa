package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

func TestLoadDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := Load("")
	require.NoError(t, err)

	require.Equal(t, "rent", cfg.Crawler.Mode)
	require.Equal(t, []string{BackendLocal}, cfg.Storage.Backends)
	require.Equal(t, 20*time.Second, cfg.HTTP.Timeout)
	require.Equal(t, CatalogHTML, cfg.Catalog.Source)
	require.Equal(t, ".styles_price__6zH_9", cfg.Selectors.Price)

	cc, err := cfg.CrawlerFor("")
	require.NoError(t, err)
	require.Equal(t, crawler.ModeRent, cc.Mode)
	require.Equal(t, 3, cc.PageWorkers)
	require.Equal(t, 5, cc.ListingWorkers)
	require.False(t, cc.CheckpointProvided)
	require.Empty(t, cc.PublishTopic)
}

func TestLoadWithFileOverrides(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
site:
  base_url: http://127.0.0.1:8080
crawler:
  mode: satilik
  page_workers: 2
  listing_workers: 8
  subregion_delay: 250ms
  max_regions: 3
  regions: [istanbul, ankara]
  checkpoint_every: 100
http:
  user_agent: konut-test
  timeout: 5s
  max_retries: 1
  headers:
    accept-language: tr-TR
  rate_limit_rps: 2.5
  rate_limit_hosts: ["www.drdatastats.com=0.5"]
catalog:
  source: file
  path: regions.yaml
storage:
  backends: [local, sqlite]
  local:
    base_dir: out
  sqlite:
    path: out/konut.db
publisher:
  driver: memory
  topic: snapshots
schedule:
  cron: "0 3 * * *"
logging:
  development: true
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	cc, err := cfg.CrawlerFor("")
	require.NoError(t, err)
	require.Equal(t, crawler.ModeSale, cc.Mode)
	require.Equal(t, "http://127.0.0.1:8080", cc.BaseURL)
	require.Equal(t, 250*time.Millisecond, cc.SubregionDelay)
	require.Equal(t, []string{"istanbul", "ankara"}, cc.Regions)
	require.Equal(t, 3, cc.MaxRegions)
	require.True(t, cc.CheckpointProvided)
	require.Equal(t, 100, cc.CheckpointEvery)
	require.Equal(t, "snapshots", cc.PublishTopic)

	rentCfg, err := cfg.CrawlerFor(crawler.ModeRent)
	require.NoError(t, err)
	require.Equal(t, crawler.ModeRent, rentCfg.Mode)

	fc := cfg.Fetcher()
	require.Equal(t, "konut-test", fc.UserAgent)
	require.Equal(t, "tr-TR", fc.Headers.Get("Accept-Language"))
	require.Equal(t, 5*time.Second, fc.Timeout)
	require.Equal(t, 1, fc.MaxRetries)

	rl := cfg.RateLimit()
	require.InDelta(t, 2.5, rl.DefaultRPS, 0.001)
	require.InDelta(t, 0.5, rl.Hosts["www.drdatastats.com"], 0.001)
	require.True(t, cfg.Logging.Development)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("KONUT_CRAWLER_MODE", "sale")
	t.Setenv("KONUT_CRAWLER_CHECKPOINT_EVERY", "0")

	cfg, err := Load("")
	require.NoError(t, err)
	cc, err := cfg.CrawlerFor("")
	require.NoError(t, err)
	require.Equal(t, crawler.ModeSale, cc.Mode)
	require.True(t, cc.CheckpointProvided)
	require.Zero(t, cc.CheckpointEvery)
}

func TestLoadMissingFile(t *testing.T) {
	t.Parallel()

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base, err := Load("")
	require.NoError(t, err)

	tests := []struct {
		name   string
		mutate func(c *Config)
		want   string
	}{
		{"unknown mode", func(c *Config) { c.Crawler.Mode = "lease" }, "crawler.mode"},
		{"relative base url", func(c *Config) { c.Site.BaseURL = "/emlak" }, "base url"},
		{"no page workers", func(c *Config) { c.Crawler.PageWorkers = 0 }, "crawler.page_workers"},
		{"zero timeout", func(c *Config) { c.HTTP.Timeout = 0 }, "http.timeout"},
		{"backoff inverted", func(c *Config) { c.HTTP.BackoffMax = time.Millisecond }, "http.backoff_max"},
		{"file catalog without path", func(c *Config) { c.Catalog.Source = CatalogFile }, "catalog.path"},
		{"unknown catalog", func(c *Config) { c.Catalog.Source = "ftp" }, "catalog.source"},
		{"no backends", func(c *Config) { c.Storage.Backends = nil }, "storage.backends"},
		{"unknown backend", func(c *Config) { c.Storage.Backends = []string{"tape"} }, "tape"},
		{"gcs without bucket", func(c *Config) { c.Storage.Backends = []string{BackendGCS} }, "storage.gcs.bucket"},
		{"s3 without bucket", func(c *Config) { c.Storage.Backends = []string{BackendS3} }, "storage.s3.bucket"},
		{"postgres without dsn", func(c *Config) { c.Storage.Backends = []string{BackendPostgres} }, "storage.postgres.dsn"},
		{"pubsub without project", func(c *Config) { c.Publisher.Driver = PublisherPubSub }, "publisher.project_id"},
		{"amqp without url", func(c *Config) { c.Publisher.Driver = PublisherAMQP }, "publisher.amqp.url"},
		{"unknown publisher", func(c *Config) { c.Publisher.Driver = "kafka" }, "publisher.driver"},
		{"bad host rate", func(c *Config) { c.HTTP.RateLimitHosts = []string{"emlakjet.com"} }, "http.rate_limit_hosts"},
		{"bad cron", func(c *Config) { c.Schedule.Cron = "every day" }, "schedule.cron"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := base
			cfg.Storage.Backends = append([]string(nil), base.Storage.Backends...)
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			require.True(t, strings.Contains(err.Error(), tt.want), "got %v", err)
		})
	}
}
