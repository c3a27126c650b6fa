package crawler

import (
	"fmt"
	"net/url"
	"time"
)

// Defaults mirrored by the viper defaults in internal/config.
const (
	DefaultPageWorkers    = 3
	DefaultListingWorkers = 5
	DefaultSubregionDelay = 500 * time.Millisecond
	DefaultPageSize       = 30
	DefaultMaxPages       = 50
)

// Config holds the settings for a crawl run.
// It is decoupled from Viper so the crawler can be tested on its own.
type Config struct {
	Mode           Mode
	BaseURL        string
	PageWorkers    int
	ListingWorkers int
	SubregionDelay time.Duration
	PageSize       int
	MaxPages       int
	// MaxRegions truncates the catalog after this many regions; 0 crawls all.
	MaxRegions int
	// Regions restricts the run to these region IDs when non-empty.
	Regions []string
	// CheckpointEvery is the snapshot interval in records; 0 disables checkpoints.
	// It only applies when CheckpointProvided is set, otherwise the mode default wins.
	CheckpointEvery    int
	CheckpointProvided bool
	PublishTopic       string
}

// Validate checks for obviously bad configuration combinations.
func (c Config) Validate() error {
	if _, err := SpecFor(c.Mode); err != nil {
		return err
	}
	u, err := url.Parse(c.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("crawler base url %q must be absolute", c.BaseURL)
	}
	if c.PageWorkers <= 0 {
		return fmt.Errorf("crawler.page_workers must be > 0")
	}
	if c.ListingWorkers <= 0 {
		return fmt.Errorf("crawler.listing_workers must be > 0")
	}
	if c.SubregionDelay < 0 {
		return fmt.Errorf("crawler.subregion_delay must be >= 0")
	}
	if c.PageSize <= 0 {
		return fmt.Errorf("crawler.page_size must be > 0")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("crawler.max_pages must be > 0")
	}
	if c.MaxRegions < 0 {
		return fmt.Errorf("crawler.max_regions must be >= 0")
	}
	if c.CheckpointProvided && c.CheckpointEvery < 0 {
		return fmt.Errorf("crawler.checkpoint_every must be >= 0")
	}
	return nil
}

// checkpointInterval resolves the effective checkpoint interval for spec.
func (c Config) checkpointInterval(spec ModeSpec) int {
	if c.CheckpointProvided {
		return c.CheckpointEvery
	}
	return spec.DefaultCheckpointEvery
}
