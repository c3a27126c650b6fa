package crawler

import (
	"context"
	"time"
)

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (FetchResponse, error)
}

// Extractor pulls the marked fields out of fetched HTML documents.
type Extractor interface {
	// ListingFields parses a listing detail document.
	ListingFields(body []byte) (ListingFields, error)
	// ListingLinks returns the raw listing hrefs of an index page.
	ListingLinks(body []byte) ([]string, error)
	// CountText returns the listing count marker text, if the page has one.
	CountText(body []byte) (string, bool, error)
	// NoResults reports whether the index page carries the empty-search sentinel.
	NoResults(body []byte) bool
}

// RegionCatalog supplies the ordered regions to crawl.
type RegionCatalog interface {
	Regions(ctx context.Context) ([]Region, error)
}

// Sink persists snapshots and returns a location describing where they went.
type Sink interface {
	Persist(ctx context.Context, snapshot Snapshot) (string, error)
}

// Publisher pushes snapshot events to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// ProgressReporter receives run lifecycle callbacks from the orchestrator.
type ProgressReporter interface {
	RunStarted(runID string, mode Mode, subregions int)
	SubregionFinished(result SubregionResult)
	CheckpointWritten(label string, records int)
	RunFinished(summary Summary)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}
