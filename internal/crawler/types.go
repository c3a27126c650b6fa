package crawler

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Mode selects which listing category is crawled.
type Mode string

// Supported crawl modes.
const (
	ModeRent Mode = "rent"
	ModeSale Mode = "sale"
)

// ParseMode accepts the English names as well as the site's own path words.
func ParseMode(raw string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "rent", "kiralik":
		return ModeRent, nil
	case "sale", "satilik":
		return ModeSale, nil
	default:
		return "", fmt.Errorf("unknown crawl mode %q", raw)
	}
}

// ModeSpec bundles everything that differs between the rent and sale crawls.
type ModeSpec struct {
	Mode                   Mode
	PathSegment            string
	Schema                 Schema
	FinalLabel             string
	CheckpointPrefix       string
	DefaultCheckpointEvery int
}

// SpecFor returns the ModeSpec for m.
func SpecFor(m Mode) (ModeSpec, error) {
	switch m {
	case ModeRent:
		return ModeSpec{
			Mode:                   ModeRent,
			PathSegment:            "kiralik-konut",
			Schema:                 RentSchema(),
			FinalLabel:             "apartments_for_rent",
			CheckpointPrefix:       "rented_apartments_intermediate",
			DefaultCheckpointEvery: 100,
		}, nil
	case ModeSale:
		return ModeSpec{
			Mode:             ModeSale,
			PathSegment:      "satilik-konut",
			Schema:           SaleSchema(),
			FinalLabel:       "apartments_for_sale",
			CheckpointPrefix: "sale_apartments_intermediate",
		}, nil
	default:
		return ModeSpec{}, fmt.Errorf("unknown crawl mode %q", m)
	}
}

// Region is a first-level entry of the geographic taxonomy together with its
// ordered sub-regions. Identifiers are already normalized for URL use.
type Region struct {
	ID         string   `json:"id" yaml:"id"`
	Subregions []string `json:"subregions" yaml:"subregions"`
}

// Record is one extracted listing keyed by schema field name.
type Record map[string]string

// ListingFields is the raw material pulled out of a listing document.
type ListingFields struct {
	Price string
	// Location holds province, district and neighborhood in breadcrumb order.
	Location [3]string
	Info     map[string]string
}

// FetchResponse is the result returned by a Fetcher implementation.
type FetchResponse struct {
	URL        string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
	Attempts   int
}

// Snapshot is a point-in-time copy of the run accumulator handed to a Sink.
type Snapshot struct {
	RunID   string
	Mode    Mode
	Label   string
	Columns []string
	Records []Record
	Final   bool
	TakenAt time.Time
}

// SnapshotEvent is published after a snapshot has been persisted.
type SnapshotEvent struct {
	RunID    string    `json:"run_id"`
	Mode     Mode      `json:"mode"`
	Label    string    `json:"label"`
	Final    bool      `json:"final"`
	Records  int       `json:"records"`
	Location string    `json:"location"`
	At       time.Time `json:"at"`
}

// Summary reports the outcome of one orchestrator run.
type Summary struct {
	RunID       string        `json:"run_id"`
	Mode        Mode          `json:"mode"`
	Records     int           `json:"records"`
	Subregions  int           `json:"subregions"`
	Empty       int           `json:"empty"`
	Failed      int           `json:"failed"`
	Checkpoints int           `json:"checkpoints"`
	Elapsed     time.Duration `json:"elapsed"`
	Location    string        `json:"location"`
}
