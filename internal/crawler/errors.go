package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrNoResults marks an index page that carries the empty-search sentinel.
	ErrNoResults = errors.New("no matching listings")
	// ErrCatalogUnavailable wraps any failure to obtain the region catalog.
	ErrCatalogUnavailable = errors.New("region catalog unavailable")
	// ErrRunInProgress is returned when a run is requested while another is active.
	ErrRunInProgress = errors.New("crawl run already in progress")
)

// TransientError is returned once retries for a retryable failure are exhausted.
type TransientError struct {
	URL        string
	StatusCode int
	Attempts   int
	Err        error
}

func (e *TransientError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("transient failure fetching %s: status %d after %d attempts", e.URL, e.StatusCode, e.Attempts)
	}
	return fmt.Sprintf("transient failure fetching %s after %d attempts: %v", e.URL, e.Attempts, e.Err)
}

func (e *TransientError) Unwrap() error {
	return e.Err
}

// FatalError is returned for responses that retrying cannot fix.
type FatalError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FatalError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.StatusCode)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}
