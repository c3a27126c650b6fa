// Package system provides the wall clock used outside tests.
package system

import (
	"context"
	"time"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
)

// Clock implements crawler.Clock and crawler.Pauser on real time.
type Clock struct{}

var (
	_ crawler.Clock  = Clock{}
	_ crawler.Pauser = Clock{}
)

// New creates a new Clock.
func New() *Clock {
	return &Clock{}
}

// Now returns the current time in UTC.
func (Clock) Now() time.Time {
	return time.Now().UTC()
}

// Pause blocks for delay or until ctx ends, whichever comes first.
func (Clock) Pause(ctx context.Context, delay time.Duration) error {
	return crawler.Sleep(ctx, delay)
}
