package crawler

import (
	"context"
	"time"
)

// Pauser waits out the politeness delay between sub-regions. It returns early with
// ctx.Err() when the context ends.
type Pauser interface {
	Pause(ctx context.Context, delay time.Duration) error
}

// PauseFunc adapts a function to Pauser.
type PauseFunc func(ctx context.Context, delay time.Duration) error

// Pause calls f.
func (f PauseFunc) Pause(ctx context.Context, delay time.Duration) error { return f(ctx, delay) }

// Sleep blocks for delay or until ctx ends. A non-positive delay only reports
// whether ctx has already ended, so a cancelled run stops before the next
// sub-region even without a delay.
func Sleep(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
