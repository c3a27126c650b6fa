package crawler

import (
	"context"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// fanOut runs work for every item with at most limit calls in flight. Results are
// handed to collect from a single goroutine in completion order, so collect may
// append to caller state without locking. A panicking worker is recovered and
// contributes nothing; its siblings keep running.
func fanOut[T, R any](
	ctx context.Context,
	limit int,
	items []T,
	work func(context.Context, T) (R, bool),
	collect func(R),
	logger *zap.Logger,
) {
	if len(items) == 0 {
		return
	}
	if limit <= 0 {
		limit = 1
	}

	results := make(chan R, limit)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for r := range results {
			collect(r)
		}
	}()

	var g errgroup.Group
	g.SetLimit(limit)
	for _, item := range items {
		g.Go(func() error {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("worker panic recovered", zap.Any("item", item), zap.Any("panic", rec))
				}
			}()
			if r, ok := work(ctx, item); ok {
				results <- r
			}
			return nil
		})
	}
	_ = g.Wait()
	close(results)
	<-done
}
