package crawler

import (
	"context"

	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/metrics"
)

// ListingExtractor turns one listing detail URL into a Record.
type ListingExtractor struct {
	fetcher   Fetcher
	extractor Extractor
	schema    Schema
	logger    *zap.Logger
}

// NewListingExtractor constructs a ListingExtractor for schema.
func NewListingExtractor(fetcher Fetcher, extractor Extractor, schema Schema, logger *zap.Logger) *ListingExtractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ListingExtractor{
		fetcher:   fetcher,
		extractor: extractor,
		schema:    schema,
		logger:    logger,
	}
}

// Extract fetches and parses link. Any failure is logged and reported as ok=false;
// it never reaches the caller as an error.
func (e *ListingExtractor) Extract(ctx context.Context, link string) (rec Record, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("listing extraction panicked", zap.String("url", link), zap.Any("panic", r))
			metrics.ObserveListing("failed")
			rec, ok = nil, false
		}
	}()

	resp, err := e.fetcher.Fetch(ctx, link)
	if err != nil {
		e.logger.Warn("listing fetch failed", zap.String("url", link), zap.Error(err))
		metrics.ObserveListing("failed")
		return nil, false
	}
	fields, err := e.extractor.ListingFields(resp.Body)
	if err != nil {
		e.logger.Warn("listing extraction failed", zap.String("url", link), zap.Error(err))
		metrics.ObserveListing("failed")
		return nil, false
	}
	metrics.ObserveListing("extracted")
	return e.schema.Build(link, fields), true
}
