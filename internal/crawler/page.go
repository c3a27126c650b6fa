package crawler

import (
	"context"
	"net/url"

	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/metrics"
)

// PageCrawler crawls one index page and every listing it links to.
type PageCrawler struct {
	fetcher   Fetcher
	extractor Extractor
	listings  *ListingExtractor
	base      *url.URL
	workers   int
	logger    *zap.Logger
}

// NewPageCrawler constructs a PageCrawler. Relative listing links are resolved
// against base; workers bounds the listing fetches in flight.
func NewPageCrawler(
	fetcher Fetcher,
	extractor Extractor,
	listings *ListingExtractor,
	base *url.URL,
	workers int,
	logger *zap.Logger,
) *PageCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PageCrawler{
		fetcher:   fetcher,
		extractor: extractor,
		listings:  listings,
		base:      base,
		workers:   workers,
		logger:    logger,
	}
}

// CrawlPage returns the records of every listing on pageURL that could be
// extracted, in completion order. A page that cannot be fetched or parsed yields
// no records.
func (p *PageCrawler) CrawlPage(ctx context.Context, pageURL string) []Record {
	resp, err := p.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		p.logger.Warn("index page fetch failed", zap.String("url", pageURL), zap.Error(err))
		metrics.ObservePage("failed", 0)
		return nil
	}
	hrefs, err := p.extractor.ListingLinks(resp.Body)
	if err != nil {
		p.logger.Warn("index page parse failed", zap.String("url", pageURL), zap.Error(err))
		metrics.ObservePage("failed", 0)
		return nil
	}
	links := ResolveLinks(p.base, hrefs)

	var records []Record
	fanOut(ctx, p.workers, links, p.listings.Extract, func(rec Record) {
		records = append(records, rec)
	}, p.logger)

	p.logger.Debug("index page crawled",
		zap.String("url", pageURL),
		zap.Int("links", len(links)),
		zap.Int("records", len(records)),
	)
	metrics.ObservePage("crawled", len(records))
	return records
}
