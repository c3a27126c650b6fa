package crawler

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/metrics"
)

// SubregionResult is the outcome of crawling one (region, sub-region) pair.
type SubregionResult struct {
	Region    string
	Subregion string
	Records   []Record
	Pages     int
	Path      []State
	Err       error
}

// Reached reports whether the crawl passed through s.
func (r SubregionResult) Reached(s State) bool {
	for _, st := range r.Path {
		if st == s {
			return true
		}
	}
	return false
}

// Outcome classifies the result as "failed", "empty" or "crawled".
func (r SubregionResult) Outcome() string {
	switch {
	case r.Reached(StateFailed):
		return "failed"
	case r.Reached(StateEmpty):
		return "empty"
	default:
		return "crawled"
	}
}

func (r *SubregionResult) enter(s State) {
	r.Path = append(r.Path, s)
}

// SubregionCrawler estimates a sub-region's pagination and crawls all its pages.
type SubregionCrawler struct {
	spec      ModeSpec
	baseURL   string
	fetcher   Fetcher
	extractor Extractor
	pages     *PageCrawler
	workers   int
	pageSize  int
	maxPages  int
	logger    *zap.Logger
}

// NewSubregionCrawler constructs a SubregionCrawler from cfg.
func NewSubregionCrawler(
	cfg Config,
	spec ModeSpec,
	fetcher Fetcher,
	extractor Extractor,
	pages *PageCrawler,
	logger *zap.Logger,
) *SubregionCrawler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubregionCrawler{
		spec:      spec,
		baseURL:   cfg.BaseURL,
		fetcher:   fetcher,
		extractor: extractor,
		pages:     pages,
		workers:   cfg.PageWorkers,
		pageSize:  cfg.PageSize,
		maxPages:  cfg.MaxPages,
		logger:    logger,
	}
}

// Crawl runs the sub-region state machine. Failures never escape: they are logged,
// recorded in the result's Err and Path, and yield no records.
func (c *SubregionCrawler) Crawl(ctx context.Context, region, subregion string) (res SubregionResult) {
	res = SubregionResult{Region: region, Subregion: subregion}
	logger := c.logger.With(zap.String("region", region), zap.String("subregion", subregion))
	res.enter(StateStart)

	defer func() {
		if r := recover(); r != nil {
			res.Err = fmt.Errorf("sub-region crawl panicked: %v", r)
		}
		if res.Err != nil {
			logger.Error("sub-region crawl failed", zap.Error(res.Err))
			res.Records = nil
			res.enter(StateFailed)
		}
		res.enter(StateDone)
		metrics.ObserveSubregion(res.Outcome())
	}()

	base := SubregionURL(c.baseURL, c.spec.PathSegment, region, subregion)
	res.enter(StateFetchFirstPage)
	first, err := c.fetcher.Fetch(ctx, base)
	if err != nil {
		res.Err = fmt.Errorf("fetch first page: %w", err)
		return res
	}

	n, err := EstimatePages(first.Body, c.extractor, c.pageSize, c.maxPages)
	switch {
	case errors.Is(err, ErrNoResults):
		logger.Debug("no listings in sub-region")
		res.enter(StateEmpty)
		return res
	case err != nil:
		res.Err = fmt.Errorf("estimate pages: %w", err)
		return res
	case n == 0:
		logger.Debug("listing count unavailable, skipping sub-region")
		res.enter(StateEmpty)
		return res
	}

	res.enter(StateBuildPageSet)
	pageURLs := PageURLs(base, n)
	res.Pages = n

	res.enter(StateDispatch)
	var merged []Record
	fanOut(ctx, c.workers, pageURLs, func(ctx context.Context, pageURL string) ([]Record, bool) {
		return c.pages.CrawlPage(ctx, pageURL), true
	}, func(records []Record) {
		merged = append(merged, records...)
	}, logger)

	res.enter(StateMerge)
	res.Records = merged
	logger.Info("sub-region crawled", zap.Int("pages", n), zap.Int("records", len(merged)))
	return res
}
