// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerFetchesTotal           *prometheus.CounterVec
	crawlerBytesTotal             *prometheus.CounterVec
	crawlerRetriesTotal           *prometheus.CounterVec
	crawlerListingsTotal          *prometheus.CounterVec
	crawlerPagesTotal             *prometheus.CounterVec
	crawlerPageListings           prometheus.Histogram
	crawlerSubregionsTotal        *prometheus.CounterVec
	crawlerSnapshotsTotal         *prometheus.CounterVec
	crawlerRecordsAccumulated     prometheus.Gauge
	crawlerRunsTotal              *prometheus.CounterVec
	crawlerRateLimitDelaysSeconds *prometheus.HistogramVec
	httpRequestsTotal             *prometheus.CounterVec
	httpRequestDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times; every Observe helper calls it.
func Init() {
	once.Do(func() {
		crawlerFetchesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetches_total",
				Help: "Total number of fetches, labeled by site and outcome.",
			},
			[]string{"site", "outcome"},
		)

		crawlerBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_bytes_total",
				Help: "Total number of bytes fetched, labeled by site.",
			},
			[]string{"site"},
		)

		crawlerRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_retries_total",
				Help: "Total number of fetch retries, labeled by site and reason.",
			},
			[]string{"site", "reason"},
		)

		crawlerListingsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_listings_total",
				Help: "Total number of listing detail pages processed, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerPagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_index_pages_total",
				Help: "Total number of index pages processed, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerPageListings = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "crawler_index_page_records",
				Help:    "Records extracted per crawled index page.",
				Buckets: []float64{0, 1, 5, 10, 20, 30, 40},
			},
		)

		crawlerSubregionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_subregions_total",
				Help: "Total number of sub-regions processed, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		crawlerSnapshotsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_snapshots_total",
				Help: "Total number of snapshot writes, labeled by kind and status.",
			},
			[]string{"kind", "status"},
		)

		crawlerRecordsAccumulated = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_records_accumulated",
				Help: "Records accumulated by the current run.",
			},
		)

		crawlerRunsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_runs_total",
				Help: "Total number of crawl runs, labeled by status.",
			},
			[]string{"status"},
		)

		crawlerRateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	Init()
	return promhttp.Handler()
}

// ObserveFetch records one completed fetch and the bytes it returned.
func ObserveFetch(site, outcome string, bytesFetched int) {
	Init()
	sanitizedSite := SanitizeSite(site)
	crawlerFetchesTotal.WithLabelValues(sanitizedSite, outcome).Inc()
	if bytesFetched > 0 {
		crawlerBytesTotal.WithLabelValues(sanitizedSite).Add(float64(bytesFetched))
	}
}

// ObserveRetry counts a retried fetch attempt.
func ObserveRetry(site, reason string) {
	Init()
	crawlerRetriesTotal.WithLabelValues(SanitizeSite(site), reason).Inc()
}

// ObserveListing counts a processed listing detail page.
func ObserveListing(status string) {
	Init()
	crawlerListingsTotal.WithLabelValues(status).Inc()
}

// ObservePage counts a processed index page and the records it produced.
func ObservePage(status string, records int) {
	Init()
	crawlerPagesTotal.WithLabelValues(status).Inc()
	if status == "crawled" {
		crawlerPageListings.Observe(float64(records))
	}
}

// ObserveSubregion counts a finished sub-region by outcome.
func ObserveSubregion(outcome string) {
	Init()
	crawlerSubregionsTotal.WithLabelValues(outcome).Inc()
}

// ObserveCheckpoint counts a snapshot write.
func ObserveCheckpoint(kind, status string) {
	Init()
	crawlerSnapshotsTotal.WithLabelValues(kind, status).Inc()
}

// SetRecordsAccumulated sets the size of the run accumulator.
func SetRecordsAccumulated(n int) {
	Init()
	crawlerRecordsAccumulated.Set(float64(n))
}

// ObserveRun counts a finished run.
func ObserveRun(status string) {
	Init()
	crawlerRunsTotal.WithLabelValues(status).Inc()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	crawlerRateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
