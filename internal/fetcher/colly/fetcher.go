// Package collyfetcher implements crawler.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/konut-crawler/internal/crawler"
	"github.com/JakeFAU/konut-crawler/internal/metrics"
)

// DefaultUserAgent is sent when no user agent is configured.
const DefaultUserAgent = "Mozilla Firefox 12.0"

// DefaultRetryStatuses are the response codes treated as transient.
var DefaultRetryStatuses = []int{
	http.StatusTooManyRequests,
	http.StatusInternalServerError,
	http.StatusBadGateway,
	http.StatusServiceUnavailable,
	http.StatusGatewayTimeout,
}

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	Headers       http.Header
	Timeout       time.Duration
	PoolSize      int
	MaxRetries    int
	BackoffBase   time.Duration
	BackoffMax    time.Duration
	RetryStatuses []int
}

// Waiter throttles outbound requests; *ratelimit.Limiter satisfies it.
type Waiter interface {
	Wait(ctx context.Context, rawURL string) error
}

// Fetcher implements crawler.Fetcher using the Colly collector. All fetches share
// one pooled transport; every call runs on a clone of the base collector.
type Fetcher struct {
	cfg           Config
	transport     http.RoundTripper
	baseCollector *colly.Collector
	retry         *RetryPolicy
	limiter       Waiter
	sleep         func(context.Context, time.Duration) error
	logger        *zap.Logger
}

var _ crawler.Fetcher = (*Fetcher)(nil)

type collectorHooks interface {
	OnRequest(colly.RequestCallback)
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// Option customizes a Fetcher.
type Option func(*Fetcher)

// WithLimiter throttles every attempt through w.
func WithLimiter(w Waiter) Option {
	return func(f *Fetcher) { f.limiter = w }
}

// WithLogger sets the fetcher logger.
func WithLogger(logger *zap.Logger) Option {
	return func(f *Fetcher) {
		if logger != nil {
			f.logger = logger
		}
	}
}

// WithTransport replaces the pooled HTTP transport.
func WithTransport(rt http.RoundTripper) Option {
	return func(f *Fetcher) { f.transport = rt }
}

// New builds a Fetcher.
func New(cfg Config, opts ...Option) *Fetcher {
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = 10
	}
	if cfg.RetryStatuses == nil {
		cfg.RetryStatuses = DefaultRetryStatuses
	}

	f := &Fetcher{
		cfg:       cfg,
		transport: newHTTPTransport(cfg.PoolSize),
		retry:     NewRetryPolicy(cfg.MaxRetries, cfg.BackoffBase, cfg.BackoffMax, cfg.RetryStatuses),
		sleep:     sleepWithContext,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}

	c := colly.NewCollector(colly.Async(false))
	c.AllowURLRevisit = true
	c.ParseHTTPErrorResponse = true
	c.IgnoreRobotsTxt = true
	c.UserAgent = cfg.UserAgent
	c.SetRequestTimeout(cfg.Timeout)
	c.WithTransport(f.transport)
	f.baseCollector = c
	return f
}

// Fetch GETs rawURL, retrying transient failures with exponential backoff.
// Exhausted retries yield *crawler.TransientError; other non-2xx responses yield
// *crawler.FatalError. Context errors are returned as soon as they are seen.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	start := time.Now()
	maxAttempts := f.retry.MaxAttempts()

	for attempt := 1; ; attempt++ {
		if f.limiter != nil {
			if err := f.limiter.Wait(ctx, rawURL); err != nil {
				return crawler.FetchResponse{}, err
			}
		}

		resp, err := f.attempt(ctx, rawURL)
		if ctxErr := ctx.Err(); ctxErr != nil {
			metrics.ObserveFetch(rawURL, "canceled", 0)
			return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", ctxErr)
		}

		var (
			reason  string
			headers http.Header
		)
		switch {
		case err != nil && f.retry.RetryableError(err):
			reason = "transport"
		case err != nil:
			metrics.ObserveFetch(rawURL, "fatal", 0)
			return crawler.FetchResponse{}, &crawler.FatalError{URL: rawURL, Err: err}
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			resp.Attempts = attempt
			resp.Duration = time.Since(start)
			metrics.ObserveFetch(rawURL, "ok", len(resp.Body))
			return resp, nil
		case f.retry.RetryableStatus(resp.StatusCode):
			reason = fmt.Sprintf("status_%d", resp.StatusCode)
			headers = resp.Headers
		default:
			metrics.ObserveFetch(rawURL, "fatal", len(resp.Body))
			return crawler.FetchResponse{}, &crawler.FatalError{URL: rawURL, StatusCode: resp.StatusCode}
		}

		if attempt >= maxAttempts {
			metrics.ObserveFetch(rawURL, "exhausted", 0)
			return crawler.FetchResponse{}, &crawler.TransientError{
				URL:        rawURL,
				StatusCode: resp.StatusCode,
				Attempts:   attempt,
				Err:        err,
			}
		}

		delay := f.retry.Backoff(attempt, headers)
		metrics.ObserveRetry(rawURL, reason)
		f.logger.Debug("retrying fetch",
			zap.String("url", rawURL),
			zap.Int("attempt", attempt),
			zap.String("reason", reason),
			zap.Duration("backoff", delay),
		)
		if err := f.sleep(ctx, delay); err != nil {
			return crawler.FetchResponse{}, fmt.Errorf("colly fetch canceled: %w", err)
		}
	}
}

// attempt performs one GET. A non-nil error means no usable response arrived.
func (f *Fetcher) attempt(ctx context.Context, rawURL string) (crawler.FetchResponse, error) {
	var (
		result   crawler.FetchResponse
		fetchErr error
	)
	collector := f.buildCollector(ctx, time.Now(), &result, &fetchErr)
	if err := f.runCollector(ctx, collector, rawURL, &fetchErr); err != nil {
		return crawler.FetchResponse{}, err
	}
	return result, nil
}

func (f *Fetcher) buildCollector(
	ctx context.Context,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) *colly.Collector {
	collector := f.baseCollector.Clone()
	collector.Context = ctx
	collector.UserAgent = f.cfg.UserAgent
	collector.SetRequestTimeout(f.cfg.Timeout)
	collector.WithTransport(f.transport)
	f.configureCollectorHooks(collector, start, result, fetchErr)
	return collector
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	start time.Time,
	result *crawler.FetchResponse,
	fetchErr *error,
) {
	hooks.OnRequest(func(r *colly.Request) {
		f.copyHeaders(r)
	})

	hooks.OnResponse(func(r *colly.Response) {
		var headers http.Header
		if r.Headers != nil {
			headers = r.Headers.Clone()
		}
		*result = crawler.FetchResponse{
			URL:        r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Headers:    headers,
			Body:       append([]byte(nil), r.Body...),
			Duration:   time.Since(start),
		}
	})

	hooks.OnError(func(_ *colly.Response, err error) {
		*fetchErr = err
	})
}

func (f *Fetcher) runCollector(ctx context.Context, collector *colly.Collector, url string, fetchErr *error) error {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("colly fetch canceled: %w", ctx.Err())
	case err := <-done:
		if err != nil {
			return fmt.Errorf("colly visit failed: %w", err)
		}
		if *fetchErr != nil {
			return fmt.Errorf("colly response failed: %w", *fetchErr)
		}
		return nil
	}
}

func (f *Fetcher) copyHeaders(r *colly.Request) {
	if f.cfg.Headers == nil {
		return
	}
	for key, values := range f.cfg.Headers {
		for _, v := range values {
			r.Headers.Add(key, v)
		}
	}
}

func newHTTPTransport(poolSize int) *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          poolSize * 2,
		MaxIdleConnsPerHost:   poolSize,
		IdleConnTimeout:       90 * time.Second,
	}
}
