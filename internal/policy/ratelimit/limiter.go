// Package ratelimit throttles outbound fetches with one token bucket per host.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/konut-crawler/internal/metrics"
)

// Config sets the bucket of every host. A non-positive rate means unlimited.
// Hosts overrides DefaultRPS for individual hostnames, e.g. a slower rate for the
// listing site than for the region catalog host.
type Config struct {
	DefaultRPS   float64
	DefaultBurst int
	Hosts        map[string]float64
}

// Limiter hands out request slots per host. Buckets are created lazily and live for
// the life of the process.
type Limiter struct {
	mu      sync.Mutex
	buckets map[string]*rate.Limiter
	rates   map[string]rate.Limit
	rps     rate.Limit
	burst   int
}

func toLimit(rps float64) rate.Limit {
	if rps <= 0 {
		return rate.Inf
	}
	return rate.Limit(rps)
}

// New builds a Limiter from cfg.
func New(cfg Config) *Limiter {
	l := &Limiter{
		buckets: make(map[string]*rate.Limiter),
		rates:   make(map[string]rate.Limit, len(cfg.Hosts)),
		rps:     toLimit(cfg.DefaultRPS),
		burst:   max(cfg.DefaultBurst, 1),
	}
	for host, rps := range cfg.Hosts {
		l.rates[strings.ToLower(host)] = toLimit(rps)
	}
	return l
}

// Wait blocks until the host of rawURL may receive another request.
func (l *Limiter) Wait(ctx context.Context, rawURL string) error {
	host := hostOf(rawURL)
	start := time.Now()
	if err := l.bucket(host).Wait(ctx); err != nil {
		return fmt.Errorf("rate limit wait for %s: %w", host, err)
	}
	// Immediate grants are not delays worth recording.
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay(host, waited)
	}
	return nil
}

func (l *Limiter) bucket(host string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()
	if b, ok := l.buckets[host]; ok {
		return b
	}
	r, ok := l.rates[host]
	if !ok {
		r = l.rps
	}
	b := rate.NewLimiter(r, l.burst)
	l.buckets[host] = b
	return b
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
