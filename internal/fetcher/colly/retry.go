package collyfetcher

import (
	"context"
	"crypto/tls"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"syscall"
	"time"
)

// RetryPolicy decides which failures are retried and how long to wait between
// attempts.
type RetryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
	statuses   map[int]struct{}
	now        func() time.Time
}

// NewRetryPolicy builds a policy allowing maxRetries retries after the first attempt.
func NewRetryPolicy(maxRetries int, baseDelay, maxDelay time.Duration, statuses []int) *RetryPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = time.Second
	}
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}
	set := make(map[int]struct{}, len(statuses))
	for _, s := range statuses {
		set[s] = struct{}{}
	}
	return &RetryPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxDelay:   maxDelay,
		statuses:   set,
		now:        time.Now,
	}
}

// MaxAttempts is the total number of attempts per fetch.
func (p *RetryPolicy) MaxAttempts() int {
	return p.maxRetries + 1
}

// RetryableStatus reports whether a response with code should be retried.
func (p *RetryPolicy) RetryableStatus(code int) bool {
	_, ok := p.statuses[code]
	return ok
}

// RetryableError reports whether a transport failure should be retried.
// Connection-level and timeout failures are retried. An unsupported scheme or a
// certificate error is permanent, and cancellation is never retried.
func (p *RetryPolicy) RetryableError(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		if urlErr.Timeout() {
			return true
		}
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) ||
		errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, io.EOF) ||
		errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var certErr *tls.CertificateVerificationError
	if errors.As(err, &certErr) {
		return false
	}
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return dnsErr.IsTimeout || dnsErr.IsTemporary
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Backoff returns the wait before attempt+1, where attempt counts from 1.
// A Retry-After header longer than the computed delay wins; both are capped.
func (p *RetryPolicy) Backoff(attempt int, headers http.Header) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := p.baseDelay
	for i := 1; i < attempt && delay < p.maxDelay; i++ {
		delay *= 2
	}
	if after, ok := p.retryAfter(headers); ok && after > delay {
		delay = after
	}
	if delay > p.maxDelay {
		delay = p.maxDelay
	}
	return delay
}

func (p *RetryPolicy) retryAfter(headers http.Header) (time.Duration, bool) {
	if headers == nil {
		return 0, false
	}
	raw := strings.TrimSpace(headers.Get("Retry-After"))
	if raw == "" {
		return 0, false
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second, true
	}
	if at, err := http.ParseTime(raw); err == nil {
		if d := at.Sub(p.now()); d > 0 {
			return d, true
		}
		return 0, true
	}
	return 0, false
}

func sleepWithContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
