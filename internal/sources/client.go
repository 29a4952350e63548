package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/lepinkainen/bookfeed/internal/config"
	errs "github.com/lepinkainen/bookfeed/internal/errors"
	"github.com/lepinkainen/bookfeed/internal/metrics"
	"github.com/lepinkainen/bookfeed/internal/ratelimit"
)

const userAgent = "bookfeed/1.0 (+https://github.com/lepinkainen/bookfeed)"

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// options are shared by every fetcher constructor.
type options struct {
	httpClient HTTPDoer
	metrics    *metrics.Manager
	limiter    *ratelimit.Limiter
}

// Option is a functional option for configuring a fetcher.
type Option func(*options)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(o *options) {
		if c != nil {
			o.httpClient = c
		}
	}
}

// WithMetrics records request outcomes on m.
func WithMetrics(m *metrics.Manager) Option {
	return func(o *options) { o.metrics = m }
}

// WithRateLimiter shares an existing limiter, e.g. between a fetcher and a
// lookup client hitting the same API.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(o *options) {
		if l != nil {
			o.limiter = l
		}
	}
}

// client performs paced JSON GETs against one catalog API.
type client struct {
	name    string
	baseURL string
	http    HTTPDoer
	limiter *ratelimit.Limiter
	timeout time.Duration
	backoff time.Duration
	metrics *metrics.Manager
}

func newClient(name string, s config.SourceSettings, opts []Option) *client {
	o := options{httpClient: &http.Client{}}
	for _, opt := range opts {
		opt(&o)
	}
	if o.limiter == nil {
		o.limiter = ratelimit.New(name, s.RequestsPerSecond)
	}
	return &client{
		name:    name,
		baseURL: strings.TrimSuffix(s.BaseURL, "/"),
		http:    o.httpClient,
		limiter: o.limiter,
		timeout: s.RequestTimeout,
		backoff: s.RateLimitBackoff,
		metrics: o.metrics,
	}
}

// getJSON waits for the limiter, performs one request under the per-request
// timeout and decodes the body into target. A 429 puts the limiter into
// backoff and returns a *errors.RateLimitError.
func (c *client) getJSON(ctx context.Context, endpoint string, target any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(c.name, metrics.OutcomeError)
		return fmt.Errorf("%s request failed: %w", c.name, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusTooManyRequests {
		c.metrics.ObserveRequest(c.name, metrics.OutcomeRateLimited)
		retryAfter := parseRetryAfter(resp.Header.Get("Retry-After"))
		c.limiter.Backoff(max(c.backoff, retryAfter))
		return &errs.RateLimitError{
			Message:    c.name + " rate limit exceeded",
			Source:     c.name,
			RetryAfter: retryAfter,
		}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.metrics.ObserveRequest(c.name, metrics.OutcomeError)
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 512))
		return errs.NewStatusError(c.name, resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
		c.metrics.ObserveRequest(c.name, metrics.OutcomeError)
		return fmt.Errorf("%s: malformed response: %w", c.name, err)
	}

	c.metrics.ObserveRequest(c.name, metrics.OutcomeOK)
	return nil
}

// parseRetryAfter understands the delta-seconds form of Retry-After.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
