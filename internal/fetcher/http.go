// Package fetcher provides the rate-limited, retrying HTTP client shared by
// provider adapters.
package fetcher

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/Thanhtran-165/nghiencuulaisuat-sub001/internal/resilience"
)

// Options configures the HTTP client.
type Options struct {
	UserAgent    string
	Timeout      time.Duration
	Retry        resilience.RetryConfig
	RateLimiters map[string]*rate.Limiter
}

// DefaultRateLimiters returns the per-host rate limiters for known upstreams.
// Government sites get the conservative budget.
func DefaultRateLimiters() map[string]*rate.Limiter {
	return map[string]*rate.Limiter{
		"www.sbv.gov.vn": rate.NewLimiter(2, 2),
		"vbma.org.vn":    rate.NewLimiter(2, 2),
		"hnx.vn":         rate.NewLimiter(5, 5),
		"timo.vn":        rate.NewLimiter(5, 5),
		"24hmoney.vn":    rate.NewLimiter(5, 5),
		"cafef.vn":       rate.NewLimiter(5, 5),
	}
}

// Client fetches provider payloads with per-host rate limiting and
// transient-error retries. Rate-limit waits count against the caller's
// context, not the per-request timeout.
type Client struct {
	http     *http.Client
	opts     Options
	limiters map[string]*rate.Limiter
}

// New creates a Client with the given options.
func New(opts Options) *Client {
	if opts.Timeout == 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "ratefeed/1.0"
	}
	limiters := make(map[string]*rate.Limiter, len(opts.RateLimiters))
	for k, v := range opts.RateLimiters {
		limiters[k] = v
	}
	return &Client{
		http: &http.Client{
			Timeout: opts.Timeout,
			Transport: &http.Transport{
				MaxIdleConnsPerHost: 10,
				MaxConnsPerHost:     20,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		opts:     opts,
		limiters: limiters,
	}
}

func (c *Client) limiterFor(rawURL string) *rate.Limiter {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rate.NewLimiter(10, 10)
	}
	if lim, ok := c.limiters[u.Host]; ok {
		return lim
	}
	return rate.NewLimiter(10, 10)
}

// Get fetches the URL and returns the response body. Transient failures
// (network errors, 408/429/5xx) are retried per the configured policy;
// other non-2xx statuses fail immediately.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, error) {
	return resilience.DoVal(ctx, c.opts.Retry, func(ctx context.Context) ([]byte, error) {
		if err := c.limiterFor(rawURL).Wait(ctx); err != nil {
			return nil, eris.Wrap(err, "fetcher: rate limiter wait")
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, eris.Wrapf(err, "fetcher: build request for %s", rawURL)
		}
		req.Header.Set("User-Agent", c.opts.UserAgent)

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: get %s", rawURL), 0)
		}
		defer resp.Body.Close() //nolint:errcheck

		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(
				eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL),
				resp.StatusCode,
			)
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return nil, eris.Errorf("fetcher: http %d from %s", resp.StatusCode, rawURL)
		}

		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrapf(err, "fetcher: read body from %s", rawURL), 0)
		}
		return body, nil
	})
}
