// Package volume looks up live monthly search volumes for keywords.
package volume

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/sells-group/rankwise/internal/resilience"
)

// Volume is a desktop/mobile monthly search volume pair.
type Volume struct {
	Desktop int `json:"desktop"`
	Mobile  int `json:"mobile"`
}

// Provider looks up the current volume of a keyword text.
type Provider interface {
	Lookup(ctx context.Context, keyword string) (Volume, error)
}

// Option configures the HTTP provider.
type Option func(*HTTPProvider)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(p *HTTPProvider) {
		p.http = hc
	}
}

// WithMinInterval sets the minimum spacing between outbound requests.
func WithMinInterval(d time.Duration) Option {
	return func(p *HTTPProvider) {
		if d > 0 {
			p.limiter = rate.NewLimiter(rate.Every(d), 1)
		} else {
			p.limiter = rate.NewLimiter(rate.Inf, 1)
		}
	}
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(p *HTTPProvider) {
		p.retry = cfg
	}
}

// WithCircuitBreaker overrides the breaker guarding the endpoint.
func WithCircuitBreaker(cb *resilience.CircuitBreaker) Option {
	return func(p *HTTPProvider) {
		p.breaker = cb
	}
}

// HTTPProvider queries a keyword-volume HTTP API. Requests are throttled,
// retried on transient failures, and short-circuited while the endpoint is
// failing.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	breaker *resilience.CircuitBreaker
}

// NewHTTPProvider creates a provider for the API at baseURL.
func NewHTTPProvider(baseURL, apiKey string, opts ...Option) *HTTPProvider {
	p := &HTTPProvider{
		baseURL: baseURL,
		apiKey:  apiKey,
		http:    &http.Client{Timeout: 15 * time.Second},
		limiter: rate.NewLimiter(rate.Every(200*time.Millisecond), 1),
		retry:   resilience.DefaultRetryConfig(),
		breaker: resilience.NewCircuitBreaker("volume", 5, time.Minute),
	}
	p.retry.OnRetry = resilience.RetryLogger("volume")
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Lookup returns the live volume for a keyword. Every failure is returned as
// an ExternalDependencyError so callers can fall back to stored values.
func (p *HTTPProvider) Lookup(ctx context.Context, keyword string) (Volume, error) {
	v, err := resilience.ExecuteVal(ctx, p.breaker, func(ctx context.Context) (Volume, error) {
		return resilience.DoVal(ctx, p.retry, func(ctx context.Context) (Volume, error) {
			return p.fetch(ctx, keyword)
		})
	})
	if err != nil {
		return Volume{}, &resilience.ExternalDependencyError{Service: "volume", Err: err}
	}
	return v, nil
}

func (p *HTTPProvider) fetch(ctx context.Context, keyword string) (Volume, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return Volume{}, eris.Wrap(err, "volume: rate limit wait")
	}

	u := fmt.Sprintf("%s/v1/volume?keyword=%s", p.baseURL, url.QueryEscape(keyword))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return Volume{}, eris.Wrap(err, "volume: create request")
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.http.Do(req)
	if err != nil {
		return Volume{}, eris.Wrap(err, "volume: request")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Volume{}, eris.Wrap(err, "volume: read body")
	}
	if resp.StatusCode != http.StatusOK {
		err := eris.Errorf("volume: status %d: %s", resp.StatusCode, string(body))
		if resilience.IsTransientHTTPStatus(resp.StatusCode) {
			return Volume{}, resilience.NewTransientError(err, resp.StatusCode)
		}
		return Volume{}, err
	}

	var v Volume
	if err := json.Unmarshal(body, &v); err != nil {
		return Volume{}, eris.Wrap(err, "volume: decode response")
	}
	if v.Desktop < 0 || v.Mobile < 0 {
		return Volume{}, eris.Errorf("volume: negative volume for %q", keyword)
	}
	return v, nil
}
