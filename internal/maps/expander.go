package maps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"sitebrief-backend-go/pkg/cache"
)

// LinkExpander resolves any supported maps link, short or long, to a Business.
type LinkExpander interface {
	Expand(ctx context.Context, rawURL string) (*Business, error)
}

// HTTPExpander follows short-link redirects to reach a parseable long URL.
// Long URLs are parsed directly without any network round trip.
type HTTPExpander struct {
	client *http.Client
}

// NewHTTPExpander creates an HTTPExpander. A nil client gets a default with a
// 10 second timeout.
func NewHTTPExpander(client *http.Client) *HTTPExpander {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	// Stop at the first redirect; the Location header carries the long URL.
	wrapped := *client
	wrapped.CheckRedirect = func(req *http.Request, via []*http.Request) error {
		return http.ErrUseLastResponse
	}
	return &HTTPExpander{client: &wrapped}
}

// Expand resolves rawURL to a Business.
func (e *HTTPExpander) Expand(ctx context.Context, rawURL string) (*Business, error) {
	if !IsShortLink(rawURL) {
		return ParseLink(rawURL)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedLink, err)
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to expand short link %q: %w", rawURL, err)
	}
	defer resp.Body.Close()

	location := resp.Header.Get("Location")
	if resp.StatusCode < 300 || resp.StatusCode >= 400 || location == "" {
		return nil, fmt.Errorf("%w: short link %q did not redirect (status %d)", ErrUnsupportedLink, rawURL, resp.StatusCode)
	}

	biz, err := ParseLink(location)
	if err != nil {
		return nil, err
	}
	biz.SourceURL = rawURL
	return biz, nil
}

// CachedExpander memoizes expansion results in an external TTL cache, keyed by
// the raw URL. A cache failure is logged and falls through to the inner
// expander; the cache is an optimization, never a dependency.
type CachedExpander struct {
	inner LinkExpander
	cache cache.Cache
	ttl   time.Duration
}

// NewCachedExpander wraps inner with a TTL cache.
func NewCachedExpander(inner LinkExpander, c cache.Cache, ttl time.Duration) *CachedExpander {
	return &CachedExpander{inner: inner, cache: c, ttl: ttl}
}

// Expand returns a cached Business for rawURL or expands and caches it.
func (e *CachedExpander) Expand(ctx context.Context, rawURL string) (*Business, error) {
	key := "maps:expand:" + rawURL

	cached, err := e.cache.Get(ctx, key)
	if err == nil {
		var biz Business
		if jsonErr := json.Unmarshal([]byte(cached), &biz); jsonErr == nil {
			return &biz, nil
		}
		log.Printf("Warning: discarding unreadable cache entry for %q", rawURL)
	} else if !errors.Is(err, cache.ErrCacheMiss) {
		log.Printf("Warning: cache lookup failed for %q: %v", rawURL, err)
	}

	biz, err := e.inner.Expand(ctx, rawURL)
	if err != nil {
		return nil, err
	}

	if payload, jsonErr := json.Marshal(biz); jsonErr == nil {
		if setErr := e.cache.Set(ctx, key, string(payload), e.ttl); setErr != nil {
			log.Printf("Warning: failed to cache expansion for %q: %v", rawURL, setErr)
		}
	}
	return biz, nil
}
