package ics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"syscall"
	"time"

	appLog "kal/internal/log"
)

const (
	DefaultRetries = 5
	DefaultBackoff = 100 * time.Millisecond

	maxBodySize = 32 << 20
)

// Cache persists conditional-request metadata and bodies between runs.
// A *store.Bucket satisfies it.
type Cache interface {
	Get(key string, v any) (bool, error)
	Put(key string, v any) error
}

// FetchResult contains the outcome of fetching a single feed.
type FetchResult struct {
	URL       string
	Body      []byte // ICS payload (either freshly fetched or from cache)
	FromCache bool   // true if we reused cached body due to 304
}

// cacheEntry holds HTTP cache metadata and the last body for a single URL.
type cacheEntry struct {
	ETag         string    `json:"etag,omitempty"`
	LastModified string    `json:"last_modified,omitempty"`
	UpdatedAt    time.Time `json:"updated_at"`
	Body         []byte    `json:"body"`
}

// Fetcher downloads ICS feeds, retrying transient server errors and
// honoring ETag / Last-Modified when a Cache is configured.
type Fetcher struct {
	client  *http.Client
	cache   Cache
	retries int
	backoff time.Duration
}

type Option func(*Fetcher)

func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) { f.client = c }
}

func WithCache(c Cache) Option {
	return func(f *Fetcher) { f.cache = c }
}

// WithRetry sets how many times a 500/502/503/504 answer is retried and the
// first backoff delay, which doubles on every retry.
func WithRetry(retries int, backoff time.Duration) Option {
	return func(f *Fetcher) {
		f.retries = retries
		f.backoff = backoff
	}
}

func NewFetcher(opts ...Option) *Fetcher {
	f := &Fetcher{
		client: &http.Client{
			Timeout: 30 * time.Second,
		},
		retries: DefaultRetries,
		backoff: DefaultBackoff,
	}
	for _, o := range opts {
		o(f)
	}
	return f
}

func retryable(status int) bool {
	switch status {
	case http.StatusInternalServerError, http.StatusBadGateway,
		http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}

// Fetch downloads the feed at rawURL.
//
// Network and status errors are always returned; the cache is only used to
// send conditional headers and to serve a 304 answer.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (FetchResult, error) {
	if err := ValidateURL(rawURL); err != nil {
		return FetchResult{}, err
	}
	redacted := redactURL(rawURL)

	var cached cacheEntry
	hasCache := false
	if f.cache != nil {
		ok, err := f.cache.Get(rawURL, &cached)
		if err != nil {
			appLog.Warn("feed cache read failed", "url", redacted, "err", err)
		}
		hasCache = ok && err == nil && len(cached.Body) > 0
	}

	appLog.Debug("feed fetch start", "url", redacted)

	resp, err := f.do(ctx, rawURL, redacted, cached, hasCache)
	if err != nil {
		return FetchResult{}, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		if strings.Contains(strings.ToLower(resp.Header.Get("Content-Type")), "html") {
			return FetchResult{}, fmt.Errorf("%w: %s answered with an html page", ErrFeedUnavailable, redacted)
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
		if err != nil {
			return FetchResult{}, classify(err, redacted)
		}

		if f.cache != nil {
			entry := cacheEntry{
				ETag:         resp.Header.Get("ETag"),
				LastModified: resp.Header.Get("Last-Modified"),
				UpdatedAt:    time.Now().UTC(),
				Body:         body,
			}
			if entry.ETag != "" || entry.LastModified != "" {
				if err := f.cache.Put(rawURL, entry); err != nil {
					// Log but still return the freshly fetched body.
					appLog.Error("feed cache save failed", err, "url", redacted)
				}
			}
		}

		appLog.Info("feed fetch success", "url", redacted, "bytes", len(body), "from_cache", false)
		return FetchResult{URL: rawURL, Body: body}, nil

	case http.StatusNotModified:
		if !hasCache {
			return FetchResult{}, &StatusError{URL: redacted, StatusCode: resp.StatusCode, Status: resp.Status}
		}
		appLog.Info("feed not modified; using cache", "url", redacted)
		return FetchResult{URL: rawURL, Body: cached.Body, FromCache: true}, nil

	default:
		return FetchResult{}, &StatusError{URL: redacted, StatusCode: resp.StatusCode, Status: resp.Status}
	}
}

// do issues the request, retrying retryable statuses with exponential
// backoff. The returned response body must be closed by the caller.
func (f *Fetcher) do(ctx context.Context, rawURL, redacted string, cached cacheEntry, conditional bool) (*http.Response, error) {
	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrInvalidURL, redacted)
		}
		req.Header.Set("Accept", "text/calendar, */*;q=0.5")
		if conditional {
			if cached.ETag != "" {
				req.Header.Set("If-None-Match", cached.ETag)
			}
			if cached.LastModified != "" {
				req.Header.Set("If-Modified-Since", cached.LastModified)
			}
		}

		resp, err := f.client.Do(req)
		if err != nil {
			return nil, classify(err, redacted)
		}
		if !retryable(resp.StatusCode) || attempt >= f.retries {
			return resp, nil
		}

		io.Copy(io.Discard, resp.Body)
		resp.Body.Close()

		wait := f.backoff << attempt
		appLog.Warn("feed fetch retry", "url", redacted, "status", resp.StatusCode, "attempt", attempt+1, "wait", wait)
		select {
		case <-ctx.Done():
			return nil, classify(ctx.Err(), redacted)
		case <-time.After(wait):
		}
	}
}

func classify(err error, redacted string) error {
	var dnsErr *net.DNSError
	var opErr *net.OpError
	switch {
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ENETUNREACH),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("%w: %s: %w", ErrNoConnectivity, redacted, err)
	default:
		return fmt.Errorf("%w: %s: %w", ErrTransport, redacted, err)
	}
}
