package fetch

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	apperrors "uitf-catalog/internal/errors"
	"uitf-catalog/internal/logging"
)

// Fetcher produces the raw bytes for a key when the cache has no artifact.
type Fetcher func(ctx context.Context) ([]byte, error)

// Client composes a Cache with remote fetching. All source adapters go
// through GetOrFetch so repeated pipeline runs never refetch a key that
// already succeeded.
type Client struct {
	cache  Cache
	http   *http.Client
	logger zerolog.Logger
}

// NewClient creates a fetch client with the given cache backend and timeout.
func NewClient(cache Cache, timeout time.Duration, logger zerolog.Logger) *Client {
	return &Client{
		cache:  cache,
		http:   &http.Client{Timeout: timeout},
		logger: logging.WithStage(logger, "fetch"),
	}
}

// GetOrFetch returns the artifact for key, fetching and persisting it only
// when no artifact exists yet. Transport errors propagate to the caller
// without retry; a rerun short-circuits for already-succeeded keys.
func (c *Client) GetOrFetch(ctx context.Context, key string, fetcher Fetcher) ([]byte, error) {
	start := time.Now()

	if data, err := c.cache.Get(ctx, key); err == nil {
		logging.LogFetch(c.logger, "cache", key, true, time.Since(start), nil)
		return data, nil
	} else if !apperrors.Is(err, apperrors.ErrCacheMiss) {
		return nil, err
	}

	data, err := fetcher(ctx)
	logging.LogFetch(c.logger, "remote", key, false, time.Since(start), err)
	if err != nil {
		return nil, err
	}

	if err := c.cache.Put(ctx, key, data); err != nil {
		return nil, err
	}
	return data, nil
}

// GetURL performs a plain HTTP GET bounded by the client timeout. Non-2xx
// statuses are transport errors.
func (c *Client) GetURL(ctx context.Context, source, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperrors.NewFetchError(source, url, err)
	}
	req.Header.Set("User-Agent", "uitfcat/0.1")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, apperrors.NewFetchError(source, url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apperrors.NewFetchError(source, url, fmt.Errorf("unexpected status %s", resp.Status))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewFetchError(source, url, err)
	}
	return data, nil
}

// CachedGet is GetOrFetch specialised to an HTTP GET keyed by its URL.
func (c *Client) CachedGet(ctx context.Context, source, url string) ([]byte, error) {
	return c.GetOrFetch(ctx, url, func(ctx context.Context) ([]byte, error) {
		return c.GetURL(ctx, source, url)
	})
}
