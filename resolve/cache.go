package resolve

import (
	"context"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/pquerna/cachecontrol"
	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
	"github.com/geoknoesis/semlift-go/logger"
)

// CacheConfig controls the HTTP cache.
type CacheConfig struct {
	// Dir holds the cache entries. Empty uses ~/.semlift/cache.
	Dir string
	// TTL is the age below which an entry is served without a network call.
	TTL time.Duration
	// StaleIfError serves an expired entry when revalidation fails.
	StaleIfError bool
	// RespectCacheHeaders skips persisting responses the server marks
	// uncachable and honours a server-declared expiry over TTL.
	RespectCacheHeaders bool
	// Timeout bounds a single fetch when the default client is used.
	Timeout time.Duration
}

// DefaultCacheConfig returns a 24h TTL cache under the user's home directory
// that falls back to stale entries.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		Dir:          DefaultCacheDir(),
		TTL:          24 * time.Hour,
		StaleIfError: true,
		Timeout:      30 * time.Second,
	}
}

// DefaultCacheDir returns ~/.semlift/cache, or a directory under os.TempDir
// when the home directory is unknown.
func DefaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(os.TempDir(), "semlift", "cache")
	}
	return filepath.Join(home, ".semlift", "cache")
}

// CachingResolver serves HTTP(S) resources from a disk cache, revalidating
// with conditional requests once an entry is older than the TTL. Other URIs
// go to the delegate untouched.
type CachingResolver struct {
	delegate Resolver
	config   CacheConfig
	client   *http.Client
	store    *diskStore
	now      func() time.Time
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
}

// CacheOption configures a CachingResolver.
type CacheOption func(*CachingResolver)

// WithHTTPClient sets the client used for fetches.
func WithHTTPClient(client *http.Client) CacheOption {
	return func(c *CachingResolver) { c.client = client }
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) CacheOption {
	return func(c *CachingResolver) { c.now = now }
}

// WithCacheLogger sets the logger.
func WithCacheLogger(l *zap.SugaredLogger) CacheOption {
	return func(c *CachingResolver) { c.logger = l }
}

// WithCacheMetrics sets the metrics sink.
func WithCacheMetrics(m *metrics.Metrics) CacheOption {
	return func(c *CachingResolver) { c.metrics = m }
}

// NewCachingResolver wraps delegate. A nil delegate resolves non-HTTP URIs
// through a Locations without classpath support.
func NewCachingResolver(delegate Resolver, config CacheConfig, opts ...CacheOption) *CachingResolver {
	if delegate == nil {
		delegate = &Locations{}
	}
	if config.Dir == "" {
		config.Dir = DefaultCacheDir()
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	c := &CachingResolver{
		delegate: delegate,
		config:   config,
		store:    &diskStore{dir: config.Dir},
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: config.Timeout}
	}
	c.logger = logger.Or(c.logger)
	return c
}

// Dir returns the cache directory.
func (c *CachingResolver) Dir() string { return c.config.Dir }

// Lookup returns the cached entry for uri without any network access.
func (c *CachingResolver) Lookup(uri string) (*Entry, bool) {
	return c.store.read(uri)
}

// Path returns the data file that holds uri.
func (c *CachingResolver) Path(uri string) string {
	data, _, _ := c.store.paths(uri)
	return data
}

// Resolve implements Resolver.
func (c *CachingResolver) Resolve(ctx context.Context, uri string) ([]byte, error) {
	if !IsHTTP(uri) {
		return c.delegate.Resolve(ctx, uri)
	}

	cached, ok := c.store.read(uri)
	if ok && c.fresh(cached) {
		c.metrics.RecordCacheLookup("hit")
		c.logger.Debugw("cache hit", "uri", uri)
		return cached.Data, nil
	}

	resp, err := c.get(ctx, uri, cached)
	if err != nil {
		c.metrics.RecordHTTPFetch("cache", 0)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return c.staleOr(uri, cached, errors.Mark(errors.Wrapf(err, "fetch %s", uri), errors.ErrFetch))
	}
	defer resp.Body.Close()
	c.metrics.RecordHTTPFetch("cache", resp.StatusCode)

	switch {
	case resp.StatusCode == http.StatusNotModified:
		if cached == nil {
			return nil, errors.Mark(
				errors.Newf("received 304 Not Modified for %s without a cached entry", uri),
				errors.ErrProtocol)
		}
		cached.FetchedAt = c.now()
		if c.config.RespectCacheHeaders {
			// an uncachable 304 leaves freshness to the TTL
			_, cached.Expires = c.expiry(resp)
		}
		if err := c.store.touch(ctx, cached); err != nil {
			c.logger.Warnw("failed to refresh cache entry", "uri", uri, "error", err)
		}
		c.metrics.RecordCacheLookup("revalidated")
		return cached.Data, nil

	case resp.StatusCode == http.StatusOK:
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return c.staleOr(uri, cached, errors.Mark(errors.Wrapf(err, "read %s", uri), errors.ErrFetch))
		}
		c.metrics.RecordCacheLookup("miss")
		entry := &Entry{
			URI:          uri,
			ETag:         resp.Header.Get("ETag"),
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    c.now(),
			Data:         body,
		}
		if c.config.RespectCacheHeaders {
			storable, expires := c.expiry(resp)
			if !storable {
				c.logger.Debugw("response not storable", "uri", uri)
				return body, nil
			}
			entry.Expires = expires
		}
		if err := c.store.write(ctx, entry); err != nil {
			c.logger.Warnw("failed to persist cache entry", "uri", uri, "error", err)
		}
		return body, nil

	default:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		herr := &errors.HTTPError{URI: uri, Status: resp.StatusCode, Body: string(snippet)}
		return c.staleOr(uri, cached, errors.Mark(herr, errors.ErrFetch))
	}
}

func (c *CachingResolver) get(ctx context.Context, uri string, cached *Entry) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		if cached.ETag != "" {
			req.Header.Set("If-None-Match", cached.ETag)
		}
		if cached.LastModified != "" {
			req.Header.Set("If-Modified-Since", cached.LastModified)
		}
	}
	return c.client.Do(req)
}

func (c *CachingResolver) fresh(e *Entry) bool {
	now := c.now()
	if c.config.RespectCacheHeaders && !e.Expires.IsZero() {
		return now.Before(e.Expires)
	}
	return now.Sub(e.FetchedAt) <= c.config.TTL
}

func (c *CachingResolver) staleOr(uri string, cached *Entry, err error) ([]byte, error) {
	if cached != nil && c.config.StaleIfError {
		c.metrics.RecordCacheLookup("stale")
		c.logger.Warnw("serving stale cache entry", "uri", uri, "error", err)
		return cached.Data, nil
	}
	return nil, err
}

// expiry maps the server-declared expiry of resp onto the resolver clock.
func (c *CachingResolver) expiry(resp *http.Response) (bool, time.Time) {
	received := time.Now()
	storable, expires := cacheability(resp)
	if !storable || expires.IsZero() {
		return storable, time.Time{}
	}
	return true, c.now().Add(expires.Sub(received))
}

// cacheability applies the private-cache rules to resp. An uncachable
// response reports false; otherwise the declared expiry, zero when none.
func cacheability(resp *http.Response) (bool, time.Time) {
	reasons, expires, err := cachecontrol.CachableResponse(resp.Request, resp, cachecontrol.Options{PrivateCache: true})
	if err != nil || len(reasons) > 0 {
		return false, time.Time{}
	}
	return true, expires
}
