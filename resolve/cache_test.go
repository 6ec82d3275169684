package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
)

type clock struct{ now time.Time }

func (c *clock) Now() time.Time          { return c.now }
func (c *clock) Advance(d time.Duration) { c.now = c.now.Add(d) }

// origin serves a single versioned resource and counts requests.
type origin struct {
	hits     atomic.Int32
	etag     string
	body     string
	status   int
	noStore  bool
	maxAge   string
	lastSeen atomic.Value
}

func (o *origin) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	o.hits.Add(1)
	o.lastSeen.Store(r.Header.Get("If-None-Match"))
	if o.maxAge != "" {
		w.Header().Set("Cache-Control", "max-age="+o.maxAge)
	}
	if o.status != 0 {
		w.WriteHeader(o.status)
		return
	}
	if o.etag != "" && r.Header.Get("If-None-Match") == o.etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	if o.etag != "" {
		w.Header().Set("ETag", o.etag)
	}
	if o.noStore {
		w.Header().Set("Cache-Control", "no-store")
	}
	w.Write([]byte(o.body))
}

func newTestCache(t *testing.T, srv *httptest.Server, clk *clock, cfg CacheConfig, opts ...CacheOption) *CachingResolver {
	t.Helper()
	if cfg.Dir == "" {
		cfg.Dir = t.TempDir()
	}
	if cfg.TTL == 0 {
		cfg.TTL = time.Hour
	}
	opts = append([]CacheOption{
		WithHTTPClient(srv.Client()),
		WithClock(clk.Now),
		WithCacheLogger(zaptest.NewLogger(t).Sugar()),
	}, opts...)
	return NewCachingResolver(nil, cfg, opts...)
}

func TestCachingResolverServesFreshEntryWithoutNetwork(t *testing.T) {
	o := &origin{etag: `"v1"`, body: "context-v1"}
	srv := httptest.NewServer(o)
	defer srv.Close()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	m := metrics.New()
	c := newTestCache(t, srv, clk, CacheConfig{}, WithCacheMetrics(m))
	uri := srv.URL + "/ctx.jsonld"

	data, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "context-v1", string(data))

	clk.Advance(10 * time.Minute)
	data, err = c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "context-v1", string(data))

	assert.Equal(t, int32(1), o.hits.Load())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("miss")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheLookups.WithLabelValues("hit")))
}

func TestCachingResolverRevalidatesWith304(t *testing.T) {
	o := &origin{etag: `"v1"`, body: "context-v1"}
	srv := httptest.NewServer(o)
	defer srv.Close()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, srv, clk, CacheConfig{})
	uri := srv.URL + "/ctx.jsonld"

	_, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	before, ok := c.Lookup(uri)
	require.True(t, ok)
	dataInfo, err := os.Stat(c.Path(uri))
	require.NoError(t, err)

	clk.Advance(2 * time.Hour)
	data, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "context-v1", string(data))
	assert.Equal(t, int32(2), o.hits.Load())
	assert.Equal(t, `"v1"`, o.lastSeen.Load())

	after, ok := c.Lookup(uri)
	require.True(t, ok)
	assert.Equal(t, before.ETag, after.ETag)
	assert.Equal(t, before.Data, after.Data)
	assert.True(t, after.FetchedAt.After(before.FetchedAt))

	// the data file is untouched by a revalidation
	dataInfoAfter, err := os.Stat(c.Path(uri))
	require.NoError(t, err)
	assert.Equal(t, dataInfo.ModTime(), dataInfoAfter.ModTime())

	// freshly revalidated entries are served locally again
	_, err = c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, int32(2), o.hits.Load())
}

func TestCachingResolverReplacesChangedResource(t *testing.T) {
	o := &origin{etag: `"v1"`, body: "context-v1"}
	srv := httptest.NewServer(o)
	defer srv.Close()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, srv, clk, CacheConfig{})
	uri := srv.URL + "/ctx.jsonld"

	_, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)

	o.etag, o.body = `"v2"`, "context-v2"
	clk.Advance(2 * time.Hour)
	data, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "context-v2", string(data))

	entry, ok := c.Lookup(uri)
	require.True(t, ok)
	assert.Equal(t, `"v2"`, entry.ETag)
}

func TestCachingResolverStaleIfError(t *testing.T) {
	o := &origin{etag: `"v1"`, body: "context-v1"}
	srv := httptest.NewServer(o)
	defer srv.Close()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	dir := t.TempDir()
	uri := srv.URL + "/ctx.jsonld"

	stale := newTestCache(t, srv, clk, CacheConfig{Dir: dir, StaleIfError: true})
	_, err := stale.Resolve(context.Background(), uri)
	require.NoError(t, err)

	o.status = http.StatusServiceUnavailable
	clk.Advance(2 * time.Hour)

	data, err := stale.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "context-v1", string(data))

	strict := newTestCache(t, srv, clk, CacheConfig{Dir: dir, StaleIfError: false})
	_, err = strict.Resolve(context.Background(), uri)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFetch))
	var herr *errors.HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusServiceUnavailable, herr.Status)
}

func TestCachingResolverKeepsEntryOnNonOKSuccess(t *testing.T) {
	o := &origin{body: "context-v1"}
	srv := httptest.NewServer(o)
	defer srv.Close()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	dir := t.TempDir()
	uri := srv.URL + "/ctx.jsonld"

	stale := newTestCache(t, srv, clk, CacheConfig{Dir: dir, StaleIfError: true})
	_, err := stale.Resolve(context.Background(), uri)
	require.NoError(t, err)

	o.status = http.StatusNoContent
	clk.Advance(2 * time.Hour)

	data, err := stale.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "context-v1", string(data))
	entry, ok := stale.Lookup(uri)
	require.True(t, ok)
	assert.Equal(t, "context-v1", string(entry.Data))

	strict := newTestCache(t, srv, clk, CacheConfig{Dir: dir})
	_, err = strict.Resolve(context.Background(), uri)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFetch))
	var herr *errors.HTTPError
	require.True(t, errors.As(err, &herr))
	assert.Equal(t, http.StatusNoContent, herr.Status)
}

func TestCachingResolverRevalidationRestoresFreshness(t *testing.T) {
	o := &origin{etag: `"v1"`, body: "context-v1", maxAge: "60"}
	srv := httptest.NewServer(o)
	defer srv.Close()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, srv, clk, CacheConfig{RespectCacheHeaders: true})
	uri := srv.URL + "/ctx.jsonld"

	for i := 0; i < 2; i++ {
		_, err := c.Resolve(context.Background(), uri)
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), o.hits.Load())

	clk.Advance(2 * time.Minute)
	data, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "context-v1", string(data))
	assert.Equal(t, int32(2), o.hits.Load())

	for i := 0; i < 2; i++ {
		data, err = c.Resolve(context.Background(), uri)
		require.NoError(t, err)
		assert.Equal(t, "context-v1", string(data))
	}
	assert.Equal(t, int32(2), o.hits.Load())
}

func TestCachingResolverTransportErrorFallsBack(t *testing.T) {
	o := &origin{body: "payload"}
	srv := httptest.NewServer(o)
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, srv, clk, CacheConfig{StaleIfError: true})
	uri := srv.URL + "/a.json"

	_, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	srv.Close()

	clk.Advance(2 * time.Hour)
	data, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}

func TestCachingResolverMissWithoutEntryFails(t *testing.T) {
	o := &origin{status: http.StatusBadGateway}
	srv := httptest.NewServer(o)
	defer srv.Close()
	c := newTestCache(t, srv, &clock{now: time.Now()}, CacheConfig{StaleIfError: true})

	_, err := c.Resolve(context.Background(), srv.URL+"/a.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrFetch))
}

func TestCachingResolverNotModifiedWithoutEntry(t *testing.T) {
	o := &origin{status: http.StatusNotModified}
	srv := httptest.NewServer(o)
	defer srv.Close()
	c := newTestCache(t, srv, &clock{now: time.Now()}, CacheConfig{})

	_, err := c.Resolve(context.Background(), srv.URL+"/a.json")
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrProtocol))
}

func TestCachingResolverIgnoresMismatchedPair(t *testing.T) {
	o := &origin{body: "payload"}
	srv := httptest.NewServer(o)
	defer srv.Close()
	clk := &clock{now: time.Unix(1_700_000_000, 0)}
	c := newTestCache(t, srv, clk, CacheConfig{})
	uri := srv.URL + "/a.json"

	_, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)

	// a data file rewritten behind the metadata no longer matches it
	require.NoError(t, os.WriteFile(c.Path(uri), []byte("other"), 0o644))
	_, ok := c.Lookup(uri)
	assert.False(t, ok)

	data, err := c.Resolve(context.Background(), uri)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
	assert.Equal(t, int32(2), o.hits.Load())

	// removing the data file also invalidates the pair
	require.NoError(t, os.Remove(c.Path(uri)))
	_, ok = c.Lookup(uri)
	assert.False(t, ok)
}

func TestCachingResolverRespectsNoStore(t *testing.T) {
	o := &origin{body: "volatile", noStore: true}
	srv := httptest.NewServer(o)
	defer srv.Close()
	c := newTestCache(t, srv, &clock{now: time.Now()}, CacheConfig{RespectCacheHeaders: true})
	uri := srv.URL + "/a.json"

	for i := 0; i < 2; i++ {
		data, err := c.Resolve(context.Background(), uri)
		require.NoError(t, err)
		assert.Equal(t, "volatile", string(data))
	}
	assert.Equal(t, int32(2), o.hits.Load())
	_, ok := c.Lookup(uri)
	assert.False(t, ok)
}

func TestCachingResolverDelegatesNonHTTP(t *testing.T) {
	var calls int
	delegate := Func(func(_ context.Context, uri string) ([]byte, error) {
		calls++
		return []byte("local:" + uri), nil
	})
	c := NewCachingResolver(delegate, CacheConfig{Dir: t.TempDir(), TTL: time.Hour})

	data, err := c.Resolve(context.Background(), "classpath:a.json")
	require.NoError(t, err)
	assert.Equal(t, "local:classpath:a.json", string(data))
	assert.Equal(t, 1, calls)
}

func TestDefaultCacheConfig(t *testing.T) {
	cfg := DefaultCacheConfig()
	assert.Equal(t, 24*time.Hour, cfg.TTL)
	assert.True(t, cfg.StaleIfError)
	assert.Contains(t, cfg.Dir, "cache")
}
