// Package resolve turns resource URIs into bytes.
//
// Locations handles the plain schemes: "classpath:" (an fs.FS, usually an
// embed.FS), "http:"/"https:", "file:", bare local paths and go-getter forced
// sources such as "git::" or "s3::". CachingResolver sits in front of any
// Resolver and keeps HTTP(S) resources on disk.
package resolve

import (
	"context"
	"io"
	"io/fs"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/logger"
)

// ClasspathScheme prefixes resources served from the embedded file system.
const ClasspathScheme = "classpath:"

// ErrNotFound marks a resource that does not exist at its location.
var ErrNotFound = errors.New("resource not found")

// Resolver resolves a URI to its bytes.
type Resolver interface {
	Resolve(ctx context.Context, uri string) ([]byte, error)
}

// Func adapts a function to Resolver.
type Func func(ctx context.Context, uri string) ([]byte, error)

// Resolve calls f.
func (f Func) Resolve(ctx context.Context, uri string) ([]byte, error) { return f(ctx, uri) }

// IsHTTP reports whether uri uses the http or https scheme.
func IsHTTP(uri string) bool {
	return strings.HasPrefix(uri, "http://") || strings.HasPrefix(uri, "https://")
}

// IsAbsoluteRef reports whether ref carries a scheme or an absolute path and
// must not be joined to a base location.
func IsAbsoluteRef(ref string) bool {
	return strings.HasPrefix(ref, ClasspathScheme) ||
		IsHTTP(ref) ||
		strings.HasPrefix(ref, "file:") ||
		isForcedGetter(ref) ||
		filepath.IsAbs(ref)
}

// Join resolves ref against base. Absolute references are returned as-is;
// relative references against an HTTP(S) base are resolved as URLs, against
// a file base as cleaned paths.
func Join(base, ref string) string {
	if base == "" || IsAbsoluteRef(ref) {
		return ref
	}
	if IsHTTP(base) {
		b, err := url.Parse(base)
		if err != nil {
			return ref
		}
		r, err := url.Parse(ref)
		if err != nil {
			return ref
		}
		return b.ResolveReference(r).String()
	}
	if strings.HasPrefix(base, ClasspathScheme) {
		dir := strings.TrimPrefix(base, ClasspathScheme)
		return ClasspathScheme + filepath.ToSlash(filepath.Clean(filepath.Join(dir, ref)))
	}
	return filepath.Clean(filepath.Join(base, ref))
}

// Dir returns the base location of a resolved reference: the parent path or
// the URL the reference sits in.
func Dir(location string) string {
	switch {
	case IsHTTP(location):
		u, err := url.Parse(location)
		if err != nil {
			return ""
		}
		u.RawQuery, u.Fragment = "", ""
		if i := strings.LastIndex(u.Path, "/"); i >= 0 {
			u.Path = u.Path[:i+1]
		}
		return u.String()
	case strings.HasPrefix(location, ClasspathScheme):
		return ClasspathScheme + filepath.ToSlash(filepath.Dir(strings.TrimPrefix(location, ClasspathScheme)))
	case isForcedGetter(location):
		return ""
	default:
		return filepath.Dir(strings.TrimPrefix(location, "file://"))
	}
}

// Locations resolves URIs by scheme without caching.
type Locations struct {
	// Classpath serves "classpath:" resources. Nil rejects them.
	Classpath fs.FS
	// Client performs HTTP requests; nil uses a client with a 30s timeout.
	Client *http.Client
	// Getter fetches go-getter forced sources; nil uses a default Getter.
	Getter *Getter
	Logger *zap.SugaredLogger
}

// NewLocations returns a resolver serving classpath resources from classpath.
func NewLocations(classpath fs.FS) *Locations {
	return &Locations{Classpath: classpath}
}

// Resolve implements Resolver.
func (l *Locations) Resolve(ctx context.Context, uri string) ([]byte, error) {
	log := logger.Or(l.Logger)
	switch {
	case strings.HasPrefix(uri, ClasspathScheme):
		if l.Classpath == nil {
			return nil, errors.Configuration("no classpath file system configured for %s", uri)
		}
		name := strings.TrimPrefix(strings.TrimPrefix(uri, ClasspathScheme), "/")
		data, err := fs.ReadFile(l.Classpath, name)
		if err != nil {
			return nil, notFoundOr(err, uri)
		}
		return data, nil
	case IsHTTP(uri):
		log.Debugw("fetching resource", "uri", uri)
		return l.fetch(ctx, uri)
	case isForcedGetter(uri):
		g := l.Getter
		if g == nil {
			g = &Getter{}
		}
		return g.Fetch(ctx, uri)
	case strings.HasPrefix(uri, "file:"):
		u, err := url.Parse(uri)
		if err != nil {
			return nil, errors.Wrapf(err, "parse file URI %s", uri)
		}
		path := u.Path
		if path == "" {
			path = u.Opaque
		}
		return readFile(path)
	default:
		return readFile(uri)
	}
}

func (l *Locations) fetch(ctx context.Context, uri string) ([]byte, error) {
	client := l.Client
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, errors.Wrapf(err, "build request for %s", uri)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "fetch %s", uri), errors.ErrFetch)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "read %s", uri), errors.ErrFetch)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		herr := &errors.HTTPError{URI: uri, Status: resp.StatusCode}
		if resp.StatusCode == http.StatusNotFound {
			return nil, errors.Mark(errors.Mark(herr, ErrNotFound), errors.ErrFetch)
		}
		return nil, errors.Mark(herr, errors.ErrFetch)
	}
	return body, nil
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, notFoundOr(err, path)
	}
	return data, nil
}

func notFoundOr(err error, uri string) error {
	wrapped := errors.Wrapf(err, "read %s", uri)
	if errors.Is(err, fs.ErrNotExist) {
		return errors.Mark(wrapped, ErrNotFound)
	}
	return wrapped
}
