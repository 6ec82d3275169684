// Package apiproto fetches records from paginated web APIs and aggregates
// every page into one JSON array.
package apiproto

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/logger"
	"github.com/geoknoesis/semlift-go/resolve"
)

// Client performs the HTTP requests of every protocol.
type Client struct {
	HTTP *http.Client
	// Limiter throttles requests; nil does not throttle.
	Limiter *rate.Limiter
	// Resolver loads OpenAPI documents; nil uses resolve.Locations.
	Resolver resolve.Resolver
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
}

// NewClient returns a client with a 30 second request timeout that issues
// at most requestsPerSecond requests (unlimited when <= 0).
func NewClient(requestsPerSecond float64) *Client {
	c := &Client{HTTP: &http.Client{Timeout: 30 * time.Second}}
	if requestsPerSecond > 0 {
		c.Limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), 1)
	}
	return c
}

func (c *Client) resolver() resolve.Resolver {
	if c.Resolver != nil {
		return c.Resolver
	}
	return &resolve.Locations{Client: c.httpClient()}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) log() *zap.SugaredLogger { return logger.Or(c.Logger) }

type response struct {
	Body        []byte
	ContentType string
}

// do issues one request. A non-2xx status is an HTTPError.
func (c *Client) do(ctx context.Context, protocol, method, target string, headers map[string]string, body []byte) (*response, error) {
	if c.Limiter != nil {
		if err := c.Limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, strings.ToUpper(method), target, reader)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "build request for %s", target), errors.ErrConfiguration)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	c.log().Debugw("fetching page", "protocol", protocol, "method", req.Method, "url", target)
	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.Metrics.RecordHTTPFetch(protocol, 0)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrapf(err, "%s %s", req.Method, target), errors.ErrFetch)
	}
	defer resp.Body.Close()
	c.Metrics.RecordHTTPFetch(protocol, resp.StatusCode)

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, errors.Mark(errors.Wrapf(err, "read %s", target), errors.ErrFetch)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &errors.HTTPError{URI: target, Status: resp.StatusCode, Body: string(data)}
	}
	c.Metrics.RecordAPIPage(protocol)
	return &response{Body: data, ContentType: resp.Header.Get("Content-Type")}, nil
}

// AppendQuery adds params to target in key order. Existing query strings
// are extended.
func AppendQuery(target string, params map[string]string) string {
	if len(params) == 0 {
		return target
	}
	keys := make([]string, 0, len(params))
	for k := range params {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + b.String()
}

// SelectRecords returns the node at recordPath: a JSON pointer when it starts
// with "/", dotted member names otherwise. An empty path selects node.
func SelectRecords(node any, recordPath string) (any, error) {
	if strings.TrimSpace(recordPath) == "" {
		return node, nil
	}
	pointer := recordPath
	if !strings.HasPrefix(recordPath, "/") {
		pointer = jsonptr.Join(strings.Split(recordPath, ".")...)
	}
	selected, ok := jsonptr.Get(node, pointer)
	if !ok {
		return nil, errors.Mark(errors.Newf("Record path not found: %s", recordPath), errors.ErrProtocol)
	}
	return selected, nil
}

// AppendRecords flattens an array of records into out; any other value is
// appended as a single record.
func AppendRecords(out []any, records any) []any {
	if list, ok := records.([]any); ok {
		return append(out, list...)
	}
	return append(out, records)
}

func decodeJSON(data []byte, source string) (any, error) {
	doc, err := jsonptr.Decode(data)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "decode response from %s", source), errors.ErrProtocol)
	}
	return doc, nil
}
