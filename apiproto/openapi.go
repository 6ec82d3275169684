package apiproto

import (
	"bytes"
	"context"
	"net/url"
	"regexp"
	"sort"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
)

// Operations invokes one operation described by an OpenAPI document. The
// operation is selected by Path and Method, or by OperationID.
type Operations struct {
	Client *Client
}

// ID implements Protocol.
func (*Operations) ID() string { return OpenAPI }

var pathParam = regexp.MustCompile(`\{([^}]+)\}`)

// Fetch implements Protocol.
func (o *Operations) Fetch(ctx context.Context, cfg Config) (any, error) {
	op, ok := cfg.(Operation)
	if !ok {
		return nil, wrongConfig(OpenAPI, cfg)
	}

	raw, err := o.Client.resolver().Resolve(ctx, op.Spec)
	if err != nil {
		return nil, errors.Wrapf(err, "load OpenAPI document %s", op.Spec)
	}
	spec, err := parseJSONOrYAML(raw)
	if err != nil {
		return nil, errors.Wrapf(err, "parse OpenAPI document %s", op.Spec)
	}

	path, method, err := findOperation(spec, op)
	if err != nil {
		return nil, err
	}
	server, err := findServer(spec, op)
	if err != nil {
		return nil, err
	}
	resolvedPath, query, err := substitutePathParams(path, op.Params)
	if err != nil {
		return nil, err
	}

	var body []byte
	if op.Body != "" {
		body = []byte(op.Body)
	}
	target := AppendQuery(strings.TrimRight(server, "/")+resolvedPath, query)
	resp, err := o.Client.do(ctx, OpenAPI, method, target, op.Headers, body)
	if err != nil {
		return nil, err
	}
	doc, err := decodeJSON(resp.Body, target)
	if err != nil {
		return nil, err
	}
	return SelectRecords(doc, op.RecordPath)
}

func findOperation(spec any, op Operation) (string, string, error) {
	if op.Path != "" && op.Method != "" {
		return op.Path, strings.ToLower(op.Method), nil
	}
	if op.OperationID == "" {
		return "", "", errors.Configuration("OpenAPI requires operationId or path+method")
	}
	paths, ok := jsonptr.Get(spec, "/paths")
	if !ok {
		return "", "", errors.Mark(errors.New("OpenAPI spec missing paths"), errors.ErrProtocol)
	}
	pathMap, _ := paths.(map[string]any)
	for _, path := range sortedKeys(pathMap) {
		methods, _ := pathMap[path].(map[string]any)
		for _, method := range sortedKeys(methods) {
			operation, _ := methods[method].(map[string]any)
			if id, _ := operation["operationId"].(string); id == op.OperationID {
				return path, strings.ToLower(method), nil
			}
		}
	}
	return "", "", errors.Configuration("OpenAPI operationId not found: %s", op.OperationID)
}

func findServer(spec any, op Operation) (string, error) {
	if op.Server != "" {
		return op.Server, nil
	}
	if server, ok := jsonptr.Get(spec, "/servers/0/url"); ok {
		if text, _ := jsonptr.Text(server); strings.TrimSpace(text) != "" {
			return text, nil
		}
	}
	return "", errors.WithHint(
		errors.Configuration("OpenAPI server URL missing"),
		"set config.server or spec servers[0].url")
}

// substitutePathParams fills {name} segments from params and returns the
// params left over for the query string.
func substitutePathParams(path string, params map[string]string) (string, map[string]string, error) {
	remaining := make(map[string]string, len(params))
	for k, v := range params {
		remaining[k] = v
	}
	var missing string
	resolved := pathParam.ReplaceAllStringFunc(path, func(match string) string {
		key := match[1 : len(match)-1]
		value, ok := remaining[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return match
		}
		delete(remaining, key)
		return url.PathEscape(value)
	})
	if missing != "" {
		return "", nil, errors.Configuration("Missing path param: %s", missing)
	}
	return resolved, remaining, nil
}

func parseJSONOrYAML(data []byte) (any, error) {
	trimmed := bytes.TrimSpace(data)
	if bytes.HasPrefix(trimmed, []byte("{")) || bytes.HasPrefix(trimmed, []byte("[")) {
		return jsonptr.Decode(trimmed)
	}
	return jsonptr.DecodeYAML(trimmed)
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
