package apiproto

import (
	"context"
	"strconv"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/xmltree"
)

// MapFeatures implements WFS GetFeature with startIndex/count paging. Paging
// stops at the first page shorter than PageSize, or after one request when
// PageSize is unset.
type MapFeatures struct {
	Client *Client
}

// ID implements Protocol.
func (*MapFeatures) ID() string { return WFS }

// Fetch implements Protocol.
func (m *MapFeatures) Fetch(ctx context.Context, cfg Config) (any, error) {
	mf, ok := cfg.(MapFeature)
	if !ok {
		return nil, wrongConfig(WFS, cfg)
	}

	if mf.PageSize != nil && *mf.PageSize <= 0 {
		return nil, errors.Configuration("WFS pageSize must be a positive integer: %d", *mf.PageSize)
	}
	startIndex := 0
	if mf.StartIndex != nil {
		startIndex = *mf.StartIndex
	}
	records := []any{}
	for {
		target := getFeatureURL(mf, startIndex)
		resp, err := m.Client.do(ctx, WFS, "GET", target, mf.Headers, nil)
		if err != nil {
			return nil, err
		}
		page, err := decodeJSONOrXML(resp, target)
		if err != nil {
			return nil, err
		}
		selected, err := wfsRecords(page, mf.RecordPath)
		if err != nil {
			return nil, err
		}
		records = AppendRecords(records, selected)

		if mf.PageSize == nil || recordCount(selected) < *mf.PageSize {
			return records, nil
		}
		startIndex += *mf.PageSize
	}
}

func getFeatureURL(mf MapFeature, startIndex int) string {
	params := map[string]string{
		"service":    "WFS",
		"request":    "GetFeature",
		"version":    mf.Version,
		"typeName":   mf.TypeName,
		"startIndex": strconv.Itoa(startIndex),
	}
	if params["version"] == "" {
		params["version"] = "2.0.0"
	}
	if mf.OutputFormat != "" {
		params["outputFormat"] = mf.OutputFormat
	}
	if mf.SRSName != "" {
		params["srsName"] = mf.SRSName
	}
	if mf.PageSize != nil {
		params["count"] = strconv.Itoa(*mf.PageSize)
	}
	for k, v := range mf.Params {
		params[k] = v
	}
	return AppendQuery(mf.BaseURL, params)
}

// decodeJSONOrXML decodes a page as JSON and falls back to XML, which WFS
// servers return when they ignore outputFormat.
func decodeJSONOrXML(resp *response, source string) (any, error) {
	doc, jsonErr := decodeJSON(resp.Body, source)
	if jsonErr == nil {
		return doc, nil
	}
	if !strings.Contains(resp.ContentType, "xml") && !looksLikeXML(resp.Body) {
		return nil, jsonErr
	}
	doc, err := xmltree.Decode(resp.Body)
	if err != nil {
		return nil, jsonErr
	}
	return doc, nil
}

func looksLikeXML(body []byte) bool {
	for _, b := range body {
		switch b {
		case ' ', '\t', '\r', '\n':
			continue
		case '<':
			return true
		default:
			return false
		}
	}
	return false
}

func wfsRecords(page any, recordPath string) (any, error) {
	if recordPath != "" {
		return SelectRecords(page, recordPath)
	}
	if obj, ok := page.(map[string]any); ok {
		if features, ok := obj["features"].([]any); ok {
			return features, nil
		}
	}
	if members := collectMembers(page, nil); len(members) > 0 {
		return members, nil
	}
	return page, nil
}

var memberKeys = []string{"featureMember", "member"}

// collectMembers gathers featureMember and member values anywhere in node.
func collectMembers(node any, out []any) []any {
	switch n := node.(type) {
	case map[string]any:
		for _, key := range memberKeys {
			if value, ok := n[key]; ok {
				out = AppendRecords(out, value)
			}
		}
		for _, key := range sortedKeys(n) {
			out = collectMembers(n[key], out)
		}
	case []any:
		for _, item := range n {
			out = collectMembers(item, out)
		}
	}
	return out
}

func recordCount(records any) int {
	if list, ok := records.([]any); ok {
		return len(list)
	}
	return 1
}
