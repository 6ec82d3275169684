package apiproto

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/geoknoesis/semlift-go/jsonptr"
)

// Features implements OGC API Features paging: each page is read from
// recordPath and the next page comes from the "next" link.
type Features struct {
	Client *Client
}

// ID implements Protocol.
func (*Features) ID() string { return OGCAPIFeatures }

// Fetch implements Protocol.
func (f *Features) Fetch(ctx context.Context, cfg Config) (any, error) {
	fc, ok := cfg.(FeatureCollection)
	if !ok {
		return nil, wrongConfig(OGCAPIFeatures, cfg)
	}
	recordPath := fc.RecordPath
	if recordPath == "" {
		recordPath = "features"
	}

	records := []any{}
	next := itemsURL(fc)
	for next != "" {
		resp, err := f.Client.do(ctx, OGCAPIFeatures, "GET", next, fc.Headers, nil)
		if err != nil {
			return nil, err
		}
		page, err := decodeJSON(resp.Body, next)
		if err != nil {
			return nil, err
		}
		selected, err := SelectRecords(page, recordPath)
		if err != nil {
			return nil, err
		}
		records = AppendRecords(records, selected)
		next = resolveLink(next, nextLink(page))
	}
	return records, nil
}

func itemsURL(fc FeatureCollection) string {
	base := strings.TrimRight(fc.BaseURL, "/")
	target := base + "/collections/" + strings.Trim(fc.Collection, "/") + "/items"
	params := map[string]string{}
	if fc.Limit != nil {
		params["limit"] = strconv.Itoa(*fc.Limit)
	}
	if fc.BBox != "" {
		params["bbox"] = fc.BBox
	}
	for k, v := range fc.Params {
		params[k] = v
	}
	return AppendQuery(target, params)
}

// resolveLink resolves href against the URL of the page that carried it.
func resolveLink(page, href string) string {
	if href == "" {
		return ""
	}
	base, err := url.Parse(page)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return base.ResolveReference(ref).String()
}

// nextLink returns the href of the first link with rel "next", falling back
// to a top-level "next" member.
func nextLink(page any) string {
	if links, ok := jsonptr.Get(page, "/links"); ok {
		if list, ok := links.([]any); ok {
			for _, link := range list {
				obj, ok := link.(map[string]any)
				if !ok {
					continue
				}
				if rel, _ := obj["rel"].(string); strings.EqualFold(rel, "next") {
					href, _ := jsonptr.Text(obj["href"])
					return href
				}
			}
		}
	}
	if next, ok := jsonptr.Get(page, "/next"); ok {
		text, _ := jsonptr.Text(next)
		return text
	}
	return ""
}
