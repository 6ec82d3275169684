package apiproto

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/resolve"
)

// Config is the protocol-specific source description. The set of variants
// is closed: FeatureCollection, MapFeature, Operation and Custom.
type Config interface {
	isConfig()
}

// FeatureCollection describes an OGC API Features collection.
type FeatureCollection struct {
	BaseURL    string
	Collection string
	Limit      *int
	BBox       string
	Params     map[string]string
	Headers    map[string]string
	// RecordPath selects the records of a page; empty means "features".
	RecordPath string
}

// MapFeature describes a WFS GetFeature request.
type MapFeature struct {
	BaseURL      string
	TypeName     string
	Version      string
	OutputFormat string
	SRSName      string
	// PageSize enables paging with the count parameter. Nil fetches once.
	PageSize   *int
	StartIndex *int
	Params     map[string]string
	Headers    map[string]string
	RecordPath string
}

// Operation describes a single operation of an OpenAPI document.
type Operation struct {
	// Spec is the location of the OpenAPI document (JSON or YAML).
	Spec        string
	OperationID string
	Path        string
	Method      string
	Server      string
	Params      map[string]string
	Headers     map[string]string
	Body        string
	RecordPath  string
}

// Custom carries the raw configuration of a protocol not built in.
type Custom map[string]any

func (FeatureCollection) isConfig() {}
func (MapFeature) isConfig()        {}
func (Operation) isConfig()         {}
func (Custom) isConfig()            {}

// Protocol identifiers.
const (
	OGCAPIFeatures = "ogc-api-features"
	WFS            = "wfs"
	OpenAPI        = "openapi"
)

// CanonicalID maps protocol aliases to their identifier.
func CanonicalID(protocol string) string {
	switch id := strings.ToLower(strings.TrimSpace(protocol)); id {
	case "ogc-api-features", "ogc", "ogc-api":
		return OGCAPIFeatures
	case "wfs":
		return WFS
	case "openapi", "open-api":
		return OpenAPI
	default:
		return id
	}
}

// ParseConfig builds the config variant for protocol from a decoded plan
// document. Relative OpenAPI spec locations are resolved against baseDir.
func ParseConfig(protocol string, raw map[string]any, baseDir string) (Config, error) {
	switch CanonicalID(protocol) {
	case OGCAPIFeatures:
		cfg := FeatureCollection{
			BaseURL:    stringField(raw, "baseUrl"),
			Collection: stringField(raw, "collection"),
			Limit:      intField(raw, "limit"),
			BBox:       stringField(raw, "bbox"),
			Params:     stringMap(raw["params"]),
			Headers:    stringMap(raw["headers"]),
			RecordPath: stringField(raw, "recordPath"),
		}
		if cfg.BaseURL == "" {
			return nil, errors.Configuration("OGC API config requires baseUrl")
		}
		if cfg.Collection == "" {
			return nil, errors.Configuration("OGC API config requires collection")
		}
		return cfg, nil

	case WFS:
		cfg := MapFeature{
			BaseURL:      stringField(raw, "baseUrl"),
			TypeName:     stringField(raw, "typeName"),
			Version:      stringField(raw, "version"),
			OutputFormat: stringField(raw, "outputFormat"),
			SRSName:      stringField(raw, "srsName"),
			PageSize:     intField(raw, "pageSize"),
			StartIndex:   intField(raw, "startIndex"),
			Params:       stringMap(raw["params"]),
			Headers:      stringMap(raw["headers"]),
			RecordPath:   stringField(raw, "recordPath"),
		}
		if cfg.BaseURL == "" {
			return nil, errors.Configuration("WFS config requires baseUrl")
		}
		if cfg.TypeName == "" {
			return nil, errors.Configuration("WFS config requires typeName")
		}
		if _, set := raw["pageSize"]; set && (cfg.PageSize == nil || *cfg.PageSize <= 0) {
			return nil, errors.Configuration("WFS pageSize must be a positive integer: %v", raw["pageSize"])
		}
		if cfg.Version == "" {
			cfg.Version = "2.0.0"
		}
		if _, set := raw["outputFormat"]; !set {
			cfg.OutputFormat = "application/json"
		}
		return cfg, nil

	case OpenAPI:
		spec := stringField(raw, "spec")
		if spec == "" {
			return nil, errors.Configuration("OpenAPI config requires spec")
		}
		return Operation{
			Spec:        resolve.Join(baseDir, spec),
			OperationID: stringField(raw, "operationId"),
			Path:        stringField(raw, "path"),
			Method:      stringField(raw, "method"),
			Server:      stringField(raw, "server"),
			Params:      stringMap(raw["params"]),
			Headers:     stringMap(raw["headers"]),
			Body:        stringField(raw, "body"),
			RecordPath:  stringField(raw, "recordPath"),
		}, nil

	default:
		custom := make(Custom, len(raw))
		for k, v := range raw {
			custom[k] = v
		}
		return custom, nil
	}
}

func stringField(raw map[string]any, key string) string {
	v, ok := raw[key]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func intField(raw map[string]any, key string) *int {
	text := stringField(raw, key)
	if text == "" {
		return nil
	}
	n, err := strconv.Atoi(text)
	if err != nil {
		return nil
	}
	return &n
}

func stringMap(raw any) map[string]string {
	m, ok := raw.(map[string]any)
	if !ok || len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		if v == nil {
			continue
		}
		if s, ok := v.(string); ok {
			out[k] = s
			continue
		}
		out[k] = fmt.Sprint(v)
	}
	return out
}
