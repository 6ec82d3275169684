package plan

import (
	"context"
	"sort"
	"sync"
)

// TransformRegistry names the Go functions native-transform steps refer to.
type TransformRegistry struct {
	mu         sync.RWMutex
	transforms map[string]Transform
}

// NewTransformRegistry returns a registry holding "identity" and
// "flatten-features".
func NewTransformRegistry() *TransformRegistry {
	r := &TransformRegistry{transforms: map[string]Transform{}}
	r.Register("identity", Identity)
	r.Register("flatten-features", FlattenFeatures)
	return r
}

// Register adds or replaces a transform.
func (r *TransformRegistry) Register(name string, t Transform) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.transforms == nil {
		r.transforms = map[string]Transform{}
	}
	r.transforms[name] = t
}

// Lookup returns the transform registered under name.
func (r *TransformRegistry) Lookup(name string) (Transform, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.transforms[name]
	return t, ok
}

// Names lists the registered transforms in order.
func (r *TransformRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.transforms))
	for name := range r.transforms {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Identity returns the document unchanged.
func Identity(_ context.Context, doc any) (any, error) { return doc, nil }

// FlattenFeatures turns GeoJSON features into flat records: the members of
// "properties" plus "id" and "geometry". A FeatureCollection or an array of
// features becomes an array of records; other values pass through.
func FlattenFeatures(_ context.Context, doc any) (any, error) {
	switch v := doc.(type) {
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = flattenFeature(item)
		}
		return out, nil
	case map[string]any:
		if features, ok := v["features"].([]any); ok {
			out := make([]any, len(features))
			for i, item := range features {
				out[i] = flattenFeature(item)
			}
			return out, nil
		}
		return flattenFeature(v), nil
	default:
		return doc, nil
	}
}

func flattenFeature(item any) any {
	feature, ok := item.(map[string]any)
	if !ok {
		return item
	}
	props, hasProps := feature["properties"].(map[string]any)
	if !hasProps {
		return item
	}
	out := make(map[string]any, len(props)+2)
	for k, v := range props {
		out[k] = v
	}
	if id, ok := feature["id"]; ok {
		out["id"] = id
	}
	if geometry, ok := feature["geometry"]; ok && geometry != nil {
		out["geometry"] = geometry
	}
	return out
}
