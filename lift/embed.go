package lift

import (
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
)

// EmbedContext attaches a context to the payload. Objects get an "@context"
// member, arrays become the "@graph" of a wrapper object and scalars its
// "@value". A context document {"@context": X} contributes X. An object
// that carries its own "@context" keeps it.
func EmbedContext(payload any, contextData []byte) ([]byte, error) {
	contextDoc, err := jsonptr.Decode(contextData)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse JSON-LD context"), errors.ErrConfiguration)
	}
	if obj, ok := contextDoc.(map[string]any); ok {
		if inner, ok := obj["@context"]; ok {
			contextDoc = inner
		}
	}

	var wrapped map[string]any
	switch v := payload.(type) {
	case map[string]any:
		wrapped = make(map[string]any, len(v)+1)
		wrapped["@context"] = contextDoc
		for k, val := range v {
			wrapped[k] = val
		}
	case []any:
		wrapped = map[string]any{"@context": contextDoc, "@graph": v}
	default:
		wrapped = map[string]any{"@context": contextDoc, "@value": v}
	}
	return jsonptr.Encode(wrapped)
}
