package rdf

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"sort"
	"strings"

	ld "github.com/piprate/json-gold/ld"

	"github.com/geoknoesis/semlift-go/errors"
)

// DocumentLoader fetches remote JSON-LD contexts. The lifting pipeline plugs
// its caching resolver in here so remote contexts share the HTTP cache.
type DocumentLoader func(ctx context.Context, iri string) ([]byte, error)

// JSONLDOptions configures JSON-LD processing.
type JSONLDOptions struct {
	// BaseIRI resolves relative IRIs.
	BaseIRI string
	// ProcessingMode is "json-ld-1.0" or "json-ld-1.1" (default).
	ProcessingMode string
	// Loader resolves remote contexts; nil uses json-gold's HTTP loader.
	Loader DocumentLoader
}

type jsonGoldDocumentLoader struct {
	ctx  context.Context
	load DocumentLoader
}

func (l jsonGoldDocumentLoader) LoadDocument(iri string) (*ld.RemoteDocument, error) {
	data, err := l.load(l.ctx, iri)
	if err != nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, err)
	}
	doc, err := ld.DocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, ld.NewJsonLdError(ld.LoadingDocumentFailed, err)
	}
	return &ld.RemoteDocument{DocumentURL: iri, Document: doc}, nil
}

func newJSONGoldOptions(ctx context.Context, opts JSONLDOptions) *ld.JsonLdOptions {
	goldOpts := ld.NewJsonLdOptions(opts.BaseIRI)
	if opts.ProcessingMode != "" {
		goldOpts.ProcessingMode = opts.ProcessingMode
	}
	if opts.Loader != nil {
		goldOpts.DocumentLoader = jsonGoldDocumentLoader{ctx: ctx, load: opts.Loader}
	}
	return goldOpts
}

// ToDataset converts a JSON-LD document into quads. Namespace-like terms of
// the top-level @context become the dataset prefixes.
func ToDataset(ctx context.Context, data []byte, opts JSONLDOptions) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	input, err := ld.DocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrap(err, "jsonld: parse document")
	}
	proc := ld.NewJsonLdProcessor()
	result, err := proc.ToRDF(input, newJSONGoldOptions(ctx, opts))
	if err != nil {
		return nil, errors.Wrap(err, "jsonld: to RDF")
	}
	dataset, ok := result.(*ld.RDFDataset)
	if !ok {
		return nil, errors.Newf("jsonld: unexpected ToRDF result %T", result)
	}
	serialized, err := (&ld.NQuadRDFSerializer{}).Serialize(dataset)
	if err != nil {
		return nil, errors.Wrap(err, "jsonld: serialize dataset")
	}
	nquads, ok := serialized.(string)
	if !ok {
		return nil, errors.Newf("jsonld: unexpected N-Quads result %T", serialized)
	}
	quads, err := ParseNQuads(ctx, strings.NewReader(nquads))
	if err != nil {
		return nil, err
	}
	ds := NewDataset(quads)
	if obj, ok := input.(map[string]interface{}); ok {
		ds.Prefixes = NamespacePrefixes(obj["@context"])
	}
	return ds, nil
}

// EncodeJSONLD writes quads as JSON-LD. With prefixes the output is compacted
// against a context built from them, otherwise it is expanded.
func EncodeJSONLD(ctx context.Context, w io.Writer, quads []Quad, opts JSONLDOptions, prefixes map[string]string) error {
	var buf bytes.Buffer
	if err := WriteNQuads(&buf, quads); err != nil {
		return err
	}
	proc := ld.NewJsonLdProcessor()
	goldOpts := newJSONGoldOptions(ctx, opts)
	goldOpts.Format = "application/n-quads"
	output, err := proc.FromRDF(buf.String(), goldOpts)
	if err != nil {
		return errors.Wrap(err, "jsonld: from RDF")
	}
	if len(prefixes) > 0 {
		context := make(map[string]interface{}, len(prefixes))
		for k, v := range prefixes {
			context[k] = v
		}
		output, err = proc.Compact(output, map[string]interface{}{"@context": context}, newJSONGoldOptions(ctx, opts))
		if err != nil {
			return errors.Wrap(err, "jsonld: compact")
		}
	}
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	return enc.Encode(output)
}

// NamespacePrefixes extracts prefix declarations from a JSON-LD context value:
// string terms whose IRI ends in '#', '/' or ':' and expanded terms flagged
// with "@prefix": true. Arrays are merged in order; keywords are skipped.
func NamespacePrefixes(context interface{}) map[string]string {
	prefixes := map[string]string{}
	for _, obj := range contextObjects(context) {
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			if strings.HasPrefix(key, "@") {
				continue
			}
			switch value := obj[key].(type) {
			case string:
				if looksLikeNamespace(value) {
					prefixes[key] = value
				}
			case map[string]interface{}:
				id, _ := value["@id"].(string)
				if flag, _ := value["@prefix"].(bool); flag && id != "" {
					prefixes[key] = id
				}
			}
		}
	}
	return prefixes
}

// TermIRIs maps context terms to the IRI they declare, either directly or
// through "@id". Keywords are skipped.
func TermIRIs(context interface{}) map[string]string {
	terms := map[string]string{}
	for _, obj := range contextObjects(context) {
		for key, raw := range obj {
			if strings.HasPrefix(key, "@") {
				continue
			}
			switch value := raw.(type) {
			case string:
				terms[key] = value
			case map[string]interface{}:
				if id, ok := value["@id"].(string); ok {
					terms[key] = id
				}
			}
		}
	}
	return terms
}

func contextObjects(context interface{}) []map[string]interface{} {
	switch value := context.(type) {
	case map[string]interface{}:
		if inner, ok := value["@context"]; ok {
			return contextObjects(inner)
		}
		return []map[string]interface{}{value}
	case []interface{}:
		var out []map[string]interface{}
		for _, item := range value {
			if obj, ok := item.(map[string]interface{}); ok {
				out = append(out, obj)
			}
		}
		return out
	default:
		return nil
	}
}

func looksLikeNamespace(value string) bool {
	return strings.HasSuffix(value, "#") || strings.HasSuffix(value, "/") || strings.HasSuffix(value, ":")
}
