// Package backend builds RDF datasets from JSON-LD, serializes them and runs
// SHACL validation and SPARQL queries against them.
//
// Native handles dataset construction and serialization in process through
// json-gold. SHACL and SPARQL are delegated to command line engines through
// a CommandEngine.
package backend

import (
	"bytes"
	"context"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/rdf"
)

// ValidationReport is the outcome of a SHACL validation.
type ValidationReport struct {
	Conforms bool
	// Report is the engine's validation report, usually Turtle.
	Report string
}

// Backend is what the lifting pipeline needs from an RDF toolkit.
type Backend interface {
	ToDataset(ctx context.Context, jsonld []byte, baseIRI string) (*rdf.Dataset, error)
	Serialize(ctx context.Context, ds *rdf.Dataset, format rdf.Format) ([]byte, error)
	SerializeGraph(ctx context.Context, g *rdf.Graph, format rdf.Format) ([]byte, error)
	ShaclValidate(ctx context.Context, ds *rdf.Dataset, shapes []byte) (*ValidationReport, error)
	SparqlConstruct(ctx context.Context, ds *rdf.Dataset, query string) (*rdf.Dataset, error)
	SparqlUpdate(ctx context.Context, ds *rdf.Dataset, update string) (*rdf.Dataset, error)
}

// Native is the in-process Backend.
type Native struct {
	// Loader resolves remote JSON-LD contexts; nil lets json-gold fetch them.
	Loader rdf.DocumentLoader
	// ProcessingMode is passed to json-gold; empty means JSON-LD 1.1.
	ProcessingMode string
	// Engine runs SHACL and SPARQL steps; nil rejects them.
	Engine *CommandEngine
}

var _ Backend = (*Native)(nil)

// NewNative returns a backend resolving contexts through loader and running
// post steps on engine.
func NewNative(loader rdf.DocumentLoader, engine *CommandEngine) *Native {
	return &Native{Loader: loader, Engine: engine}
}

func (n *Native) jsonldOptions(baseIRI string) rdf.JSONLDOptions {
	return rdf.JSONLDOptions{BaseIRI: baseIRI, ProcessingMode: n.ProcessingMode, Loader: n.Loader}
}

// ToDataset converts a JSON-LD document to quads.
func (n *Native) ToDataset(ctx context.Context, jsonld []byte, baseIRI string) (*rdf.Dataset, error) {
	return rdf.ToDataset(ctx, jsonld, n.jsonldOptions(baseIRI))
}

// Serialize writes ds in format.
func (n *Native) Serialize(ctx context.Context, ds *rdf.Dataset, format rdf.Format) ([]byte, error) {
	var buf bytes.Buffer
	opts := n.jsonldOptions("")
	if err := rdf.Write(ctx, &buf, ds, format, &opts); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// SerializeGraph writes g in format.
func (n *Native) SerializeGraph(ctx context.Context, g *rdf.Graph, format rdf.Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := rdf.WriteGraph(ctx, &buf, g, format); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ShaclValidate runs the engine's SHACL command.
func (n *Native) ShaclValidate(ctx context.Context, ds *rdf.Dataset, shapes []byte) (*ValidationReport, error) {
	if n.Engine == nil {
		return nil, errors.Configuration("SHACL validation requires an external engine")
	}
	return n.Engine.ShaclValidate(ctx, ds, shapes)
}

// SparqlConstruct runs the engine's CONSTRUCT command.
func (n *Native) SparqlConstruct(ctx context.Context, ds *rdf.Dataset, query string) (*rdf.Dataset, error) {
	if n.Engine == nil {
		return nil, errors.Configuration("SPARQL CONSTRUCT requires an external engine")
	}
	return n.Engine.SparqlConstruct(ctx, ds, query)
}

// SparqlUpdate runs the engine's update command.
func (n *Native) SparqlUpdate(ctx context.Context, ds *rdf.Dataset, update string) (*rdf.Dataset, error) {
	if n.Engine == nil {
		return nil, errors.Configuration("SPARQL Update requires an external engine")
	}
	return n.Engine.SparqlUpdate(ctx, ds, update)
}
