// Package rdf provides the small RDF model the lifting pipeline works on.
//
// Copyright 2026 Geoknoesis LLC (www.geoknoesis.com)
//
// Author: Stephane Fellah (stephanef@geoknoesis.com)
// Geosemantic-AI expert with 30 years of experience
//
// It covers exactly what a lift needs and nothing more:
//   - Terms and statements: IRI, BlankNode, Literal, Triple, Quad.
//   - Containers: Graph (prefixed triples built by generators) and Dataset
//     (quads produced from JSON-LD).
//   - JSON-LD bridge: ToDataset() turns a JSON-LD document into a Dataset and
//     EncodeJSONLD() turns quads back into JSON-LD, both through json-gold.
//   - Writers: Turtle (prefix-aware, grouped by subject), N-Triples and N-Quads.
//   - Reader: ParseNQuads() reads the line-based formats produced by json-gold
//     and by external engines.
//
// Example (JSON-LD to Turtle):
//
//	ds, err := rdf.ToDataset(ctx, jsonld, rdf.JSONLDOptions{BaseIRI: "urn:base:"})
//	if err != nil {
//	    // handle error
//	}
//	var buf bytes.Buffer
//	if err := rdf.Write(ctx, &buf, ds, rdf.FormatTurtle, nil); err != nil {
//	    // handle error
//	}
//
// There is no triple store, query engine or Turtle parser here; those are
// delegated by the backend package.
package rdf
