package rdf

import (
	"bytes"
	"context"
	"io"
)

// Write serializes the dataset in the requested format. Turtle and
// N-Triples only carry the default graph; N-Quads and JSON-LD carry all quads.
func Write(ctx context.Context, w io.Writer, ds *Dataset, format Format, opts *JSONLDOptions) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	switch format {
	case FormatTurtle:
		return WriteTurtle(w, ds.Triples(), TurtleOptions{Prefixes: ds.Prefixes})
	case FormatNTriples:
		return WriteNTriples(w, ds.Triples())
	case FormatNQuads:
		return WriteNQuads(w, ds.Quads)
	case FormatJSONLD:
		var o JSONLDOptions
		if opts != nil {
			o = *opts
		}
		return EncodeJSONLD(ctx, w, ds.Quads, o, ds.Prefixes)
	default:
		return ErrUnsupportedFormat
	}
}

// WriteGraph serializes an explicit triple graph using its prefixes.
func WriteGraph(ctx context.Context, w io.Writer, g *Graph, format Format) error {
	ds := NewDataset(make([]Quad, 0, len(g.Triples)))
	for _, t := range g.Triples {
		ds.Quads = append(ds.Quads, t.ToQuad())
	}
	ds.Prefixes = g.Prefixes
	return Write(ctx, w, ds, format, nil)
}

// Bytes is a convenience wrapper around Write.
func Bytes(ctx context.Context, ds *Dataset, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if err := Write(ctx, &buf, ds, format, nil); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
