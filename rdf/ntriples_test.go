package rdf

import (
	"bytes"
	"context"
	"strings"
	"testing"
)

func TestParseNQuads(t *testing.T) {
	input := `# comment
<http://example.com/s> <http://example.com/p> "hello \"world\"\n" .
_:b0 <http://example.com/p> "chat"@fr <http://example.com/g> .

<http://example.com/s> <http://example.com/n> "1"^^<http://www.w3.org/2001/XMLSchema#integer> .
<http://example.com/s> <http://example.com/u> "caf\u00E9" .
`
	quads, err := ParseNQuads(context.Background(), strings.NewReader(input))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(quads) != 4 {
		t.Fatalf("expected 4 quads, got %d", len(quads))
	}
	if lit, ok := quads[0].O.(Literal); !ok || lit.Lexical != "hello \"world\"\n" {
		t.Fatalf("unexpected literal: %#v", quads[0].O)
	}
	if quads[1].S != (BlankNode{ID: "b0"}) {
		t.Fatalf("unexpected subject: %#v", quads[1].S)
	}
	if lit := quads[1].O.(Literal); lit.Lang != "fr" {
		t.Fatalf("expected language tag, got %#v", lit)
	}
	if quads[1].G != (IRI{Value: "http://example.com/g"}) {
		t.Fatalf("expected graph name, got %#v", quads[1].G)
	}
	if lit := quads[2].O.(Literal); lit.Datatype.Value != XSDInteger {
		t.Fatalf("expected integer datatype, got %#v", lit)
	}
	if lit := quads[3].O.(Literal); lit.Lexical != "café" {
		t.Fatalf("expected unicode escape to decode, got %q", lit.Lexical)
	}
}

func TestParseNQuadsReportsPosition(t *testing.T) {
	_, err := ParseNQuads(context.Background(), strings.NewReader("<http://a> <http://b> <http://c> .\n<http://a> \"x\" <http://c> .\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	perr, ok := err.(*ParseError)
	if !ok {
		t.Fatalf("expected *ParseError, got %T", err)
	}
	if perr.Line != 2 {
		t.Fatalf("expected line 2, got %d", perr.Line)
	}
	if !strings.Contains(err.Error(), "nquads:2:") {
		t.Fatalf("expected position in message, got %q", err.Error())
	}
}

func TestWriteNQuadsRoundTrip(t *testing.T) {
	quads := []Quad{
		{S: IRI{Value: "http://example.com/s"}, P: IRI{Value: "http://example.com/p"}, O: NewLiteral("line\nbreak")},
		{S: BlankNode{ID: "x"}, P: IRI{Value: "http://example.com/p"}, O: TypedLiteral("true", XSDBoolean), G: IRI{Value: "http://example.com/g"}},
	}
	var buf bytes.Buffer
	if err := WriteNQuads(&buf, quads); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	parsed, err := ParseNQuads(context.Background(), &buf)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(parsed) != 2 || parsed[0] != quads[0] || parsed[1] != quads[1] {
		t.Fatalf("round trip mismatch: %#v", parsed)
	}
}

func TestWriteNTriplesRejectsIncompleteStatements(t *testing.T) {
	err := WriteNTriples(&bytes.Buffer{}, []Triple{{S: IRI{Value: "http://a"}}})
	if err == nil {
		t.Fatal("expected error for missing predicate/object")
	}
}
