package rdf

import "strings"

// TermKind identifies RDF term types.
type TermKind uint8

const (
	// TermIRI represents an IRI term.
	TermIRI TermKind = iota
	// TermBlankNode represents a blank node term.
	TermBlankNode
	// TermLiteral represents a literal term.
	TermLiteral
)

// Term is a value that can appear in RDF statements.
type Term interface {
	Kind() TermKind
	String() string
}

// IRI represents an RDF IRI.
type IRI struct {
	// Value is the IRI string value.
	Value string
}

// Kind returns TermIRI.
func (i IRI) Kind() TermKind { return TermIRI }

// String returns the IRI in angle brackets.
func (i IRI) String() string { return "<" + i.Value + ">" }

// BlankNode represents an RDF blank node.
type BlankNode struct {
	// ID is the blank node label without the "_:" prefix.
	ID string
}

// Kind returns TermBlankNode.
func (b BlankNode) Kind() TermKind { return TermBlankNode }

// String returns the blank node identifier prefixed with "_:".
func (b BlankNode) String() string { return "_:" + b.ID }

// Literal represents an RDF literal.
type Literal struct {
	// Lexical is the lexical form of the literal.
	Lexical string
	// Datatype is the datatype IRI, if any.
	Datatype IRI
	// Lang is the language tag, if any.
	Lang string
}

// Kind returns TermLiteral.
func (l Literal) Kind() TermKind { return TermLiteral }

// String returns the N-Triples form of the literal.
func (l Literal) String() string {
	quoted := `"` + escapeLiteral(l.Lexical) + `"`
	switch {
	case l.Lang != "":
		return quoted + "@" + l.Lang
	case l.Datatype.Value != "" && l.Datatype.Value != XSDString:
		return quoted + "^^" + l.Datatype.String()
	default:
		return quoted
	}
}

// NewLiteral returns a plain string literal.
func NewLiteral(lexical string) Literal { return Literal{Lexical: lexical} }

// TypedLiteral returns a literal with the given datatype IRI.
func TypedLiteral(lexical, datatype string) Literal {
	return Literal{Lexical: lexical, Datatype: IRI{Value: datatype}}
}

// Triple is an RDF triple.
type Triple struct {
	S Term
	P IRI
	O Term
}

// Quad is an RDF quad (triple + optional graph name).
type Quad struct {
	S Term
	P IRI
	O Term
	// G is the graph name, or nil for the default graph.
	G Term
}

// ToTriple drops the graph name.
func (q Quad) ToTriple() Triple {
	return Triple{S: q.S, P: q.P, O: q.O}
}

// InDefaultGraph reports whether the quad has no graph name.
func (q Quad) InDefaultGraph() bool {
	return q.G == nil
}

// ToQuad places a triple in the default graph.
func (t Triple) ToQuad() Quad {
	return Quad{S: t.S, P: t.P, O: t.O}
}

func escapeLiteral(value string) string {
	if !strings.ContainsAny(value, "\\\"\n\r\t") {
		return value
	}
	var b strings.Builder
	b.Grow(len(value) + 8)
	for _, r := range value {
		switch r {
		case '\\':
			b.WriteString(`\\`)
		case '"':
			b.WriteString(`\"`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		case '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}
