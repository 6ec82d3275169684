package rdf

import (
	"bufio"
	"context"
	"io"
	"strconv"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
)

// ParseNQuads reads N-Quads (and therefore N-Triples) statements. Blank lines
// and comments are skipped.
func ParseNQuads(ctx context.Context, r io.Reader) ([]Quad, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	var quads []Quad
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%1024 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		quad, err := parseNQuadsLine(line)
		if err != nil {
			if perr, ok := err.(*ParseError); ok {
				perr.Line = lineNo
			}
			return nil, err
		}
		quads = append(quads, quad)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "read n-quads")
	}
	return quads, nil
}

func parseNQuadsLine(line string) (Quad, error) {
	cursor := &ntCursor{input: line}
	subject, err := cursor.parseTerm(false)
	if err != nil {
		return Quad{}, err
	}
	predicate, err := cursor.parseIRI()
	if err != nil {
		return Quad{}, err
	}
	object, err := cursor.parseTerm(true)
	if err != nil {
		return Quad{}, err
	}
	var graph Term
	cursor.skipWS()
	if cursor.pos < len(cursor.input) && cursor.input[cursor.pos] != '.' {
		graph, err = cursor.parseTerm(false)
		if err != nil {
			return Quad{}, err
		}
	}
	if !cursor.consume('.') {
		return Quad{}, cursor.errorf("expected '.' at end of statement")
	}
	return Quad{S: subject, P: predicate, O: object, G: graph}, nil
}

type ntCursor struct {
	input string
	pos   int
}

func (c *ntCursor) skipWS() {
	for c.pos < len(c.input) {
		switch c.input[c.pos] {
		case ' ', '\t', '\r', '\n':
			c.pos++
		default:
			return
		}
	}
}

func (c *ntCursor) consume(ch byte) bool {
	c.skipWS()
	if c.pos < len(c.input) && c.input[c.pos] == ch {
		c.pos++
		return true
	}
	return false
}

func (c *ntCursor) parseTerm(allowLiteral bool) (Term, error) {
	c.skipWS()
	if c.pos >= len(c.input) {
		return nil, c.errorf("unexpected end of line")
	}
	switch {
	case c.input[c.pos] == '<':
		return c.parseIRI()
	case strings.HasPrefix(c.input[c.pos:], "_:"):
		return c.parseBlankNode()
	case c.input[c.pos] == '"':
		if !allowLiteral {
			return nil, c.errorf("literal not allowed here")
		}
		return c.parseLiteral()
	default:
		return nil, c.errorf("unexpected token")
	}
}

func (c *ntCursor) parseIRI() (IRI, error) {
	if !c.consume('<') {
		return IRI{}, c.errorf("expected IRI")
	}
	end := strings.IndexByte(c.input[c.pos:], '>')
	if end < 0 {
		return IRI{}, c.errorf("unterminated IRI")
	}
	value, err := unescapeNT(c.input[c.pos : c.pos+end])
	if err != nil {
		return IRI{}, c.errorf("%v", err)
	}
	c.pos += end + 1
	return IRI{Value: value}, nil
}

func (c *ntCursor) parseBlankNode() (BlankNode, error) {
	c.pos += 2
	start := c.pos
	for c.pos < len(c.input) && !isTermDelimiter(c.input[c.pos]) {
		c.pos++
	}
	if start == c.pos {
		return BlankNode{}, c.errorf("blank node id missing")
	}
	return BlankNode{ID: c.input[start:c.pos]}, nil
}

func (c *ntCursor) parseLiteral() (Literal, error) {
	c.pos++ // opening quote
	start := c.pos
	for c.pos < len(c.input) && c.input[c.pos] != '"' {
		if c.input[c.pos] == '\\' {
			c.pos++
		}
		c.pos++
	}
	if c.pos >= len(c.input) {
		return Literal{}, c.errorf("unterminated literal")
	}
	lexical, err := unescapeNT(c.input[start:c.pos])
	if err != nil {
		return Literal{}, c.errorf("%v", err)
	}
	c.pos++ // closing quote
	switch {
	case strings.HasPrefix(c.input[c.pos:], "@"):
		c.pos++
		langStart := c.pos
		for c.pos < len(c.input) && !isTermDelimiter(c.input[c.pos]) {
			c.pos++
		}
		return Literal{Lexical: lexical, Lang: c.input[langStart:c.pos]}, nil
	case strings.HasPrefix(c.input[c.pos:], "^^"):
		c.pos += 2
		dt, err := c.parseIRI()
		if err != nil {
			return Literal{}, err
		}
		return Literal{Lexical: lexical, Datatype: dt}, nil
	default:
		return Literal{Lexical: lexical}, nil
	}
}

func (c *ntCursor) errorf(format string, args ...interface{}) error {
	return &ParseError{
		Format:    "nquads",
		Statement: c.input,
		Column:    c.pos + 1,
		Err:       errors.Newf(format, args...),
	}
}

func isTermDelimiter(ch byte) bool {
	switch ch {
	case ' ', '\t', '\r', '\n', '.':
		return true
	default:
		return false
	}
}

// unescapeNT decodes ECHAR and UCHAR escapes.
func unescapeNT(s string) (string, error) {
	if !strings.Contains(s, `\`) {
		return s, nil
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		ch := s[i]
		if ch != '\\' {
			b.WriteByte(ch)
			continue
		}
		if i+1 >= len(s) {
			return "", errors.New("unterminated escape")
		}
		i++
		switch s[i] {
		case 't':
			b.WriteByte('\t')
		case 'b':
			b.WriteByte('\b')
		case 'n':
			b.WriteByte('\n')
		case 'r':
			b.WriteByte('\r')
		case 'f':
			b.WriteByte('\f')
		case '"', '\'', '\\':
			b.WriteByte(s[i])
		case 'u', 'U':
			width := 4
			if s[i] == 'U' {
				width = 8
			}
			if i+width >= len(s) {
				return "", errors.New("truncated unicode escape")
			}
			code, err := strconv.ParseUint(s[i+1:i+1+width], 16, 32)
			if err != nil {
				return "", errors.Wrap(err, "invalid unicode escape")
			}
			b.WriteRune(rune(code))
			i += width
		default:
			return "", errors.Newf("invalid escape \\%c", s[i])
		}
	}
	return b.String(), nil
}

// WriteNTriples writes triples one per line.
func WriteNTriples(w io.Writer, triples []Triple) error {
	bw := bufio.NewWriter(w)
	for _, t := range triples {
		if err := writeStatement(bw, t.S, t.P, t.O, nil); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// WriteNQuads writes quads one per line; default-graph quads have no graph term.
func WriteNQuads(w io.Writer, quads []Quad) error {
	bw := bufio.NewWriter(w)
	for _, q := range quads {
		if err := writeStatement(bw, q.S, q.P, q.O, q.G); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeStatement(w *bufio.Writer, s Term, p IRI, o Term, g Term) error {
	if s == nil || p.Value == "" || o == nil {
		return errors.New("ntriples: missing statement fields")
	}
	line := s.String() + " " + p.String() + " " + o.String()
	if g != nil {
		line += " " + g.String()
	}
	_, err := w.WriteString(line + " .\n")
	return err
}
