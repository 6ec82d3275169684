package rdf

import (
	"bufio"
	"io"
	"sort"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
)

// TurtleOptions configures Turtle encoding.
type TurtleOptions struct {
	Prefixes map[string]string
	BaseIRI  string
	Indent   string
}

// WriteTurtle writes triples grouped by subject in first-seen order. Within a
// subject, predicates and objects keep their insertion order.
func WriteTurtle(w io.Writer, triples []Triple, opts TurtleOptions) error {
	bw := bufio.NewWriter(w)
	indent := opts.Indent
	if indent == "" {
		indent = "    "
	}
	if err := writeTurtleHeader(bw, opts); err != nil {
		return err
	}

	type group struct {
		subject Term
		triples []Triple
	}
	var order []*group
	index := map[Term]*group{}
	for _, t := range triples {
		if t.S == nil || t.P.Value == "" || t.O == nil {
			return errors.New("turtle: missing statement fields")
		}
		g, ok := index[t.S]
		if !ok {
			g = &group{subject: t.S}
			index[t.S] = g
			order = append(order, g)
		}
		g.triples = append(g.triples, t)
	}

	for i, g := range order {
		if i > 0 {
			if _, err := bw.WriteString("\n"); err != nil {
				return err
			}
		}
		var b strings.Builder
		b.WriteString(renderTermWithPrefixes(g.subject, opts.Prefixes))
		var lastPredicate string
		for j, t := range g.triples {
			switch {
			case j == 0:
				b.WriteString(" " + renderPredicate(t.P, opts.Prefixes) + " ")
			case t.P.Value == lastPredicate:
				b.WriteString(", ")
			default:
				b.WriteString(" ;\n" + indent + renderPredicate(t.P, opts.Prefixes) + " ")
			}
			b.WriteString(renderTermWithPrefixes(t.O, opts.Prefixes))
			lastPredicate = t.P.Value
		}
		b.WriteString(" .\n")
		if _, err := bw.WriteString(b.String()); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func writeTurtleHeader(w *bufio.Writer, opts TurtleOptions) error {
	if opts.BaseIRI != "" {
		if _, err := w.WriteString("@base <" + opts.BaseIRI + "> .\n"); err != nil {
			return err
		}
	}
	for _, prefix := range sortedPrefixKeys(opts.Prefixes) {
		if _, err := w.WriteString("@prefix " + prefix + ": <" + opts.Prefixes[prefix] + "> .\n"); err != nil {
			return err
		}
	}
	if opts.BaseIRI != "" || len(opts.Prefixes) > 0 {
		if _, err := w.WriteString("\n"); err != nil {
			return err
		}
	}
	return nil
}

func sortedPrefixKeys(prefixes map[string]string) []string {
	keys := make([]string, 0, len(prefixes))
	for key := range prefixes {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func renderPredicate(iri IRI, prefixes map[string]string) string {
	if iri.Value == RDFType {
		return "a"
	}
	return renderIRIWithPrefixes(iri, prefixes)
}

func renderIRIWithPrefixes(iri IRI, prefixes map[string]string) string {
	if qname, ok := abbreviateQName(iri.Value, prefixes); ok {
		return qname
	}
	return iri.String()
}

func renderTermWithPrefixes(term Term, prefixes map[string]string) string {
	switch value := term.(type) {
	case IRI:
		return renderIRIWithPrefixes(value, prefixes)
	case Literal:
		quoted := `"` + escapeLiteral(value.Lexical) + `"`
		switch {
		case value.Lang != "":
			return quoted + "@" + value.Lang
		case value.Datatype.Value != "" && value.Datatype.Value != XSDString:
			return quoted + "^^" + renderIRIWithPrefixes(value.Datatype, prefixes)
		default:
			return quoted
		}
	default:
		return term.String()
	}
}

// abbreviateQName picks the longest namespace that yields a valid local name.
func abbreviateQName(iri string, prefixes map[string]string) (string, bool) {
	bestNS, bestPrefix := "", ""
	found := false
	for prefix, ns := range prefixes {
		if ns == "" || !strings.HasPrefix(iri, ns) {
			continue
		}
		if !isQNameLocal(iri[len(ns):]) {
			continue
		}
		if len(ns) > len(bestNS) || (len(ns) == len(bestNS) && prefix < bestPrefix) {
			bestNS, bestPrefix = ns, prefix
			found = true
		}
	}
	if !found {
		return "", false
	}
	return bestPrefix + ":" + iri[len(bestNS):], true
}
