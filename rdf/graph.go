package rdf

// Graph is an ordered list of triples with the prefixes a writer should use.
// Generators build graphs; Turtle output preserves triple order per subject.
type Graph struct {
	Prefixes map[string]string
	Triples  []Triple
}

// NewGraph returns an empty graph using a copy of prefixes.
func NewGraph(prefixes map[string]string) *Graph {
	copied := make(map[string]string, len(prefixes))
	for k, v := range prefixes {
		copied[k] = v
	}
	return &Graph{Prefixes: copied}
}

// Add appends a triple.
func (g *Graph) Add(s Term, p IRI, o Term) {
	g.Triples = append(g.Triples, Triple{S: s, P: p, O: o})
}

// AddType appends an rdf:type triple.
func (g *Graph) AddType(s Term, class string) {
	g.Add(s, IRI{Value: RDFType}, IRI{Value: class})
}

// Objects returns the objects of all triples matching subject and predicate.
func (g *Graph) Objects(s Term, p string) []Term {
	var out []Term
	for _, t := range g.Triples {
		if t.S == s && t.P.Value == p {
			out = append(out, t.O)
		}
	}
	return out
}

// Subjects returns the subjects of all triples matching predicate and object.
func (g *Graph) Subjects(p string, o Term) []Term {
	var out []Term
	for _, t := range g.Triples {
		if t.P.Value == p && t.O == o {
			out = append(out, t.S)
		}
	}
	return out
}

// List returns the members of the RDF collection starting at head.
func (g *Graph) List(head Term) []Term {
	var items []Term
	seen := map[Term]bool{}
	for head != nil && head != (IRI{Value: RDFNil}) && !seen[head] {
		seen[head] = true
		first := g.Objects(head, RDFFirst)
		if len(first) == 0 {
			break
		}
		items = append(items, first[0])
		rest := g.Objects(head, RDFRest)
		if len(rest) == 0 {
			break
		}
		head = rest[0]
	}
	return items
}

// Dataset is the working set of quads of a lift.
type Dataset struct {
	Quads []Quad
	// Prefixes are carried to writers that abbreviate IRIs.
	Prefixes map[string]string
}

// NewDataset wraps quads.
func NewDataset(quads []Quad) *Dataset {
	return &Dataset{Quads: quads, Prefixes: map[string]string{}}
}

// Len returns the number of quads.
func (d *Dataset) Len() int { return len(d.Quads) }

// Triples returns the default-graph statements.
func (d *Dataset) Triples() []Triple {
	out := make([]Triple, 0, len(d.Quads))
	for _, q := range d.Quads {
		if q.InDefaultGraph() {
			out = append(out, q.ToTriple())
		}
	}
	return out
}

// Subjects returns the distinct subjects in first-seen order.
func (d *Dataset) Subjects() []Term {
	seen := map[Term]bool{}
	var out []Term
	for _, q := range d.Quads {
		if !seen[q.S] {
			seen[q.S] = true
			out = append(out, q.S)
		}
	}
	return out
}

// Graph converts the default graph into a Graph sharing the dataset prefixes.
func (d *Dataset) Graph() *Graph {
	g := NewGraph(d.Prefixes)
	g.Triples = d.Triples()
	return g
}
