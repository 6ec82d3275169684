// Package shacl compiles JSON Schema documents into SHACL shapes graphs.
//
// A schema object becomes a node shape with one property shape per declared
// property, including the properties of every allOf branch. Property paths
// come from a JSON-LD context when it names the property and are synthesized
// under the property namespace otherwise.
package shacl

import (
	"bytes"
	"context"
	"encoding/json"
	"math/big"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/rdf"
	"github.com/geoknoesis/semlift-go/schema"
)

// DefaultTargetNamespace is used for shape IRIs when Config leaves it empty.
const DefaultTargetNamespace = "urn:semlift:shape#"

// Config controls shape naming.
type Config struct {
	// TargetNamespace prefixes every shape IRI.
	TargetNamespace string
	// PropertyNamespace prefixes synthesized property paths; empty uses
	// TargetNamespace.
	PropertyNamespace string
	// TargetClass adds sh:targetClass to every node shape.
	TargetClass string
	// ShapeName names the root shape; empty uses the schema title, then "Root".
	ShapeName string
	// IncludeLabels adds an rdfs:label to node shapes.
	IncludeLabels bool
}

// DefaultConfig returns the configuration used by the CLI.
func DefaultConfig() Config {
	return Config{TargetNamespace: DefaultTargetNamespace, IncludeLabels: true}
}

// GraphSerializer writes a graph; backend.Native satisfies it.
type GraphSerializer interface {
	SerializeGraph(ctx context.Context, g *rdf.Graph, format rdf.Format) ([]byte, error)
}

// Generator compiles schemas with a fixed Config. It is safe for concurrent
// use.
type Generator struct {
	config Config
	// Serializer renders GenerateTurtle output; nil uses the rdf package.
	Serializer GraphSerializer
}

// NewGenerator returns a generator for cfg.
func NewGenerator(cfg Config) *Generator {
	if cfg.TargetNamespace == "" {
		cfg.TargetNamespace = DefaultTargetNamespace
	}
	if cfg.PropertyNamespace == "" {
		cfg.PropertyNamespace = cfg.TargetNamespace
	}
	return &Generator{config: cfg}
}

var (
	unsafeName  = regexp.MustCompile(`[^A-Za-z0-9._-]`)
	integerText = regexp.MustCompile(`^-?\d+$`)
	plainNumber = regexp.MustCompile(`^-?\d+(\.\d+)?$`)
)

func sanitize(name string) string {
	return unsafeName.ReplaceAllString(name, "_")
}

// Generate compiles schemaData, JSON or YAML, into a shapes graph. contextData
// is an optional JSON-LD context document mapping property names to IRIs.
func (g *Generator) Generate(schemaData, contextData []byte) (*rdf.Graph, error) {
	normalized, err := schema.Normalize(schemaData)
	if err != nil {
		return nil, err
	}
	doc, err := jsonptr.Decode(normalized)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse JSON Schema"), errors.ErrConfiguration)
	}
	root, ok := doc.(map[string]any)
	if !ok {
		return nil, errors.Configuration("JSON Schema must be an object, got %T", doc)
	}

	var terms, prefixes map[string]string
	if len(bytes.TrimSpace(contextData)) > 0 {
		ctxDoc, err := jsonptr.Decode(contextData)
		if err != nil {
			return nil, errors.Mark(errors.Wrap(err, "parse JSON-LD context"), errors.ErrConfiguration)
		}
		terms = rdf.TermIRIs(ctxDoc)
		prefixes = rdf.NamespacePrefixes(ctxDoc)
	}

	graphPrefixes := map[string]string{
		"sh":      rdf.SHNS,
		"xsd":     rdf.XSDNS,
		"rdf":     rdf.RDFNS,
		"semlift": g.config.TargetNamespace,
	}
	if g.config.IncludeLabels {
		graphPrefixes["rdfs"] = rdf.RDFSNS
	}
	for k, v := range prefixes {
		graphPrefixes[k] = v
	}

	name := g.config.ShapeName
	if name == "" {
		name, _ = root["title"].(string)
	}
	if name == "" {
		name = "Root"
	}

	b := &builder{
		config:   g.config,
		graph:    rdf.NewGraph(graphPrefixes),
		terms:    terms,
		prefixes: prefixes,
	}
	b.nodeShape(rdf.IRI{Value: g.config.TargetNamespace + sanitize(name)}, root)
	return b.graph, nil
}

// GenerateTurtle compiles the schema and renders the graph as Turtle.
func (g *Generator) GenerateTurtle(ctx context.Context, schemaData, contextData []byte) ([]byte, error) {
	graph, err := g.Generate(schemaData, contextData)
	if err != nil {
		return nil, err
	}
	if g.Serializer != nil {
		return g.Serializer.SerializeGraph(ctx, graph, rdf.FormatTurtle)
	}
	var buf bytes.Buffer
	if err := rdf.WriteGraph(ctx, &buf, graph, rdf.FormatTurtle); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// builder holds the per-call state of one compilation.
type builder struct {
	config   Config
	graph    *rdf.Graph
	terms    map[string]string
	prefixes map[string]string
	bnodes   int
	lists    int
}

func (b *builder) bnode(prefix string, counter *int) rdf.BlankNode {
	*counter++
	return rdf.BlankNode{ID: prefix + strconv.Itoa(*counter)}
}

func (b *builder) nodeShape(id rdf.IRI, node map[string]any) {
	b.graph.AddType(id, shNodeShape.Value)
	if b.config.TargetClass != "" {
		b.graph.Add(id, shTargetClass, rdf.IRI{Value: b.config.TargetClass})
	}
	if b.config.IncludeLabels {
		label := id.Value
		if i := strings.LastIndex(label, "#"); i >= 0 {
			label = label[i+1:]
		}
		b.graph.Add(id, rdfsLabel, rdf.NewLiteral(label))
	}

	required := requiredSet(node)
	props := properties(node)
	names := make([]string, 0, len(props))
	for name := range props {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		prop := b.bnode("b", &b.bnodes)
		b.graph.Add(id, shProperty, prop)
		b.graph.AddType(prop, shPropertyShape.Value)
		b.graph.Add(prop, shPath, rdf.IRI{Value: b.propertyIRI(name)})
		if required[name] {
			b.graph.Add(prop, shMinCount, integer(1))
		}
		if propSchema, ok := props[name].(map[string]any); ok {
			b.constraints(prop, propSchema, name)
		}
	}
}

func (b *builder) constraints(prop rdf.BlankNode, node map[string]any, name string) {
	if values, ok := node["enum"].([]any); ok {
		items := make([]rdf.Term, 0, len(values))
		for _, v := range values {
			items = append(items, enumLiteral(v))
		}
		b.graph.Add(prop, shIn, b.list(items))
	}
	if pattern, ok := node["pattern"].(string); ok {
		b.graph.Add(prop, shPattern, rdf.NewLiteral(pattern))
	}
	b.intConstraint(prop, shMinLength, node["minLength"])
	b.intConstraint(prop, shMaxLength, node["maxLength"])
	b.boundConstraint(prop, shMinInclusive, node["minimum"])
	b.boundConstraint(prop, shMaxInclusive, node["maximum"])
	b.boundConstraint(prop, shMinExclusive, node["exclusiveMinimum"])
	b.boundConstraint(prop, shMaxExclusive, node["exclusiveMaximum"])

	kind, _ := node["type"].(string)
	switch kind {
	case "object":
		nested := rdf.IRI{Value: b.config.TargetNamespace + sanitize(name) + "Shape"}
		b.graph.Add(prop, shNode, nested)
		b.nodeShape(nested, node)
	case "array":
		b.intConstraint(prop, shMinCount, node["minItems"])
		b.intConstraint(prop, shMaxCount, node["maxItems"])
		items, ok := node["items"].(map[string]any)
		if !ok {
			return
		}
		itemKind, _ := items["type"].(string)
		if itemKind == "object" {
			nested := rdf.IRI{Value: b.config.TargetNamespace + sanitize(name) + "Item"}
			b.graph.Add(prop, shNode, nested)
			b.nodeShape(nested, items)
		} else if dt, ok := scalarDatatypes[itemKind]; ok {
			b.graph.Add(prop, shDatatype, rdf.IRI{Value: dt})
		}
	default:
		if dt, ok := scalarDatatypes[kind]; ok {
			b.graph.Add(prop, shDatatype, rdf.IRI{Value: dt})
		}
	}
}

// propertyIRI prefers the context's term definition. Compact IRIs in the
// context are expanded with the context's prefixes.
func (b *builder) propertyIRI(name string) string {
	if iri, ok := b.terms[name]; ok && iri != "" {
		if prefix, local, found := strings.Cut(iri, ":"); found && !strings.HasPrefix(local, "//") {
			if ns, ok := b.prefixes[prefix]; ok {
				return ns + local
			}
		}
		return iri
	}
	return b.config.PropertyNamespace + sanitize(name)
}

// list adds an RDF collection and returns its head.
func (b *builder) list(items []rdf.Term) rdf.Term {
	if len(items) == 0 {
		return rdfNil
	}
	head := b.bnode("l", &b.lists)
	current := head
	for i, item := range items {
		b.graph.Add(current, rdfFirst, item)
		if i == len(items)-1 {
			b.graph.Add(current, rdfRest, rdfNil)
			break
		}
		next := b.bnode("l", &b.lists)
		b.graph.Add(current, rdfRest, next)
		current = next
	}
	return head
}

func (b *builder) intConstraint(prop rdf.BlankNode, pred rdf.IRI, raw any) {
	if n, ok := intValue(raw); ok {
		b.graph.Add(prop, pred, integer(n))
	}
}

func (b *builder) boundConstraint(prop rdf.BlankNode, pred rdf.IRI, raw any) {
	if lit, ok := numericLiteral(raw); ok {
		b.graph.Add(prop, pred, lit)
	}
}

func properties(node map[string]any) map[string]any {
	out := map[string]any{}
	if props, ok := node["properties"].(map[string]any); ok {
		for k, v := range props {
			out[k] = v
		}
	}
	for _, branch := range allOf(node) {
		if props, ok := branch["properties"].(map[string]any); ok {
			for k, v := range props {
				out[k] = v
			}
		}
	}
	return out
}

func requiredSet(node map[string]any) map[string]bool {
	out := map[string]bool{}
	add := func(raw any) {
		list, _ := raw.([]any)
		for _, item := range list {
			if name, ok := jsonptr.Text(item); ok {
				out[name] = true
			}
		}
	}
	add(node["required"])
	for _, branch := range allOf(node) {
		add(branch["required"])
	}
	return out
}

func allOf(node map[string]any) []map[string]any {
	list, _ := node["allOf"].([]any)
	var out []map[string]any
	for _, item := range list {
		if branch, ok := item.(map[string]any); ok {
			out = append(out, branch)
		}
	}
	return out
}

func integer(n int64) rdf.Literal {
	return rdf.TypedLiteral(strconv.FormatInt(n, 10), rdf.XSDInteger)
}

func intValue(raw any) (int64, bool) {
	switch v := raw.(type) {
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n, true
		}
		if f, err := v.Float64(); err == nil {
			return int64(f), true
		}
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(v), 10, 64); err == nil {
			return n, true
		}
	}
	return 0, false
}

// numericLiteral types bounds as xsd:integer when the text is an integer and
// as xsd:decimal otherwise. Non-numeric values, such as draft-04 boolean
// exclusive flags, yield nothing.
func numericLiteral(raw any) (rdf.Literal, bool) {
	var text string
	switch v := raw.(type) {
	case json.Number:
		text = v.String()
	case string:
		text = strings.TrimSpace(v)
	default:
		return rdf.Literal{}, false
	}
	if integerText.MatchString(text) {
		n, ok := new(big.Int).SetString(text, 10)
		if !ok {
			return rdf.Literal{}, false
		}
		return rdf.TypedLiteral(n.String(), rdf.XSDInteger), true
	}
	return decimalLiteral(text)
}

func decimalLiteral(text string) (rdf.Literal, bool) {
	if plainNumber.MatchString(text) {
		return rdf.TypedLiteral(text, rdf.XSDDecimal), true
	}
	f, err := strconv.ParseFloat(text, 64)
	if err != nil {
		return rdf.Literal{}, false
	}
	return rdf.TypedLiteral(strconv.FormatFloat(f, 'f', -1, 64), rdf.XSDDecimal), true
}

func enumLiteral(v any) rdf.Term {
	switch x := v.(type) {
	case string:
		return rdf.NewLiteral(x)
	case bool:
		return rdf.TypedLiteral(strconv.FormatBool(x), rdf.XSDBoolean)
	case json.Number:
		if integerText.MatchString(x.String()) {
			return rdf.TypedLiteral(x.String(), rdf.XSDInteger)
		}
		if lit, ok := decimalLiteral(x.String()); ok {
			return lit
		}
		return rdf.NewLiteral(x.String())
	case nil:
		return rdf.NewLiteral("null")
	default:
		text, _ := jsonptr.Text(v)
		return rdf.NewLiteral(text)
	}
}
