package shacl

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/semlift-go/rdf"
)

func iri(v string) rdf.IRI { return rdf.IRI{Value: v} }

// propertyShape returns the property shape whose sh:path is path.
func propertyShape(t *testing.T, g *rdf.Graph, path string) rdf.Term {
	t.Helper()
	shapes := g.Subjects(shPath.Value, iri(path))
	require.Len(t, shapes, 1, "property shape for %s", path)
	return shapes[0]
}

func TestGenerateExample(t *testing.T) {
	schemaDoc := []byte(`{
		"type": "object",
		"required": ["id", "age"],
		"properties": {
			"id": {"type": "string"},
			"age": {"type": "integer", "minimum": 0},
			"status": {"enum": ["active", "inactive"]}
		}
	}`)
	g, err := NewGenerator(DefaultConfig()).Generate(schemaDoc, nil)
	require.NoError(t, err)

	nodeShapes := g.Subjects(rdf.RDFType, shNodeShape)
	require.Len(t, nodeShapes, 1)
	root := nodeShapes[0]
	assert.Equal(t, iri(DefaultTargetNamespace+"Root"), root)
	assert.Len(t, g.Objects(root, shProperty.Value), 3)
	assert.Equal(t, []rdf.Term{rdf.NewLiteral("Root")}, g.Objects(root, rdf.RDFSLabel))

	one := []rdf.Term{integer(1)}
	id := propertyShape(t, g, DefaultTargetNamespace+"id")
	assert.Equal(t, one, g.Objects(id, shMinCount.Value))
	assert.Equal(t, []rdf.Term{iri(rdf.XSDString)}, g.Objects(id, shDatatype.Value))

	age := propertyShape(t, g, DefaultTargetNamespace+"age")
	assert.Equal(t, one, g.Objects(age, shMinCount.Value))
	assert.Equal(t, []rdf.Term{iri(rdf.XSDInteger)}, g.Objects(age, shDatatype.Value))
	assert.Equal(t, []rdf.Term{integer(0)}, g.Objects(age, shMinInclusive.Value))

	status := propertyShape(t, g, DefaultTargetNamespace+"status")
	assert.Empty(t, g.Objects(status, shMinCount.Value))
	heads := g.Objects(status, shIn.Value)
	require.Len(t, heads, 1)
	assert.Equal(t, []rdf.Term{rdf.NewLiteral("active"), rdf.NewLiteral("inactive")}, g.List(heads[0]))
}

func TestGenerateContextPathsAndNesting(t *testing.T) {
	schemaDoc := []byte(`
title: River
allOf:
  - required: [name]
    properties:
      name: {type: string, pattern: "^[A-Z]", maxLength: 80}
properties:
  length: {type: number, exclusiveMinimum: 0.5, maximum: 12.25}
  source:
    type: object
    properties:
      lat: {type: number}
  tags:
    type: array
    minItems: 1
    items: {type: string}
  reaches:
    type: array
    items:
      type: object
      required: [km]
      properties:
        km: {type: integer}
  "odd name": {type: boolean, enum: [true, 2, 2.5]}
`)
	contextDoc := []byte(`{"@context": {"ex": "https://example.com/", "name": "ex:name", "length": {"@id": "https://example.com/length"}}}`)

	cfg := DefaultConfig()
	cfg.TargetNamespace = "https://example.com/shapes#"
	cfg.PropertyNamespace = "https://example.com/prop/"
	cfg.TargetClass = "https://example.com/River"
	g, err := NewGenerator(cfg).Generate(schemaDoc, contextDoc)
	require.NoError(t, err)

	root := iri("https://example.com/shapes#River")
	assert.Equal(t, []rdf.Term{iri("https://example.com/River")}, g.Objects(root, shTargetClass.Value))
	assert.Equal(t, "https://example.com/", g.Prefixes["ex"])

	name := propertyShape(t, g, "https://example.com/name")
	assert.Equal(t, []rdf.Term{integer(1)}, g.Objects(name, shMinCount.Value))
	assert.Equal(t, []rdf.Term{rdf.NewLiteral("^[A-Z]")}, g.Objects(name, shPattern.Value))
	assert.Equal(t, []rdf.Term{integer(80)}, g.Objects(name, shMaxLength.Value))

	length := propertyShape(t, g, "https://example.com/length")
	assert.Equal(t, []rdf.Term{rdf.TypedLiteral("0.5", rdf.XSDDecimal)}, g.Objects(length, shMinExclusive.Value))
	assert.Equal(t, []rdf.Term{rdf.TypedLiteral("12.25", rdf.XSDDecimal)}, g.Objects(length, shMaxInclusive.Value))
	assert.Equal(t, []rdf.Term{iri(rdf.XSDDecimal)}, g.Objects(length, shDatatype.Value))

	source := propertyShape(t, g, "https://example.com/prop/source")
	assert.Equal(t, []rdf.Term{iri("https://example.com/shapes#sourceShape")}, g.Objects(source, shNode.Value))
	propertyShape(t, g, "https://example.com/prop/lat")

	tags := propertyShape(t, g, "https://example.com/prop/tags")
	assert.Equal(t, []rdf.Term{integer(1)}, g.Objects(tags, shMinCount.Value))
	assert.Equal(t, []rdf.Term{iri(rdf.XSDString)}, g.Objects(tags, shDatatype.Value))

	reaches := propertyShape(t, g, "https://example.com/prop/reaches")
	item := iri("https://example.com/shapes#reachesItem")
	assert.Equal(t, []rdf.Term{item}, g.Objects(reaches, shNode.Value))
	assert.Len(t, g.Objects(item, shProperty.Value), 1)

	odd := propertyShape(t, g, "https://example.com/prop/odd_name")
	heads := g.Objects(odd, shIn.Value)
	require.Len(t, heads, 1)
	assert.Equal(t, []rdf.Term{
		rdf.TypedLiteral("true", rdf.XSDBoolean),
		rdf.TypedLiteral("2", rdf.XSDInteger),
		rdf.TypedLiteral("2.5", rdf.XSDDecimal),
	}, g.List(heads[0]))

	assert.Len(t, g.Subjects(rdf.RDFType, shNodeShape), 3)
}

func TestGenerateDeterministic(t *testing.T) {
	schemaDoc := []byte(`{"properties": {"b": {"type": "string"}, "a": {"enum": [1, 2]}, "c": {}}}`)
	gen := NewGenerator(DefaultConfig())
	first, err := gen.GenerateTurtle(context.Background(), schemaDoc, nil)
	require.NoError(t, err)
	second, err := gen.GenerateTurtle(context.Background(), schemaDoc, nil)
	require.NoError(t, err)
	assert.Equal(t, string(first), string(second))
	assert.Contains(t, string(first), "@prefix sh: <http://www.w3.org/ns/shacl#> .")
}

func TestGenerateRejectsNonObject(t *testing.T) {
	_, err := NewGenerator(DefaultConfig()).Generate([]byte(`[1, 2]`), nil)
	assert.Error(t, err)
}

type recordingSerializer struct{ called bool }

func (r *recordingSerializer) SerializeGraph(_ context.Context, _ *rdf.Graph, format rdf.Format) ([]byte, error) {
	r.called = true
	return []byte(string(format)), nil
}

func TestGenerateTurtleUsesSerializer(t *testing.T) {
	s := &recordingSerializer{}
	gen := NewGenerator(DefaultConfig())
	gen.Serializer = s
	out, err := gen.GenerateTurtle(context.Background(), []byte(`{"type": "object"}`), nil)
	require.NoError(t, err)
	assert.True(t, s.called)
	assert.Equal(t, "turtle", string(out))
}
