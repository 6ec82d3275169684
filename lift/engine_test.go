package lift

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/decode"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/rdf"
	"github.com/geoknoesis/semlift-go/resolve"
)

const exampleContext = `{"@context": {"ex": "https://example.com/", "name": "ex:name"}}`

const widgetTriple = "<https://example.com/thing/abc> <https://example.com/name> \"Widget\" .\n"

func ntriplesOptions() Options {
	opts := DefaultOptions()
	opts.Output = rdf.FormatNTriples
	return opts
}

func widgetPlan() *plan.Plan {
	return &plan.Plan{
		Context: plan.InlineContext{JSON: []byte(exampleContext)},
		IDRules: []plan.IDRule{{Path: "/@id", Template: "https://example.com/thing/{code}"}},
	}
}

// shaclBackend reports every dataset as non-conforming and counts the
// construct queries it was asked to run.
type shaclBackend struct {
	*backend.Native
	conforms   bool
	constructs int
}

func (b *shaclBackend) ShaclValidate(context.Context, *rdf.Dataset, []byte) (*backend.ValidationReport, error) {
	return &backend.ValidationReport{Conforms: b.conforms, Report: "report"}, nil
}

func (b *shaclBackend) SparqlConstruct(_ context.Context, ds *rdf.Dataset, _ string) (*rdf.Dataset, error) {
	b.constructs++
	return ds, nil
}

type fakeFilter struct {
	program string
	input   string
	output  string
}

func (f *fakeFilter) Apply(_ context.Context, program string, input []byte) ([]byte, error) {
	f.program = program
	f.input = string(input)
	return []byte(f.output), nil
}

func TestLiftEndToEnd(t *testing.T) {
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)

	res, err := e.Lift(context.Background(),
		decode.JSON{Data: []byte(`{"code": "abc", "name": "Widget"}`)},
		widgetPlan(), ntriplesOptions())
	require.NoError(t, err)
	assert.Equal(t, widgetTriple, string(res.RDF))
	assert.Equal(t, []string{"id-rules"}, res.Diagnostics.AppliedSteps)
	assert.Empty(t, res.Diagnostics.Warnings)
	assert.Nil(t, res.Report)
	assert.NotEmpty(t, res.RunID)
}

func TestLiftCSVSource(t *testing.T) {
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
	p := &plan.Plan{
		Context: plan.InlineContext{JSON: []byte(exampleContext)},
		IDRules: []plan.IDRule{{
			Path:     "/0/@id",
			Template: "https://example.com/thing/{code}",
			Scope:    "/0",
		}},
	}

	res, err := e.Lift(context.Background(),
		decode.CSV{Data: []byte("code,name\nabc,Widget\n"), HasHeader: true},
		p, ntriplesOptions())
	require.NoError(t, err)
	assert.Equal(t, widgetTriple, string(res.RDF))
}

func TestLiftContextRef(t *testing.T) {
	var resolved []string
	resolver := resolve.Func(func(_ context.Context, uri string) ([]byte, error) {
		resolved = append(resolved, uri)
		return []byte(exampleContext), nil
	})
	e := NewEngine(nil, resolver, backend.NewNative(nil, nil), nil)
	p := widgetPlan()
	p.Context = plan.RefContext{URI: "https://example.com/context.jsonld"}

	res, err := e.LiftDocument(context.Background(),
		map[string]any{"code": "abc", "name": "Widget"}, p, ntriplesOptions())
	require.NoError(t, err)
	assert.Equal(t, widgetTriple, string(res.RDF))
	assert.Equal(t, []string{"https://example.com/context.jsonld"}, resolved)
}

func TestLiftOverrides(t *testing.T) {
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
	p := &plan.Plan{Context: plan.InlineContext{JSON: []byte(`{"@context": {"other": "urn:other:"}}`)}}

	opts := ntriplesOptions()
	opts.ContextOverride = plan.InlineContext{JSON: []byte(exampleContext)}
	opts.IDRulesOverride = []plan.IDRule{{Path: "/@id", Template: "https://example.com/thing/{code}"}}

	res, err := e.LiftDocument(context.Background(),
		map[string]any{"code": "abc", "name": "Widget"}, p, opts)
	require.NoError(t, err)
	assert.Equal(t, widgetTriple, string(res.RDF))
	assert.Equal(t, []string{"id-rules"}, res.Diagnostics.AppliedSteps)
}

func TestLiftSchemaStep(t *testing.T) {
	schemaStep := plan.JSONSchema{Schema: []byte(`{"type": "object", "required": ["title"]}`)}
	doc := map[string]any{"code": "abc", "name": "Widget"}

	t.Run("lenient", func(t *testing.T) {
		e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
		p := widgetPlan()
		p.Pre = []plan.PreStep{schemaStep}
		opts := ntriplesOptions()
		opts.Strict = false

		res, err := e.LiftDocument(context.Background(), doc, p, opts)
		require.NoError(t, err)
		require.Len(t, res.Diagnostics.Warnings, 1)
		assert.Contains(t, res.Diagnostics.Warnings[0], "JSON Schema validation failed: ")
		assert.Contains(t, res.Diagnostics.Warnings[0], "title")
		assert.Equal(t, []string{"json-schema", "id-rules"}, res.Diagnostics.AppliedSteps)
		assert.Equal(t, widgetTriple, string(res.RDF))
	})

	t.Run("strict lift", func(t *testing.T) {
		e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
		p := widgetPlan()
		p.Pre = []plan.PreStep{schemaStep}

		_, err := e.LiftDocument(context.Background(), doc, p, ntriplesOptions())
		require.Error(t, err)
		assert.True(t, errors.Is(err, errors.ErrSchemaViolation))
		assert.True(t, errors.Is(err, errors.ErrValidation))
	})

	t.Run("strict step", func(t *testing.T) {
		e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
		p := widgetPlan()
		strictStep := schemaStep
		strictStep.Strict = true
		p.Pre = []plan.PreStep{strictStep}
		opts := ntriplesOptions()
		opts.Strict = false

		_, err := e.LiftDocument(context.Background(), doc, p, opts)
		assert.True(t, errors.Is(err, errors.ErrSchemaViolation))
	})
}

func TestLiftFilterStep(t *testing.T) {
	filter := &fakeFilter{output: `{"code": "abc", "name": "Widget"}`}
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), filter)
	p := widgetPlan()
	p.Pre = []plan.PreStep{plan.ExternalFilter{Program: "{code: .id, name: .label}"}}

	res, err := e.LiftDocument(context.Background(),
		map[string]any{"id": "abc", "label": "Widget"}, p, ntriplesOptions())
	require.NoError(t, err)
	assert.Equal(t, widgetTriple, string(res.RDF))
	assert.Equal(t, "{code: .id, name: .label}", filter.program)
	assert.JSONEq(t, `{"id": "abc", "label": "Widget"}`, filter.input)
	assert.Equal(t, []string{"jq", "id-rules"}, res.Diagnostics.AppliedSteps)
}

func TestLiftFilterWithoutRunner(t *testing.T) {
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
	p := widgetPlan()
	p.Pre = []plan.PreStep{plan.ExternalFilter{Program: "."}}

	_, err := e.LiftDocument(context.Background(), map[string]any{}, p, ntriplesOptions())
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestLiftNativeTransform(t *testing.T) {
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
	p := widgetPlan()
	p.Pre = []plan.PreStep{plan.NativeTransform{
		Name: "rename",
		Transform: func(_ context.Context, doc any) (any, error) {
			obj := doc.(map[string]any)
			return map[string]any{"code": obj["id"], "name": obj["label"]}, nil
		},
	}}

	res, err := e.LiftDocument(context.Background(),
		map[string]any{"id": "abc", "label": "Widget"}, p, ntriplesOptions())
	require.NoError(t, err)
	assert.Equal(t, widgetTriple, string(res.RDF))
	assert.Equal(t, []string{"rename", "id-rules"}, res.Diagnostics.AppliedSteps)
}

func TestLiftStrictShaclStopsEarly(t *testing.T) {
	b := &shaclBackend{Native: backend.NewNative(nil, nil)}
	e := NewEngine(nil, nil, b, nil)
	p := widgetPlan()
	p.Post = []plan.PostStep{
		plan.Shacl{Shapes: []byte("@prefix sh: <http://www.w3.org/ns/shacl#> .")},
		plan.SparqlConstruct{Query: "CONSTRUCT WHERE { ?s ?p ?o }"},
	}

	res, err := e.LiftDocument(context.Background(),
		map[string]any{"code": "abc", "name": "Widget"}, p, ntriplesOptions())
	require.NoError(t, err)
	require.NotNil(t, res.Report)
	assert.False(t, res.Report.Conforms)
	assert.Equal(t, "report", res.Report.Report)
	assert.Equal(t, widgetTriple, string(res.RDF))
	assert.Zero(t, b.constructs)
	assert.Equal(t, []string{"id-rules", "shacl"}, res.Diagnostics.AppliedSteps)
}

func TestLiftLenientShaclContinues(t *testing.T) {
	b := &shaclBackend{Native: backend.NewNative(nil, nil)}
	e := NewEngine(nil, nil, b, nil)
	p := widgetPlan()
	p.Post = []plan.PostStep{
		plan.Shacl{Shapes: []byte("")},
		plan.SparqlConstruct{Query: "CONSTRUCT WHERE { ?s ?p ?o }"},
	}
	opts := ntriplesOptions()
	opts.Strict = false

	res, err := e.LiftDocument(context.Background(),
		map[string]any{"code": "abc", "name": "Widget"}, p, opts)
	require.NoError(t, err)
	assert.Equal(t, 1, b.constructs)
	assert.False(t, res.Report.Conforms)
	assert.Equal(t, []string{"id-rules", "shacl", "sparql-construct"}, res.Diagnostics.AppliedSteps)
}

func TestLiftMissingContext(t *testing.T) {
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
	_, err := e.LiftDocument(context.Background(), map[string]any{}, &plan.Plan{}, DefaultOptions())
	assert.True(t, errors.Is(err, errors.ErrMissingContext))
}

func TestLiftCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e := NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
	p := widgetPlan()
	p.Pre = []plan.PreStep{plan.ExternalFilter{Program: "."}}

	_, err := e.LiftDocument(ctx, map[string]any{}, p, DefaultOptions())
	assert.True(t, errors.Is(err, context.Canceled))
}
