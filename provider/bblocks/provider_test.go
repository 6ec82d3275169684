package bblocks

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/lift"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/resolve"
)

const geojsonID = "ogc.geo.common.data_types.geojson"

const registerJSON = `{
  "validationReportJson": "https://example.org/report.json",
  "bblocks": [
    {
      "itemIdentifier": "ogc.geo.common.data_types.geojson",
      "name": "GeoJSON",
      "ldContext": "https://example.org/context.jsonld",
      "schema": {"application/json": "https://example.org/schema.json"},
      "documentation": {"bblocks-viewer": {"url": "https://example.org/docs"}}
    },
    {
      "itemIdentifier": "ogc.geo.features.feature",
      "name": "Feature"
    },
    {
      "itemIdentifier": "ogc.geo.json_fg.feature",
      "name": "JSON-FG Feature",
      "ldContext": "https://example.org/fg.jsonld"
    }
  ]
}`

const reportJSON = `{
  "bblocks": {
    "ogc.geo.common.data_types.geojson": {
      "items": [
        {"source": {"url": "https://example.org/example.json", "requireFail": false}},
        {"source": {"url": "https://example.org/bad.json", "filename": "bad.json", "requireFail": true}},
        {"other": true}
      ]
    },
    "ogc.geo.orphan": {"bblockName": "Orphan", "items": []}
  }
}`

func fixtures() map[string]string {
	return map[string]string{
		DefaultRegistryURL:                   registerJSON,
		"https://example.org/report.json":    reportJSON,
		"https://example.org/schema.json":    `{"type": "object", "required": ["name"], "properties": {"name": {"type": "string"}}}`,
		"https://example.org/context.jsonld": `{"@context": {"ex": "https://example.org/", "name": "ex:name"}}`,
		"https://example.org/example.json":   `{"name": "ok"}`,
		"https://example.org/bad.json":       `{"title": "no name"}`,
	}
}

func memoryResolver(docs map[string]string) resolve.Resolver {
	return resolve.Func(func(_ context.Context, uri string) ([]byte, error) {
		body, ok := docs[uri]
		if !ok {
			return nil, errors.Mark(errors.Newf("missing %s", uri), resolve.ErrNotFound)
		}
		return []byte(body), nil
	})
}

func TestResolve(t *testing.T) {
	docs := fixtures()
	p := New("", memoryResolver(docs))
	assert.Equal(t, ProviderID, p.ID())

	lp, err := p.Resolve(context.Background(), geojsonID)
	require.NoError(t, err)
	assert.Equal(t, plan.RefContext{URI: "https://example.org/context.jsonld"}, lp.Context)
	require.Len(t, lp.Pre, 1)
	step, ok := lp.Pre[0].(plan.JSONSchema)
	require.True(t, ok)
	assert.True(t, step.Strict)
	assert.Equal(t, docs["https://example.org/schema.json"], string(step.Schema))

	lp, err = p.Resolve(context.Background(), "ogc.geo.json_fg.feature")
	require.NoError(t, err)
	assert.Empty(t, lp.Pre)

	_, err = p.Resolve(context.Background(), "ogc.geo.features.feature")
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
	assert.Contains(t, err.Error(), "lacks ldContext")
}

func TestResolveThroughRegistry(t *testing.T) {
	reg := plan.NewRegistry(New("", memoryResolver(fixtures())))

	lp, err := reg.Resolve(context.Background(), ProviderID, geojsonID)
	require.NoError(t, err)
	assert.NotNil(t, lp.Context)

	_, err = reg.Resolve(context.Background(), ProviderID, "nope")
	assert.True(t, errors.Is(err, errors.ErrUnknownIdentifier))
}

func TestListFindSearch(t *testing.T) {
	p := New("", memoryResolver(fixtures()))
	ctx := context.Background()

	blocks, err := p.List(ctx)
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	assert.Equal(t, "https://example.org/docs", blocks[0].Documentation.Viewer.URL)
	assert.Equal(t, "https://example.org/schema.json", blocks[0].Schema.JSON)

	b, err := p.Find(ctx, "OGC.GEO.COMMON.DATA_TYPES.GEOJSON")
	require.NoError(t, err)
	assert.Equal(t, "GeoJSON", b.Name)

	_, err = p.Find(ctx, "missing")
	assert.True(t, errors.Is(err, errors.ErrUnknownIdentifier))

	found, err := p.Search(ctx, "feature")
	require.NoError(t, err)
	require.Len(t, found, 2)
	assert.Equal(t, "Feature", found[0].Name)
	assert.Equal(t, "JSON-FG Feature", found[1].Name)

	found, err = p.Search(ctx, "nothing")
	require.NoError(t, err)
	assert.Empty(t, found)
}

func TestListMissingIdentifier(t *testing.T) {
	p := New("mem:register", memoryResolver(map[string]string{
		"mem:register": `{"bblocks": [{"name": "anonymous"}]}`,
	}))
	_, err := p.List(context.Background())
	assert.ErrorContains(t, err, "missing itemIdentifier")
}

func TestValidateExamples(t *testing.T) {
	p := New("", memoryResolver(fixtures()))

	summary, err := p.ValidateExamples(context.Background(), geojsonID, true)
	require.NoError(t, err)
	assert.Equal(t, geojsonID, summary.BlockID)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 2, summary.Passed)
	assert.Zero(t, summary.Failed)
	assert.False(t, summary.Results[0].ExpectedToFail)
	assert.True(t, summary.Results[1].ExpectedToFail)
	assert.NotEmpty(t, summary.Results[1].Errors)
}

func TestValidateExamplesStrictFailure(t *testing.T) {
	docs := fixtures()
	docs["https://example.org/example.json"] = `{"name": 42}`
	p := New("", memoryResolver(docs))

	summary, err := p.ValidateExamples(context.Background(), geojsonID, false)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Failed)

	summary, err = p.ValidateExamples(context.Background(), geojsonID, true)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrValidation))
	assert.Contains(t, err.Error(), "1/2 examples")
	assert.Equal(t, 1, summary.Failed)
}

func TestValidateExamplesWithoutSchema(t *testing.T) {
	p := New("", memoryResolver(fixtures()))
	_, err := p.ValidateExamples(context.Background(), "ogc.geo.json_fg.feature", true)
	assert.True(t, errors.Is(err, errors.ErrConfiguration))
}

func TestValidateAll(t *testing.T) {
	p := New("", memoryResolver(fixtures()))
	engine := lift.NewEngine(nil, nil, backend.NewNative(nil, nil), nil)
	v := NewValidator(p, engine, nil)
	out := t.TempDir()

	report, err := v.ValidateAll(context.Background(), out)
	require.NoError(t, err)
	require.Len(t, report.Blocks, 2)
	assert.Equal(t, ReportSummary{Total: 2, Passed: 2}, report.Summary)

	geo := report.Blocks[0]
	assert.Equal(t, geojsonID, geo.BlockID)
	assert.Equal(t, "GeoJSON", geo.BlockName)
	require.Len(t, geo.Examples, 2)
	ex := geo.Examples[0]
	assert.Equal(t, "example.json", ex.Filename)
	assert.Equal(t, "passed", ex.SchemaVerdict())
	assert.Empty(t, ex.LiftError)
	assert.FileExists(t, ex.InputPath)
	assert.FileExists(t, ex.ShapesPath)
	assert.FileExists(t, ex.JSONLDPath)

	turtle, err := os.ReadFile(ex.TurtlePath)
	require.NoError(t, err)
	assert.Contains(t, string(turtle), `"ok"`)

	orphan := report.Blocks[1]
	assert.Equal(t, "Orphan", orphan.BlockName)
	assert.Zero(t, orphan.Total)

	data, err := os.ReadFile(filepath.Join(out, "report.json"))
	require.NoError(t, err)
	var decoded Report
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, report.Summary, decoded.Summary)

	html, err := os.ReadFile(filepath.Join(out, "report.html"))
	require.NoError(t, err)
	assert.Contains(t, string(html), "Number of passing building blocks: 2 / 2")
	assert.Contains(t, string(html), "No tests were found for this building block.")
}

func TestNormalizeExample(t *testing.T) {
	in := map[string]any{
		"type":     "FeatureCollection",
		"features": []any{map[string]any{"properties": nil}},
	}
	out := normalizeExample(in)
	assert.Equal(t, map[string]any{
		"type":     "FeatureCollection",
		"features": []any{map[string]any{"properties": map[string]any{}}},
	}, out)
}
