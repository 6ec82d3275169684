package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/config"
	"github.com/geoknoesis/semlift-go/errors"
)

const testPlan = `
metadata:
  title: Things
context:
  inline:
    "@context":
      ex: https://example.com/
      name: ex:name
idRules:
  - path: /@id
    template: https://example.com/thing/{code}
`

func setupApp(t *testing.T) {
	t.Helper()
	cfg := &config.Config{
		Cache: config.CacheConfig{Dir: t.TempDir(), TTL: time.Hour},
		HTTP:  config.HTTPConfig{Timeout: 5 * time.Second},
		JQ:    config.JQConfig{Binary: "jq"},
		Engine: config.EngineConfig{
			Shacl:     backend.DefaultShaclCommand,
			Construct: backend.DefaultConstructCommand,
			Update:    backend.DefaultUpdateCommand,
		},
		BBlocks: config.BBlocksConfig{Registry: "file:///nonexistent/register.json"},
	}
	a, err := NewApp(cfg, zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	app = a
	t.Cleanup(func() { app = nil })
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func resetLiftFlags(t *testing.T) {
	saved := liftFlags
	t.Cleanup(func() { liftFlags = saved })
	liftFlags.input = "-"
	liftFlags.inputType = "json"
	liftFlags.out = "-"
	liftFlags.format = "ntriples"
	liftFlags.base = "urn:base:"
	liftFlags.csvInferTypes = true
}

func TestLiftJSONFromStdin(t *testing.T) {
	setupApp(t)
	resetLiftFlags(t)
	dir := t.TempDir()
	liftFlags.plan = writeFile(t, dir, "plan.yaml", testPlan)

	var out bytes.Buffer
	err := liftOnce(context.Background(), strings.NewReader(`{"code": "abc", "name": "Widget"}`), &out)
	require.NoError(t, err)
	assert.Equal(t, "<https://example.com/thing/abc> <https://example.com/name> \"Widget\" .\n", out.String())
}

func TestLiftCSVToFile(t *testing.T) {
	setupApp(t)
	resetLiftFlags(t)
	dir := t.TempDir()
	liftFlags.plan = writeFile(t, dir, "plan.yaml", `
context:
  inline: {"@context": {"ex": "https://example.com/", "name": "ex:name"}}
idRules:
  - path: /0/@id
    scope: /0
    template: https://example.com/thing/{code}
`)
	liftFlags.inputType = "csv"
	liftFlags.input = writeFile(t, dir, "rows.csv", "code,name\nabc,Widget\n")
	liftFlags.out = filepath.Join(dir, "out.nt")

	require.NoError(t, liftOnce(context.Background(), strings.NewReader(""), &bytes.Buffer{}))
	data, err := os.ReadFile(liftFlags.out)
	require.NoError(t, err)
	assert.Equal(t, "<https://example.com/thing/abc> <https://example.com/name> \"Widget\" .\n", string(data))
}

func TestLiftIDRulesFlag(t *testing.T) {
	setupApp(t)
	resetLiftFlags(t)
	dir := t.TempDir()
	liftFlags.plan = writeFile(t, dir, "plan.yaml", `
context:
  inline: {"@context": {"ex": "https://example.com/", "name": "ex:name"}}
`)
	liftFlags.idRules = []string{writeFile(t, dir, "rules.yaml", `
- path: /@id
  template: https://example.com/thing/{code}
`)}

	var out bytes.Buffer
	require.NoError(t, liftOnce(context.Background(), strings.NewReader(`{"code": "abc", "name": "Widget"}`), &out))
	assert.Contains(t, out.String(), "<https://example.com/thing/abc>")
}

func TestLiftInputErrors(t *testing.T) {
	setupApp(t)
	dir := t.TempDir()
	plan := writeFile(t, dir, "plan.yaml", testPlan)

	tests := []struct {
		name  string
		apply func()
		want  string
	}{
		{"bad format", func() { liftFlags.format = "rdfxml" }, "Unsupported format: rdfxml"},
		{"bad input type", func() { liftFlags.inputType = "parquet" }, "Unsupported input type: parquet"},
		{"sql without dsn", func() { liftFlags.inputType = "sql" }, "--sql-dsn is required"},
		{"plan without input", func() { liftFlags.inputType = "plan" }, "Lift plan input is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resetLiftFlags(t)
			liftFlags.plan = plan
			tt.apply()
			err := liftOnce(context.Background(), strings.NewReader("{}"), &bytes.Buffer{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrConfiguration))
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestShaclCommand(t *testing.T) {
	setupApp(t)
	saved := shaclFlags
	t.Cleanup(func() { shaclFlags = saved })
	dir := t.TempDir()
	shaclFlags.schema = writeFile(t, dir, "schema.json", `{
  "title": "Thing",
  "type": "object",
  "required": ["name"],
  "properties": {"name": {"type": "string"}}
}`)
	shaclFlags.context = writeFile(t, dir, "context.jsonld", `{"@context": {"ex": "https://example.com/", "name": "ex:name"}}`)
	shaclFlags.out = "-"
	shaclFlags.targetNS = "urn:semlift:shape#"

	var out bytes.Buffer
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(&out)
	require.NoError(t, runShacl(cmd, nil))
	assert.Contains(t, out.String(), "@prefix sh: <http://www.w3.org/ns/shacl#> .")
	assert.Contains(t, out.String(), "sh:NodeShape")
	assert.Contains(t, out.String(), "ex:name")
	assert.Contains(t, out.String(), "sh:minCount")
}

func TestCachePath(t *testing.T) {
	setupApp(t)
	var out bytes.Buffer
	cachePathCmd.SetOut(&out)
	t.Cleanup(func() { cachePathCmd.SetOut(nil) })

	require.NoError(t, cachePathCmd.RunE(cachePathCmd, nil))
	assert.Equal(t, app.Config.Cache.Dir+"\n", out.String())

	out.Reset()
	require.NoError(t, cachePathCmd.RunE(cachePathCmd, []string{"https://example.com/context.jsonld"}))
	assert.True(t, strings.HasPrefix(out.String(), app.Config.Cache.Dir))
}

func TestDescribe(t *testing.T) {
	err := errors.WithHint(errors.New("boom"), "try again")
	assert.Equal(t, "Error: boom\n  hint: try again", Describe(err))
}
