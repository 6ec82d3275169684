package bblocks

import (
	"context"
	"encoding/json"
	"html/template"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/lift"
	"github.com/geoknoesis/semlift-go/logger"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/rdf"
	"github.com/geoknoesis/semlift-go/schema"
	"github.com/geoknoesis/semlift-go/shacl"
)

// Validator runs every example of a register through schema validation,
// shape generation and lifting, and writes the artifacts to a directory.
type Validator struct {
	Provider *Provider
	Engine   *lift.Engine
	Shapes   *shacl.Generator
}

// NewValidator returns a validator. A nil generator uses the default
// configuration.
func NewValidator(p *Provider, engine *lift.Engine, shapes *shacl.Generator) *Validator {
	if shapes == nil {
		shapes = shacl.NewGenerator(shacl.DefaultConfig())
	}
	return &Validator{Provider: p, Engine: engine, Shapes: shapes}
}

// BlockReport is the outcome for one block.
type BlockReport struct {
	BlockID   string          `json:"blockId"`
	BlockName string          `json:"blockName"`
	Total     int             `json:"total"`
	Passed    int             `json:"passed"`
	Failed    int             `json:"failed"`
	Examples  []ExampleReport `json:"examples"`
}

// ExampleReport lists the artifacts written for one example. Empty paths
// were not produced; SchemaPassed is nil when the block has no schema.
type ExampleReport struct {
	Filename       string `json:"filename"`
	SourceURL      string `json:"sourceUrl"`
	ExpectedToFail bool   `json:"expectedToFail"`
	InputPath      string `json:"inputPath"`
	SchemaPassed   *bool  `json:"schemaPassed,omitempty"`
	SchemaMessage  string `json:"schemaMessage,omitempty"`
	ShapesPath     string `json:"schemaShaclPath,omitempty"`
	JSONLDPath     string `json:"jsonLdPath,omitempty"`
	TurtlePath     string `json:"ttlPath,omitempty"`
	LiftError      string `json:"liftError,omitempty"`
	Passed         bool   `json:"passed"`
}

// SchemaVerdict is "passed", "failed" or empty when no schema ran.
func (e ExampleReport) SchemaVerdict() string {
	switch {
	case e.SchemaPassed == nil:
		return ""
	case *e.SchemaPassed:
		return "passed"
	default:
		return "failed"
	}
}

// Report is the outcome of ValidateAll.
type Report struct {
	Generated time.Time     `json:"generated"`
	Summary   ReportSummary `json:"summary"`
	Blocks    []BlockReport `json:"blocks"`
}

// ReportSummary totals the examples of all blocks.
type ReportSummary struct {
	Total  int `json:"total"`
	Passed int `json:"passed"`
	Failed int `json:"failed"`
}

// ValidateAll processes every block of the validation report and writes
// report.json and report.html to outDir next to the per-example artifacts.
func (v *Validator) ValidateAll(ctx context.Context, outDir string) (*Report, error) {
	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create report directory")
	}
	blocks, err := v.Provider.List(ctx)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*Block, len(blocks))
	for i := range blocks {
		byID[blocks[i].Identifier] = &blocks[i]
	}
	vr, err := v.Provider.validationReport(ctx)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(vr.Blocks))
	for id := range vr.Blocks {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	report := &Report{Generated: time.Now().UTC()}
	for _, id := range ids {
		entry := vr.Blocks[id]
		br := BlockReport{BlockID: id, BlockName: id}
		block := byID[id]
		if block != nil {
			br.BlockName = block.Name
		} else if entry.Name != "" {
			br.BlockName = entry.Name
		}
		for _, item := range entry.Items {
			if item.Source == nil || item.Source.URL == "" {
				continue
			}
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			ex, err := v.example(ctx, filepath.Join(outDir, id), block, item)
			if err != nil {
				return nil, err
			}
			br.Examples = append(br.Examples, *ex)
			if ex.Passed {
				br.Passed++
			}
		}
		br.Total = len(br.Examples)
		br.Failed = br.Total - br.Passed
		logger.Or(v.Provider.Logger).Infow("validated building block", "block", id, "passed", br.Passed, "total", br.Total)

		report.Blocks = append(report.Blocks, br)
		report.Summary.Total += br.Total
		report.Summary.Passed += br.Passed
		report.Summary.Failed += br.Failed
	}

	if err := writeJSONReport(filepath.Join(outDir, "report.json"), report); err != nil {
		return nil, err
	}
	if err := writeHTMLReport(filepath.Join(outDir, "report.html"), report); err != nil {
		return nil, err
	}
	return report, nil
}

func (v *Validator) example(ctx context.Context, dir string, block *Block, item reportItem) (*ExampleReport, error) {
	resolver := v.Provider.Resolver
	url := item.Source.URL
	name := item.Source.Filename
	if name == "" {
		name = path.Base(url)
	}
	name = filepath.Base(name)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create block directory")
	}
	data, err := resolver.Resolve(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "load example %s", url)
	}
	ex := &ExampleReport{
		Filename:       name,
		SourceURL:      url,
		ExpectedToFail: item.Source.RequireFail,
		InputPath:      filepath.Join(dir, name+".input.json"),
	}
	if err := os.WriteFile(ex.InputPath, data, 0o644); err != nil {
		return nil, errors.Wrap(err, "write example")
	}

	var contextData []byte
	if block != nil && block.LDContext != "" {
		if contextData, err = resolver.Resolve(ctx, block.LDContext); err != nil {
			return nil, errors.Wrapf(err, "load context of %s", block.Identifier)
		}
	}

	doc, parseErr := jsonptr.Decode(data)
	schemaOK := true
	if block != nil && block.Schema != nil && block.Schema.JSON != "" {
		schemaData, err := resolver.Resolve(ctx, block.Schema.JSON)
		if err != nil {
			return nil, errors.Wrapf(err, "load schema of %s", block.Identifier)
		}
		res := &schema.Result{Errors: []string{"invalid JSON: " + errorText(parseErr)}}
		if parseErr == nil {
			if res, err = validateEach(schemaData, doc); err != nil {
				return nil, err
			}
		}
		passed := res.Valid != ex.ExpectedToFail
		ex.SchemaPassed = &passed
		schemaOK = passed
		ex.SchemaMessage = "Validation passed"
		if !res.Valid {
			ex.SchemaMessage = strings.Join(res.Errors, "\n")
		}
		if err := os.WriteFile(filepath.Join(dir, name+".validation.txt"), []byte(ex.SchemaMessage), 0o644); err != nil {
			return nil, errors.Wrap(err, "write validation result")
		}

		shapes, err := v.Shapes.GenerateTurtle(ctx, schemaData, contextData)
		if err == nil {
			ex.ShapesPath = filepath.Join(dir, name+".schema.shacl.ttl")
			if err := os.WriteFile(ex.ShapesPath, shapes, 0o644); err != nil {
				return nil, errors.Wrap(err, "write shapes")
			}
		} else {
			logger.Or(v.Provider.Logger).Warnw("shape generation failed", "block", block.Identifier, "error", err)
		}
	}

	if contextData != nil {
		if parseErr != nil {
			ex.LiftError = errorText(parseErr)
		} else if err := v.lift(ctx, dir, name, doc, contextData, ex); err != nil {
			ex.LiftError = errorText(err)
		}
	}
	ex.Passed = schemaOK && ex.LiftError == ""
	return ex, nil
}

func (v *Validator) lift(ctx context.Context, dir, name string, doc any, contextData []byte, ex *ExampleReport) error {
	doc = normalizeExample(jsonptr.Remove(doc, "/@context"))
	jsonld, err := lift.EmbedContext(doc, contextData)
	if err != nil {
		return err
	}
	ex.JSONLDPath = filepath.Join(dir, name+".context.jsonld")
	if err := os.WriteFile(ex.JSONLDPath, jsonld, 0o644); err != nil {
		return errors.Wrap(err, "write JSON-LD")
	}

	opts := lift.DefaultOptions()
	opts.Output = rdf.FormatTurtle
	res, err := v.Engine.LiftDocument(ctx, doc, &plan.Plan{Context: plan.InlineContext{JSON: contextData}}, opts)
	if err != nil {
		return err
	}
	ex.TurtlePath = filepath.Join(dir, name+".ttl")
	return errors.Wrap(os.WriteFile(ex.TurtlePath, res.RDF, 0o644), "write Turtle")
}

// validateEach validates doc and, when an array fails as a whole, each of
// its elements. Element errors are prefixed with their index.
func validateEach(schemaData []byte, doc any) (*schema.Result, error) {
	compiled, err := schema.Compile(schemaData)
	if err != nil {
		return nil, err
	}
	res, err := compiled.Validate(doc)
	if err != nil || res.Valid {
		return res, err
	}
	items, ok := doc.([]any)
	if !ok {
		return res, nil
	}
	each := &schema.Result{Valid: true}
	for i, item := range items {
		r, err := compiled.Validate(item)
		if err != nil {
			return nil, err
		}
		for _, msg := range r.Errors {
			each.Errors = append(each.Errors, "["+strconv.Itoa(i)+"] "+msg)
		}
	}
	each.Valid = len(each.Errors) == 0
	return each, nil
}

// normalizeExample replaces null "properties" members, as found in GeoJSON
// features, with empty objects so they survive the @nest keyword.
func normalizeExample(node any) any {
	switch v := node.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, val := range v {
			if k == "properties" && val == nil {
				out[k] = map[string]any{}
				continue
			}
			out[k] = normalizeExample(val)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, val := range v {
			out[i] = normalizeExample(val)
		}
		return out
	default:
		return node
	}
}

func errorText(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func writeJSONReport(file string, report *Report) error {
	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return errors.Wrap(err, "encode JSON report")
	}
	return errors.Wrap(os.WriteFile(file, data, 0o644), "write JSON report")
}

var htmlReport = template.Must(template.New("report").Funcs(template.FuncMap{
	"passing": passingBlocks,
}).Parse(`<!doctype html>
<html><head><meta charset="utf-8"><title>OGC Building Blocks Report</title></head><body>
<h1>Building blocks validation report</h1>
<p>Generated at {{.Generated.Format "2006-01-02T15:04:05Z07:00"}}</p>
<p>Number of passing building blocks: {{passing .Blocks}} / {{len .Blocks}}</p>
<p>Example totals: {{.Summary.Passed}} passed / {{.Summary.Total}} total</p>
{{range .Blocks}}<h2>{{.BlockName}} ({{.BlockID}})</h2>
{{if eq .Total 0}}<p>No tests were found for this building block.</p>
{{else}}<p>Test passed: {{.Passed}} / {{.Total}}</p>
{{range .Examples}}<h3>{{.Filename}}</h3>
<ul>
<li>Source: <a href="{{.SourceURL}}">{{.SourceURL}}</a></li>
<li>Input: {{.InputPath}}</li>
{{with .SchemaVerdict}}<li>JSON Schema: {{.}}</li>
{{end}}{{with .ShapesPath}}<li>JSON Schema SHACL: {{.}}</li>
{{end}}{{with .JSONLDPath}}<li>JSON-LD: {{.}}</li>
{{end}}{{with .TurtlePath}}<li>Turtle: {{.}}</li>
{{end}}{{with .LiftError}}<li>Lift error: {{.}}</li>
{{end}}</ul>
{{end}}{{end}}{{end}}</body></html>
`))

func passingBlocks(blocks []BlockReport) int {
	n := 0
	for _, b := range blocks {
		if b.Failed == 0 {
			n++
		}
	}
	return n
}

func writeHTMLReport(file string, report *Report) error {
	f, err := os.Create(file)
	if err != nil {
		return errors.Wrap(err, "create HTML report")
	}
	defer f.Close()
	return errors.Wrap(htmlReport.Execute(f, report), "write HTML report")
}
