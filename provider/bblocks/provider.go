// Package bblocks serves lift plans from an OGC Building Blocks register.
//
// A register is a JSON document listing building blocks with their JSON-LD
// context and JSON Schema. A block's plan embeds its context and validates
// input against its schema before lifting.
package bblocks

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/logger"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/resolve"
	"github.com/geoknoesis/semlift-go/schema"
)

// ProviderID is the provider name plans use to import building blocks.
const ProviderID = "ogc-bblocks"

// DefaultRegistryURL is the public OGC register.
const DefaultRegistryURL = "https://opengeospatial.github.io/bblocks/register.json"

// Block is one register entry.
type Block struct {
	Identifier    string         `json:"itemIdentifier"`
	Name          string         `json:"name"`
	Group         string         `json:"group,omitempty"`
	Scope         string         `json:"scope,omitempty"`
	ItemClass     string         `json:"itemClass,omitempty"`
	LDContext     string         `json:"ldContext,omitempty"`
	Schema        *SchemaLinks   `json:"schema,omitempty"`
	Documentation *Documentation `json:"documentation,omitempty"`
}

// SchemaLinks locate a block's schema per media type.
type SchemaLinks struct {
	JSON string `json:"application/json,omitempty"`
	YAML string `json:"application/yaml,omitempty"`
}

// Documentation locates a block's rendered documentation.
type Documentation struct {
	Markdown *Link `json:"markdown,omitempty"`
	JSONFull *Link `json:"json-full,omitempty"`
	Viewer   *Link `json:"bblocks-viewer,omitempty"`
}

// Link is a documentation entry.
type Link struct {
	URL string `json:"url"`
}

type register struct {
	ValidationReport string            `json:"validationReportJson"`
	Blocks           []json.RawMessage `json:"bblocks"`
}

// Provider implements plan.Provider over a register.
type Provider struct {
	RegistryURL string
	Resolver    resolve.Resolver
	Logger      *zap.SugaredLogger
}

// New returns a provider for the register at registryURL, or the public
// register when registryURL is empty.
func New(registryURL string, resolver resolve.Resolver) *Provider {
	if registryURL == "" {
		registryURL = DefaultRegistryURL
	}
	return &Provider{RegistryURL: registryURL, Resolver: resolver}
}

// ID implements plan.Provider.
func (p *Provider) ID() string { return ProviderID }

// Resolve builds the plan of a block: its context by reference and, when
// the block publishes a JSON Schema, a strict schema step.
func (p *Provider) Resolve(ctx context.Context, id string) (*plan.Plan, error) {
	block, err := p.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if block.LDContext == "" {
		return nil, errors.Configuration("Building block lacks ldContext: %s", block.Identifier)
	}
	result := &plan.Plan{Context: plan.RefContext{URI: block.LDContext}}
	if block.Schema != nil && block.Schema.JSON != "" {
		data, err := p.Resolver.Resolve(ctx, block.Schema.JSON)
		if err != nil {
			return nil, errors.Wrapf(err, "load schema of %s", block.Identifier)
		}
		result.Pre = append(result.Pre, plan.JSONSchema{Schema: data, Strict: true})
	}
	logger.Or(p.Logger).Debugw("resolved building block", "block", block.Identifier, "steps", len(result.Pre))
	return result, nil
}

// List returns every block of the register.
func (p *Provider) List(ctx context.Context) ([]Block, error) {
	reg, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	blocks := make([]Block, 0, len(reg.Blocks))
	for i, raw := range reg.Blocks {
		var b Block
		if err := json.Unmarshal(raw, &b); err != nil {
			return nil, errors.Wrapf(err, "register entry %d", i)
		}
		if b.Identifier == "" {
			return nil, errors.Newf("register entry %d: missing itemIdentifier", i)
		}
		if b.Name == "" {
			b.Name = "Unknown"
		}
		blocks = append(blocks, b)
	}
	return blocks, nil
}

// Find returns the block whose identifier matches id, ignoring case.
func (p *Provider) Find(ctx context.Context, id string) (*Block, error) {
	blocks, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range blocks {
		if strings.EqualFold(blocks[i].Identifier, id) {
			return &blocks[i], nil
		}
	}
	return nil, errors.WithHint(plan.UnknownIdentifierError(ProviderID, id), "run 'semlift bblocks list' to see available blocks")
}

// Search returns the blocks whose name contains query, ignoring case.
func (p *Provider) Search(ctx context.Context, query string) ([]Block, error) {
	blocks, err := p.List(ctx)
	if err != nil {
		return nil, err
	}
	query = strings.ToLower(query)
	var matches []Block
	for _, b := range blocks {
		if strings.Contains(strings.ToLower(b.Name), query) {
			matches = append(matches, b)
		}
	}
	return matches, nil
}

func (p *Provider) load(ctx context.Context) (*register, error) {
	if p.Resolver == nil {
		return nil, errors.Configuration("building block provider needs a resolver")
	}
	data, err := p.Resolver.Resolve(ctx, p.RegistryURL)
	if err != nil {
		return nil, errors.Wrap(err, "load building block register")
	}
	var reg register
	if err := json.Unmarshal(data, &reg); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse building block register"), errors.ErrProtocol)
	}
	return &reg, nil
}

// ExampleResult is the outcome of validating one published example. Passed
// is true when the schema verdict matches the expectation.
type ExampleResult struct {
	URL            string   `json:"url"`
	ExpectedToFail bool     `json:"expectedToFail"`
	Passed         bool     `json:"passed"`
	Errors         []string `json:"errors,omitempty"`
}

// Summary aggregates the example results of a block.
type Summary struct {
	BlockID string          `json:"blockId"`
	Total   int             `json:"total"`
	Passed  int             `json:"passed"`
	Failed  int             `json:"failed"`
	Results []ExampleResult `json:"results"`
}

type validationReport struct {
	Blocks map[string]struct {
		Name  string       `json:"bblockName"`
		Items []reportItem `json:"items"`
	} `json:"bblocks"`
}

type reportItem struct {
	Source *struct {
		URL         string `json:"url"`
		Filename    string `json:"filename"`
		RequireFail bool   `json:"requireFail"`
	} `json:"source"`
}

// ValidateExamples checks the examples the register's validation report
// lists for block id against the block's schema. Examples marked
// requireFail pass when they are invalid. With strict set, any failed
// example is an error.
func (p *Provider) ValidateExamples(ctx context.Context, id string, strict bool) (*Summary, error) {
	block, err := p.Find(ctx, id)
	if err != nil {
		return nil, err
	}
	if block.Schema == nil || block.Schema.JSON == "" {
		return nil, errors.Configuration("Building block lacks JSON schema: %s", block.Identifier)
	}
	schemaData, err := p.Resolver.Resolve(ctx, block.Schema.JSON)
	if err != nil {
		return nil, errors.Wrapf(err, "load schema of %s", block.Identifier)
	}
	compiled, err := schema.Compile(schemaData)
	if err != nil {
		return nil, err
	}
	report, err := p.validationReport(ctx)
	if err != nil {
		return nil, err
	}

	summary := &Summary{BlockID: block.Identifier}
	for _, item := range report.Blocks[block.Identifier].Items {
		if item.Source == nil || item.Source.URL == "" {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		res, err := p.validateExample(ctx, compiled, item.Source.URL)
		if err != nil {
			return nil, err
		}
		passed := res.Valid
		if item.Source.RequireFail {
			passed = !res.Valid
		}
		summary.Results = append(summary.Results, ExampleResult{
			URL:            item.Source.URL,
			ExpectedToFail: item.Source.RequireFail,
			Passed:         passed,
			Errors:         res.Errors,
		})
		if passed {
			summary.Passed++
		}
	}
	summary.Total = len(summary.Results)
	summary.Failed = summary.Total - summary.Passed
	if strict && summary.Failed > 0 {
		return summary, errors.Validation(errors.ErrSchemaViolation,
			errors.Newf("Building block validation failed for %s: %d/%d examples", block.Identifier, summary.Failed, summary.Total))
	}
	return summary, nil
}

func (p *Provider) validateExample(ctx context.Context, compiled *schema.Schema, url string) (*schema.Result, error) {
	data, err := p.Resolver.Resolve(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "load example %s", url)
	}
	doc, err := jsonptr.Decode(data)
	if err != nil {
		return nil, errors.Wrapf(err, "parse example %s", url)
	}
	return compiled.Validate(doc)
}

func (p *Provider) validationReport(ctx context.Context) (*validationReport, error) {
	reg, err := p.load(ctx)
	if err != nil {
		return nil, err
	}
	if reg.ValidationReport == "" {
		return nil, errors.Mark(errors.New("Registry missing validationReportJson"), errors.ErrProtocol)
	}
	data, err := p.Resolver.Resolve(ctx, reg.ValidationReport)
	if err != nil {
		return nil, errors.Wrap(err, "load validation report")
	}
	var report validationReport
	if err := json.Unmarshal(data, &report); err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse validation report"), errors.ErrProtocol)
	}
	return &report, nil
}
