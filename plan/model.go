// Package plan holds lift plans: what context to embed, which steps run
// before and after RDF construction, how identifiers are minted and what
// other plans are imported.
//
// Plans are read by a Loader from YAML, JSON (comments allowed) or TOML
// documents. Imports are resolved depth first and merged into a single
// Plan value that is treated as immutable afterwards.
package plan

import (
	"context"

	"github.com/geoknoesis/semlift-go/apiproto"
)

// Plan is a merged lift plan.
type Plan struct {
	// Context is the JSON-LD context. Nil only before import merging.
	Context  ContextSpec
	Pre      []PreStep
	Post     []PostStep
	IDRules  []IDRule
	Input    *InputSpec
	Imports  []Import
	Metadata *Metadata

	// merged is set once Imports have been resolved into the other fields.
	merged bool
}

// ContextSpec is either an InlineContext or a RefContext.
type ContextSpec interface {
	isContext()
}

// InlineContext holds a JSON-LD context document or a bare context value.
type InlineContext struct {
	JSON []byte
}

// RefContext points to a context document resolved at lift time.
type RefContext struct {
	URI string
}

func (InlineContext) isContext() {}
func (RefContext) isContext()    {}

// Transform rewrites a decoded JSON document.
type Transform func(ctx context.Context, doc any) (any, error)

// PreStep runs on the JSON document before identifiers are minted. The
// variants are NativeTransform, ExternalFilter and JSONSchema.
type PreStep interface {
	StepName() string
	isPreStep()
}

// NativeTransform applies a registered Go function.
type NativeTransform struct {
	Name      string
	Transform Transform
}

// ExternalFilter runs a jq program.
type ExternalFilter struct {
	Program string
}

// JSONSchema validates the document. Strict failures abort the lift.
type JSONSchema struct {
	Schema []byte
	Strict bool
}

// StepName implements PreStep.
func (s NativeTransform) StepName() string {
	if s.Name == "" {
		return "native-transform"
	}
	return s.Name
}

// StepName implements PreStep.
func (ExternalFilter) StepName() string { return "jq" }

// StepName implements PreStep.
func (JSONSchema) StepName() string { return "json-schema" }

func (NativeTransform) isPreStep() {}
func (ExternalFilter) isPreStep()  {}
func (JSONSchema) isPreStep()      {}

// PostStep runs on the RDF dataset. The variants are Shacl, SparqlConstruct
// and SparqlUpdate.
type PostStep interface {
	StepName() string
	isPostStep()
}

// Shacl validates the dataset against a shapes graph in Turtle.
type Shacl struct {
	Shapes []byte
}

// SparqlConstruct replaces the dataset with the result of a CONSTRUCT query.
type SparqlConstruct struct {
	Query string
}

// SparqlUpdate applies a SPARQL Update request to the dataset.
type SparqlUpdate struct {
	Update string
}

func (Shacl) StepName() string           { return "shacl" }
func (SparqlConstruct) StepName() string { return "sparql-construct" }
func (SparqlUpdate) StepName() string    { return "sparql-update" }

func (Shacl) isPostStep()           {}
func (SparqlConstruct) isPostStep() {}
func (SparqlUpdate) isPostStep()    {}

// IDRule mints a string at Path from Template. Placeholders such as {code}
// are filled from the object selected by Scope, or the whole document when
// Scope is empty.
type IDRule struct {
	Path     string
	Template string
	Scope    string
	Strict   bool
}

// Import names another plan by location or by provider and identifier.
type Import struct {
	Ref      string
	Provider string
	ID       string
	Profile  string
}

// Key identifies the import for cycle detection.
func (i Import) Key() string {
	if i.Ref != "" {
		return "ref:" + i.Ref
	}
	return "provider:" + i.Provider + ":" + i.ID + ":" + i.Profile
}

// Kind is "ref" or "provider".
func (i Import) Kind() string {
	if i.Ref != "" {
		return "ref"
	}
	return "provider"
}

// InputSpec describes where a plan reads its data from.
type InputSpec struct {
	Protocol string
	Config   apiproto.Config
}

// Metadata describes a plan. Empty strings mean unset.
type Metadata struct {
	Title       string
	Description string
	Author      string
	Date        string
	Version     string
	License     string
	Keywords    []string
	Schema      string
	Profile     string
	ProfilesOf  []string
}
