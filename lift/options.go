package lift

import (
	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/decode"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/rdf"
)

// Options tune one lift.
type Options struct {
	// BaseIRI resolves relative IRIs in the JSON-LD document.
	BaseIRI string
	// Output is the serialization of Result.RDF.
	Output rdf.Format
	// Strict turns every validation failure into an error and stops at the
	// first non-conforming SHACL report.
	Strict bool
	// ContextOverride replaces the plan's context when set.
	ContextOverride plan.ContextSpec
	// IDRulesOverride runs after the plan's identifier rules.
	IDRulesOverride []plan.IDRule
	// Decode tunes the tabular decoders.
	Decode decode.Options
}

// DefaultOptions returns strict Turtle output with base IRI "urn:base:".
func DefaultOptions() Options {
	return Options{
		BaseIRI: "urn:base:",
		Output:  rdf.FormatTurtle,
		Strict:  true,
		Decode:  decode.DefaultOptions(),
	}
}

// Result is the outcome of a lift.
type Result struct {
	// RDF is the serialized dataset.
	RDF []byte
	// Report is the last SHACL report, if a SHACL step ran.
	Report      *backend.ValidationReport
	Diagnostics Diagnostics
	// RunID identifies the lift in logs.
	RunID string
}

// Diagnostics lists what ran and what was tolerated.
type Diagnostics struct {
	AppliedSteps []string
	Warnings     []string
}
