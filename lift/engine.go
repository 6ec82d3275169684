// Package lift runs lift plans: it decodes an input, rewrites the JSON
// document with the plan's pre steps and identifier rules, embeds the JSON-LD
// context, builds the RDF dataset and runs the post steps on it.
package lift

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/backend"
	"github.com/geoknoesis/semlift-go/decode"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/metrics"
	"github.com/geoknoesis/semlift-go/jsonptr"
	"github.com/geoknoesis/semlift-go/logger"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/rdf"
	"github.com/geoknoesis/semlift-go/resolve"
	"github.com/geoknoesis/semlift-go/schema"
)

// Filter applies an external filter program to a serialized JSON document.
type Filter interface {
	Apply(ctx context.Context, program string, input []byte) ([]byte, error)
}

// Engine executes plans. An Engine holds no per-lift state and may run
// lifts concurrently.
type Engine struct {
	Decoders *decode.Registry
	// Resolver loads referenced contexts.
	Resolver resolve.Resolver
	Backend  backend.Backend
	// Filter runs jq steps; nil rejects them.
	Filter   Filter
	Logger   *zap.SugaredLogger
	Metrics  *metrics.Metrics
}

// NewEngine wires an engine. A nil decoder registry gets the defaults.
func NewEngine(decoders *decode.Registry, resolver resolve.Resolver, b backend.Backend, filter Filter) *Engine {
	if decoders == nil {
		decoders = decode.NewRegistry(nil)
	}
	return &Engine{Decoders: decoders, Resolver: resolver, Backend: b, Filter: filter}
}

// run carries the state of one lift.
type run struct {
	id    string
	opts  Options
	diag  Diagnostics
	log   *zap.SugaredLogger
	start time.Time
}

// Lift decodes src and applies p to it.
//
// Fatal failures return no result. A non-conforming SHACL report under
// Options.Strict is not an error: the result carries the dataset as it was
// when validated together with the report.
func (e *Engine) Lift(ctx context.Context, src decode.Source, p *plan.Plan, opts Options) (*Result, error) {
	r := e.newRun(opts)
	r.log.Infow("lift started", "source", decode.Kind(src))

	doc, err := e.Decoders.Decode(ctx, src, opts.Decode)
	if err != nil {
		return nil, e.fail(r, err)
	}
	return e.liftDocument(ctx, r, doc, p)
}

// LiftDocument applies p to an already decoded JSON document.
func (e *Engine) LiftDocument(ctx context.Context, doc any, p *plan.Plan, opts Options) (*Result, error) {
	r := e.newRun(opts)
	r.log.Infow("lift started", "source", "document")
	return e.liftDocument(ctx, r, doc, p)
}

func (e *Engine) newRun(opts Options) *run {
	id := uuid.NewString()
	return &run{
		id:    id,
		opts:  opts,
		log:   logger.Or(e.Logger).With("run_id", id),
		start: time.Now(),
	}
}

func (e *Engine) fail(r *run, err error) error {
	e.Metrics.RecordLift("failed")
	r.log.Warnw("lift failed", "error", err, "duration", time.Since(r.start))
	return err
}

func (e *Engine) liftDocument(ctx context.Context, r *run, doc any, p *plan.Plan) (*Result, error) {
	if p == nil {
		return nil, e.fail(r, errors.Configuration("no lift plan"))
	}
	if e.Backend == nil {
		return nil, e.fail(r, errors.Configuration("no RDF backend configured"))
	}

	doc, err := e.preSteps(ctx, r, doc, p.Pre)
	if err != nil {
		return nil, e.fail(r, err)
	}

	rules := append(append([]plan.IDRule(nil), p.IDRules...), r.opts.IDRulesOverride...)
	if len(rules) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(r, err)
		}
		doc, err = applyIDRules(doc, rules, r.opts.Strict, &r.diag)
		if err != nil {
			return nil, e.fail(r, err)
		}
		r.diag.AppliedSteps = append(r.diag.AppliedSteps, "id-rules")
	}

	contextSpec := p.Context
	if r.opts.ContextOverride != nil {
		contextSpec = r.opts.ContextOverride
	}
	contextData, err := e.contextBytes(ctx, contextSpec)
	if err != nil {
		return nil, e.fail(r, err)
	}
	jsonld, err := EmbedContext(doc, contextData)
	if err != nil {
		return nil, e.fail(r, err)
	}

	if err := ctx.Err(); err != nil {
		return nil, e.fail(r, err)
	}
	started := time.Now()
	ds, err := e.Backend.ToDataset(ctx, jsonld, r.opts.BaseIRI)
	if err != nil {
		return nil, e.fail(r, errors.Wrap(err, "build RDF dataset"))
	}
	e.Metrics.RecordStep("to-dataset", time.Since(started))

	var report *backend.ValidationReport
	for _, step := range p.Post {
		if err := ctx.Err(); err != nil {
			return nil, e.fail(r, err)
		}
		started := time.Now()
		switch s := step.(type) {
		case plan.Shacl:
			report, err = e.Backend.ShaclValidate(ctx, ds, s.Shapes)
		case plan.SparqlConstruct:
			ds, err = e.Backend.SparqlConstruct(ctx, ds, s.Query)
		case plan.SparqlUpdate:
			ds, err = e.Backend.SparqlUpdate(ctx, ds, s.Update)
		default:
			err = errors.Configuration("unsupported post step %T", step)
		}
		if err != nil {
			return nil, e.fail(r, errors.Wrapf(err, "%s step", step.StepName()))
		}
		e.stepDone(r, step.StepName(), started)

		if _, isShacl := step.(plan.Shacl); isShacl && r.opts.Strict && !report.Conforms {
			r.log.Warnw("strict SHACL validation failed, stopping")
			return e.finish(ctx, r, ds, report, "nonconforming")
		}
	}

	outcome := "ok"
	if report != nil && !report.Conforms {
		outcome = "nonconforming"
	}
	return e.finish(ctx, r, ds, report, outcome)
}

func (e *Engine) preSteps(ctx context.Context, r *run, doc any, steps []plan.PreStep) (any, error) {
	for _, step := range steps {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		started := time.Now()
		var err error
		switch s := step.(type) {
		case plan.NativeTransform:
			if s.Transform == nil {
				return nil, errors.Configuration("native transform %s has no function", s.StepName())
			}
			doc, err = s.Transform(ctx, doc)
		case plan.ExternalFilter:
			doc, err = e.filter(ctx, s.Program, doc)
		case plan.JSONSchema:
			err = e.validateSchema(r, s, doc)
		default:
			err = errors.Configuration("unsupported pre step %T", step)
		}
		if err != nil {
			return nil, errors.Wrapf(err, "%s step", step.StepName())
		}
		e.stepDone(r, step.StepName(), started)
	}
	return doc, nil
}

func (e *Engine) stepDone(r *run, name string, started time.Time) {
	elapsed := time.Since(started)
	r.diag.AppliedSteps = append(r.diag.AppliedSteps, name)
	e.Metrics.RecordStep(name, elapsed)
	r.log.Debugw("step finished", "step", name, "duration", elapsed)
}

func (e *Engine) filter(ctx context.Context, program string, doc any) (any, error) {
	if e.Filter == nil {
		return nil, errors.Configuration("jq step used but no jq runner configured")
	}
	input, err := jsonptr.Encode(doc)
	if err != nil {
		return nil, err
	}
	out, err := e.Filter.Apply(ctx, program, input)
	if err != nil {
		return nil, err
	}
	result, err := jsonptr.Decode(out)
	if err != nil {
		return nil, errors.Mark(errors.Wrap(err, "parse jq output"), errors.ErrExternalProcess)
	}
	return result, nil
}

func (e *Engine) validateSchema(r *run, step plan.JSONSchema, doc any) error {
	res, err := schema.Validate(step.Schema, doc)
	if err != nil {
		return err
	}
	if res.Valid {
		return nil
	}
	message := "JSON Schema validation failed: " + strings.Join(res.Errors, "; ")
	if step.Strict || r.opts.Strict {
		return errors.Validation(errors.ErrSchemaViolation, errors.New(message))
	}
	r.diag.Warnings = append(r.diag.Warnings, message)
	return nil
}

func (e *Engine) contextBytes(ctx context.Context, spec plan.ContextSpec) ([]byte, error) {
	switch c := spec.(type) {
	case plan.InlineContext:
		return c.JSON, nil
	case plan.RefContext:
		if e.Resolver == nil {
			return nil, errors.Configuration("context %s needs a resolver", c.URI)
		}
		data, err := e.Resolver.Resolve(ctx, c.URI)
		if err != nil {
			return nil, errors.Wrapf(err, "resolve context %s", c.URI)
		}
		return data, nil
	case nil:
		return nil, errors.Mark(errors.New("Missing context in lift plan"), errors.ErrMissingContext)
	default:
		return nil, errors.Configuration("unsupported context %T", spec)
	}
}

func (e *Engine) finish(ctx context.Context, r *run, ds *rdf.Dataset, report *backend.ValidationReport, outcome string) (*Result, error) {
	out, err := e.Backend.Serialize(ctx, ds, r.opts.Output)
	if err != nil {
		return nil, e.fail(r, errors.Wrap(err, "serialize dataset"))
	}
	e.Metrics.RecordLift(outcome)
	r.log.Infow("lift finished",
		"outcome", outcome,
		"quads", ds.Len(),
		"steps", len(r.diag.AppliedSteps),
		"warnings", len(r.diag.Warnings),
		"duration", time.Since(r.start))
	return &Result{RDF: out, Report: report, Diagnostics: r.diag, RunID: r.id}, nil
}
