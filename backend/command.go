package backend

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/internal/process"
	"github.com/geoknoesis/semlift-go/logger"
	"github.com/geoknoesis/semlift-go/rdf"
)

// Command templates. {data} is an N-Triples file holding the dataset,
// {shapes} a Turtle file holding the shapes graph and {query} a file holding
// the SPARQL query or update.
const (
	DefaultShaclCommand     = "pyshacl -s {shapes} -df nt -f turtle {data}"
	DefaultConstructCommand = "sparql --data={data} --query={query} --results=N-Triples"
	DefaultUpdateCommand    = "update --data={data} --update={query} --dump"
)

// CommandEngine runs SHACL and SPARQL through external programs.
//
// The SHACL command exits 0 when the data conforms and 1 when it does not;
// anything else is a failure. Its standard output is the report. The SPARQL
// commands print the resulting graph as N-Triples or N-Quads.
type CommandEngine struct {
	Runner    process.Runner
	Shacl     string
	Construct string
	Update    string
	// TempDir holds the exchange files; empty uses os.TempDir.
	TempDir string
	Logger  *zap.SugaredLogger
}

// NewCommandEngine returns an engine using the default command templates.
func NewCommandEngine(runner process.Runner) *CommandEngine {
	if runner == nil {
		runner = &process.Exec{}
	}
	return &CommandEngine{
		Runner:    runner,
		Shacl:     DefaultShaclCommand,
		Construct: DefaultConstructCommand,
		Update:    DefaultUpdateCommand,
	}
}

// ShaclValidate validates ds against shapes.
func (e *CommandEngine) ShaclValidate(ctx context.Context, ds *rdf.Dataset, shapes []byte) (*ValidationReport, error) {
	var report *ValidationReport
	err := e.withFiles(ctx, ds, map[string][]byte{"shapes": shapes}, func(files map[string]string) error {
		argv, err := expand(e.Shacl, DefaultShaclCommand, files)
		if err != nil {
			return err
		}
		res, err := e.runner().Run(ctx, argv, nil)
		if err != nil {
			return err
		}
		switch res.ExitCode {
		case 0, 1:
			report = &ValidationReport{Conforms: res.ExitCode == 0, Report: string(res.Stdout)}
			return nil
		default:
			return process.Check(argv, res)
		}
	})
	if err != nil {
		return nil, err
	}
	logger.Or(e.Logger).Debugw("SHACL validation finished", "conforms", report.Conforms)
	return report, nil
}

// SparqlConstruct returns the graph built by query.
func (e *CommandEngine) SparqlConstruct(ctx context.Context, ds *rdf.Dataset, query string) (*rdf.Dataset, error) {
	return e.runGraphCommand(ctx, ds, e.Construct, DefaultConstructCommand, query)
}

// SparqlUpdate returns ds after applying update.
func (e *CommandEngine) SparqlUpdate(ctx context.Context, ds *rdf.Dataset, update string) (*rdf.Dataset, error) {
	return e.runGraphCommand(ctx, ds, e.Update, DefaultUpdateCommand, update)
}

func (e *CommandEngine) runGraphCommand(ctx context.Context, ds *rdf.Dataset, template, fallback, query string) (*rdf.Dataset, error) {
	var out *rdf.Dataset
	err := e.withFiles(ctx, ds, map[string][]byte{"query": []byte(query)}, func(files map[string]string) error {
		argv, err := expand(template, fallback, files)
		if err != nil {
			return err
		}
		stdout, err := process.Output(ctx, e.runner(), argv, nil)
		if err != nil {
			return err
		}
		quads, err := rdf.ParseNQuads(ctx, bytes.NewReader(stdout))
		if err != nil {
			return errors.Mark(
				errors.WithHint(errors.Wrapf(err, "parse output of %s", argv[0]), "the command must print N-Triples or N-Quads"),
				errors.ErrExternalProcess)
		}
		out = rdf.NewDataset(quads)
		for k, v := range ds.Prefixes {
			out.Prefixes[k] = v
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (e *CommandEngine) runner() process.Runner {
	if e.Runner != nil {
		return e.Runner
	}
	return &process.Exec{}
}

var fileNames = map[string]string{
	"data":   "data.nt",
	"shapes": "shapes.ttl",
	"query":  "query.rq",
}

// withFiles writes the dataset and extra inputs to a scratch directory and
// calls fn with their paths.
func (e *CommandEngine) withFiles(ctx context.Context, ds *rdf.Dataset, extra map[string][]byte, fn func(files map[string]string) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dir, err := os.MkdirTemp(e.TempDir, "semlift-engine-")
	if err != nil {
		return errors.Wrap(err, "create engine scratch directory")
	}
	defer os.RemoveAll(dir)

	var data bytes.Buffer
	if err := rdf.WriteNTriples(&data, ds.Triples()); err != nil {
		return err
	}
	contents := map[string][]byte{"data": data.Bytes()}
	for k, v := range extra {
		contents[k] = v
	}
	files := make(map[string]string, len(contents))
	for name, body := range contents {
		path := filepath.Join(dir, fileNames[name])
		if err := os.WriteFile(path, body, 0o600); err != nil {
			return errors.Wrapf(err, "write %s", path)
		}
		files[name] = path
	}
	return fn(files)
}

func expand(template, fallback string, files map[string]string) ([]string, error) {
	if strings.TrimSpace(template) == "" {
		template = fallback
	}
	argv, err := process.Split(template)
	if err != nil {
		return nil, err
	}
	for i, arg := range argv {
		for name, path := range files {
			arg = strings.ReplaceAll(arg, "{"+name+"}", path)
		}
		argv[i] = arg
	}
	return argv, nil
}
