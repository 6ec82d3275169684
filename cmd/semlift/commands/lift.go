package commands

import (
	"context"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	// sqlite3 serves --input-type sql --sql-driver sqlite3.
	_ "github.com/mattn/go-sqlite3"

	"github.com/geoknoesis/semlift-go/decode"
	"github.com/geoknoesis/semlift-go/errors"
	"github.com/geoknoesis/semlift-go/lift"
	"github.com/geoknoesis/semlift-go/plan"
	"github.com/geoknoesis/semlift-go/rdf"
)

// LiftCmd runs a lift plan.
var LiftCmd = &cobra.Command{
	Use:   "lift",
	Short: "Run a lift plan over an input",
	Long: `Run a lift plan over an input and write the RDF.

Input types:
  json, xml, csv   read --input (a file, or - for stdin)
  sql              read rows through database/sql (--sql-driver, --sql-dsn, --sql-table or --sql-query)
  plan             fetch the API input the plan declares

Examples:
  semlift lift --plan plan.yaml --input data.json
  semlift lift --plan plan.yaml --input-type sql --sql-driver sqlite3 --sql-dsn app.db --sql-table things
  semlift lift --plan plan.yaml --input data.json --out data.ttl --watch`,
	RunE: runLift,
}

var liftFlags struct {
	plan          string
	input         string
	inputType     string
	out           string
	format        string
	base          string
	context       string
	idRules       []string
	strict        bool
	csvNoHeader   bool
	csvInferTypes bool
	maxRows       int
	sqlDriver     string
	sqlDSN        string
	sqlTable      string
	sqlQuery      string
	watch         bool
}

func init() {
	f := LiftCmd.Flags()
	f.StringVar(&liftFlags.plan, "plan", "", "Lift plan file (YAML, JSON or TOML)")
	f.StringVar(&liftFlags.input, "input", "-", "Input file, or - for stdin")
	f.StringVar(&liftFlags.inputType, "input-type", "json", "json | xml | csv | sql | plan")
	f.StringVar(&liftFlags.out, "out", "-", "Output file, or - for stdout")
	f.StringVar(&liftFlags.format, "format", "turtle", "turtle | jsonld | ntriples | nquads")
	f.StringVar(&liftFlags.base, "base", "urn:base:", "Base IRI")
	f.StringVar(&liftFlags.context, "context", "", "Context reference overriding the plan's context")
	f.StringArrayVar(&liftFlags.idRules, "id-rules", nil, "Identifier rule file applied after the plan's rules (repeatable)")
	f.BoolVar(&liftFlags.strict, "strict", false, "Fail on any validation failure")
	f.BoolVar(&liftFlags.csvNoHeader, "csv-no-header", false, "CSV input has no header row")
	f.BoolVar(&liftFlags.csvInferTypes, "csv-infer-types", true, "Type CSV cells as numbers and booleans")
	f.IntVar(&liftFlags.maxRows, "max-rows", 0, "Read at most this many SQL rows (0 reads all)")
	f.StringVar(&liftFlags.sqlDriver, "sql-driver", "sqlite3", "database/sql driver name")
	f.StringVar(&liftFlags.sqlDSN, "sql-dsn", "", "Data source name")
	f.StringVar(&liftFlags.sqlTable, "sql-table", "", "Table to read")
	f.StringVar(&liftFlags.sqlQuery, "sql-query", "", "Query to run instead of reading a table")
	f.BoolVar(&liftFlags.watch, "watch", false, "Lift again whenever the plan or input file changes")
	_ = LiftCmd.MarkFlagRequired("plan")
}

func runLift(cmd *cobra.Command, _ []string) error {
	if liftFlags.watch {
		if liftFlags.input == "-" && isFileInput(liftFlags.inputType) {
			return errors.WithHint(errors.Configuration("--watch needs a file input"), "pass --input <file>")
		}
		return watchLift(cmd.Context(), cmd.OutOrStdout(), watchedFiles())
	}
	return liftOnce(cmd.Context(), cmd.InOrStdin(), cmd.OutOrStdout())
}

func liftOnce(ctx context.Context, stdin io.Reader, stdout io.Writer) error {
	format, ok := rdf.ParseFormat(liftFlags.format)
	if !ok {
		return errors.Configuration("Unsupported format: %s", liftFlags.format)
	}
	p, err := app.Loader.LoadFile(ctx, liftFlags.plan)
	if err != nil {
		return err
	}
	src, err := liftSource(p, stdin)
	if err != nil {
		return err
	}

	opts := lift.DefaultOptions()
	opts.BaseIRI = liftFlags.base
	opts.Output = format
	opts.Strict = liftFlags.strict
	opts.Decode = decode.Options{InferTypes: liftFlags.csvInferTypes, MaxRows: liftFlags.maxRows}
	if liftFlags.context != "" {
		opts.ContextOverride = plan.RefContext{URI: liftFlags.context}
	}
	for _, file := range liftFlags.idRules {
		rules, err := app.Loader.LoadIDRules(ctx, file)
		if err != nil {
			return err
		}
		opts.IDRulesOverride = append(opts.IDRulesOverride, rules...)
	}

	res, err := app.Engine.Lift(ctx, src, p, opts)
	if err != nil {
		return err
	}
	for _, w := range res.Diagnostics.Warnings {
		app.Logger.Warnw("lift warning", "run_id", res.RunID, "warning", w)
	}
	if err := writeOutput(liftFlags.out, stdout, res.RDF); err != nil {
		return err
	}
	if res.Report == nil {
		return nil
	}
	if liftFlags.out != "-" {
		if err := os.WriteFile(liftFlags.out+".shacl.ttl", []byte(res.Report.Report), 0o644); err != nil {
			return errors.Wrap(err, "write SHACL report")
		}
	}
	if opts.Strict && !res.Report.Conforms {
		return errors.Validation(errors.ErrStrictValidation, errors.New("SHACL validation failed in strict mode."))
	}
	return nil
}

func isFileInput(inputType string) bool {
	switch strings.ToLower(inputType) {
	case "json", "xml", "csv":
		return true
	}
	return false
}

func liftSource(p *plan.Plan, stdin io.Reader) (decode.Source, error) {
	switch strings.ToLower(liftFlags.inputType) {
	case "json", "xml", "csv":
		data, err := readInput(liftFlags.input, stdin)
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(liftFlags.inputType) {
		case "xml":
			return decode.XML{Data: data}, nil
		case "csv":
			return decode.CSV{Data: data, HasHeader: !liftFlags.csvNoHeader}, nil
		default:
			return decode.JSON{Data: data}, nil
		}
	case "sql", "db":
		if liftFlags.sqlDSN == "" {
			return nil, errors.Configuration("--sql-dsn is required for sql input")
		}
		return decode.SQL{
			Driver: liftFlags.sqlDriver,
			DSN:    liftFlags.sqlDSN,
			Table:  liftFlags.sqlTable,
			Query:  liftFlags.sqlQuery,
		}, nil
	case "plan", "api":
		if p.Input == nil {
			return nil, errors.Configuration("Lift plan input is required for input type %s", liftFlags.inputType)
		}
		return decode.API{Protocol: p.Input.Protocol, Config: p.Input.Config}, nil
	default:
		return nil, errors.Configuration("Unsupported input type: %s", liftFlags.inputType)
	}
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	if path == "" || path == "-" {
		data, err := io.ReadAll(stdin)
		return data, errors.Wrap(err, "read stdin")
	}
	data, err := os.ReadFile(path)
	return data, errors.Wrapf(err, "read %s", path)
}

func writeOutput(path string, stdout io.Writer, data []byte) error {
	if path == "" || path == "-" {
		_, err := stdout.Write(data)
		return err
	}
	return errors.Wrapf(os.WriteFile(path, data, 0o644), "write %s", path)
}
