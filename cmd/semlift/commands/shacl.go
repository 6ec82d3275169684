package commands

import (
	"github.com/spf13/cobra"

	"github.com/geoknoesis/semlift-go/shacl"
)

// ShaclCmd compiles a JSON Schema into SHACL shapes.
var ShaclCmd = &cobra.Command{
	Use:   "shacl",
	Short: "Compile a JSON Schema into SHACL shapes",
	Long: `Compile a JSON Schema (JSON or YAML) into a SHACL shapes graph in Turtle.

Property IRIs come from the JSON-LD context when one is given, otherwise from
--property-ns.

Examples:
  semlift shacl --schema schema.json --context context.jsonld
  semlift shacl --schema schema.yaml --target-class https://example.com/Building --out shapes.ttl`,
	RunE: runShacl,
}

var shaclFlags struct {
	schema      string
	context     string
	out         string
	targetNS    string
	propertyNS  string
	targetClass string
	shapeName   string
	noLabels    bool
}

func init() {
	f := ShaclCmd.Flags()
	f.StringVar(&shaclFlags.schema, "schema", "", "JSON Schema file, or - for stdin")
	f.StringVar(&shaclFlags.context, "context", "", "JSON-LD context file or URL")
	f.StringVar(&shaclFlags.out, "out", "-", "Output file, or - for stdout")
	f.StringVar(&shaclFlags.targetNS, "target-ns", shacl.DefaultTargetNamespace, "Namespace of the generated shapes")
	f.StringVar(&shaclFlags.propertyNS, "property-ns", "", "Namespace of properties the context does not map")
	f.StringVar(&shaclFlags.targetClass, "target-class", "", "sh:targetClass of the root shape")
	f.StringVar(&shaclFlags.shapeName, "shape-name", "", "Name of the root shape (default: schema title)")
	f.BoolVar(&shaclFlags.noLabels, "no-labels", false, "Omit rdfs:label on shapes")
	_ = ShaclCmd.MarkFlagRequired("schema")
}

func runShacl(cmd *cobra.Command, _ []string) error {
	schemaData, err := readInput(shaclFlags.schema, cmd.InOrStdin())
	if err != nil {
		return err
	}
	var contextData []byte
	if shaclFlags.context != "" {
		if contextData, err = app.Cache.Resolve(cmd.Context(), shaclFlags.context); err != nil {
			return err
		}
	}

	cfg := shacl.DefaultConfig()
	cfg.TargetNamespace = shaclFlags.targetNS
	cfg.PropertyNamespace = shaclFlags.propertyNS
	cfg.TargetClass = shaclFlags.targetClass
	cfg.ShapeName = shaclFlags.shapeName
	cfg.IncludeLabels = !shaclFlags.noLabels

	gen := shacl.NewGenerator(cfg)
	gen.Serializer = app.Backend
	shapes, err := gen.GenerateTurtle(cmd.Context(), schemaData, contextData)
	if err != nil {
		return err
	}
	return writeOutput(shaclFlags.out, cmd.OutOrStdout(), shapes)
}
