package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/geoknoesis/semlift-go/cmd/semlift/commands"
	"github.com/geoknoesis/semlift-go/logger"
)

var rootCmd = &cobra.Command{
	Use:   "semlift",
	Short: "Lift JSON, XML, CSV, SQL and API data into RDF",
	Long: `semlift - semantic lifting of structured data into RDF.

A lift plan names the JSON-LD context to embed, the steps that rewrite the
JSON document before RDF is built, the identifier rules that mint @id values
and the SHACL and SPARQL steps that run on the resulting dataset.

Available commands:
  lift     - Run a lift plan over an input
  shacl    - Compile a JSON Schema into SHACL shapes
  bblocks  - Browse and validate OGC Building Blocks
  cache    - Inspect the resource cache

Examples:
  semlift lift --plan plan.yaml --input data.json
  semlift lift --plan plan.yaml --input-type csv --input rows.csv --format ntriples
  semlift shacl --schema schema.json --context context.jsonld
  semlift bblocks show ogc.geo.common.data_types.geojson`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return commands.Setup()
	},
	PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
		return commands.Teardown()
	},
}

func init() {
	commands.BindGlobalFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(commands.LiftCmd)
	rootCmd.AddCommand(commands.ShaclCmd)
	rootCmd.AddCommand(commands.BBlocksCmd)
	rootCmd.AddCommand(commands.CacheCmd)
}

func main() {
	err := rootCmd.Execute()
	logger.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, commands.Describe(err))
		os.Exit(1)
	}
}
