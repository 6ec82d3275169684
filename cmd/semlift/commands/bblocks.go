package commands

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/geoknoesis/semlift-go/provider/bblocks"
)

// BBlocksCmd groups the OGC Building Blocks commands.
var BBlocksCmd = &cobra.Command{
	Use:   "bblocks",
	Short: "Browse and validate OGC Building Blocks",
	Long: `Browse the OGC Building Blocks register and validate published examples.

Plans import a block with:
  imports:
    - provider: ogc-bblocks
      id: ogc.geo.common.data_types.geojson

Examples:
  semlift bblocks list --search feature
  semlift bblocks show ogc.geo.common.data_types.geojson
  semlift bblocks validate ogc.geo.common.data_types.geojson
  semlift bblocks validate --all --out build/ogc-bblocks`,
}

var bblocksListCmd = &cobra.Command{
	Use:   "list",
	Short: "List building blocks",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		var (
			blocks []bblocks.Block
			err    error
		)
		if bblocksSearchFlag != "" {
			blocks, err = app.BBlocks.Search(cmd.Context(), bblocksSearchFlag)
		} else {
			blocks, err = app.BBlocks.List(cmd.Context())
		}
		if err != nil {
			return err
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "IDENTIFIER\tNAME\tCONTEXT")
		for _, b := range blocks {
			hasContext := "-"
			if b.LDContext != "" {
				hasContext = "yes"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\n", b.Identifier, b.Name, hasContext)
		}
		return w.Flush()
	},
}

var bblocksShowCmd = &cobra.Command{
	Use:   "show <identifier>",
	Short: "Show a building block",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		block, err := app.BBlocks.Find(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(block)
	},
}

var bblocksValidateCmd = &cobra.Command{
	Use:   "validate [identifier]",
	Short: "Validate the published examples of a building block",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if bblocksAllFlag {
			report, err := bblocks.NewValidator(app.BBlocks, app.Engine, nil).ValidateAll(cmd.Context(), bblocksOutFlag)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d/%d examples passed, report in %s\n",
				report.Summary.Passed, report.Summary.Total, bblocksOutFlag)
			return nil
		}
		if len(args) != 1 {
			return cmd.Usage()
		}
		summary, err := app.BBlocks.ValidateExamples(cmd.Context(), args[0], !bblocksLenientFlag)
		if summary != nil {
			for _, r := range summary.Results {
				status := "PASS"
				if !r.Passed {
					status = "FAIL"
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s  %s\n", status, r.URL)
				for _, e := range r.Errors {
					fmt.Fprintf(cmd.OutOrStdout(), "      %s\n", e)
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d/%d passed\n", summary.BlockID, summary.Passed, summary.Total)
		}
		return err
	},
}

var (
	bblocksSearchFlag  string
	bblocksAllFlag     bool
	bblocksOutFlag     string
	bblocksLenientFlag bool
)

func init() {
	BBlocksCmd.AddCommand(bblocksListCmd, bblocksShowCmd, bblocksValidateCmd)
	bblocksListCmd.Flags().StringVar(&bblocksSearchFlag, "search", "", "Only list blocks whose name contains this text")
	bblocksValidateCmd.Flags().BoolVar(&bblocksAllFlag, "all", false, "Validate and lift every example of the register")
	bblocksValidateCmd.Flags().StringVar(&bblocksOutFlag, "out", "build/ogc-bblocks", "Report directory for --all")
	bblocksValidateCmd.Flags().BoolVar(&bblocksLenientFlag, "lenient", false, "Exit successfully even when examples fail")
}
