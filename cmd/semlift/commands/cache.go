package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

// CacheCmd inspects the resource cache.
var CacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect the resource cache",
}

var cachePathCmd = &cobra.Command{
	Use:   "path [uri]",
	Short: "Print the cache directory, or the cache file of a URI",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), app.Cache.Dir())
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), app.Cache.Path(args[0]))
		if entry, ok := app.Cache.Lookup(args[0]); ok {
			fmt.Fprintf(cmd.OutOrStdout(), "fetched %s, %d bytes\n", entry.FetchedAt.Format("2006-01-02T15:04:05Z07:00"), len(entry.Data))
		}
		return nil
	},
}

func init() {
	CacheCmd.AddCommand(cachePathCmd)
}
