package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/rezonia/invoice-engine/internal/rules"
)

var schemasCmd = &cobra.Command{
	Use:   "schemas",
	Short: "List the available rule sets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		entries := rules.DefaultRegistry().Catalog().Entries()

		if outputFormat == "json" {
			return writeJSON(entries)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "NAME\tDISPLAY NAME\tRULES\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", e.Name, e.DisplayName, e.RuleCount, e.Description)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(schemasCmd)
}
