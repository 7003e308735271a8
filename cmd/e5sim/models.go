package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/thebtf/e5sim/internal/embedding"
)

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List the supported E5 variants",
	RunE: func(cmd *cobra.Command, args []string) error {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "VARIANT\tNAME\tDIMS\tTOKEN TYPES\tASSET")
		for _, m := range embedding.Variants() {
			fmt.Fprintf(w, "%s\t%s\t%d\t%t\t%s\n", m.Variant, m.Name, m.Dimensions, m.NeedsTokenTypeIDs, m.AssetName)
		}
		return w.Flush()
	},
}
