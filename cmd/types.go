package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/edge-cli/internal/model"
)

var typesCmd = &cobra.Command{
	Use:   "types",
	Short: "List report types and their default modes",
	RunE: func(cmd *cobra.Command, args []string) error {
		return printTypes(cmd.OutOrStdout())
	},
}

func init() {
	rootCmd.AddCommand(typesCmd)
}

func printTypes(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tNAME\tDEFAULT MODE\tSUMMARY\tNOTES")
	for _, rt := range model.AllReportTypes() {
		info := rt.Info()
		var notes string
		switch {
		case info.FormNumber != "" && info.NumericIDPreferred:
			notes = fmt.Sprintf("form %s only; use numeric company ids", info.FormNumber)
		case info.FormNumber != "":
			notes = fmt.Sprintf("form %s only", info.FormNumber)
		case info.NumericIDPreferred:
			notes = "use numeric company ids"
		}
		summary := "no"
		if info.HasSummary {
			summary = "yes"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", rt, info.Label, info.DefaultMode, summary, notes)
	}
	return tw.Flush()
}
