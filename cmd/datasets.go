package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/acceslibre/erpsync/internal/dataset"
)

var datasetsCmd = &cobra.Command{
	Use:   "datasets",
	Short: "List registered datasets",
	RunE: func(cmd *cobra.Command, _ []string) error {
		reg, err := loadRegistry()
		if err != nil {
			return err
		}
		formatDatasets(os.Stdout, reg.All())
		return nil
	},
}

func formatDatasets(out io.Writer, defs []dataset.Definition) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ID\tMAPPER\tFORMAT\tLOCATION\tDESCRIPTION")
	for _, d := range defs {
		loc := d.Fetch.Location
		if loc == "" {
			loc = "-"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", d.ID, d.Mapper, d.Fetch.Format, loc, d.Description)
	}
	_ = w.Flush()
}

func init() {
	rootCmd.AddCommand(datasetsCmd)
}
