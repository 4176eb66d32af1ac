package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/sells-group/obsprep/internal/pipeline"
	"github.com/sells-group/obsprep/internal/routes"
)

var routesCmd = &cobra.Command{
	Use:   "routes",
	Short: "Print the route-mode lookup table",
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, sc, err := surveyFromFlags(cmd)
		if err != nil {
			return err
		}
		rt, err := pipeline.LoadRoutes(sc.RoutesPath)
		if err != nil {
			return err
		}
		formatRoutes(os.Stdout, rt)
		return nil
	},
}

func init() {
	addYearFlag(routesCmd)
	rootCmd.AddCommand(routesCmd)
}

// formatRoutes writes the lookup table and any unmapped reference codes to out.
func formatRoutes(out io.Writer, rt *routes.Table) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "ROUTE\tMODE")
	_, _ = fmt.Fprintln(w, "-----\t----")
	for _, r := range rt.Routes() {
		mode := "-"
		if r.Known {
			mode = r.Mode.String()
		}
		_, _ = fmt.Fprintf(w, "%d\t%s\n", r.Number, mode)
	}
	_ = w.Flush()

	if len(rt.Unmapped) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\nUnmapped mode codes (%d):\n", len(rt.Unmapped))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, u := range rt.Unmapped {
		_, _ = fmt.Fprintf(w, "  row %d\t%s\tcode %q\n", u.Row, u.RouteName, u.Code)
	}
	_ = w.Flush()
}
