package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/cheggaaa/pb/v3"
	"github.com/dustin/go-humanize"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/obsprep/internal/pipeline"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Run the survey extraction for one year",
	Long:  "Loads the routes reference, data dictionary and raw results of a survey year, derives every enabled field group, and writes the parquet tables to the year's save_dir.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		year, sc, err := surveyFromFlags(cmd)
		if err != nil {
			return err
		}

		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		p, err := pipeline.New(year, sc, st)
		if err != nil {
			return err
		}

		refresh, _ := cmd.Flags().GetBool("refresh-cache")
		noCache, _ := cmd.Flags().GetBool("no-cache")
		progress, _ := cmd.Flags().GetBool("progress")
		opts := pipeline.Options{RefreshCache: refresh, NoCache: noCache}

		if progress {
			bar := newProgressBar(len(p.Steps()), fmt.Sprintf("obs%s ", year))
			opts.OnStep = func(string) { bar.Increment() }
			defer bar.Finish()
		}

		res, err := p.Run(ctx, opts)
		if err != nil {
			return eris.Wrap(err, "extract")
		}

		formatExtractSummary(os.Stdout, res)
		return nil
	},
}

func init() {
	addYearFlag(extractCmd)
	extractCmd.Flags().Bool("refresh-cache", false, "rebuild the raw results snapshot")
	extractCmd.Flags().Bool("no-cache", false, "read the raw results file directly")
	extractCmd.Flags().Bool("progress", false, "show a progress bar")
	rootCmd.AddCommand(extractCmd)
}

func newProgressBar(total int, prefix string) *pb.ProgressBar {
	bar := pb.Full.Start(total)
	bar.Set("prefix", prefix)
	bar.Set(pb.CleanOnFinish, true)
	return bar
}

// formatExtractSummary writes the written tables and data-quality issues to out.
func formatExtractSummary(out io.Writer, res *pipeline.Result) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "TABLE\tROWS\tCOLUMNS\tPATH")
	_, _ = fmt.Fprintln(w, "-----\t----\t-------\t----")
	for _, o := range res.Outputs {
		_, _ = fmt.Fprintf(w, "%s\t%s\t%d\t%s\n",
			o.Name,
			humanize.Comma(int64(o.Table.Len())),
			len(o.Table.Names()),
			o.Path,
		)
	}
	_ = w.Flush()

	if res.RunID != "" {
		_, _ = fmt.Fprintf(out, "\nRun: %s", res.RunID)
		if res.CacheHit {
			_, _ = fmt.Fprint(out, " (results snapshot reused)")
		}
		_, _ = fmt.Fprintln(out)
	}

	issues := res.Quality.Issues()
	if len(issues) == 0 {
		return
	}
	_, _ = fmt.Fprintf(out, "\nData quality issues: %s rows\n", humanize.Comma(int64(res.Quality.Total())))
	w = tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	for _, is := range issues {
		_, _ = fmt.Fprintf(w, "  %s\t%s\t%s\t%v\n", is.Module, is.Kind, humanize.Comma(int64(is.Count)), is.Samples)
	}
	_ = w.Flush()
}
