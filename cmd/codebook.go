package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/obsprep/internal/codebook"
	"github.com/sells-group/obsprep/internal/pipeline"
	"github.com/sells-group/obsprep/internal/recode"
)

var codebookCmd = &cobra.Command{
	Use:   "codebook",
	Short: "Print the data dictionary codes of a survey year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		year, sc, err := surveyFromFlags(cmd)
		if err != nil {
			return err
		}
		if sc.DataDictionaryPath == "" {
			return eris.Errorf("codebook: survey %s has no data_dictionary_path", year)
		}
		cb, err := pipeline.LoadCodebook(sc.DataDictionaryPath, sc.DataDictionarySheet)
		if err != nil {
			return err
		}

		variable, _ := cmd.Flags().GetString("variable")
		if variable != "" && !cb.Has(variable) {
			return eris.Wrapf(recode.ErrUnknownVariable, "codebook: %s", variable)
		}
		formatCodebook(os.Stdout, cb, variable)
		return nil
	},
}

func init() {
	addYearFlag(codebookCmd)
	codebookCmd.Flags().String("variable", "", "only print this variable")
	rootCmd.AddCommand(codebookCmd)
}

// formatCodebook writes codebook entries in data-dictionary order. An empty
// variable prints every variable.
func formatCodebook(out io.Writer, cb *codebook.Codebook, variable string) {
	vars := cb.Variables()
	if variable != "" {
		vars = []string{variable}
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(w, "VARIABLE\tCODE\tLABEL")
	_, _ = fmt.Fprintln(w, "--------\t----\t-----")
	for _, v := range vars {
		for _, e := range cb.Entries(v) {
			_, _ = fmt.Fprintf(w, "%s\t%s\t%s\n", e.Variable, e.Code, e.Label)
		}
	}
	_ = w.Flush()
}
