package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/obsprep/internal/config"
	"github.com/sells-group/obsprep/internal/store"
	"github.com/sells-group/obsprep/internal/survey"
)

var (
	cfg     *config.Config
	cfgPath string
)

var rootCmd = &cobra.Command{
	Use:   "obsprep",
	Short: "On-board transit survey data preparation",
	Long:  "Reads on-board survey exports for a survey year, recodes routes, ages, codebook fields, access/egress modes and weights, and writes analysis-ready parquet tables.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "", "config file (default ./config.yaml)")
}

// initStore opens and migrates the run ledger.
func initStore(cmd *cobra.Command) (store.Store, error) {
	st, err := store.NewSQLite(cfg.Store.Path)
	if err != nil {
		return nil, err
	}
	if err := st.Migrate(cmd.Context()); err != nil {
		st.Close() //nolint:errcheck,gosec
		return nil, err
	}
	return st, nil
}

// addYearFlag registers the required --year flag.
func addYearFlag(cmd *cobra.Command) {
	cmd.Flags().String("year", "", "survey year (2015 or 2023)")
	_ = cmd.MarkFlagRequired("year")
}

// surveyFromFlags resolves --year to the year and its validated settings.
func surveyFromFlags(cmd *cobra.Command) (survey.Year, *config.SurveyConfig, error) {
	raw, _ := cmd.Flags().GetString("year")
	year, err := survey.ParseYear(raw)
	if err != nil {
		return 0, nil, err
	}
	sc, err := cfg.Survey(year)
	if err != nil {
		return 0, nil, err
	}
	return year, sc, nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
