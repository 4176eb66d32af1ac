package main

import (
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/sells-group/obsprep/internal/cache"
)

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage raw results snapshots",
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove the raw results snapshot of a survey year",
	RunE: func(cmd *cobra.Command, _ []string) error {
		year, sc, err := surveyFromFlags(cmd)
		if err != nil {
			return err
		}
		if sc.CacheDir == "" {
			return eris.Errorf("cache clear: survey %s has no cache_dir", year)
		}

		st, err := initStore(cmd)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		c := cache.New(sc.CacheDir, st)
		if err := c.Clear(cmd.Context(), int(year)); err != nil {
			return eris.Wrap(err, "cache clear")
		}
		fmt.Fprintf(os.Stdout, "Removed %s\n", c.SnapshotPath(int(year)))
		return nil
	},
}

func init() {
	addYearFlag(cacheClearCmd)
	cacheCmd.AddCommand(cacheClearCmd)
	rootCmd.AddCommand(cacheCmd)
}
