package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/sells-group/obsprep/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a documented default config file",
	// Runs before a config exists, so skip loading one.
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitLogger(config.Default().Log)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		path, _ := cmd.Flags().GetString("path")
		if err := config.WriteDefault(path); err != nil {
			return err
		}
		fmt.Fprintf(os.Stdout, "Wrote %s\n", path)
		return nil
	},
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the default configuration",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return config.InitLogger(config.Default().Log)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		data, err := config.DefaultYAML()
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(data)
		return err
	},
}

func init() {
	configInitCmd.Flags().String("path", "config.yaml", "where to write the config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}
