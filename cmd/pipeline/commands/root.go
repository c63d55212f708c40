// Package commands implements the pipeline CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
	noColor bool
)

var rootCmd = &cobra.Command{
	Use:   "pipeline",
	Short: "Product image pipeline - fetch, extract and normalize catalog images",
	Long: `The pipeline fetches source archives for every SKU in the catalog,
extracts them, decodes packed-record image batches, normalizes every image
into a fixed-size square JPEG, and records a per-SKU outcome report.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "disable colored output")
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
