// Package cmd defines and implements the CLI commands for the moviemeter executable.
package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	var cfgFile string

	cmd := &cobra.Command{
		Use:   "moviemeter",
		Short: "Scrapes the most popular movies chart into a tabular store.",
		Long: `moviemeter reads the "most popular movies" chart, visits every title it
links to with a bounded pool of workers, and appends the title, release
date, rating, and synopsis of each one to a CSV file or Postgres table.`,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML); defaults and MOVIES_* env vars apply without one")

	cmd.AddCommand(newScrapeCmd(&cfgFile))

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
