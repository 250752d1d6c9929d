// Package main provides the jobchange CLI: scrape tracked companies for job changes, then
// query or serve what was recorded.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var (
	configPath string
	dbURL      string
)

var rootCmd = &cobra.Command{
	Use:          "jobchange",
	Short:        "LinkedIn job change tracker",
	Long:         "jobchange scrapes LinkedIn pages of tracked companies, records job changes without duplicates in PostgreSQL, and reports them from the CLI or a REST API.",
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbURL, "db-url", "", "PostgreSQL connection URL (overrides DATABASE_URL)")
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
