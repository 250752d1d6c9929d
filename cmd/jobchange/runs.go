package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List recent scrape runs",
	Args:  cobra.NoArgs,
	RunE:  runRuns,
}

var runsLimit int

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "Maximum number of runs")
	rootCmd.AddCommand(runsCmd)
}

func runRuns(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	runs, err := database.ListScrapeRuns(cmd.Context(), runsLimit)
	if err != nil {
		return err
	}

	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tTARGETS\tNEW\tDUPLICATES\tFETCH FAILURES\tERROR")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.ID, r.StartedAt.Format("2006-01-02 15:04"), r.Status, r.Targets, r.NewRecords, r.Duplicates, r.FetchFailures, deref(r.Error))
	}
	return tw.Flush()
}
