package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonathan/job-change-tracker/internal/db"
	"github.com/jonathan/job-change-tracker/internal/types"
	"github.com/spf13/cobra"
)

var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Query recorded job changes",
}

var changesRecentCmd = &cobra.Command{
	Use:   "recent",
	Short: "List changes not yet acknowledged, newest first",
	Args:  cobra.NoArgs,
	RunE:  runChangesRecent,
}

var changesAckCmd = &cobra.Command{
	Use:   "ack [ID...]",
	Short: "Mark changes as seen",
	RunE:  runChangesAck,
}

var changesStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Per-company totals for active companies",
	Args:  cobra.NoArgs,
	RunE:  runChangesStats,
}

var changesTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Change counts in a date window, per company or per day for one company",
	Args:  cobra.NoArgs,
	RunE:  runChangesTrend,
}

var (
	changesLimit  int
	changesAckAll bool
	trendStart    string
	trendEnd      string
	trendCompany  string
	trendDaysBack int
)

func init() {
	changesRecentCmd.Flags().IntVar(&changesLimit, "limit", 0, "Maximum number of changes (0 lists all)")
	changesAckCmd.Flags().BoolVar(&changesAckAll, "all", false, "Acknowledge every change")
	changesTrendCmd.Flags().StringVar(&trendStart, "start", "", "First day, YYYY-MM-DD (default --days before --end)")
	changesTrendCmd.Flags().StringVar(&trendEnd, "end", "", "Last day, YYYY-MM-DD (default today)")
	changesTrendCmd.Flags().IntVar(&trendDaysBack, "days", 30, "Window length when --start is not set")
	changesTrendCmd.Flags().StringVar(&trendCompany, "company", "", "Show a daily trend for this company")

	changesCmd.AddCommand(changesRecentCmd, changesAckCmd, changesStatsCmd, changesTrendCmd)
	rootCmd.AddCommand(changesCmd)
}

func runChangesRecent(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	changes, err := database.RecentChanges(cmd.Context(), changesLimit)
	if err != nil {
		return err
	}
	writeChanges(cmd.OutOrStdout(), changes)
	return nil
}

// parseIDs parses positional change ids.
func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("invalid change id %q", a)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func runChangesAck(cmd *cobra.Command, args []string) error {
	if changesAckAll == (len(args) > 0) {
		return fmt.Errorf("provide change ids or --all")
	}
	ids, err := parseIDs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	var n int64
	if changesAckAll {
		n, err = database.AcknowledgeAll(cmd.Context())
	} else {
		n, err = database.AcknowledgeChanges(cmd.Context(), ids)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Acknowledged %d change(s)\n", n)
	return nil
}

func runChangesStats(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	stats, err := database.CompanyStats(cmd.Context())
	if err != nil {
		return err
	}

	tw := newTable(cmd.OutOrStdout())
	fmt.Fprintln(tw, "COMPANY\tCHANGES\tPEOPLE\tLATEST")
	for _, s := range stats {
		latest := "-"
		if s.LatestChange != nil {
			latest = s.LatestChange.Format(types.DateLayout)
		}
		fmt.Fprintf(tw, "%s\t%d\t%d\t%s\n", s.Company, s.TotalChanges, s.UniquePeople, latest)
	}
	return tw.Flush()
}

// trendWindow resolves the --start/--end/--days flags relative to today.
func trendWindow(now time.Time) (time.Time, time.Time, error) {
	end, err := parseDay("end", trendEnd, types.DateOnly(now))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	start, err := parseDay("start", trendStart, end.AddDate(0, 0, -trendDaysBack))
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if err := db.ValidateRange(start, end); err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func runChangesTrend(cmd *cobra.Command, _ []string) error {
	start, end, err := trendWindow(time.Now())
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	database, err := openDB(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer database.Close()

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s to %s\n", start.Format(types.DateLayout), end.Format(types.DateLayout))
	tw := newTable(out)

	if trendCompany != "" {
		rows, err := database.CompanyTrend(cmd.Context(), trendCompany, start, end)
		if err != nil {
			return err
		}
		fmt.Fprintln(tw, "DAY\tCHANGES\tPEOPLE")
		for _, r := range rows {
			fmt.Fprintf(tw, "%s\t%d\t%d\n", r.Day.Format(types.DateLayout), r.Changes, r.People)
		}
		return tw.Flush()
	}

	rows, err := database.TrendByDateRange(cmd.Context(), start, end)
	if err != nil {
		return err
	}
	fmt.Fprintln(tw, "COMPANY\tCHANGES\tPEOPLE")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", r.Company, r.Changes, r.People)
	}
	return tw.Flush()
}
