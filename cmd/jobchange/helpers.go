package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/jonathan/job-change-tracker/internal/config"
	"github.com/jonathan/job-change-tracker/internal/db"
	"github.com/jonathan/job-change-tracker/internal/scrape"
	"github.com/jonathan/job-change-tracker/internal/types"
)

// loadConfig layers the config file, the environment and the global flags.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("failed to apply environment: %w", err)
	}
	if dbURL != "" {
		cfg.DatabaseURL = dbURL
	}
	return cfg, nil
}

// openDB connects using the configured database URL.
func openDB(ctx context.Context, cfg *config.Config) (*db.DB, error) {
	database, err := db.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return database, nil
}

// parseTargetFlags parses repeated "Name=URL" flag values.
func parseTargetFlags(values []string) ([]types.Target, error) {
	targets := make([]types.Target, 0, len(values))
	for _, v := range values {
		name, url, ok := strings.Cut(v, "=")
		name, url = strings.TrimSpace(name), strings.TrimSpace(url)
		if !ok || name == "" || url == "" {
			return nil, fmt.Errorf("invalid --company %q: expected Name=URL", v)
		}
		targets = append(targets, types.Target{Name: name, URL: url})
	}
	return targets, nil
}

// parseDay parses an optional YYYY-MM-DD flag value.
func parseDay(flag, value string, def time.Time) (time.Time, error) {
	if value == "" {
		return def, nil
	}
	t, err := types.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --%s: %w", flag, err)
	}
	return t, nil
}

func deref(s *string) string {
	if s == nil {
		return "-"
	}
	return *s
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
}

// writeSummary prints the per-target results and the totals of a scrape run.
func writeSummary(w io.Writer, s *scrape.Summary) {
	tw := newTable(w)
	fmt.Fprintln(tw, "COMPANY\tSTATUS\tPARSED\tNEW\tDUPLICATES\tFAILED")
	for _, t := range s.Targets {
		status := "ok"
		switch {
		case t.Skipped:
			status = "skipped (inactive)"
		case t.FetchErr != nil:
			status = "fetch failed"
		}
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\n", t.Target.Name, status, t.Parsed, t.New, t.Duplicates, t.PersistFailures)
	}
	tw.Flush()

	c := s.Counts()
	fmt.Fprintf(w, "\nRun %s: %d targets, %d new, %d duplicates, %d fetch failures, %d parse warnings, %d persist failures, %d skipped\n",
		s.RunID, c.Targets, c.NewRecords, c.Duplicates, c.FetchFailures, c.ParseWarnings, c.PersistFailures, s.Skipped())
}

// writeChanges prints job changes as a table.
func writeChanges(w io.Writer, changes []db.JobChange) {
	if len(changes) == 0 {
		fmt.Fprintln(w, "No job changes.")
		return
	}
	tw := newTable(w)
	fmt.Fprintln(tw, "ID\tDATE\tNAME\tCOMPANY\tFROM\tTO")
	for _, c := range changes {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\n", c.ID, c.ChangeDay(), c.Name, c.Company, deref(c.OldPosition), c.NewPosition)
	}
	tw.Flush()
}
