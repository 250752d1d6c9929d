package db

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const scrapeRunColumns = `id, status, targets, new_records, duplicates, fetch_failures, parse_warnings,
	persist_failures, error, started_at, completed_at`

func scanScrapeRun(row pgx.Row, r *ScrapeRun) error {
	return row.Scan(&r.ID, &r.Status, &r.Targets, &r.NewRecords, &r.Duplicates, &r.FetchFailures,
		&r.ParseWarnings, &r.PersistFailures, &r.Error, &r.StartedAt, &r.CompletedAt)
}

// CreateScrapeRun creates a new scrape run record and returns its ID
func (db *DB) CreateScrapeRun(ctx context.Context) (uuid.UUID, error) {
	id := uuid.New()
	_, err := db.pool.Exec(ctx,
		`INSERT INTO scrape_runs (id, status) VALUES ($1, $2)`,
		id, RunStatusRunning,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to create scrape run: %w", err)
	}
	return id, nil
}

// CompleteScrapeRun records the final counters and status of a scrape run.
// A non-empty errMsg is stored with the run.
func (db *DB) CompleteScrapeRun(ctx context.Context, id uuid.UUID, status string, counts RunCounts, errMsg string) error {
	var errText *string
	if errMsg != "" {
		errText = &errMsg
	}
	result, err := db.pool.Exec(ctx,
		`UPDATE scrape_runs SET status = $2, targets = $3, new_records = $4, duplicates = $5,
		     fetch_failures = $6, parse_warnings = $7, persist_failures = $8, error = $9,
		     completed_at = NOW()
		 WHERE id = $1`,
		id, status, counts.Targets, counts.NewRecords, counts.Duplicates,
		counts.FetchFailures, counts.ParseWarnings, counts.PersistFailures, errText,
	)
	if err != nil {
		return fmt.Errorf("failed to complete scrape run: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("scrape run not found: %s", id)
	}
	return nil
}

// GetScrapeRun retrieves a scrape run by ID
func (db *DB) GetScrapeRun(ctx context.Context, id uuid.UUID) (*ScrapeRun, error) {
	var r ScrapeRun
	err := scanScrapeRun(db.pool.QueryRow(ctx,
		`SELECT `+scrapeRunColumns+` FROM scrape_runs WHERE id = $1`, id,
	), &r)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get scrape run: %w", err)
	}
	return &r, nil
}

// ListScrapeRuns retrieves recent scrape runs, newest first
func (db *DB) ListScrapeRuns(ctx context.Context, limit int) ([]ScrapeRun, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.pool.Query(ctx,
		`SELECT `+scrapeRunColumns+` FROM scrape_runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list scrape runs: %w", err)
	}
	defer rows.Close()

	var runs []ScrapeRun
	for rows.Next() {
		var r ScrapeRun
		if err := scanScrapeRun(rows, &r); err != nil {
			return nil, fmt.Errorf("failed to scan scrape run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list scrape runs: %w", err)
	}
	return runs, nil
}
