package db

import (
	"context"
	"fmt"
	"time"
)

// ValidateRange checks that start does not come after end.
func ValidateRange(start, end time.Time) error {
	if start.After(end) {
		return fmt.Errorf("%w: start %s is after end %s", ErrInvalidRange, start.Format("2006-01-02"), end.Format("2006-01-02"))
	}
	return nil
}

// RecentChanges returns unacknowledged job changes, newest first. A limit of zero or
// less returns all of them.
func (db *DB) RecentChanges(ctx context.Context, limit int) ([]JobChange, error) {
	query := `SELECT ` + jobChangeColumns + ` FROM recent_job_changes
		 ORDER BY change_date DESC, created_at DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}
	rows, err := db.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent job changes: %w", err)
	}
	defer rows.Close()

	var changes []JobChange
	for rows.Next() {
		var j JobChange
		if err := scanJobChange(rows, &j); err != nil {
			return nil, fmt.Errorf("failed to scan job change: %w", err)
		}
		changes = append(changes, j)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list recent job changes: %w", err)
	}
	return changes, nil
}

// CompanyStats returns per-company totals for active companies.
func (db *DB) CompanyStats(ctx context.Context) ([]CompanyStats, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT company, total_changes, unique_people, latest_change
		 FROM company_stats ORDER BY total_changes DESC, company`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get company stats: %w", err)
	}
	defer rows.Close()

	var stats []CompanyStats
	for rows.Next() {
		var s CompanyStats
		if err := rows.Scan(&s.Company, &s.TotalChanges, &s.UniquePeople, &s.LatestChange); err != nil {
			return nil, fmt.Errorf("failed to scan company stats: %w", err)
		}
		stats = append(stats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get company stats: %w", err)
	}
	return stats, nil
}

// TrendByDateRange returns per-company change counts within the inclusive window.
// An empty window yields an empty slice.
func (db *DB) TrendByDateRange(ctx context.Context, start, end time.Time) ([]RangeTrend, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	rows, err := db.pool.Query(ctx,
		`SELECT company_name, change_count, people_count FROM job_changes_by_date_range($1, $2)`,
		start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get trend: %w", err)
	}
	defer rows.Close()

	trends := []RangeTrend{}
	for rows.Next() {
		var t RangeTrend
		if err := rows.Scan(&t.Company, &t.Changes, &t.People); err != nil {
			return nil, fmt.Errorf("failed to scan trend: %w", err)
		}
		trends = append(trends, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get trend: %w", err)
	}
	return trends, nil
}

// CompanyTrend returns daily change counts for one company within the inclusive window.
func (db *DB) CompanyTrend(ctx context.Context, company string, start, end time.Time) ([]DailyTrend, error) {
	if err := ValidateRange(start, end); err != nil {
		return nil, err
	}
	rows, err := db.pool.Query(ctx,
		`SELECT day, change_count, people_count FROM company_trend($1, $2, $3)`,
		company, start, end,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get company trend: %w", err)
	}
	defer rows.Close()

	trend := []DailyTrend{}
	for rows.Next() {
		var d DailyTrend
		if err := rows.Scan(&d.Day, &d.Changes, &d.People); err != nil {
			return nil, fmt.Errorf("failed to scan company trend: %w", err)
		}
		trend = append(trend, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get company trend: %w", err)
	}
	return trend, nil
}
