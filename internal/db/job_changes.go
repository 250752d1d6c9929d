package db

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/job-change-tracker/internal/dedup"
	"github.com/jonathan/job-change-tracker/internal/types"
)

const jobChangeColumns = `id, name, company, old_position, new_position, change_date, profile_url, is_new, created_at`

func scanJobChange(row pgx.Row, j *JobChange) error {
	return row.Scan(&j.ID, &j.Name, &j.Company, &j.OldPosition, &j.NewPosition, &j.ChangeDate, &j.ProfileURL, &j.IsNew, &j.CreatedAt)
}

// keyLookup answers dedup lookups against a pool or an open transaction.
type keyLookup struct {
	q querier
}

func (l keyLookup) ExistsByKey(ctx context.Context, key dedup.Key) (bool, error) {
	var exists bool
	err := l.q.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM job_changes WHERE dedup_key = $1)`,
		key.Hash(),
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check dedup key: %w", err)
	}
	return exists, nil
}

// ExistsByKey reports whether a job change with the natural key is stored.
func (db *DB) ExistsByKey(ctx context.Context, key dedup.Key) (bool, error) {
	return keyLookup{q: db.pool}.ExistsByKey(ctx, key)
}

// LatestForPerson returns the most recent stored position of a person at a company,
// or nil when the person has no history there. The person matches on the same
// normalized form the dedup key uses.
func (db *DB) LatestForPerson(ctx context.Context, person, company string) (*dedup.Latest, error) {
	var latest dedup.Latest
	err := db.pool.QueryRow(ctx,
		`SELECT new_position, change_date FROM job_changes
		 WHERE company = $1 AND person_key = $2
		 ORDER BY change_date DESC, created_at DESC
		 LIMIT 1`,
		types.CleanName(company), dedup.Normalize(person),
	).Scan(&latest.NewPosition, &latest.ChangeDate)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get latest change for %s: %w", person, err)
	}
	return &latest, nil
}

// InsertIfNew classifies rec and stores it when it is new. The company row is created when
// missing. Classification and insert share one transaction, and the dedup_key constraint
// turns a concurrent insert of the same key into a duplicate.
func (db *DB) InsertIfNew(ctx context.Context, rec types.JobChange) (dedup.Classification, *JobChange, error) {
	key, err := dedup.KeyFor(rec)
	if err != nil {
		return dedup.New, nil, err
	}

	company := types.CleanName(rec.Company)

	tx, err := db.pool.Begin(ctx)
	if err != nil {
		return dedup.New, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := ensureCompany(ctx, tx, company); err != nil {
		return dedup.New, nil, err
	}

	class, err := dedup.Classify(ctx, rec, keyLookup{q: tx})
	if err != nil {
		return dedup.New, nil, err
	}
	if class == dedup.Duplicate {
		return dedup.Duplicate, nil, nil
	}

	var stored JobChange
	err = scanJobChange(tx.QueryRow(ctx,
		`INSERT INTO job_changes (name, person_key, company, old_position, new_position, change_date, profile_url, dedup_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		 ON CONFLICT (dedup_key) DO NOTHING
		 RETURNING `+jobChangeColumns,
		types.CleanName(rec.PersonName), key.Person, company, rec.OldPosition, strings.TrimSpace(rec.NewPosition),
		types.DateOnly(*rec.ChangeDate), types.StringPtr(rec.ProfileURL), key.Hash(),
	), &stored)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return dedup.Duplicate, nil, nil
		}
		return dedup.New, nil, fmt.Errorf("failed to insert job change: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return dedup.New, nil, fmt.Errorf("failed to commit job change: %w", err)
	}
	return dedup.New, &stored, nil
}

// AcknowledgeChanges marks the given job changes as seen and returns how many flipped.
func (db *DB) AcknowledgeChanges(ctx context.Context, ids []int64) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	result, err := db.pool.Exec(ctx,
		`UPDATE job_changes SET is_new = FALSE, updated_at = NOW()
		 WHERE id = ANY($1) AND is_new`,
		ids,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge job changes: %w", err)
	}
	return result.RowsAffected(), nil
}

// AcknowledgeAll marks every new job change as seen.
func (db *DB) AcknowledgeAll(ctx context.Context) (int64, error) {
	result, err := db.pool.Exec(ctx,
		`UPDATE job_changes SET is_new = FALSE, updated_at = NOW() WHERE is_new`,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to acknowledge job changes: %w", err)
	}
	return result.RowsAffected(), nil
}
