package db

import (
	"context"
	"fmt"
	"log"

	"github.com/jackc/pgx/v5"
	"github.com/jonathan/job-change-tracker/internal/types"
)

const companyColumns = `id, name, linkedin_url, is_active, created_at, updated_at`

func scanCompany(row pgx.Row, c *Company, extra ...any) error {
	return row.Scan(append([]any{&c.ID, &c.Name, &c.LinkedInURL, &c.IsActive, &c.CreatedAt, &c.UpdatedAt}, extra...)...)
}

// UpsertCompany inserts a company or, on a name conflict, updates its active flag and
// LinkedIn URL. A changed URL overwrites the stored one and is logged.
func (db *DB) UpsertCompany(ctx context.Context, in CompanyUpsert) (*Company, error) {
	name := types.CleanName(in.Name)
	if name == "" {
		return nil, fmt.Errorf("company name cannot be empty")
	}

	var c Company
	var previousURL *string
	err := scanCompany(db.pool.QueryRow(ctx,
		`WITH prev AS (SELECT linkedin_url FROM companies WHERE name = $1)
		 INSERT INTO companies (name, linkedin_url, is_active)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (name) DO UPDATE SET
		     linkedin_url = COALESCE(EXCLUDED.linkedin_url, companies.linkedin_url),
		     is_active = EXCLUDED.is_active,
		     updated_at = NOW()
		 RETURNING `+companyColumns+`, (SELECT linkedin_url FROM prev)`,
		name, in.LinkedInURL, in.IsActive,
	), &c, &previousURL)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert company %s: %w", name, err)
	}

	if urlChanged(previousURL, c.LinkedInURL) {
		log.Printf("[DB] company %s: linkedin_url changed from %s to %s", name, *previousURL, *c.LinkedInURL)
	}
	return &c, nil
}

func urlChanged(prev, cur *string) bool {
	return prev != nil && cur != nil && *prev != *cur
}

// ensureCompany creates the company row when missing, leaving an existing row untouched.
// name must already be in its CleanName form.
func ensureCompany(ctx context.Context, q querier, name string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO companies (name) VALUES ($1) ON CONFLICT (name) DO NOTHING`,
		name,
	)
	if err != nil {
		return fmt.Errorf("failed to ensure company %s: %w", name, err)
	}
	return nil
}

// GetCompanyByName retrieves a company by its exact name after whitespace cleanup.
func (db *DB) GetCompanyByName(ctx context.Context, name string) (*Company, error) {
	var c Company
	err := scanCompany(db.pool.QueryRow(ctx,
		`SELECT `+companyColumns+` FROM companies WHERE name = $1`,
		types.CleanName(name),
	), &c)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get company: %w", err)
	}
	return &c, nil
}

// ListCompanies returns companies ordered by name. Inactive ones are included only when
// includeInactive is set.
func (db *DB) ListCompanies(ctx context.Context, includeInactive bool) ([]Company, error) {
	rows, err := db.pool.Query(ctx,
		`SELECT `+companyColumns+` FROM companies
		 WHERE is_active OR $1
		 ORDER BY name`,
		includeInactive,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	defer rows.Close()

	var companies []Company
	for rows.Next() {
		var c Company
		if err := scanCompany(rows, &c); err != nil {
			return nil, fmt.Errorf("failed to scan company: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list companies: %w", err)
	}
	return companies, nil
}

// SetCompanyActive toggles the soft-deactivation flag. Companies are never deleted.
func (db *DB) SetCompanyActive(ctx context.Context, name string, active bool) error {
	result, err := db.pool.Exec(ctx,
		`UPDATE companies SET is_active = $1, updated_at = NOW() WHERE name = $2`,
		active, types.CleanName(name),
	)
	if err != nil {
		return fmt.Errorf("failed to update company: %w", err)
	}
	if result.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", ErrCompanyNotFound, name)
	}
	return nil
}
