package db

import (
	"encoding/json"
	"time"

	"github.com/jonathan/job-change-tracker/internal/types"
)

// Company represents a tracked company
type Company struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	LinkedInURL *string   `json:"linkedin_url,omitempty"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CompanyUpsert holds the fields written by UpsertCompany.
// A nil LinkedInURL leaves the stored URL unchanged.
type CompanyUpsert struct {
	Name        string
	LinkedInURL *string
	IsActive    bool
}

// CompanyStats is one row of the company_stats view
type CompanyStats struct {
	Company      string     `json:"company"`
	TotalChanges int64      `json:"total_changes"`
	UniquePeople int64      `json:"unique_people"`
	LatestChange *time.Time `json:"latest_change,omitempty"`
}

// MarshalJSON renders the latest change as a calendar day.
func (s CompanyStats) MarshalJSON() ([]byte, error) {
	type alias CompanyStats
	out := struct {
		alias
		LatestChange *string `json:"latest_change,omitempty"`
	}{alias: alias(s)}
	if s.LatestChange != nil {
		day := s.LatestChange.Format(types.DateLayout)
		out.LatestChange = &day
	}
	return json.Marshal(out)
}
