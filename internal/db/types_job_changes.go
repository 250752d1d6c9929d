package db

import (
	"encoding/json"
	"time"

	"github.com/jonathan/job-change-tracker/internal/types"
)

// JobChange is a stored job-change row
type JobChange struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Company     string    `json:"company"`
	OldPosition *string   `json:"old_position,omitempty"`
	NewPosition string    `json:"new_position"`
	ChangeDate  time.Time `json:"-"`
	ProfileURL  *string   `json:"profile_url,omitempty"`
	IsNew       bool      `json:"is_new"`
	CreatedAt   time.Time `json:"created_at"`
}

// ChangeDay returns the change date in YYYY-MM-DD form.
func (j JobChange) ChangeDay() string {
	return j.ChangeDate.Format(types.DateLayout)
}

// RangeTrend is one row of job_changes_by_date_range
type RangeTrend struct {
	Company string `json:"company"`
	Changes int64  `json:"changes"`
	People  int64  `json:"people"`
}

// DailyTrend is one row of company_trend
type DailyTrend struct {
	Day     time.Time `json:"-"`
	Changes int64     `json:"changes"`
	People  int64     `json:"people"`
}

// MarshalJSON renders the change date as a calendar day.
func (j JobChange) MarshalJSON() ([]byte, error) {
	type alias JobChange
	return json.Marshal(struct {
		alias
		ChangeDate string `json:"change_date"`
	}{alias(j), j.ChangeDay()})
}

// MarshalJSON renders the day as YYYY-MM-DD.
func (d DailyTrend) MarshalJSON() ([]byte, error) {
	type alias DailyTrend
	return json.Marshal(struct {
		alias
		Day string `json:"day"`
	}{alias(d), d.Day.Format(types.DateLayout)})
}
