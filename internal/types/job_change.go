// Package types provides the domain records shared by the scrape pipeline, the store and the API.
//
//nolint:revive // types is a standard Go package name pattern
package types

import (
	"strings"
	"time"
)

// DateLayout is the wire and storage format of change dates.
const DateLayout = "2006-01-02"

// Target is a company (or search query page) the fetcher is configured to scrape.
type Target struct {
	Name string `json:"name" yaml:"name" validate:"required"`
	URL  string `json:"url" yaml:"url" validate:"required,url"`
}

// Canonical returns t with its name cleaned by CleanName and its URL trimmed.
// Every layer that keys on the company name must see this form.
func (t Target) Canonical() Target {
	t.Name = CleanName(t.Name)
	t.URL = strings.TrimSpace(t.URL)
	return t
}

// CleanName trims s and collapses inner whitespace runs to a single space.
func CleanName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// JobChange is a job-change signal extracted from a fetched page.
// ChangeDate is nil when the page did not carry one; it is resolved before persisting.
type JobChange struct {
	PersonName  string     `json:"name"`
	Company     string     `json:"company"`
	OldPosition *string    `json:"old_position,omitempty"`
	NewPosition string     `json:"new_position"`
	ChangeDate  *time.Time `json:"change_date,omitempty"`
	ProfileURL  string     `json:"profile_url"`
}

// HasChangeDate reports whether the record carries a change date.
func (j JobChange) HasChangeDate() bool {
	return j.ChangeDate != nil && !j.ChangeDate.IsZero()
}

// WithChangeDate returns a copy of j with its change date set to the calendar day of t.
func (j JobChange) WithChangeDate(t time.Time) JobChange {
	d := DateOnly(t)
	j.ChangeDate = &d
	return j
}

// DateOnly truncates t to midnight UTC of its calendar day.
func DateOnly(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD date.
func ParseDate(s string) (time.Time, error) {
	return time.Parse(DateLayout, strings.TrimSpace(s))
}

// StringPtr returns a pointer to s, or nil when s is blank.
func StringPtr(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
