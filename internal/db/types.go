package db

import (
	"time"

	"github.com/google/uuid"
)

// Scrape run statuses
const (
	RunStatusRunning   = "running"
	RunStatusCompleted = "completed"
	RunStatusFailed    = "failed"
)

// ScrapeRun represents one scrape trigger and its outcome counters
type ScrapeRun struct {
	ID              uuid.UUID  `json:"id"`
	Status          string     `json:"status"`
	Targets         int        `json:"targets"`
	NewRecords      int        `json:"new_records"`
	Duplicates      int        `json:"duplicates"`
	FetchFailures   int        `json:"fetch_failures"`
	ParseWarnings   int        `json:"parse_warnings"`
	PersistFailures int        `json:"persist_failures"`
	Error           *string    `json:"error,omitempty"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// RunCounts are the counters recorded when a run finishes
type RunCounts struct {
	Targets         int
	NewRecords      int
	Duplicates      int
	FetchFailures   int
	ParseWarnings   int
	PersistFailures int
}
