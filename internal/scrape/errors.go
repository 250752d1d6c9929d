package scrape

import (
	"errors"
	"fmt"
)

// ErrNoProgress is returned when every attempted target failed to fetch.
var ErrNoProgress = errors.New("no target could be fetched")

// ErrLocked is returned when another scrape holds the run lock.
var ErrLocked = errors.New("another scrape run holds the lock")

// PersistError represents a storage failure during a run. Fatal errors abort the run.
type PersistError struct {
	Target  string
	Message string
	Cause   error
	Fatal   bool
}

func (e *PersistError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("persist error for %s: %s: %v", e.Target, e.Message, e.Cause)
	}
	return fmt.Sprintf("persist error for %s: %s", e.Target, e.Message)
}

func (e *PersistError) Unwrap() error {
	return e.Cause
}

// IsFatal reports whether err is a fatal persistence error.
func IsFatal(err error) bool {
	var pe *PersistError
	return errors.As(err, &pe) && pe.Fatal
}
