package dedup

import (
	"context"
	"fmt"
	"time"

	"github.com/jonathan/job-change-tracker/internal/types"
)

// Latest is the most recent stored position of a person at a company.
type Latest struct {
	NewPosition string
	ChangeDate  time.Time
}

// LatestLookup returns the latest stored record for (person, company), or nil when there is none.
type LatestLookup interface {
	LatestForPerson(ctx context.Context, person, company string) (*Latest, error)
}

// Resolver fills in the change date (and prior position) of records whose page did not carry one.
//
// Same position as the latest stored record: the stored change date is reused, so the record
// classifies as a duplicate. Different position: the stored position becomes the prior position
// and the change date is today. No history: the change date is today.
type Resolver struct {
	Lookup LatestLookup
	Now    func() time.Time
}

// NewResolver creates a resolver using the wall clock.
func NewResolver(lookup LatestLookup) *Resolver {
	return &Resolver{Lookup: lookup, Now: time.Now}
}

// Resolve returns rec with a change date. Records that already have one are returned unchanged.
func (r *Resolver) Resolve(ctx context.Context, rec types.JobChange) (types.JobChange, error) {
	if rec.HasChangeDate() {
		return rec, nil
	}

	now := time.Now
	if r.Now != nil {
		now = r.Now
	}

	latest, err := r.Lookup.LatestForPerson(ctx, rec.PersonName, rec.Company)
	if err != nil {
		return rec, fmt.Errorf("failed to look up history for %s at %s: %w", rec.PersonName, rec.Company, err)
	}
	if latest == nil {
		return rec.WithChangeDate(now()), nil
	}

	if Normalize(latest.NewPosition) == Normalize(rec.NewPosition) {
		return rec.WithChangeDate(latest.ChangeDate), nil
	}

	if rec.OldPosition == nil {
		rec.OldPosition = types.StringPtr(latest.NewPosition)
	}
	return rec.WithChangeDate(now()), nil
}
