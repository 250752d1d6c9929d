// Package dedup classifies parsed job changes against previously stored ones.
package dedup

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/jonathan/job-change-tracker/internal/types"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// Classification is the outcome of comparing a record with stored history.
type Classification int

const (
	// New means no stored record shares the natural key.
	New Classification = iota
	// Duplicate means a stored record already has the natural key.
	Duplicate
)

func (c Classification) String() string {
	switch c {
	case New:
		return "new"
	case Duplicate:
		return "duplicate"
	default:
		return fmt.Sprintf("classification(%d)", int(c))
	}
}

// ErrMissingChangeDate is returned when a record has no change date and therefore no natural key.
var ErrMissingChangeDate = errors.New("job change has no change date")

// Key is the normalized natural dedup key: (person, company, new position, change date).
type Key struct {
	Person      string
	Company     string
	NewPosition string
	ChangeDate  string // YYYY-MM-DD
}

// Lookup answers whether a record with the given key is already stored.
type Lookup interface {
	ExistsByKey(ctx context.Context, key Key) (bool, error)
}

// KeyFor builds the natural key of a record.
func KeyFor(rec types.JobChange) (Key, error) {
	if !rec.HasChangeDate() {
		return Key{}, ErrMissingChangeDate
	}
	return Key{
		Person:      Normalize(rec.PersonName),
		Company:     Normalize(rec.Company),
		NewPosition: Normalize(rec.NewPosition),
		ChangeDate:  types.DateOnly(*rec.ChangeDate).Format(types.DateLayout),
	}, nil
}

// Hash returns the hex SHA-256 of the key, stored as job_changes.dedup_key.
func (k Key) Hash() string {
	sum := sha256.Sum256([]byte(strings.Join([]string{k.Person, k.Company, k.NewPosition, k.ChangeDate}, "\x1f")))
	return hex.EncodeToString(sum[:])
}

func (k Key) String() string {
	return fmt.Sprintf("%s|%s|%s|%s", k.Person, k.Company, k.NewPosition, k.ChangeDate)
}

// Normalize folds case, applies NFKC and collapses whitespace so that cosmetic
// differences in scraped text do not defeat deduplication.
// Example: "  Jane   DOE " -> "jane doe"
func Normalize(s string) string {
	s = norm.NFKC.String(s)
	s = cases.Fold().String(s)
	return strings.Join(strings.Fields(s), " ")
}

// Classify returns Duplicate when lookup already holds the record's natural key and New otherwise.
// It performs no writes.
func Classify(ctx context.Context, rec types.JobChange, lookup Lookup) (Classification, error) {
	key, err := KeyFor(rec)
	if err != nil {
		return New, err
	}
	exists, err := lookup.ExistsByKey(ctx, key)
	if err != nil {
		return New, fmt.Errorf("failed to look up %s: %w", key, err)
	}
	if exists {
		return Duplicate, nil
	}
	return New, nil
}
