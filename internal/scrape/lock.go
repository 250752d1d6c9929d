package scrape

import (
	"fmt"

	"github.com/gofrs/flock"
)

// AcquireLock takes an exclusive, non-blocking file lock so a scheduler cannot start
// overlapping scrape runs. The returned func releases it.
func AcquireLock(path string) (func(), error) {
	l := flock.New(path)
	ok, err := l.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock %s: %w", path, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrLocked, path)
	}
	return func() { _ = l.Unlock() }, nil
}
