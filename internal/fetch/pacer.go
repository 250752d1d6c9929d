package fetch

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces successive requests at least delay apart. The first request is not delayed.
type Pacer struct {
	lim *rate.Limiter
}

// NewPacer creates a pacer. A non-positive delay disables pacing.
func NewPacer(delay time.Duration) *Pacer {
	if delay <= 0 {
		return &Pacer{lim: rate.NewLimiter(rate.Inf, 1)}
	}
	return &Pacer{lim: rate.NewLimiter(rate.Every(delay), 1)}
}

// Wait blocks until the next request may be issued or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	return p.lim.Wait(ctx)
}
