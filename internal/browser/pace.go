package browser

import (
	"context"
	"time"
)

// Pacer applies the settle delays inserted between page actions so that
// client-side rendering can catch up. Every nominal delay passes through one
// policy: it is multiplied by Scale, raised to Min and capped at Max.
// A Scale of zero disables waiting entirely.
type Pacer struct {
	Scale float64
	Min   time.Duration
	Max   time.Duration
}

// NewPacer returns a pacer that waits the nominal delays unchanged.
func NewPacer() *Pacer {
	return &Pacer{Scale: 1}
}

// Instant returns a pacer that never waits.
func Instant() *Pacer {
	return &Pacer{}
}

// Duration is the actual wait for a nominal delay d.
func (p *Pacer) Duration(d time.Duration) time.Duration {
	if p == nil || p.Scale <= 0 || d <= 0 {
		return 0
	}
	scaled := time.Duration(float64(d) * p.Scale)
	if scaled < p.Min {
		scaled = p.Min
	}
	if p.Max > 0 && scaled > p.Max {
		scaled = p.Max
	}
	return scaled
}

// Settle blocks for the paced equivalent of d, returning early with the
// context's error if it is cancelled.
func (p *Pacer) Settle(ctx context.Context, d time.Duration) error {
	wait := p.Duration(d)
	if wait <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
