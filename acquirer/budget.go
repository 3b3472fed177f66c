package acquirer

import (
	"context"
	"time"
)

// Clock abstracts time so that runs can be driven without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

type systemClock struct{}

// SystemClock is the wall clock. Durations computed from its Now use the
// monotonic reading and are immune to system clock adjustments.
var SystemClock Clock = systemClock{}

func (systemClock) Now() time.Time {
	return time.Now()
}

func (systemClock) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Budget tracks elapsed time against an optional maximum runtime.
type Budget struct {
	clock Clock
	start time.Time
	max   time.Duration
}

func NewBudget(clock Clock, max time.Duration) *Budget {
	return &Budget{
		clock: clock,
		start: clock.Now(),
		max:   max,
	}
}

func (b *Budget) Elapsed() time.Duration {
	return b.clock.Now().Sub(b.start)
}

// Expired is never true for an unbounded budget.
func (b *Budget) Expired() bool {
	return b.max > 0 && b.Elapsed() >= b.max
}

// Remaining returns the time left, or -1 for an unbounded budget.
func (b *Budget) Remaining() time.Duration {
	if b.max <= 0 {
		return -1
	}
	return max(b.max-b.Elapsed(), 0)
}

func (b *Budget) Max() time.Duration {
	return b.max
}
