package common

import (
	"context"
	"time"

	"github.com/facebookgo/clock"
	"github.com/robfig/cron/v3"
)

// Clock is the time source shared by every loop. Tests inject clock.NewMock().
type Clock = clock.Clock

// NewClock returns the wall clock
func NewClock() Clock {
	return clock.New()
}

// Sleep waits for d on clk, returning early with ctx.Err() if ctx is cancelled
func Sleep(ctx context.Context, clk Clock, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := clk.Timer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// EverySchedule returns a schedule that fires every d, aligned to whole seconds
func EverySchedule(d time.Duration) cron.Schedule {
	return cron.Every(d)
}

// RunOnSchedule calls fn each time schedule fires until ctx is cancelled.
// The next fire time is always computed from the current time, so a slow fn never causes a burst.
func RunOnSchedule(ctx context.Context, clk Clock, schedule cron.Schedule, fn func(ctx context.Context)) error {
	for {
		now := clk.Now()
		next := schedule.Next(now)
		if err := Sleep(ctx, clk, next.Sub(now)); err != nil {
			return err
		}
		fn(ctx)
	}
}
