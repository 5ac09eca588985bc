package routing

import (
	"context"
	"time"
)

// Clock supplies the current time for cache expiry, cooldowns and sweeps
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock
type ClockFunc func() time.Time

// Now implements Clock
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock is the wall clock
var SystemClock Clock = ClockFunc(time.Now)

// Sleeper waits between attempts
type Sleeper interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case
	Sleep(ctx context.Context, d time.Duration) error
}

// SleeperFunc adapts a function to Sleeper
type SleeperFunc func(ctx context.Context, d time.Duration) error

// Sleep implements Sleeper
func (f SleeperFunc) Sleep(ctx context.Context, d time.Duration) error { return f(ctx, d) }

// TimerSleeper sleeps on a real timer
var TimerSleeper Sleeper = SleeperFunc(func(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
})
