package testutil

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// Epoch is the start time of every fake clock handed out by this package.
var Epoch = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

// NewFakeClock returns a fake clock at Epoch.
//
// Two scenarios driven with the same steps on fresh clocks observe identical
// timestamps, which keeps golden traces byte-stable.
func NewFakeClock() *clockwork.FakeClock {
	return clockwork.NewFakeClockAt(Epoch)
}

// Steps advances clock by step until total has elapsed, calling fn with the
// new time after each step. A final partial step is taken if total is not a
// multiple of step.
func Steps(clock *clockwork.FakeClock, total, step time.Duration, fn func(time.Time)) {
	if step <= 0 {
		step = total
	}
	for elapsed := time.Duration(0); elapsed < total; {
		d := step
		if remaining := total - elapsed; remaining < d {
			d = remaining
		}
		clock.Advance(d)
		elapsed += d
		if fn != nil {
			fn(clock.Now())
		}
	}
}
