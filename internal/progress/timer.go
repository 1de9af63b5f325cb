// Package progress computes the completion fraction of the active item.
//
// Image and text items use Timer, a wall-clock accumulator driven by ticks.
// Video items use Video, which follows the playback adapter's position.
// Both are pure values: the caller supplies timestamps, so tests drive them
// with a fake clock.
package progress

import "time"

// Timer accumulates elapsed running time against a fixed duration.
//
// Pausing stops accumulation without resetting elapsed time. Resuming
// continues from the same elapsed value, so Fraction never decreases.
type Timer struct {
	duration time.Duration
	elapsed  time.Duration
	last     time.Time
	running  bool
	fired    bool
}

// NewTimer returns a stopped timer for the given duration. A non-positive
// duration completes on the first tick after Start.
func NewTimer(d time.Duration) *Timer {
	return &Timer{duration: d}
}

// Start begins accumulating from now. Calling Start on a running timer is a
// no-op.
func (t *Timer) Start(now time.Time) {
	if t.running {
		return
	}
	t.running = true
	t.last = now
}

// Pause folds the time since the last tick into elapsed and stops.
func (t *Timer) Pause(now time.Time) {
	if !t.running {
		return
	}
	t.advance(now)
	t.running = false
}

// Resume is Start under another name; it never resets elapsed time.
func (t *Timer) Resume(now time.Time) {
	t.Start(now)
}

// Reset clears elapsed time and the completion latch. The timer keeps its
// running state. Used when a looping item starts another pass.
func (t *Timer) Reset(now time.Time) {
	t.elapsed = 0
	t.fired = false
	t.last = now
}

// Tick folds elapsed time up to now. It returns the current fraction and
// whether this tick crossed completion. Completion is reported exactly once.
func (t *Timer) Tick(now time.Time) (float64, bool) {
	if t.running {
		t.advance(now)
	}
	f := t.Fraction()
	if f >= 1 && !t.fired && t.running {
		t.fired = true
		return f, true
	}
	return f, false
}

func (t *Timer) advance(now time.Time) {
	if d := now.Sub(t.last); d > 0 {
		t.elapsed += d
	}
	// A clock that moved backwards does not rewind progress.
	if now.After(t.last) {
		t.last = now
	}
}

// Fraction returns elapsed/duration clamped to [0,1].
func (t *Timer) Fraction() float64 {
	if t.duration <= 0 {
		if t.running || t.elapsed > 0 {
			return 1
		}
		return 0
	}
	return clamp(float64(t.elapsed) / float64(t.duration))
}

func (t *Timer) Elapsed() time.Duration  { return t.elapsed }
func (t *Timer) Duration() time.Duration { return t.duration }
func (t *Timer) Running() bool           { return t.running }

func clamp(f float64) float64 {
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	}
	return f
}
