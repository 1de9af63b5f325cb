package progress

import (
	"context"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func TestTimer_CompletesOnceAtDuration(t *testing.T) {
	tm := NewTimer(5 * time.Second)
	tm.Start(t0)

	completions := 0
	for i := 1; i <= 60; i++ {
		_, done := tm.Tick(t0.Add(time.Duration(i) * 100 * time.Millisecond))
		if done {
			completions++
			assert.Equal(t, 50, i, "completion at the 5s boundary")
		}
	}
	assert.Equal(t, 1, completions)
	assert.Equal(t, 1.0, tm.Fraction())
}

func TestTimer_PauseResumeKeepsElapsed(t *testing.T) {
	tm := NewTimer(4 * time.Second)
	tm.Start(t0)

	f, _ := tm.Tick(t0.Add(time.Second))
	assert.InDelta(t, 0.25, f, 1e-9)

	tm.Pause(t0.Add(2 * time.Second))
	paused := tm.Fraction()
	assert.InDelta(t, 0.5, paused, 1e-9)

	// Ticks while paused do not accumulate.
	f, done := tm.Tick(t0.Add(10 * time.Second))
	assert.False(t, done)
	assert.Equal(t, paused, f)

	tm.Resume(t0.Add(10 * time.Second))
	f, _ = tm.Tick(t0.Add(11 * time.Second))
	assert.InDelta(t, 0.75, f, 1e-9)
	assert.GreaterOrEqual(t, f, paused, "never jumps backward on resume")
}

func TestTimer_ClockSkewDoesNotRewind(t *testing.T) {
	tm := NewTimer(time.Second)
	tm.Start(t0)
	f1, _ := tm.Tick(t0.Add(500 * time.Millisecond))
	f2, _ := tm.Tick(t0.Add(100 * time.Millisecond))
	assert.Equal(t, f1, f2)
	f3, _ := tm.Tick(t0.Add(600 * time.Millisecond))
	assert.InDelta(t, 0.6, f3, 1e-9)
}

func TestTimer_ZeroDuration(t *testing.T) {
	tm := NewTimer(0)
	assert.Equal(t, 0.0, tm.Fraction())
	tm.Start(t0)
	f, done := tm.Tick(t0)
	assert.Equal(t, 1.0, f)
	assert.True(t, done)
}

func TestTimer_ResetAllowsAnotherCompletion(t *testing.T) {
	tm := NewTimer(time.Second)
	tm.Start(t0)
	_, done := tm.Tick(t0.Add(time.Second))
	require.True(t, done)

	tm.Reset(t0.Add(time.Second))
	assert.Equal(t, 0.0, tm.Fraction())
	_, done = tm.Tick(t0.Add(2 * time.Second))
	assert.True(t, done)
}

func TestVideo_HeldAtZeroUntilLoaded(t *testing.T) {
	var v Video
	assert.Equal(t, 0.0, v.Update(3*time.Second))
	assert.False(t, v.Loaded())

	v.Load(10 * time.Second)
	assert.InDelta(t, 0.3, v.Update(3*time.Second), 1e-9)
	assert.InDelta(t, 0.3, v.Update(time.Second), 1e-9, "seek back does not lower progress")
	assert.Equal(t, 1.0, v.Update(20*time.Second))

	v.Reset()
	assert.Equal(t, 0.0, v.Fraction())
	v.Complete()
	assert.Equal(t, 1.0, v.Fraction())
}

func TestTicker_FakeClock(t *testing.T) {
	clock := clockwork.NewFakeClockAt(t0)
	tk := NewTicker(clock, 0)
	defer tk.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, clock.BlockUntilContext(ctx, 1))

	clock.Advance(DefaultInterval)
	select {
	case got := <-tk.C():
		assert.Equal(t, t0.Add(DefaultInterval), got)
	case <-ctx.Done():
		t.Fatal("tick not delivered")
	}
}
