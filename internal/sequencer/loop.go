package sequencer

import (
	"context"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gvarikaa/new-DapDip-sub001/internal/progress"
)

// Loop is the single writer for one or more machines.
//
// Do may be called from any goroutine. Run must be called from exactly one
// goroutine; every queued function and every tick runs there.
type Loop struct {
	queue    *taskQueue
	clock    clockwork.Clock
	interval time.Duration
	onTick   func(time.Time)
	logger   *slog.Logger
}

// NewLoop creates a loop that calls onTick every interval while running.
func NewLoop(clock clockwork.Clock, interval time.Duration, onTick func(time.Time), logger *slog.Logger) *Loop {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loop{
		queue:    newTaskQueue(),
		clock:    clock,
		interval: interval,
		onTick:   onTick,
		logger:   logger.With("component", "loop"),
	}
}

// Do schedules fn on the writer goroutine. Work submitted after Stop is
// dropped.
func (l *Loop) Do(fn func()) {
	if !l.queue.Enqueue(fn) {
		l.logger.Debug("loop stopped, task dropped")
	}
}

// Run processes queued work and ticks until ctx is cancelled or Stop is
// called.
//
// A panicking task is not recovered; a panic in the writer is a bug.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("loop starting", "interval", l.interval)

	ticker := progress.NewTicker(l.clock, l.interval)
	defer ticker.Stop()

	for {
		if fn, ok := l.queue.TryDequeue(); ok {
			fn()
			continue
		}

		select {
		case <-ctx.Done():
			l.logger.Debug("loop stopping: context cancelled")
			l.queue.Close()
			return ctx.Err()

		case now := <-ticker.C():
			if l.onTick != nil {
				l.onTick(now)
			}

		case _, open := <-l.queue.Wait():
			if !open && l.queue.Len() == 0 {
				l.logger.Debug("loop stopping: queue closed")
				return nil
			}
		}
	}
}

// Stop closes the queue; Run returns once queued work is drained.
func (l *Loop) Stop() {
	l.queue.Close()
}
