// Package dispatch runs fire-and-forget network work off the writer
// goroutine.
package dispatch

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/panjf2000/ants/v2"
)

// Dispatcher accepts tasks that must not block the caller.
type Dispatcher interface {
	Submit(task func()) error
}

// DefaultWorkers is the pool size when none is configured.
const DefaultWorkers = 4

// Pool is a Dispatcher backed by a bounded ants goroutine pool.
type Pool struct {
	pool   *ants.Pool
	logger *slog.Logger
}

// NewPool creates a pool with size workers. Submissions beyond capacity
// wait for a free worker.
func NewPool(size int, logger *slog.Logger) (*Pool, error) {
	if size <= 0 {
		size = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "dispatch")

	p, err := ants.NewPool(size,
		ants.WithPanicHandler(func(v any) {
			logger.Error("dispatched task panicked", "panic", fmt.Sprint(v))
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("create worker pool: %w", err)
	}
	return &Pool{pool: p, logger: logger}, nil
}

func (p *Pool) Submit(task func()) error {
	if err := p.pool.Submit(task); err != nil {
		return fmt.Errorf("submit task: %w", err)
	}
	return nil
}

// Running returns the number of busy workers.
func (p *Pool) Running() int {
	return p.pool.Running()
}

// Release stops accepting tasks. Tasks already running finish.
func (p *Pool) Release() {
	p.pool.Release()
}

// ReleaseTimeout stops accepting tasks and waits up to d for running ones.
func (p *Pool) ReleaseTimeout(d time.Duration) error {
	if err := p.pool.ReleaseTimeout(d); err != nil {
		return fmt.Errorf("release worker pool: %w", err)
	}
	return nil
}
