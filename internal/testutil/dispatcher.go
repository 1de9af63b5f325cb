package testutil

import (
	"errors"
	"sync"
)

// ErrReleased is returned by Submit after Release.
var ErrReleased = errors.New("dispatcher released")

// ManualDispatcher queues submitted tasks until the test runs them. It lets
// tests hold a network call in flight and decide when it resolves.
type ManualDispatcher struct {
	mu       sync.Mutex
	tasks    []func()
	released bool
}

func (d *ManualDispatcher) Submit(task func()) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.released {
		return ErrReleased
	}
	d.tasks = append(d.tasks, task)
	return nil
}

// Pending returns the number of queued tasks.
func (d *ManualDispatcher) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

// RunNext runs the oldest queued task. It reports false if none was queued.
func (d *ManualDispatcher) RunNext() bool {
	d.mu.Lock()
	if len(d.tasks) == 0 {
		d.mu.Unlock()
		return false
	}
	task := d.tasks[0]
	d.tasks = d.tasks[1:]
	d.mu.Unlock()

	task()
	return true
}

// Drain runs queued tasks, including ones submitted while draining, until
// the queue is empty. It returns the number of tasks run.
func (d *ManualDispatcher) Drain() int {
	n := 0
	for d.RunNext() {
		n++
	}
	return n
}

// Release makes further submissions fail. Queued tasks are dropped.
func (d *ManualDispatcher) Release() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.released = true
	d.tasks = nil
}

// Sync runs every task immediately on the caller's goroutine.
type Sync struct{}

func (Sync) Submit(task func()) error {
	task()
	return nil
}
