package sequencer

import "sync/atomic"

// Clock hands out activation generations.
//
// Generations are strictly increasing per machine. They order activations
// without consulting wall-clock time, so two activations started in the same
// millisecond still compare correctly.
type Clock struct {
	gen atomic.Int64
}

// NewClock creates a clock whose first generation is 1.
func NewClock() *Clock {
	return &Clock{}
}

// NewClockAt creates a clock that resumes after start.
func NewClockAt(start int64) *Clock {
	c := &Clock{}
	c.gen.Store(start)
	return c
}

// Next returns the next generation.
func (c *Clock) Next() int64 {
	return c.gen.Add(1)
}

// Current returns the last generation handed out.
func (c *Clock) Current() int64 {
	return c.gen.Load()
}
