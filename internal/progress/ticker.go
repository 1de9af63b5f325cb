package progress

import (
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultInterval is the tick period for timed items.
const DefaultInterval = 100 * time.Millisecond

// Ticker delivers periodic ticks from a clockwork clock so a fake clock can
// drive it in tests.
type Ticker struct {
	t clockwork.Ticker
}

// NewTicker starts a ticker. A non-positive interval uses DefaultInterval.
func NewTicker(clock clockwork.Clock, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Ticker{t: clock.NewTicker(interval)}
}

func (t *Ticker) C() <-chan time.Time { return t.t.Chan() }

func (t *Ticker) Stop() { t.t.Stop() }
