package sequencer

import (
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
)

// Runner executes a function on the machine's writer goroutine.
type Runner interface {
	Do(fn func())
}

// Inline runs functions immediately on the caller's goroutine. It is the
// default runner and is correct whenever a single goroutine drives the
// machine.
type Inline struct{}

func (Inline) Do(fn func()) { fn() }

// Option configures a Machine.
type Option func(*Machine)

// WithClock sets the time source. Default: the real clock.
func WithClock(c clockwork.Clock) Option {
	return func(m *Machine) { m.clock = c }
}

// WithLogger sets the logger. Default: slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *Machine) {
		if l != nil {
			m.logger = l
		}
	}
}

// WithPlayback sets the adapter factory for video items. Without one, video
// items fail and are skipped.
func WithPlayback(f playback.Factory) Option {
	return func(m *Machine) { m.factory = f }
}

// WithRunner sets where adapter callbacks are delivered. Default: Inline.
func WithRunner(r Runner) Option {
	return func(m *Machine) { m.runner = r }
}

// WithLoop makes the sequence restart its item on completion instead of
// advancing. Used for reels.
func WithLoop(loop bool) Option {
	return func(m *Machine) { m.loop = loop }
}

// WithMuted sets the initial mute preference.
func WithMuted(muted bool) Option {
	return func(m *Machine) { m.muted = muted }
}

// WithDefaultDuration sets the duration of timed items that carry no hint.
// Default: media.DefaultDuration.
func WithDefaultDuration(d time.Duration) Option {
	return func(m *Machine) {
		if d > 0 {
			m.defaultDuration = d
		}
	}
}

// WithSessionIDs sets the session id generator. Default: UUIDv7Generator.
func WithSessionIDs(g IDGenerator) Option {
	return func(m *Machine) { m.ids = g }
}

// WithGenerations sets the activation clock, e.g. to continue numbering
// across machines in one feed.
func WithGenerations(c *Clock) Option {
	return func(m *Machine) { m.gens = c }
}

// WithListener registers a listener at construction.
func WithListener(l Listener) Option {
	return func(m *Machine) { m.listeners = append(m.listeners, l) }
}

func defaultOptions(m *Machine) {
	m.clock = clockwork.NewRealClock()
	m.logger = slog.Default()
	m.runner = Inline{}
	m.defaultDuration = media.DefaultDuration
	m.ids = UUIDv7Generator{}
}
