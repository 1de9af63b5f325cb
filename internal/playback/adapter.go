// Package playback normalizes a video element's controls and lifecycle
// events.
package playback

import (
	"errors"
	"fmt"
	"time"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

// ErrAutoplayBlocked is returned by Play when the host refuses programmatic
// playback. It is not a media failure.
var ErrAutoplayBlocked = errors.New("autoplay blocked")

// EventKind enumerates the normalized media lifecycle events.
type EventKind int

const (
	EventLoaded EventKind = iota + 1
	EventTimeUpdate
	EventEnded
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventLoaded:
		return "loaded"
	case EventTimeUpdate:
		return "timeupdate"
	case EventEnded:
		return "ended"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("EventKind(%d)", int(k))
}

// Event is one normalized media event.
type Event struct {
	Kind EventKind
	// Duration is set on EventLoaded.
	Duration time.Duration
	// Position is set on EventTimeUpdate.
	Position time.Duration
	// Err is set on EventError.
	Err error
}

// Adapter wraps one video element for one activation.
type Adapter interface {
	// Play starts or resumes playback. It returns ErrAutoplayBlocked when the
	// host refuses; any other error is a media failure.
	Play() error
	Pause()
	SetMuted(muted bool)
	Seek(pos time.Duration)
	// Close detaches listeners. No events are emitted after Close returns.
	Close()
}

// Emit receives an adapter's events.
type Emit func(Event)

// Factory creates an adapter for a video item.
type Factory interface {
	New(item *media.Item, emit Emit) Adapter
}

// FactoryFunc adapts a function to Factory.
type FactoryFunc func(item *media.Item, emit Emit) Adapter

func (f FactoryFunc) New(item *media.Item, emit Emit) Adapter { return f(item, emit) }
