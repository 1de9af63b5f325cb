package sequencer

import (
	"time"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

// TransitionKind names what changed.
type TransitionKind string

const (
	TransitionActivated   TransitionKind = "activated"
	TransitionDeactivated TransitionKind = "deactivated"
	TransitionCompleted   TransitionKind = "completed"
	TransitionDeferred    TransitionKind = "deferred"
	TransitionLooped      TransitionKind = "looped"
	TransitionPaused      TransitionKind = "paused"
	TransitionResumed     TransitionKind = "resumed"
	TransitionMuted       TransitionKind = "muted"
	TransitionMediaFailed TransitionKind = "media_failed"
	TransitionReplaced    TransitionKind = "replaced"
	TransitionClosed      TransitionKind = "closed"
)

// Cause explains why a transition happened.
type Cause string

const (
	CauseOpen     Cause = "open"
	CauseTimer    Cause = "timer"
	CauseEnded    Cause = "ended"
	CauseError    Cause = "error"
	CauseGesture  Cause = "gesture"
	CauseJump     Cause = "jump"
	CauseDismiss  Cause = "dismiss"
	CauseEnd      Cause = "end"
	CauseAutoplay Cause = "autoplay"
	CauseOverlay  Cause = "overlay"
	CauseReplace  Cause = "replace"
)

// Transition is delivered to listeners after each state change.
type Transition struct {
	Kind         TransitionKind
	At           time.Time
	Stamp        Stamp
	ActivationID string
	Item         *media.Item
	Cause        Cause

	// Reason is the primary pause reason for TransitionPaused.
	Reason PauseReason

	// Progress is the item's fraction at the time of the transition.
	Progress float64

	// Loops counts completed passes of a looping item.
	Loops int

	// Muted is the preference for TransitionMuted.
	Muted bool

	// Err is set for TransitionMediaFailed.
	Err error
}

// Listener observes transitions. Listeners run on the writer goroutine and
// must not block. They may post follow-up events with Machine.Dispatch; those
// are applied after the current dispatch returns.
type Listener interface {
	OnTransition(Transition)
}

// ListenerFunc adapts a function to Listener.
type ListenerFunc func(Transition)

func (f ListenerFunc) OnTransition(t Transition) { f(t) }
