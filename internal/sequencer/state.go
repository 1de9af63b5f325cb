package sequencer

import (
	"fmt"
	"strings"
)

// Status is the machine's top-level state.
type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
	// StatusAdvancing is held only while an index change is in progress.
	StatusAdvancing
	StatusClosed
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusAdvancing:
		return "advancing"
	case StatusClosed:
		return "closed"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// PauseReason is one reason the machine is paused. A machine may be paused
// for several reasons at once; it resumes only when all are cleared.
type PauseReason uint8

const (
	ReasonUser PauseReason = 1 << iota
	ReasonDragging
	ReasonOverlay
)

// Reasons is a set of pause reasons.
type Reasons uint8

func (r Reasons) Has(p PauseReason) bool { return r&Reasons(p) != 0 }
func (r Reasons) With(p PauseReason) Reasons {
	return r | Reasons(p)
}
func (r Reasons) Without(p PauseReason) Reasons {
	return r &^ Reasons(p)
}
func (r Reasons) Empty() bool { return r == 0 }

// Primary returns the reason reported to observers: overlay, then
// dragging, then user. It returns 0 for an empty set.
func (r Reasons) Primary() PauseReason {
	for _, p := range []PauseReason{ReasonOverlay, ReasonDragging, ReasonUser} {
		if r.Has(p) {
			return p
		}
	}
	return 0
}

func (p PauseReason) String() string {
	switch p {
	case ReasonUser:
		return "user"
	case ReasonDragging:
		return "dragging"
	case ReasonOverlay:
		return "overlay"
	case 0:
		return ""
	}
	return fmt.Sprintf("PauseReason(%d)", int(p))
}

func (r Reasons) String() string {
	var parts []string
	for _, p := range []PauseReason{ReasonOverlay, ReasonDragging, ReasonUser} {
		if r.Has(p) {
			parts = append(parts, p.String())
		}
	}
	return strings.Join(parts, ",")
}

// Snapshot is a read-only copy of the machine state.
type Snapshot struct {
	Status       Status
	Reasons      Reasons
	Position     Position
	Gen          int64
	ActivationID string
	ItemID       string
	Progress     float64
	Muted        bool
	OverlayOpen  bool
	Loops        int
	Groups       int
	GroupLength  int
}

// Paused reports whether the machine is paused for any reason.
func (s Snapshot) Paused() bool {
	return s.Status == StatusPaused
}

// State renders the status with its primary pause reason, e.g.
// "paused(overlay)".
func (s Snapshot) State() string {
	if s.Status == StatusPaused {
		return fmt.Sprintf("paused(%s)", s.Reasons.Primary())
	}
	return s.Status.String()
}

// Stamp returns the current activation stamp.
func (s Snapshot) Stamp() Stamp {
	return Stamp{Position: s.Position, Gen: s.Gen}
}
