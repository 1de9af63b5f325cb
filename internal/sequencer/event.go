package sequencer

import (
	"fmt"

	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
)

// Position addresses one item: the group (author for stories, reel for the
// feed) and the index within it.
type Position struct {
	Group int
	Index int
}

func (p Position) String() string {
	return fmt.Sprintf("%d/%d", p.Group, p.Index)
}

// Stamp identifies one activation. Events produced for an activation carry
// its stamp.
type Stamp struct {
	Position Position
	Gen      int64
}

// EventType distinguishes the members of the Event union.
type EventType int

const (
	// EventTick advances the progress timer to the machine clock's now.
	EventTick EventType = iota + 1
	// EventComplete is a completion signal for a stamped activation.
	EventComplete
	// EventMedia carries a playback adapter event.
	EventMedia
	// EventGesture carries a classified user intent.
	EventGesture
	// EventOverlay opens or closes the overlay on a stamped activation.
	EventOverlay
	// EventMute sets the session mute preference.
	EventMute
	// EventJump activates an explicit position.
	EventJump
	// EventClose closes the sequence.
	EventClose
	// EventReplace swaps the playlist. Produced by Replace when it is
	// called from a listener.
	EventReplace
)

var eventTypeNames = map[EventType]string{
	EventTick:     "tick",
	EventComplete: "complete",
	EventMedia:    "media",
	EventGesture:  "gesture",
	EventOverlay:  "overlay",
	EventMute:     "mute",
	EventJump:     "jump",
	EventClose:    "close",
	EventReplace:  "replace",
}

func (t EventType) String() string {
	if s, ok := eventTypeNames[t]; ok {
		return s
	}
	return fmt.Sprintf("EventType(%d)", int(t))
}

// Event is the tagged union accepted by Machine.Dispatch. Only the fields
// relevant to Type are read.
type Event struct {
	Type EventType

	// Stamp targets an activation for EventComplete, EventMedia and
	// EventOverlay.
	Stamp Stamp

	// Cause is the completion source for EventComplete.
	Cause Cause

	Media  playback.Event
	Intent gesture.Intent

	// Open is the overlay state for EventOverlay.
	Open bool

	// Muted is the preference for EventMute.
	Muted bool

	// Target is the position for EventJump.
	Target Position

	// Groups is the new playlist for EventReplace.
	Groups []*media.Group
}

// Tick returns a tick event.
func Tick() Event { return Event{Type: EventTick} }

// Complete returns a completion signal for an activation.
func Complete(s Stamp, cause Cause) Event {
	return Event{Type: EventComplete, Stamp: s, Cause: cause}
}

// Media wraps a playback event for an activation.
func Media(s Stamp, ev playback.Event) Event {
	return Event{Type: EventMedia, Stamp: s, Media: ev}
}

// Gesture wraps a user intent.
func Gesture(i gesture.Intent) Event {
	return Event{Type: EventGesture, Intent: i}
}

// Overlay opens or closes the overlay on an activation.
func Overlay(s Stamp, open bool) Event {
	return Event{Type: EventOverlay, Stamp: s, Open: open}
}

// Mute sets the mute preference.
func Mute(muted bool) Event {
	return Event{Type: EventMute, Muted: muted}
}

// Jump activates an explicit position.
func Jump(p Position) Event {
	return Event{Type: EventJump, Target: p}
}

// Close closes the sequence.
func Close() Event { return Event{Type: EventClose} }
