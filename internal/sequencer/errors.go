package sequencer

import (
	"errors"
	"fmt"
)

// Error is returned by Machine operations that could not be applied.
//
// None of these are fatal. A stale event is the normal outcome of a late
// callback and is safe to ignore.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Position is the machine position when the error occurred.
	Position Position

	// Gen is the generation the offending event targeted, if any.
	Gen int64

	// Err is the underlying cause, if any.
	Err error
}

// ErrorCode categorizes sequencer errors.
type ErrorCode string

const (
	// ErrCodeStaleEvent marks an event stamped for an activation that is no
	// longer current.
	ErrCodeStaleEvent ErrorCode = "STALE_EVENT"

	// ErrCodeClosed marks an event delivered to a machine that is idle or
	// closed.
	ErrCodeClosed ErrorCode = "CLOSED"

	// ErrCodeAlreadyOpen marks a second Open.
	ErrCodeAlreadyOpen ErrorCode = "ALREADY_OPEN"

	// ErrCodeInvalidPosition marks a target outside the playlist.
	ErrCodeInvalidPosition ErrorCode = "INVALID_POSITION"

	// ErrCodeEmptySequence marks an Open with no items.
	ErrCodeEmptySequence ErrorCode = "EMPTY_SEQUENCE"

	// ErrCodeMediaFailed marks a media load or playback failure. The item is
	// skipped.
	ErrCodeMediaFailed ErrorCode = "MEDIA_FAILED"
)

func (e *Error) Error() string {
	if e.Gen != 0 {
		return fmt.Sprintf("%s: %s (at=%s, gen=%d)", e.Code, e.Message, e.Position, e.Gen)
	}
	return fmt.Sprintf("%s: %s (at=%s)", e.Code, e.Message, e.Position)
}

func (e *Error) Unwrap() error { return e.Err }

// IsStale reports whether err is a stale-event error.
func IsStale(err error) bool {
	return hasCode(err, ErrCodeStaleEvent)
}

// IsClosed reports whether err was caused by an idle or closed machine.
func IsClosed(err error) bool {
	return hasCode(err, ErrCodeClosed)
}

// IsMediaFailed reports whether err is a media failure.
func IsMediaFailed(err error) bool {
	return hasCode(err, ErrCodeMediaFailed)
}

func hasCode(err error, code ErrorCode) bool {
	var se *Error
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

func newStaleError(at Position, gen int64) *Error {
	return &Error{
		Code:     ErrCodeStaleEvent,
		Message:  "event targets an earlier activation",
		Position: at,
		Gen:      gen,
	}
}

func newClosedError(at Position, status Status) *Error {
	return &Error{
		Code:     ErrCodeClosed,
		Message:  fmt.Sprintf("sequence is %s", status),
		Position: at,
	}
}

func newPositionError(target Position, groups int) *Error {
	return &Error{
		Code:     ErrCodeInvalidPosition,
		Message:  fmt.Sprintf("position %s outside %d groups", target, groups),
		Position: target,
	}
}

func newMediaError(at Position, gen int64, itemID string, cause error) *Error {
	return &Error{
		Code:     ErrCodeMediaFailed,
		Message:  fmt.Sprintf("item %s failed to play", itemID),
		Position: at,
		Gen:      gen,
		Err:      cause,
	}
}
