package harness

import (
	"fmt"
	"strings"

	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
	"github.com/gvarikaa/new-DapDip-sub001/internal/testutil"
)

// TraceEvent is one sequencer transition as recorded by the harness.
type TraceEvent struct {
	Seq      int     `json:"seq"`
	AtMS     int64   `json:"at_ms"`
	Kind     string  `json:"kind"`
	Item     string  `json:"item,omitempty"`
	Position string  `json:"position"`
	Gen      int64   `json:"gen"`
	Cause    string  `json:"cause,omitempty"`
	Reason   string  `json:"reason,omitempty"`
	Progress float64 `json:"progress"`
	Loops    int     `json:"loops,omitempty"`
}

func newTraceEvent(seq int, t sequencer.Transition) TraceEvent {
	ev := TraceEvent{
		Seq:      seq,
		AtMS:     t.At.Sub(testutil.Epoch).Milliseconds(),
		Kind:     string(t.Kind),
		Position: t.Stamp.Position.String(),
		Gen:      t.Stamp.Gen,
		Cause:    string(t.Cause),
		Reason:   t.Reason.String(),
		Progress: t.Progress,
		Loops:    t.Loops,
	}
	if t.Item != nil {
		ev.Item = t.Item.ID
	}
	return ev
}

// String renders the event as one golden line.
func (e TraceEvent) String() string {
	var b strings.Builder
	item := e.Item
	if item == "" {
		item = "-"
	}
	fmt.Fprintf(&b, "t=%d %s %s %s gen=%d", e.AtMS, e.Kind, item, e.Position, e.Gen)
	if e.Cause != "" {
		fmt.Fprintf(&b, " cause=%s", e.Cause)
	}
	if e.Reason != "" {
		fmt.Fprintf(&b, " reason=%s", e.Reason)
	}
	fmt.Fprintf(&b, " progress=%.2f", e.Progress)
	if e.Loops > 0 {
		fmt.Fprintf(&b, " loops=%d", e.Loops)
	}
	return b.String()
}

// Matches reports whether the event satisfies a "kind" or "kind item"
// pattern.
func (e TraceEvent) Matches(pattern string) bool {
	kind, item, _ := strings.Cut(strings.TrimSpace(pattern), " ")
	if kind != e.Kind {
		return false
	}
	return item == "" || strings.TrimSpace(item) == e.Item
}

// Final is the engine state after the last step.
type Final struct {
	State   string `json:"state"`
	Item    string `json:"item,omitempty"`
	Group   int    `json:"group"`
	Index   int    `json:"index"`
	Overlay string `json:"overlay,omitempty"`
	Notice  string `json:"notice,omitempty"`
	Fetches int    `json:"fetches"`
	// Views counts final view records the backend accepted.
	Views int `json:"views"`
}

func (f Final) String() string {
	item, overlay := f.Item, f.Overlay
	if item == "" {
		item = "-"
	}
	if overlay == "" {
		overlay = "-"
	}
	return fmt.Sprintf("final state=%s item=%s position=%d/%d overlay=%s fetches=%d views=%d",
		f.State, item, f.Group, f.Index, overlay, f.Fetches, f.Views)
}

// Result is the outcome of a scenario run.
type Result struct {
	Pass   bool         `json:"pass"`
	Trace  []TraceEvent `json:"trace"`
	Errors []string     `json:"errors,omitempty"`
	Final  Final        `json:"final"`
}

func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError records an assertion failure and marks the result failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// recorder appends transitions to a Result.
type recorder struct {
	result *Result
}

func (r *recorder) OnTransition(t sequencer.Transition) {
	r.result.Trace = append(r.result.Trace, newTraceEvent(len(r.result.Trace)+1, t))
}
