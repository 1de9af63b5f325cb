// Package gesture classifies pointer input into navigation intents.
package gesture

import (
	"fmt"
	"math"
	"time"
)

// Intent is what a completed or ongoing gesture asks the sequencer to do.
type Intent int

const (
	IntentNone Intent = iota
	IntentPrevious
	IntentNext
	IntentPauseToggle
	IntentDismiss
	// IntentDragStart and IntentDragEnd bracket a drag on an interactive
	// overlay such as a slider.
	IntentDragStart
	IntentDragEnd
	// IntentHoldStart and IntentHoldEnd bracket a press held past the hold
	// delay. Releasing a hold never navigates.
	IntentHoldStart
	IntentHoldEnd
	// IntentFeedNext and IntentFeedPrevious are vertical swipes in the reel
	// feed. They move the scroll position, not the sequencer.
	IntentFeedNext
	IntentFeedPrevious
)

var intentNames = map[Intent]string{
	IntentNone:         "none",
	IntentPrevious:     "previous",
	IntentNext:         "next",
	IntentPauseToggle:  "pause_toggle",
	IntentDismiss:      "dismiss",
	IntentDragStart:    "drag_start",
	IntentDragEnd:      "drag_end",
	IntentHoldStart:    "hold_start",
	IntentHoldEnd:      "hold_end",
	IntentFeedNext:     "feed_next",
	IntentFeedPrevious: "feed_previous",
}

func (i Intent) String() string {
	if s, ok := intentNames[i]; ok {
		return s
	}
	return fmt.Sprintf("Intent(%d)", int(i))
}

// ParseIntent is the inverse of String.
func ParseIntent(s string) (Intent, error) {
	for k, v := range intentNames {
		if v == s {
			return k, nil
		}
	}
	return IntentNone, fmt.Errorf("unknown intent %q", s)
}

// Mode selects the classification rules.
type Mode int

const (
	ModeStories Mode = iota
	ModeReels
)

const (
	DefaultSwipeThreshold   = 40.0
	DefaultDismissThreshold = 120.0
	DefaultHoldDelay        = 250 * time.Millisecond
)

// Config holds the router thresholds in screen pixels.
type Config struct {
	Mode             Mode
	SwipeThreshold   float64
	DismissThreshold float64
	HoldDelay        time.Duration
}

func (c Config) withDefaults() Config {
	if c.SwipeThreshold <= 0 {
		c.SwipeThreshold = DefaultSwipeThreshold
	}
	if c.DismissThreshold <= 0 {
		c.DismissThreshold = DefaultDismissThreshold
	}
	if c.HoldDelay <= 0 {
		c.HoldDelay = DefaultHoldDelay
	}
	return c
}

// Pointer is one pointer or touch sample.
type Pointer struct {
	X, Y float64
	At   time.Time
	// OnOverlay is set when the sample hit an interactive overlay.
	OnOverlay bool
}

type press struct {
	start   Pointer
	moved   bool
	holding bool
	overlay bool
}

// Router turns down/move/up pairs into intents. It tracks one pointer;
// a second Down replaces the first.
//
// Router is not safe for concurrent use.
type Router struct {
	cfg    Config
	width  float64
	height float64
	active *press
}

func NewRouter(cfg Config, width, height float64) *Router {
	return &Router{cfg: cfg.withDefaults(), width: width, height: height}
}

// Resize updates the viewport used for third classification.
func (r *Router) Resize(width, height float64) {
	r.width, r.height = width, height
}

func (r *Router) Config() Config { return r.cfg }

// Down starts a press. A press on an overlay starts a drag.
func (r *Router) Down(p Pointer) Intent {
	r.active = &press{start: p, overlay: p.OnOverlay}
	if p.OnOverlay {
		return IntentDragStart
	}
	return IntentNone
}

// Move records displacement. Moving past the swipe threshold makes the
// press ineligible for hold.
func (r *Router) Move(p Pointer) Intent {
	if r.active == nil || r.active.overlay {
		return IntentNone
	}
	dx, dy := p.X-r.active.start.X, p.Y-r.active.start.Y
	if math.Hypot(dx, dy) >= r.cfg.SwipeThreshold {
		r.active.moved = true
	}
	return IntentNone
}

// Tick reports IntentHoldStart once a still press outlasts the hold delay.
func (r *Router) Tick(now time.Time) Intent {
	a := r.active
	if a == nil || a.overlay || a.moved || a.holding {
		return IntentNone
	}
	if now.Sub(a.start.At) >= r.cfg.HoldDelay {
		a.holding = true
		return IntentHoldStart
	}
	return IntentNone
}

// Up completes the press and classifies it.
func (r *Router) Up(p Pointer) Intent {
	a := r.active
	r.active = nil
	if a == nil {
		return IntentNone
	}
	switch {
	case a.overlay:
		return IntentDragEnd
	case a.holding:
		return IntentHoldEnd
	}

	dx, dy := p.X-a.start.X, p.Y-a.start.Y
	if r.cfg.Mode == ModeReels {
		return r.classifyReel(a.start, dx, dy)
	}
	return r.classifyStory(a.start, dx, dy)
}

// Cancel abandons the press, ending any hold or drag in progress.
func (r *Router) Cancel() Intent {
	a := r.active
	r.active = nil
	switch {
	case a == nil:
		return IntentNone
	case a.overlay:
		return IntentDragEnd
	case a.holding:
		return IntentHoldEnd
	}
	return IntentNone
}

func (r *Router) classifyStory(start Pointer, dx, dy float64) Intent {
	adx, ady := math.Abs(dx), math.Abs(dy)
	if ady > adx && dy >= r.cfg.DismissThreshold {
		return IntentDismiss
	}
	if adx > ady && adx >= r.cfg.SwipeThreshold {
		if dx < 0 {
			return IntentNext
		}
		return IntentPrevious
	}
	if math.Hypot(dx, dy) >= r.cfg.SwipeThreshold {
		// Ambiguous drag that is neither a swipe nor a tap.
		return IntentNone
	}
	return r.third(start.X)
}

func (r *Router) classifyReel(start Pointer, dx, dy float64) Intent {
	adx, ady := math.Abs(dx), math.Abs(dy)
	if ady > adx && ady >= r.cfg.SwipeThreshold {
		if dy < 0 {
			return IntentFeedNext
		}
		return IntentFeedPrevious
	}
	if math.Hypot(dx, dy) >= r.cfg.SwipeThreshold {
		return IntentNone
	}
	return IntentPauseToggle
}

func (r *Router) third(x float64) Intent {
	switch {
	case r.width <= 0:
		return IntentPauseToggle
	case x < r.width/3:
		return IntentPrevious
	case x >= 2*r.width/3:
		return IntentNext
	}
	return IntentPauseToggle
}
