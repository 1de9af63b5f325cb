package media

import (
	"fmt"
	"strconv"
	"time"
)

// WidgetKind identifies the interactive widget attached to an item.
type WidgetKind string

const (
	WidgetPoll     WidgetKind = "poll"
	WidgetQuestion WidgetKind = "question"
	WidgetSlider   WidgetKind = "slider"
)

// Widget is a poll, question or slider embedded in a story item.
// At most one is attached per item.
type Widget struct {
	ID      string     `json:"id" yaml:"id"`
	Kind    WidgetKind `json:"kind" yaml:"kind"`
	Prompt  string     `json:"prompt" yaml:"prompt"`
	Options []string   `json:"options,omitempty" yaml:"options,omitempty"`
	Min     float64    `json:"min,omitempty" yaml:"min,omitempty"`
	Max     float64    `json:"max,omitempty" yaml:"max,omitempty"`

	// Response is the local user's response, possibly tentative.
	Response *InteractiveResponse `json:"response,omitempty" yaml:"response,omitempty"`
	// Aggregate holds the last known server results.
	Aggregate *Aggregate `json:"aggregate,omitempty" yaml:"aggregate,omitempty"`
}

// Answered reports whether the widget is read-only for this user.
func (w *Widget) Answered() bool {
	return w.Response != nil
}

func (w *Widget) Validate() error {
	if w.ID == "" {
		return fmt.Errorf("widget id is required")
	}
	switch w.Kind {
	case WidgetPoll:
		if len(w.Options) < 2 {
			return fmt.Errorf("poll %s needs at least two options", w.ID)
		}
	case WidgetQuestion:
	case WidgetSlider:
		if w.Max <= w.Min {
			return fmt.Errorf("slider %s: max must exceed min", w.ID)
		}
	default:
		return fmt.Errorf("widget %s: unknown kind %q", w.ID, w.Kind)
	}
	return nil
}

// CheckValue validates a raw response value against the widget kind.
func (w *Widget) CheckValue(value string) error {
	switch w.Kind {
	case WidgetPoll:
		for _, opt := range w.Options {
			if opt == value {
				return nil
			}
		}
		return fmt.Errorf("poll %s: %q is not an option", w.ID, value)
	case WidgetQuestion:
		if value == "" {
			return fmt.Errorf("question %s: empty answer", w.ID)
		}
		return nil
	case WidgetSlider:
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("slider %s: %w", w.ID, err)
		}
		if v < w.Min || v > w.Max {
			return fmt.Errorf("slider %s: %v outside [%v, %v]", w.ID, v, w.Min, w.Max)
		}
		return nil
	}
	return fmt.Errorf("widget %s: unknown kind %q", w.ID, w.Kind)
}

// InteractiveResponse is one user's poll vote, question answer or slider value.
type InteractiveResponse struct {
	WidgetID    string    `json:"widget_id" yaml:"widget_id"`
	Value       string    `json:"value" yaml:"value"`
	SubmittedAt time.Time `json:"submitted_at" yaml:"submitted_at"`
}

// Aggregate is the server's summary of all responses to a widget.
type Aggregate struct {
	Total   int            `json:"total" yaml:"total"`
	Counts  map[string]int `json:"counts,omitempty" yaml:"counts,omitempty"`
	Average float64        `json:"average,omitempty" yaml:"average,omitempty"`
}

// Reaction is an emoji reaction the local user toggled on an item.
type Reaction struct {
	ItemID string `json:"item_id"`
	Emoji  string `json:"emoji"`
	Active bool   `json:"active"`
}
