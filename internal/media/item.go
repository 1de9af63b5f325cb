package media

import (
	"errors"
	"fmt"
	"time"
)

// Kind is the media kind of an item.
type Kind string

const (
	KindImage Kind = "image"
	KindVideo Kind = "video"
	KindText  Kind = "text"
)

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	switch k {
	case KindImage, KindVideo, KindText:
		return true
	}
	return false
}

// Timed reports whether progress for this kind comes from the wall-clock timer.
// Video progress comes from the playback adapter instead.
func (k Kind) Timed() bool {
	return k == KindImage || k == KindText
}

// DefaultDuration is used when an image or text item carries no duration hint.
const DefaultDuration = 5 * time.Second

// ErrInvalidItem is wrapped by every Validate failure.
var ErrInvalidItem = errors.New("invalid media item")

// AuthorRef is a weak reference to the publishing user.
// It carries display fields only; the item does not own the user.
type AuthorRef struct {
	ID          string `json:"id" yaml:"id"`
	Username    string `json:"username" yaml:"username"`
	DisplayName string `json:"display_name,omitempty" yaml:"display_name,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty" yaml:"avatar_url,omitempty"`
}

// Point is a position in normalized [0,1] screen coordinates.
type Point struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

type TextOverlay struct {
	Text     string  `json:"text" yaml:"text"`
	Position Point   `json:"position" yaml:"position"`
	Color    string  `json:"color,omitempty" yaml:"color,omitempty"`
	Scale    float64 `json:"scale,omitempty" yaml:"scale,omitempty"`
}

type DrawStroke struct {
	Points []Point `json:"points" yaml:"points"`
	Color  string  `json:"color" yaml:"color"`
	Width  float64 `json:"width" yaml:"width"`
}

type Sticker struct {
	ID       string `json:"id" yaml:"id"`
	Emoji    string `json:"emoji,omitempty" yaml:"emoji,omitempty"`
	ImageURL string `json:"image_url,omitempty" yaml:"image_url,omitempty"`
	Position Point  `json:"position" yaml:"position"`
}

type Link struct {
	URL   string `json:"url" yaml:"url"`
	Label string `json:"label,omitempty" yaml:"label,omitempty"`
}

// Item is one slide of a story or one reel.
type Item struct {
	ID              string        `json:"id" yaml:"id"`
	Kind            Kind          `json:"kind" yaml:"kind"`
	SourceURL       string        `json:"source_url,omitempty" yaml:"source_url,omitempty"`
	DurationHint    time.Duration `json:"duration_hint" yaml:"duration_hint"`
	Author          AuthorRef     `json:"author" yaml:"author"`
	CreatedAt       time.Time     `json:"created_at" yaml:"created_at"`
	Caption         string        `json:"caption,omitempty" yaml:"caption,omitempty"`
	BackgroundColor string        `json:"background_color,omitempty" yaml:"background_color,omitempty"`
	TextOverlays    []TextOverlay `json:"text_overlays,omitempty" yaml:"text_overlays,omitempty"`
	DrawStrokes     []DrawStroke  `json:"draw_strokes,omitempty" yaml:"draw_strokes,omitempty"`
	Stickers        []Sticker     `json:"stickers,omitempty" yaml:"stickers,omitempty"`
	Links           []Link        `json:"links,omitempty" yaml:"links,omitempty"`
	Widget          *Widget       `json:"widget,omitempty" yaml:"widget,omitempty"`

	// Viewed is merged locally after a view round-trip.
	Viewed bool `json:"viewed,omitempty" yaml:"viewed,omitempty"`
}

// Duration returns the timer duration for image and text items.
// For video it returns the advisory hint, which may be zero.
func (it *Item) Duration() time.Duration {
	if it.DurationHint > 0 {
		return it.DurationHint
	}
	if it.Kind.Timed() {
		return DefaultDuration
	}
	return 0
}

// Validate checks the item invariants.
func (it *Item) Validate() error {
	if it.ID == "" {
		return fmt.Errorf("%w: id is required", ErrInvalidItem)
	}
	if !it.Kind.Valid() {
		return fmt.Errorf("%w: item %s: unknown kind %q", ErrInvalidItem, it.ID, it.Kind)
	}
	hasSource := it.SourceURL != ""
	isText := it.Kind == KindText
	if hasSource == isText {
		if isText {
			return fmt.Errorf("%w: item %s: text items carry no source url", ErrInvalidItem, it.ID)
		}
		return fmt.Errorf("%w: item %s: %s items require a source url", ErrInvalidItem, it.ID, it.Kind)
	}
	if it.DurationHint < 0 {
		return fmt.Errorf("%w: item %s: negative duration hint", ErrInvalidItem, it.ID)
	}
	if it.Author.ID == "" {
		return fmt.Errorf("%w: item %s: author id is required", ErrInvalidItem, it.ID)
	}
	if it.Widget != nil {
		if err := it.Widget.Validate(); err != nil {
			return fmt.Errorf("%w: item %s: %v", ErrInvalidItem, it.ID, err)
		}
	}
	return nil
}

// HasPendingWidget reports whether the item carries a widget that still
// awaits the user's first response.
func (it *Item) HasPendingWidget() bool {
	return it.Widget != nil && !it.Widget.Answered()
}
