// Package collab defines the network operations the engine consumes and an
// HTTP implementation of them.
package collab

import (
	"context"
	"errors"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

// ErrNotFound is returned when the target item or widget does not exist.
var ErrNotFound = errors.New("not found")

// StoryFilter selects a page of the story feed.
type StoryFilter struct {
	Cursor string `json:"cursor,omitempty"`
	// AuthorID restricts the page to one author when set.
	AuthorID string `json:"author_id,omitempty"`
	Limit    int    `json:"limit,omitempty"`
}

// Page is one page of a paginated feed. An empty NextCursor marks the end.
type Page struct {
	Items      []media.Item `json:"items"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

// ViewRecord is sent once on activation (no duration) and once on
// deactivation (with duration and completion).
type ViewRecord struct {
	ItemID            string   `json:"item_id"`
	ActivationID      string   `json:"activation_id"`
	WatchedSeconds    *float64 `json:"watched_seconds,omitempty"`
	CompletionPercent *float64 `json:"completion_percent,omitempty"`
	Loops             int      `json:"loops,omitempty"`
}

// Final reports whether the record closes a view.
func (v ViewRecord) Final() bool {
	return v.WatchedSeconds != nil
}

// SubmitResult carries updated aggregate results when the server has them.
type SubmitResult struct {
	Aggregate *media.Aggregate `json:"aggregate,omitempty"`
}

// Client is the request/response surface of the host application.
type Client interface {
	FetchStoryFeed(ctx context.Context, filter StoryFilter) (Page, error)
	FetchReelFeed(ctx context.Context, cursor string) (Page, error)
	RecordView(ctx context.Context, v ViewRecord) error
	SubmitInteractiveResponse(ctx context.Context, widgetID, value string) (SubmitResult, error)
	ToggleReaction(ctx context.Context, itemID, emoji string) error
}
