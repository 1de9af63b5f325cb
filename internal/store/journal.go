package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

// ResponseStatus tracks an interactive response through its round trip.
type ResponseStatus string

const (
	ResponsePending  ResponseStatus = "pending"
	ResponseAcked    ResponseStatus = "acked"
	ResponseReverted ResponseStatus = "reverted"
)

// SaveResponse upserts the local response for a widget.
func (s *Store) SaveResponse(ctx context.Context, itemID string, r media.InteractiveResponse, status ResponseStatus) error {
	query, args, err := builder.
		Insert("responses").
		Columns("widget_id", "item_id", "value", "submitted_at", "status").
		Values(r.WidgetID, itemID, r.Value, millis(r.SubmittedAt), string(status)).
		Suffix("ON CONFLICT (widget_id) DO UPDATE SET value = excluded.value, submitted_at = excluded.submitted_at, status = excluded.status").
		ToSql()
	if err != nil {
		return fmt.Errorf("save response: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save response: %w", err)
	}
	return nil
}

// Response returns the stored response for a widget. The bool is false when
// none exists.
func (s *Store) Response(ctx context.Context, widgetID string) (media.InteractiveResponse, ResponseStatus, bool, error) {
	query, args, err := builder.
		Select("value", "submitted_at", "status").
		From("responses").
		Where(sq.Eq{"widget_id": widgetID}).
		ToSql()
	if err != nil {
		return media.InteractiveResponse{}, "", false, fmt.Errorf("response: build query: %w", err)
	}

	var (
		r      = media.InteractiveResponse{WidgetID: widgetID}
		at     int64
		status string
	)
	err = s.db.QueryRowContext(ctx, query, args...).Scan(&r.Value, &at, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return media.InteractiveResponse{}, "", false, nil
	}
	if err != nil {
		return media.InteractiveResponse{}, "", false, fmt.Errorf("response: %w", err)
	}
	r.SubmittedAt = fromMillis(at)
	return r, ResponseStatus(status), true, nil
}

// SaveReaction upserts the local reaction state.
func (s *Store) SaveReaction(ctx context.Context, r media.Reaction, at time.Time) error {
	query, args, err := builder.
		Insert("reactions").
		Columns("item_id", "emoji", "active", "updated_at").
		Values(r.ItemID, r.Emoji, r.Active, millis(at)).
		Suffix("ON CONFLICT (item_id, emoji) DO UPDATE SET active = excluded.active, updated_at = excluded.updated_at").
		ToSql()
	if err != nil {
		return fmt.Errorf("save reaction: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("save reaction: %w", err)
	}
	return nil
}

// Reactions returns the active reactions on an item ordered by emoji.
func (s *Store) Reactions(ctx context.Context, itemID string) ([]media.Reaction, error) {
	query, args, err := builder.
		Select("emoji").
		From("reactions").
		Where(sq.Eq{"item_id": itemID, "active": true}).
		OrderBy("emoji ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("reactions: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("reactions: %w", err)
	}
	defer rows.Close()

	out := []media.Reaction{}
	for rows.Next() {
		r := media.Reaction{ItemID: itemID, Active: true}
		if err := rows.Scan(&r.Emoji); err != nil {
			return nil, fmt.Errorf("scan reaction: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reactions: %w", err)
	}
	return out, nil
}
