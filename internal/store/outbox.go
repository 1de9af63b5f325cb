package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
)

// OutboxEntry is a view record waiting for delivery.
type OutboxEntry struct {
	ID        int64
	Record    collab.ViewRecord
	CreatedAt time.Time
	Attempts  int
	LastError string
}

// EnqueueView appends a view record to the outbox. A second record with the
// same activation id and finality is ignored, so each activation produces at
// most one start and one final record.
func (s *Store) EnqueueView(ctx context.Context, v collab.ViewRecord, at time.Time) error {
	query, args, err := builder.
		Insert("view_outbox").
		Columns("activation_id", "item_id", "final", "watched_seconds", "completion_percent", "loops", "created_at").
		Values(v.ActivationID, v.ItemID, v.Final(), nullFloat(v.WatchedSeconds), nullFloat(v.CompletionPercent), v.Loops, millis(at)).
		Suffix("ON CONFLICT (activation_id, final) DO NOTHING").
		ToSql()
	if err != nil {
		return fmt.Errorf("enqueue view: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("enqueue view: %w", err)
	}
	return nil
}

// PendingViews returns undelivered records in insertion order.
func (s *Store) PendingViews(ctx context.Context, limit int) ([]OutboxEntry, error) {
	b := builder.
		Select("id", "activation_id", "item_id", "watched_seconds", "completion_percent", "loops", "created_at", "attempts", "last_error").
		From("view_outbox").
		Where(sq.Eq{"delivered_at": nil}).
		OrderBy("id ASC")
	if limit > 0 {
		b = b.Limit(uint64(limit))
	}
	query, args, err := b.ToSql()
	if err != nil {
		return nil, fmt.Errorf("pending views: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("pending views: %w", err)
	}
	defer rows.Close()

	entries := []OutboxEntry{}
	for rows.Next() {
		var (
			e         OutboxEntry
			watched   sql.NullFloat64
			pct       sql.NullFloat64
			created   int64
			lastError sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.Record.ActivationID, &e.Record.ItemID, &watched, &pct,
			&e.Record.Loops, &created, &e.Attempts, &lastError); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		if watched.Valid {
			w := watched.Float64
			e.Record.WatchedSeconds = &w
		}
		if pct.Valid {
			p := pct.Float64
			e.Record.CompletionPercent = &p
		}
		e.CreatedAt = fromMillis(created)
		e.LastError = lastError.String
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkDelivered removes an entry from the pending set.
func (s *Store) MarkDelivered(ctx context.Context, id int64, at time.Time) error {
	query, args, err := builder.
		Update("view_outbox").
		Set("delivered_at", millis(at)).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("mark delivered: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	return nil
}

// MarkFailed records a failed delivery attempt.
func (s *Store) MarkFailed(ctx context.Context, id int64, cause error) error {
	query, args, err := builder.
		Update("view_outbox").
		Set("attempts", sq.Expr("attempts + 1")).
		Set("last_error", cause.Error()).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("mark failed: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("mark failed: %w", err)
	}
	return nil
}

// ViewCounts returns the number of pending and delivered records.
func (s *Store) ViewCounts(ctx context.Context) (pending, delivered int, err error) {
	query, args, err := builder.
		Select("COALESCE(SUM(CASE WHEN delivered_at IS NULL THEN 1 ELSE 0 END), 0)",
			"COALESCE(SUM(CASE WHEN delivered_at IS NULL THEN 0 ELSE 1 END), 0)").
		From("view_outbox").
		ToSql()
	if err != nil {
		return 0, 0, fmt.Errorf("view counts: build query: %w", err)
	}
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&pending, &delivered); err != nil {
		return 0, 0, fmt.Errorf("view counts: %w", err)
	}
	return pending, delivered, nil
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}
