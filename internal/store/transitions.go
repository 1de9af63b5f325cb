package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"

	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
)

// TransitionRecord is one logged sequencer transition.
type TransitionRecord struct {
	Seq      int64
	Session  string
	Kind     string
	Gen      int64
	Group    int
	Index    int
	ItemID   string
	Cause    string
	Reason   string
	Progress float64
	Loops    int
	At       time.Time
}

// RecordFromTransition flattens a sequencer transition.
func RecordFromTransition(session string, t sequencer.Transition) TransitionRecord {
	r := TransitionRecord{
		Session:  session,
		Kind:     string(t.Kind),
		Gen:      t.Stamp.Gen,
		Group:    t.Stamp.Position.Group,
		Index:    t.Stamp.Position.Index,
		Cause:    string(t.Cause),
		Reason:   t.Reason.String(),
		Progress: t.Progress,
		Loops:    t.Loops,
		At:       t.At,
	}
	if t.Item != nil {
		r.ItemID = t.Item.ID
	}
	return r
}

// AppendTransition writes one record. Seq is assigned by the database.
func (s *Store) AppendTransition(ctx context.Context, r TransitionRecord) error {
	query, args, err := builder.
		Insert("transitions").
		Columns("session", "kind", "gen", "grp", "idx", "item_id", "cause", "reason", "progress", "loops", "at").
		Values(r.Session, r.Kind, r.Gen, r.Group, r.Index, r.ItemID, r.Cause, r.Reason, r.Progress, r.Loops, millis(r.At)).
		ToSql()
	if err != nil {
		return fmt.Errorf("append transition: build query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("append transition: %w", err)
	}
	return nil
}

// Transitions returns a session's log in seq order.
func (s *Store) Transitions(ctx context.Context, session string) ([]TransitionRecord, error) {
	query, args, err := builder.
		Select("seq", "session", "kind", "gen", "grp", "idx", "item_id", "cause", "reason", "progress", "loops", "at").
		From("transitions").
		Where(sq.Eq{"session": session}).
		OrderBy("seq ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("transitions: build query: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("transitions: %w", err)
	}
	defer rows.Close()

	out := []TransitionRecord{}
	for rows.Next() {
		var (
			r  TransitionRecord
			at int64
		)
		if err := rows.Scan(&r.Seq, &r.Session, &r.Kind, &r.Gen, &r.Group, &r.Index, &r.ItemID,
			&r.Cause, &r.Reason, &r.Progress, &r.Loops, &at); err != nil {
			return nil, fmt.Errorf("scan transition: %w", err)
		}
		r.At = fromMillis(at)
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transitions: %w", err)
	}
	return out, nil
}

// Sessions lists logged sessions in order of first appearance.
func (s *Store) Sessions(ctx context.Context) ([]string, error) {
	query, args, err := builder.
		Select("session").
		From("transitions").
		GroupBy("session").
		OrderBy("MIN(seq) ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sessions: build query: %w", err)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sessions: %w", err)
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// TransitionLog is a sequencer listener that appends every transition to
// the store. Write failures are reported to onError and never block the
// sequencer.
type TransitionLog struct {
	store   *Store
	session string
	onError func(error)
}

func NewTransitionLog(s *Store, session string, onError func(error)) *TransitionLog {
	return &TransitionLog{store: s, session: session, onError: onError}
}

func (l *TransitionLog) OnTransition(t sequencer.Transition) {
	if err := l.store.AppendTransition(context.Background(), RecordFromTransition(l.session, t)); err != nil && l.onError != nil {
		l.onError(err)
	}
}
