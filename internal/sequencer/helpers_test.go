package sequencer

import (
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

const tickEvery = 100 * time.Millisecond

type recorder struct {
	ts []Transition
}

func (r *recorder) OnTransition(t Transition) { r.ts = append(r.ts, t) }

func (r *recorder) count(kind TransitionKind) int {
	n := 0
	for _, t := range r.ts {
		if t.Kind == kind {
			n++
		}
	}
	return n
}

func (r *recorder) of(kind TransitionKind) []Transition {
	var out []Transition
	for _, t := range r.ts {
		if t.Kind == kind {
			out = append(out, t)
		}
	}
	return out
}

// lines renders "kind pos" for order assertions.
func (r *recorder) lines() []string {
	out := make([]string, len(r.ts))
	for i, t := range r.ts {
		out[i] = fmt.Sprintf("%s %s", t.Kind, t.Stamp.Position)
	}
	return out
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func textItem(id, author string, hint time.Duration) *media.Item {
	return &media.Item{
		ID:           id,
		Kind:         media.KindText,
		DurationHint: hint,
		Author:       media.AuthorRef{ID: author, Username: author},
		CreatedAt:    t0,
	}
}

func videoItem(id, author string) *media.Item {
	return &media.Item{
		ID:        id,
		Kind:      media.KindVideo,
		SourceURL: "https://cdn.example/" + id + ".mp4",
		Author:    media.AuthorRef{ID: author, Username: author},
		CreatedAt: t0,
	}
}

func group(author string, items ...*media.Item) *media.Group {
	return &media.Group{Author: media.AuthorRef{ID: author, Username: author}, Items: items}
}

func newMachine(t *testing.T, groups []*media.Group, opts ...Option) (*Machine, *clockwork.FakeClock, *recorder) {
	t.Helper()
	clock := clockwork.NewFakeClockAt(t0)
	rec := &recorder{}
	base := []Option{
		WithClock(clock),
		WithLogger(quietLogger()),
		WithSessionIDs(NewFixedGenerator("s")),
		WithListener(rec),
	}
	m := New(groups, append(base, opts...)...)
	return m, clock, rec
}

// run ticks the machine every 100ms for d. Errors from a closed machine are
// ignored.
func run(m *Machine, clock *clockwork.FakeClock, d time.Duration) {
	for elapsed := time.Duration(0); elapsed < d; elapsed += tickEvery {
		clock.Advance(tickEvery)
		_ = m.Dispatch(Tick())
	}
}
