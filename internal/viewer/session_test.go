package viewer

import (
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/gvarikaa/new-DapDip-sub001/internal/analytics"
	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/grouping"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
	"github.com/gvarikaa/new-DapDip-sub001/internal/testutil"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func story(id, author string, offset time.Duration) media.Item {
	return media.Item{
		ID:           id,
		Kind:         media.KindText,
		DurationHint: 5 * time.Second,
		Author:       media.AuthorRef{ID: author, Username: author},
		CreatedAt:    testutil.Epoch.Add(offset),
	}
}

func stories(items ...media.Item) []*media.Item {
	out := make([]*media.Item, len(items))
	for i := range items {
		it := items[i]
		out[i] = &it
	}
	return out
}

type transitions []sequencer.Transition

func (ts *transitions) OnTransition(t sequencer.Transition) { *ts = append(*ts, t) }

func (ts transitions) count(kind sequencer.TransitionKind) int {
	n := 0
	for _, t := range ts {
		if t.Kind == kind {
			n++
		}
	}
	return n
}

type fixture struct {
	s      *Session
	clock  *clockwork.FakeClock
	client *testutil.MockClient
	d      *testutil.ManualDispatcher
	sink   *analytics.MemorySink
	seen   *transitions
}

func setup(t *testing.T, items []*media.Item) *fixture {
	t.Helper()
	f := &fixture{
		clock:  testutil.NewFakeClock(),
		client: &testutil.MockClient{},
		d:      &testutil.ManualDispatcher{},
		sink:   &analytics.MemorySink{},
		seen:   &transitions{},
	}
	f.s = New(grouping.NewIndex(items), Config{
		Client:        f.client,
		Dispatcher:    f.d,
		Clock:         f.clock,
		Logger:        quiet(),
		Sink:          f.sink,
		SessionIDs:    sequencer.NewFixedGenerator("s"),
		Listeners:     []sequencer.Listener{f.seen},
		Width:         300,
		Height:        600,
		PauseOnWidget: true,
	})
	return f
}

func (f *fixture) run(d time.Duration) {
	testutil.Steps(f.clock, d, 100*time.Millisecond, func(time.Time) { f.s.Tick() })
}

func (f *fixture) tap(x float64) {
	p := gesture.Pointer{X: x, Y: 300, At: f.clock.Now()}
	f.s.PointerDown(p)
	f.s.PointerUp(p)
}

// Scenario B: a left-third tap on index 1 goes back to index 0 with fresh
// progress and no completion for index 1.
func TestSession_LeftTapGoesBack(t *testing.T) {
	f := setup(t, stories(
		story("a1", "alice", 0),
		story("a2", "alice", time.Minute),
		story("a3", "alice", 2*time.Minute),
	))
	require.NoError(t, f.s.Open(sequencer.Position{Index: 1}))
	f.run(2 * time.Second)
	require.InDelta(t, 0.4, f.s.Snapshot().Progress, 1e-9)

	f.tap(10)

	snap := f.s.Snapshot()
	assert.Equal(t, sequencer.Position{Index: 0}, snap.Position)
	assert.Equal(t, "a1", snap.ItemID)
	assert.Zero(t, snap.Progress)
	assert.Zero(t, f.seen.count(sequencer.TransitionCompleted))
}

func TestSession_MiddleTapTogglesPause(t *testing.T) {
	f := setup(t, stories(story("a1", "alice", 0)))
	require.NoError(t, f.s.Open(sequencer.Position{}))

	f.tap(150)
	assert.Equal(t, "paused(user)", f.s.Snapshot().State())
	f.run(10 * time.Second)
	assert.Equal(t, "a1", f.s.Snapshot().ItemID)

	f.tap(150)
	assert.Equal(t, sequencer.StatusPlaying, f.s.Snapshot().Status)
}

func TestSession_HoldPausesWithoutNavigating(t *testing.T) {
	f := setup(t, stories(story("a1", "alice", 0), story("a2", "alice", time.Minute)))
	require.NoError(t, f.s.Open(sequencer.Position{}))

	p := gesture.Pointer{X: 280, Y: 300, At: f.clock.Now()}
	f.s.PointerDown(p)
	f.run(300 * time.Millisecond)
	assert.Equal(t, "paused(dragging)", f.s.Snapshot().State())

	f.s.PointerUp(gesture.Pointer{X: 280, Y: 300, At: f.clock.Now()})
	snap := f.s.Snapshot()
	assert.Equal(t, sequencer.StatusPlaying, snap.Status)
	assert.Equal(t, "a1", snap.ItemID)
}

func TestSession_SwipeDownDismissesAndFinalizesView(t *testing.T) {
	f := setup(t, stories(story("a1", "alice", 0)))
	require.NoError(t, f.s.Open(sequencer.Position{}))
	f.run(time.Second)

	f.s.PointerDown(gesture.Pointer{X: 150, Y: 100, At: f.clock.Now()})
	f.s.PointerUp(gesture.Pointer{X: 150, Y: 300, At: f.clock.Now()})

	assert.Equal(t, sequencer.StatusClosed, f.s.Snapshot().Status)
	finals := f.sink.Finals()
	require.Len(t, finals, 1)
	assert.InDelta(t, 1.0, *finals[0].WatchedSeconds, 1e-9)
	assert.InDelta(t, 20.0, *finals[0].CompletionPercent, 1e-9)
}

func TestSession_OpenAuthorStartsAtFirstUnseen(t *testing.T) {
	items := stories(
		story("a1", "alice", 0),
		story("b1", "bob", time.Minute),
		story("b2", "bob", 2*time.Minute),
	)
	items[1].Viewed = true
	f := setup(t, items)

	assert.ErrorIs(t, f.s.OpenAuthor("carol"), ErrUnknownAuthor)
	require.NoError(t, f.s.OpenAuthor("bob"))
	assert.Equal(t, sequencer.Position{Group: 1, Index: 1}, f.s.Snapshot().Position)
	assert.False(t, f.s.Index().HasUnseen("bob"))
	assert.True(t, f.s.Index().HasUnseen("alice"))
}

func TestSession_LastAuthorLoadsNextPage(t *testing.T) {
	f := setup(t, stories(story("a1", "alice", 0), story("b1", "bob", time.Minute)))
	f.s.SetCursor("c1")
	f.client.On("FetchStoryFeed", mock.Anything, collab.StoryFilter{Cursor: "c1"}).
		Return(collab.Page{Items: []media.Item{story("c1", "carol", 2*time.Minute)}}, nil).Once()

	require.NoError(t, f.s.Open(sequencer.Position{}))
	assert.Zero(t, f.s.Pager().Fetches())

	f.s.Intent(gesture.IntentNext)
	assert.Equal(t, 1, f.s.Pager().Fetches())
	assert.False(t, f.s.Machine().HasNext())

	f.d.Drain()
	assert.True(t, f.s.Machine().HasNext())
	snap := f.s.Snapshot()
	assert.Equal(t, "b1", snap.ItemID)
	assert.Equal(t, 3, snap.Groups)
	assert.Equal(t, 1, f.seen.count(sequencer.TransitionReplaced))

	// The current item keeps its activation and finishes into the new author.
	f.run(5 * time.Second)
	snap = f.s.Snapshot()
	assert.Equal(t, "c1", snap.ItemID)
	assert.Equal(t, sequencer.Position{Group: 2}, snap.Position)
	assert.Equal(t, 1, f.s.Pager().Fetches())
	f.client.AssertExpectations(t)
}

func TestSession_PaginationFailureKeepsPlaying(t *testing.T) {
	f := setup(t, stories(story("a1", "alice", 0), story("a2", "alice", time.Minute)))
	f.s.SetCursor("c1")
	f.client.On("FetchStoryFeed", mock.Anything, mock.Anything).Return(collab.Page{}, errors.New("offline"))

	require.NoError(t, f.s.Open(sequencer.Position{}))
	assert.Equal(t, 1, f.s.Pager().Fetches())
	f.d.Drain()

	assert.EqualError(t, f.s.Notice(), "offline")
	assert.False(t, f.s.Pager().InFlight())
	f.run(5 * time.Second)
	assert.Equal(t, "a2", f.s.Snapshot().ItemID)
}

func TestSession_WidgetItemPausesUntilAnswered(t *testing.T) {
	poll := story("a1", "alice", 0)
	poll.Widget = &media.Widget{ID: "w1", Kind: media.WidgetSlider, Prompt: "how much?", Min: 0, Max: 10}
	f := setup(t, stories(poll, story("a2", "alice", time.Minute)))
	f.client.On("SubmitInteractiveResponse", mock.Anything, "w1", "7").Return(collab.SubmitResult{}, nil)

	require.NoError(t, f.s.Open(sequencer.Position{}))
	assert.Equal(t, "paused(overlay)", f.s.Snapshot().State())

	// Dragging the slider adds a pause reason without resuming anything.
	f.s.PointerDown(gesture.Pointer{X: 150, Y: 400, At: f.clock.Now(), OnOverlay: true})
	f.s.PointerUp(gesture.Pointer{X: 200, Y: 400, At: f.clock.Now(), OnOverlay: true})
	assert.Equal(t, "paused(overlay)", f.s.Snapshot().State())

	require.NoError(t, f.s.Overlay().Submit("7"))
	f.d.Drain()
	assert.Equal(t, sequencer.StatusPlaying, f.s.Snapshot().Status)

	f.run(5 * time.Second)
	assert.Equal(t, "a2", f.s.Snapshot().ItemID)
}

func TestSession_PageMergedAfterActivationIsDelivered(t *testing.T) {
	client := &testutil.MockClient{}
	client.On("FetchStoryFeed", mock.Anything, collab.StoryFilter{Cursor: "c1"}).
		Return(collab.Page{Items: []media.Item{story("b1", "bob", time.Minute)}}, nil).Once()
	seen := &transitions{}
	s := New(grouping.NewIndex(stories(story("a1", "alice", 0))), Config{
		Client:     client,
		Dispatcher: testutil.Sync{},
		Clock:      testutil.NewFakeClock(),
		Logger:     quiet(),
		Sink:       &analytics.MemorySink{},
		SessionIDs: sequencer.NewFixedGenerator("s"),
		Listeners:  []sequencer.Listener{seen},
	})
	s.SetCursor("c1")

	require.NoError(t, s.Open(sequencer.Position{}))
	require.Len(t, *seen, 2)
	assert.Equal(t, sequencer.TransitionActivated, (*seen)[0].Kind)
	assert.Equal(t, sequencer.TransitionReplaced, (*seen)[1].Kind)
	assert.Equal(t, 2, s.Snapshot().Groups)
	assert.True(t, s.Machine().HasNext())
	client.AssertExpectations(t)
}
