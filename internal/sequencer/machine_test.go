package sequencer

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
)

func threeTextItems() []*media.Group {
	return []*media.Group{group("ana",
		textItem("s1", "ana", 5*time.Second),
		textItem("s2", "ana", 5*time.Second),
		textItem("s3", "ana", 5*time.Second),
	)}
}

func TestMachine_OpenValidation(t *testing.T) {
	m, _, _ := newMachine(t, nil)
	err := m.Open(Position{})
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeEmptySequence, se.Code)

	m, _, _ = newMachine(t, threeTextItems())
	err = m.Open(Position{Index: 3})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeInvalidPosition, se.Code)

	require.NoError(t, m.Open(Position{Index: 1}))
	assert.Equal(t, "s2", m.Snapshot().ItemID)
	assert.Equal(t, StatusPlaying, m.Snapshot().Status)

	err = m.Open(Position{})
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeAlreadyOpen, se.Code)
}

func TestMachine_EventsBeforeOpenAreRejected(t *testing.T) {
	m, _, _ := newMachine(t, threeTextItems())
	err := m.Dispatch(Tick())
	assert.True(t, IsClosed(err))
	assert.NoError(t, m.Close(), "closing an idle machine is a no-op")
}

// Scenario A: three 5s text items advance at 5s boundaries and close.
func TestMachine_AutoAdvanceTextGroup(t *testing.T) {
	m, clock, rec := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))

	run(m, clock, 16*time.Second)

	activated := rec.of(TransitionActivated)
	require.Len(t, activated, 3)
	for i, tr := range activated {
		assert.Equal(t, i, tr.Stamp.Position.Index)
		assert.Equal(t, t0.Add(time.Duration(i)*5*time.Second), tr.At, "activation %d on the 5s boundary", i)
	}

	closed := rec.of(TransitionClosed)
	require.Len(t, closed, 1)
	assert.Equal(t, t0.Add(15*time.Second), closed[0].At)
	assert.Equal(t, CauseEnd, closed[0].Cause)
	assert.Equal(t, StatusClosed, m.Snapshot().Status)
	assert.Equal(t, 3, rec.count(TransitionCompleted))
}

// Scenario B: tapping the left third on index 1 goes back without completing.
func TestMachine_PreviousResetsProgress(t *testing.T) {
	m, clock, rec := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))
	run(m, clock, 5*time.Second)
	run(m, clock, 2*time.Second)

	snap := m.Snapshot()
	require.Equal(t, 1, snap.Position.Index)
	require.InDelta(t, 0.4, snap.Progress, 1e-9)

	router := gesture.NewRouter(gesture.Config{}, 300, 600)
	router.Down(gesture.Pointer{X: 20, Y: 300, At: clock.Now()})
	intent := router.Up(gesture.Pointer{X: 20, Y: 300, At: clock.Now()})
	require.NoError(t, m.Dispatch(Gesture(intent)))

	snap = m.Snapshot()
	assert.Equal(t, 0, snap.Position.Index)
	assert.Equal(t, 0.0, snap.Progress)
	assert.Equal(t, StatusPlaying, snap.Status)

	for _, tr := range rec.of(TransitionCompleted) {
		assert.NotEqual(t, 1, tr.Stamp.Position.Index, "no completion for index 1")
	}
	deact := rec.of(TransitionDeactivated)
	require.NotEmpty(t, deact)
	assert.Equal(t, CauseGesture, deact[len(deact)-1].Cause)
}

// Scenario C: an open poll holds the sequence even at 100%.
func TestMachine_OverlayBlocksCompletion(t *testing.T) {
	poll := textItem("p1", "ana", 5*time.Second)
	poll.Widget = &media.Widget{ID: "w1", Kind: media.WidgetPoll, Options: []string{"a", "b"}}
	m, clock, rec := newMachine(t, []*media.Group{group("ana", poll, textItem("s2", "ana", 0))})
	require.NoError(t, m.Open(Position{}))

	run(m, clock, 4900*time.Millisecond)
	_, stamp := m.Current()
	require.NoError(t, m.Dispatch(Overlay(stamp, true)))

	snap := m.Snapshot()
	assert.Equal(t, "paused(overlay)", snap.State())
	assert.True(t, snap.OverlayOpen)

	run(m, clock, 10*time.Second)
	require.NoError(t, m.Dispatch(Complete(stamp, CauseTimer)), "simultaneous 100% report")

	snap = m.Snapshot()
	assert.Equal(t, "p1", snap.ItemID)
	assert.Equal(t, 0, rec.count(TransitionCompleted))
	assert.Equal(t, 1, rec.count(TransitionDeferred))

	require.NoError(t, m.Dispatch(Overlay(stamp, false)))
	snap = m.Snapshot()
	assert.Equal(t, "s2", snap.ItemID)
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, 1, rec.count(TransitionCompleted))
}

// Scenario E: "ended" before metadata is an immediate completion.
func TestMachine_VideoEndedBeforeLoaded(t *testing.T) {
	sims := playback.NewSimFactory()
	m, _, rec := newMachine(t,
		[]*media.Group{group("ana", videoItem("v1", "ana"), textItem("s2", "ana", 0))},
		WithPlayback(sims))
	require.NoError(t, m.Open(Position{}))

	sim := sims.Get("v1")
	require.NotNil(t, sim)
	assert.True(t, sim.Playing())

	sim.End()

	assert.Equal(t, "s2", m.Snapshot().ItemID)
	assert.Equal(t, 0, rec.count(TransitionMediaFailed))
	completed := rec.of(TransitionCompleted)
	require.Len(t, completed, 1)
	assert.Equal(t, CauseEnded, completed[0].Cause)
	assert.True(t, sim.Closed(), "adapter detached on deactivation")
}

func TestMachine_VideoProgressFollowsAdapter(t *testing.T) {
	sims := playback.NewSimFactory()
	m, clock, _ := newMachine(t, []*media.Group{group("ana", videoItem("v1", "ana"))}, WithPlayback(sims))
	require.NoError(t, m.Open(Position{}))
	sim := sims.Get("v1")

	run(m, clock, 3*time.Second)
	assert.Equal(t, 0.0, m.Snapshot().Progress, "held at zero before metadata and the timer does not run")

	sim.Advance(time.Second)
	assert.Equal(t, 0.0, m.Snapshot().Progress)

	sim.Load(10 * time.Second)
	sim.Advance(time.Second)
	assert.InDelta(t, 0.2, m.Snapshot().Progress, 1e-9)

	sim.Advance(8 * time.Second)
	assert.Equal(t, StatusClosed, m.Snapshot().Status)
}

func TestMachine_MediaErrorSkips(t *testing.T) {
	sims := playback.NewSimFactory()
	m, _, rec := newMachine(t,
		[]*media.Group{group("ana", videoItem("v1", "ana"), textItem("s2", "ana", 0))},
		WithPlayback(sims))
	require.NoError(t, m.Open(Position{}))

	sims.Get("v1").Fail(errors.New("404"))

	assert.Equal(t, "s2", m.Snapshot().ItemID)
	failed := rec.of(TransitionMediaFailed)
	require.Len(t, failed, 1)
	assert.True(t, IsMediaFailed(failed[0].Err))
}

func TestMachine_NoPlaybackFactorySkipsVideo(t *testing.T) {
	m, _, rec := newMachine(t, []*media.Group{group("ana", videoItem("v1", "ana"), textItem("s2", "ana", 0))})
	require.NoError(t, m.Open(Position{}))
	assert.Equal(t, "s2", m.Snapshot().ItemID)
	assert.Equal(t, 1, rec.count(TransitionMediaFailed))
}

func TestMachine_AutoplayBlockedPausesForUser(t *testing.T) {
	sims := playback.NewSimFactory()
	sims.BlockAutoplay = true
	m, _, rec := newMachine(t, []*media.Group{group("ana", videoItem("v1", "ana"))}, WithPlayback(sims))
	require.NoError(t, m.Open(Position{}))

	assert.Equal(t, "paused(user)", m.Snapshot().State())
	paused := rec.of(TransitionPaused)
	require.Len(t, paused, 1)
	assert.Equal(t, CauseAutoplay, paused[0].Cause)

	// Still blocked: the manual play affordance keeps the machine paused.
	require.NoError(t, m.Dispatch(Gesture(gesture.IntentPauseToggle)))
	assert.Equal(t, "paused(user)", m.Snapshot().State())

	sims.Get("v1").Unblock()
	require.NoError(t, m.Dispatch(Gesture(gesture.IntentPauseToggle)))
	assert.Equal(t, StatusPlaying, m.Snapshot().Status)
	assert.True(t, sims.Get("v1").Playing())
}

func TestMachine_MediaErrorWhileAutoplayBlockedSkips(t *testing.T) {
	sims := playback.NewSimFactory()
	sims.BlockAutoplay = true
	m, clock, rec := newMachine(t,
		[]*media.Group{group("ana", videoItem("v1", "ana"), textItem("t2", "ana", 5*time.Second))},
		WithPlayback(sims))
	require.NoError(t, m.Open(Position{}))
	require.Equal(t, "paused(user)", m.Snapshot().State())

	sims.Get("v1").Fail(errors.New("404"))
	assert.Equal(t, "t2", m.Snapshot().ItemID)
	assert.Equal(t, StatusPlaying, m.Snapshot().Status)
	assert.Equal(t, 1, rec.count(TransitionMediaFailed))
	assert.Zero(t, rec.count(TransitionDeferred))

	run(m, clock, 6*time.Second)
	assert.Equal(t, StatusClosed, m.Snapshot().Status)
}

func TestMachine_MutePreferencePersistsAcrossItems(t *testing.T) {
	sims := playback.NewSimFactory()
	m, _, _ := newMachine(t,
		[]*media.Group{group("ana", videoItem("v1", "ana"), videoItem("v2", "ana"))},
		WithPlayback(sims), WithMuted(false))
	require.NoError(t, m.Open(Position{}))
	assert.False(t, sims.Get("v1").Muted())

	require.NoError(t, m.Dispatch(Mute(true)))
	assert.True(t, sims.Get("v1").Muted())

	require.NoError(t, m.Dispatch(Gesture(gesture.IntentNext)))
	assert.True(t, sims.Get("v2").Muted())
	assert.True(t, m.Muted())
}

func TestMachine_DuplicateCompletionAdvancesOnce(t *testing.T) {
	m, _, rec := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))
	_, stamp := m.Current()

	require.NoError(t, m.Dispatch(Complete(stamp, CauseTimer)))
	err := m.Dispatch(Complete(stamp, CauseEnded))
	assert.True(t, IsStale(err))

	assert.Equal(t, 1, m.Snapshot().Position.Index)
	assert.Equal(t, 1, rec.count(TransitionCompleted))
}

func TestMachine_StaleMediaEventIgnored(t *testing.T) {
	sims := playback.NewSimFactory()
	m, _, _ := newMachine(t,
		[]*media.Group{group("ana", videoItem("v1", "ana"), videoItem("v2", "ana"))},
		WithPlayback(sims))
	require.NoError(t, m.Open(Position{}))
	_, old := m.Current()

	require.NoError(t, m.Dispatch(Gesture(gesture.IntentNext)))
	err := m.Dispatch(Media(old, playback.Event{Kind: playback.EventEnded}))
	assert.True(t, IsStale(err))
	assert.Equal(t, "v2", m.Snapshot().ItemID)
}

func TestMachine_GroupNavigation(t *testing.T) {
	groups := []*media.Group{
		group("ana", textItem("a1", "ana", 0), textItem("a2", "ana", 0)),
		group("bob", textItem("b1", "bob", 0), textItem("b2", "bob", 0)),
	}

	t.Run("forward across groups then close", func(t *testing.T) {
		m, _, rec := newMachine(t, groups)
		require.NoError(t, m.Open(Position{Index: 1}))
		require.NoError(t, m.Dispatch(Gesture(gesture.IntentNext)))
		assert.Equal(t, Position{Group: 1, Index: 0}, m.Snapshot().Position)
		require.NoError(t, m.Dispatch(Gesture(gesture.IntentNext)))
		require.NoError(t, m.Dispatch(Gesture(gesture.IntentNext)))
		assert.Equal(t, StatusClosed, m.Snapshot().Status)
		assert.Equal(t, 1, rec.count(TransitionClosed))
	})

	t.Run("backward enters previous group at its start", func(t *testing.T) {
		m, _, _ := newMachine(t, groups)
		require.NoError(t, m.Open(Position{Group: 1}))
		require.NoError(t, m.Dispatch(Gesture(gesture.IntentPrevious)))
		assert.Equal(t, Position{Group: 0, Index: 0}, m.Snapshot().Position)
	})

	t.Run("backward at the very start closes", func(t *testing.T) {
		m, _, rec := newMachine(t, groups)
		require.NoError(t, m.Open(Position{}))
		require.NoError(t, m.Dispatch(Gesture(gesture.IntentPrevious)))
		assert.Equal(t, StatusClosed, m.Snapshot().Status)
		closed := rec.of(TransitionClosed)
		require.Len(t, closed, 1)
		assert.Equal(t, CauseGesture, closed[0].Cause)
	})
}

func TestMachine_PauseReasonSet(t *testing.T) {
	m, clock, rec := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))
	_, stamp := m.Current()

	require.NoError(t, m.Dispatch(Gesture(gesture.IntentHoldStart)))
	assert.Equal(t, "paused(dragging)", m.Snapshot().State())

	require.NoError(t, m.Dispatch(Overlay(stamp, true)))
	assert.Equal(t, "paused(overlay)", m.Snapshot().State())

	require.NoError(t, m.Dispatch(Gesture(gesture.IntentHoldEnd)))
	assert.Equal(t, "paused(overlay)", m.Snapshot().State(), "overlay still holds")

	// A middle tap while paused by the overlay does nothing.
	require.NoError(t, m.Dispatch(Gesture(gesture.IntentPauseToggle)))
	assert.Equal(t, "paused(overlay)", m.Snapshot().State())

	run(m, clock, time.Second)
	assert.Equal(t, 0.0, m.Snapshot().Progress)

	require.NoError(t, m.Dispatch(Overlay(stamp, false)))
	assert.Equal(t, StatusPlaying, m.Snapshot().Status)
	assert.Equal(t, 1, rec.count(TransitionResumed))
}

func TestMachine_UserPauseResumeKeepsProgress(t *testing.T) {
	m, clock, _ := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))
	run(m, clock, 2*time.Second)

	require.NoError(t, m.Dispatch(Gesture(gesture.IntentPauseToggle)))
	before := m.Snapshot().Progress
	run(m, clock, 3*time.Second)
	assert.Equal(t, before, m.Snapshot().Progress)

	require.NoError(t, m.Dispatch(Gesture(gesture.IntentPauseToggle)))
	run(m, clock, 500*time.Millisecond)
	assert.InDelta(t, 0.5, m.Snapshot().Progress, 1e-9)
}

func TestMachine_NavigationWhilePausedClearsReasons(t *testing.T) {
	m, _, _ := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))
	_, stamp := m.Current()
	require.NoError(t, m.Dispatch(Overlay(stamp, true)))

	require.NoError(t, m.Dispatch(Gesture(gesture.IntentNext)))
	snap := m.Snapshot()
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.False(t, snap.OverlayOpen)

	// Closing the overlay of the old item is stale and does not resume anything.
	assert.True(t, IsStale(m.Dispatch(Overlay(stamp, false))))
}

func TestMachine_LoopingItem(t *testing.T) {
	rec := &recorder{}
	m, clock, _ := newMachine(t, nil)
	m = Single(textItem("r1", "ana", 5*time.Second),
		WithClock(clock), WithLogger(quietLogger()), WithLoop(true), WithListener(rec),
		WithSessionIDs(NewFixedGenerator("s")))
	require.NoError(t, m.Open(Position{}))
	gen := m.Snapshot().Gen

	run(m, clock, 12*time.Second)

	snap := m.Snapshot()
	assert.Equal(t, StatusPlaying, snap.Status)
	assert.Equal(t, gen, snap.Gen, "one activation across loops")
	assert.Equal(t, 2, snap.Loops)
	assert.Equal(t, 2, rec.count(TransitionLooped))
	assert.Equal(t, 1, rec.count(TransitionActivated))

	require.NoError(t, m.Close())
	deact := rec.of(TransitionDeactivated)
	require.Len(t, deact, 1)
	assert.Equal(t, 2, deact[0].Loops)
}

func TestMachine_CloseFinalizes(t *testing.T) {
	m, clock, rec := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))
	run(m, clock, time.Second)

	require.NoError(t, m.Close())
	assert.Equal(t, []string{"activated 0/0", "deactivated 0/0", "closed 0/0"}, rec.lines())
	assert.NoError(t, m.Close(), "second close is a no-op")
	assert.True(t, IsClosed(m.Dispatch(Tick())))
}

func TestMachine_ListenerFollowUpIsQueued(t *testing.T) {
	poll := textItem("p1", "ana", 0)
	poll.Widget = &media.Widget{ID: "w1", Kind: media.WidgetQuestion}
	var m *Machine
	opener := ListenerFunc(func(tr Transition) {
		if tr.Kind == TransitionActivated && tr.Item.HasPendingWidget() {
			require.NoError(t, m.Dispatch(Overlay(tr.Stamp, true)))
			// Not applied yet: the activation is still being delivered.
			assert.False(t, m.Snapshot().OverlayOpen)
		}
	})
	m, _, _ = newMachine(t, []*media.Group{group("ana", poll)}, WithListener(opener))
	require.NoError(t, m.Open(Position{}))
	assert.Equal(t, "paused(overlay)", m.Snapshot().State())
}

func TestMachine_Jump(t *testing.T) {
	m, _, _ := newMachine(t, threeTextItems())
	require.NoError(t, m.Open(Position{}))
	require.NoError(t, m.Dispatch(Jump(Position{Index: 2})))
	assert.Equal(t, "s3", m.Snapshot().ItemID)

	err := m.Dispatch(Jump(Position{Group: 4}))
	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeInvalidPosition, se.Code)
}

func TestMachine_ReplaceKeepsActivation(t *testing.T) {
	a1 := textItem("a1", "ana", 0)
	m, clock, _ := newMachine(t, []*media.Group{group("ana", a1)})
	require.NoError(t, m.Open(Position{}))
	run(m, clock, time.Second)
	before := m.Snapshot()

	require.NoError(t, m.Replace([]*media.Group{
		group("zed", textItem("z1", "zed", 0)),
		group("ana", a1, textItem("a2", "ana", 0)),
	}))
	after := m.Snapshot()
	assert.Equal(t, Position{Group: 1, Index: 0}, after.Position)
	assert.Equal(t, before.Gen, after.Gen)
	assert.Equal(t, before.Progress, after.Progress)
	assert.True(t, m.HasNext())

	_, stamp := m.Current()
	require.NoError(t, m.Dispatch(Complete(stamp, CauseTimer)))
	assert.Equal(t, "a2", m.Snapshot().ItemID)

	err := m.Replace([]*media.Group{group("zed", textItem("z1", "zed", 0))})
	assert.Error(t, err, "active item missing from new playlist")
}

func TestMachine_ReplaceFromListenerRunsAfterDelivery(t *testing.T) {
	a1 := textItem("a1", "ana", 0)
	m, _, rec := newMachine(t, []*media.Group{group("ana", a1)})
	var after []TransitionKind
	m.Subscribe(ListenerFunc(func(tr Transition) {
		if tr.Kind == TransitionActivated {
			require.NoError(t, m.Replace([]*media.Group{group("ana", a1), group("zed", textItem("z1", "zed", 0))}))
		}
	}))
	m.Subscribe(ListenerFunc(func(tr Transition) { after = append(after, tr.Kind) }))

	require.NoError(t, m.Open(Position{}))
	assert.Equal(t, []TransitionKind{TransitionActivated, TransitionReplaced}, after)
	assert.Equal(t, 1, rec.count(TransitionReplaced))
	assert.True(t, m.HasNext())
}
