package analytics

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
	"github.com/gvarikaa/new-DapDip-sub001/internal/testutil"
)

func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func textItem(id string, hint time.Duration) *media.Item {
	return &media.Item{
		ID:           id,
		Kind:         media.KindText,
		DurationHint: hint,
		Author:       media.AuthorRef{ID: "alice", Username: "alice"},
		CreatedAt:    testutil.Epoch,
	}
}

func TestEmitter_OneViewPerActivation(t *testing.T) {
	clock := testutil.NewFakeClock()
	sink := &MemorySink{}
	em := NewEmitter(sink, WithLogger(quiet()))

	a, b := textItem("a", time.Second), textItem("b", time.Second)
	m := sequencer.New([]*media.Group{{Author: a.Author, Items: []*media.Item{a, b}}},
		sequencer.WithClock(clock),
		sequencer.WithLogger(quiet()),
		sequencer.WithSessionIDs(sequencer.NewFixedGenerator("s")),
		sequencer.WithListener(em),
	)
	require.NoError(t, m.Open(sequencer.Position{}))
	assert.True(t, a.Viewed)
	assert.False(t, b.Viewed)

	testutil.Steps(clock, 2*time.Second, 100*time.Millisecond, func(time.Time) {
		_ = m.Dispatch(sequencer.Tick())
	})

	assert.Equal(t, sequencer.StatusClosed, m.Snapshot().Status)
	assert.True(t, b.Viewed)
	assert.Zero(t, em.Open())

	views := em.Finished()
	require.Len(t, views, 2)
	assert.Equal(t, "a", views[0].ItemID)
	assert.Equal(t, "s-1", views[0].ActivationID)
	assert.InDelta(t, 1.0, views[0].WatchedSeconds, 1e-9)
	assert.InDelta(t, 100.0, views[0].CompletionPercent, 1e-9)
	assert.Equal(t, "s-2", views[1].ActivationID)

	records := sink.Records()
	require.Len(t, records, 4)
	assert.False(t, records[0].Final())
	assert.True(t, records[1].Final())
	assert.Len(t, sink.Finals(), 2)
}

func TestEmitter_PauseDoesNotFinalize(t *testing.T) {
	clock := testutil.NewFakeClock()
	em := NewEmitter(&MemorySink{}, WithLogger(quiet()))

	m := sequencer.Single(textItem("a", 4*time.Second),
		sequencer.WithClock(clock),
		sequencer.WithLogger(quiet()),
		sequencer.WithListener(em),
	)
	require.NoError(t, m.Open(sequencer.Position{}))

	testutil.Steps(clock, time.Second, 100*time.Millisecond, func(time.Time) {
		_ = m.Dispatch(sequencer.Tick())
	})
	require.NoError(t, m.Dispatch(sequencer.Gesture(gesture.IntentPauseToggle)))
	clock.Advance(10 * time.Second)

	assert.Equal(t, 1, em.Open())
	assert.Empty(t, em.Finished())

	require.NoError(t, m.Close())
	views := em.Finished()
	require.Len(t, views, 1)
	assert.InDelta(t, 11.0, views[0].WatchedSeconds, 1e-9)
	assert.InDelta(t, 25.0, views[0].CompletionPercent, 1e-9)
}

func TestEmitter_DuplicateActivationIgnored(t *testing.T) {
	sink := &MemorySink{}
	em := NewEmitter(sink, WithLogger(quiet()))
	item := textItem("a", time.Second)

	act := sequencer.Transition{Kind: sequencer.TransitionActivated, At: testutil.Epoch, ActivationID: "s-1", Item: item}
	em.OnTransition(act)
	em.OnTransition(act)

	deact := sequencer.Transition{Kind: sequencer.TransitionDeactivated, At: testutil.Epoch.Add(time.Second), ActivationID: "s-1", Item: item, Progress: 0.5}
	em.OnTransition(deact)
	em.OnTransition(deact)

	assert.Len(t, sink.Records(), 2)
	assert.Len(t, em.Finished(), 1)
}

func TestEmitter_CloseFinalizesWithLastProgress(t *testing.T) {
	sink := &MemorySink{}
	var finished []media.ViewEvent
	em := NewEmitter(sink, WithLogger(quiet()), OnFinish(func(v media.ViewEvent) {
		finished = append(finished, v)
	}))
	item := textItem("a", 5*time.Second)

	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionActivated, At: testutil.Epoch, ActivationID: "s-1", Item: item})
	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionPaused, At: testutil.Epoch.Add(2 * time.Second), ActivationID: "s-1", Item: item, Progress: 0.4})
	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionClosed, At: testutil.Epoch.Add(3 * time.Second)})

	require.Len(t, finished, 1)
	assert.InDelta(t, 3.0, finished[0].WatchedSeconds, 1e-9)
	assert.InDelta(t, 40.0, finished[0].CompletionPercent, 1e-9)
}

func TestEmitter_LoopsCarriedToFinalRecord(t *testing.T) {
	sink := &MemorySink{}
	em := NewEmitter(sink, WithLogger(quiet()))
	item := textItem("r1", time.Second)

	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionActivated, At: testutil.Epoch, ActivationID: "s-1", Item: item})
	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionLooped, At: testutil.Epoch.Add(time.Second), ActivationID: "s-1", Item: item, Loops: 1})
	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionLooped, At: testutil.Epoch.Add(2 * time.Second), ActivationID: "s-1", Item: item, Loops: 2})
	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionDeactivated, At: testutil.Epoch.Add(2500 * time.Millisecond), ActivationID: "s-1", Item: item, Progress: 0.5, Loops: 2})

	finals := sink.Finals()
	require.Len(t, finals, 1)
	assert.Equal(t, 2, finals[0].Loops)
	assert.InDelta(t, 100.0, *finals[0].CompletionPercent, 1e-9)
	assert.InDelta(t, 2.5, *finals[0].WatchedSeconds, 1e-9)
}

func TestMetrics_CountsViewsAndTransitions(t *testing.T) {
	reg := prometheus.NewRegistry()
	metrics := NewMetrics(reg)
	em := NewEmitter(&MemorySink{}, WithLogger(quiet()), WithMetrics(metrics))
	item := textItem("a", time.Second)

	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionActivated, At: testutil.Epoch, ActivationID: "s-1", Item: item})
	em.OnTransition(sequencer.Transition{Kind: sequencer.TransitionDeactivated, At: testutil.Epoch.Add(time.Second), ActivationID: "s-1", Item: item, Progress: 1})

	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.viewsStarted.WithLabelValues("text")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.transitions.WithLabelValues("activated")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.transitions.WithLabelValues("deactivated")))
	assert.Equal(t, 1, promtest.CollectAndCount(metrics.watchedSeconds))

	metrics.PaginationFetch("reels", "ok")
	metrics.DeliveryFailed("record_view")
	metrics.ResponseSubmitted("acked")
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.pagination.WithLabelValues("reels", "ok")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.deliveryFail.WithLabelValues("record_view")))
	assert.Equal(t, 1.0, promtest.ToFloat64(metrics.responses.WithLabelValues("acked")))
}
