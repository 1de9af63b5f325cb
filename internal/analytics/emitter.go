package analytics

import (
	"log/slog"
	"sort"
	"time"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
)

// Sink receives view records. Deliver runs on the writer goroutine and must
// not block on the network.
type Sink interface {
	Deliver(rec collab.ViewRecord, at time.Time)
}

type openView struct {
	event    *media.ViewEvent
	kind     media.Kind
	progress float64
}

// Emitter is a sequencer listener that opens a ViewEvent on activation and
// finalizes it on deactivation.
//
// Each activation id opens at most one view and finalizes it at most once.
// Pausing does not finalize. A close that arrives with views still open
// finalizes them with their last known progress.
type Emitter struct {
	sink     Sink
	metrics  Collector
	logger   *slog.Logger
	open     map[string]*openView
	finished []media.ViewEvent
	onFinish func(media.ViewEvent)
}

// EmitterOption configures an Emitter.
type EmitterOption func(*Emitter)

func WithMetrics(c Collector) EmitterOption {
	return func(e *Emitter) {
		if c != nil {
			e.metrics = c
		}
	}
}

func WithLogger(l *slog.Logger) EmitterOption {
	return func(e *Emitter) {
		if l != nil {
			e.logger = l
		}
	}
}

// OnFinish registers a callback for every finalized view.
func OnFinish(fn func(media.ViewEvent)) EmitterOption {
	return func(e *Emitter) { e.onFinish = fn }
}

func NewEmitter(sink Sink, opts ...EmitterOption) *Emitter {
	e := &Emitter{
		sink:    sink,
		metrics: Nop{},
		logger:  slog.Default(),
		open:    make(map[string]*openView),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With("component", "analytics")
	return e
}

func (e *Emitter) OnTransition(t sequencer.Transition) {
	e.metrics.Transition(string(t.Kind))

	switch t.Kind {
	case sequencer.TransitionActivated:
		e.start(t)
	case sequencer.TransitionDeactivated:
		e.finish(t.ActivationID, t.At, t.Progress, t.Loops)
	case sequencer.TransitionClosed:
		e.finishAll(t.At)
	default:
		if v, ok := e.open[t.ActivationID]; ok {
			if t.Progress > v.progress {
				v.progress = t.Progress
			}
			if t.Loops > v.event.Loops {
				v.event.Loops = t.Loops
			}
		}
	}
}

func (e *Emitter) start(t sequencer.Transition) {
	if _, dup := e.open[t.ActivationID]; dup {
		e.logger.Warn("activation already has an open view", "activation", t.ActivationID)
		return
	}
	ev := &media.ViewEvent{
		ItemID:       t.Item.ID,
		ActivationID: t.ActivationID,
		StartedAt:    t.At,
	}
	e.open[t.ActivationID] = &openView{event: ev, kind: t.Item.Kind}

	// Local merge so hasUnseen updates without a round trip.
	t.Item.Viewed = true

	e.metrics.ViewStarted(t.Item.Kind)
	e.sink.Deliver(collab.ViewRecord{ItemID: ev.ItemID, ActivationID: ev.ActivationID}, t.At)
}

func (e *Emitter) finish(activationID string, at time.Time, progress float64, loops int) {
	v, ok := e.open[activationID]
	if !ok {
		return
	}
	delete(e.open, activationID)

	if progress < v.progress {
		progress = v.progress
	}
	if loops > v.event.Loops {
		v.event.Loops = loops
	}
	// Looping items count every full pass as watched; cap at 100%.
	if v.event.Loops > 0 {
		progress = 1
	}
	if !v.event.Finalize(at, progress) {
		return
	}

	ev := *v.event
	e.finished = append(e.finished, ev)
	e.metrics.ViewFinished(v.kind, ev.WatchedSeconds, ev.CompletionPercent)
	e.logger.Debug("view finalized",
		"item", ev.ItemID,
		"activation", ev.ActivationID,
		"watched_seconds", ev.WatchedSeconds,
		"completion_percent", ev.CompletionPercent,
	)

	watched, pct := ev.WatchedSeconds, ev.CompletionPercent
	e.sink.Deliver(collab.ViewRecord{
		ItemID:            ev.ItemID,
		ActivationID:      ev.ActivationID,
		WatchedSeconds:    &watched,
		CompletionPercent: &pct,
		Loops:             ev.Loops,
	}, at)
	if e.onFinish != nil {
		e.onFinish(ev)
	}
}

func (e *Emitter) finishAll(at time.Time) {
	ids := make([]string, 0, len(e.open))
	for id := range e.open {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	for _, id := range ids {
		e.finish(id, at, 0, 0)
	}
}

// Open returns the number of views not yet finalized.
func (e *Emitter) Open() int { return len(e.open) }

// Finished returns the finalized views in order.
func (e *Emitter) Finished() []media.ViewEvent {
	out := make([]media.ViewEvent, len(e.finished))
	copy(out, e.finished)
	return out
}
