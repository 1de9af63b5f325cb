package sequencer

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
	"github.com/gvarikaa/new-DapDip-sub001/internal/progress"
)

// activation is the per-item state of one activation. Nothing in it
// outlives the activation.
type activation struct {
	stamp     Stamp
	id        string
	item      *media.Item
	startedAt time.Time

	timer   *progress.Timer
	video   *progress.Video
	adapter playback.Adapter

	progress  float64
	completed bool
	// deferred holds a completion that arrived while paused.
	deferred Cause
	loops    int
}

// Machine is the sequencer state machine.
//
// INVARIANTS:
//   - overlayOpen implies the overlay reason is in the pause set, so the
//     machine is paused whenever the overlay is open
//   - while open, pos addresses an existing item
//   - an activation completes at most once per pass
type Machine struct {
	clock           clockwork.Clock
	logger          *slog.Logger
	factory         playback.Factory
	runner          Runner
	ids             IDGenerator
	gens            *Clock
	loop            bool
	defaultDuration time.Duration

	session     string
	groups      []*media.Group
	status      Status
	reasons     Reasons
	pos         Position
	cur         *activation
	muted       bool
	overlayOpen bool

	listeners   []Listener
	dispatching bool
	pending     []Event
}

// New creates an idle machine over groups. The groups are shared, not
// copied; item Viewed flags written elsewhere stay visible.
func New(groups []*media.Group, opts ...Option) *Machine {
	m := &Machine{groups: groups}
	defaultOptions(m)
	for _, opt := range opts {
		opt(m)
	}
	if m.gens == nil {
		m.gens = NewClock()
	}
	m.session = m.ids.Generate()
	m.logger = m.logger.With("component", "sequencer", "session", m.session)
	return m
}

// Single wraps one item as a one-item sequence. Reels use it.
func Single(item *media.Item, opts ...Option) *Machine {
	g := &media.Group{Author: item.Author, Items: []*media.Item{item}}
	return New([]*media.Group{g}, opts...)
}

// Session returns the viewing session id.
func (m *Machine) Session() string { return m.session }

// Subscribe registers a listener. Listeners are called in registration order.
func (m *Machine) Subscribe(l Listener) {
	m.listeners = append(m.listeners, l)
}

// Open starts playing at start.
func (m *Machine) Open(start Position) error {
	return m.exec(func() error {
		if m.status != StatusIdle {
			return &Error{Code: ErrCodeAlreadyOpen, Message: "sequence already opened", Position: m.pos}
		}
		if m.totalItems() == 0 {
			return &Error{Code: ErrCodeEmptySequence, Message: "no items to play"}
		}
		if !m.valid(start) {
			return newPositionError(start, len(m.groups))
		}
		m.logger.Debug("opening sequence", "at", start.String(), "groups", len(m.groups))
		m.activate(start, CauseOpen)
		return nil
	})
}

// Dispatch applies one event. Events dispatched from inside a listener are
// queued and applied in order once the current event has been handled.
//
// A stale event returns an error for which IsStale is true; callers normally
// ignore it.
func (m *Machine) Dispatch(ev Event) error {
	if m.dispatching {
		m.pending = append(m.pending, ev)
		return nil
	}
	return m.exec(func() error { return m.apply(ev) })
}

// Close closes the sequence, finalizing the current activation. Closing a
// closed or idle machine is a no-op.
func (m *Machine) Close() error {
	if m.status == StatusClosed || m.status == StatusIdle {
		return nil
	}
	return m.Dispatch(Close())
}

// exec runs fn as the outermost transition and drains events queued while it
// ran.
func (m *Machine) exec(fn func() error) error {
	if m.dispatching {
		return fn()
	}
	m.dispatching = true
	defer func() { m.dispatching = false }()

	err := fn()
	for len(m.pending) > 0 {
		next := m.pending[0]
		m.pending[0] = Event{}
		m.pending = m.pending[1:]
		if perr := m.apply(next); perr != nil {
			m.logDropped(next, perr)
		}
	}
	m.pending = m.pending[:0]
	return err
}

func (m *Machine) apply(ev Event) error {
	if m.status == StatusIdle || m.status == StatusClosed {
		return newClosedError(m.pos, m.status)
	}

	switch ev.Type {
	case EventTick:
		m.tick()
		return nil

	case EventComplete:
		if err := m.checkStamp(ev.Stamp); err != nil {
			return err
		}
		m.complete(ev.Cause)
		return nil

	case EventMedia:
		if err := m.checkStamp(ev.Stamp); err != nil {
			return err
		}
		m.onMedia(ev.Media)
		return nil

	case EventGesture:
		m.onGesture(ev.Intent)
		return nil

	case EventOverlay:
		if err := m.checkStamp(ev.Stamp); err != nil {
			return err
		}
		if ev.Open {
			m.pause(ReasonOverlay, CauseOverlay)
		} else {
			m.resume(ReasonOverlay, CauseOverlay)
		}
		return nil

	case EventMute:
		m.setMuted(ev.Muted)
		return nil

	case EventJump:
		if !m.valid(ev.Target) {
			return newPositionError(ev.Target, len(m.groups))
		}
		m.activate(ev.Target, CauseJump)
		return nil

	case EventClose:
		m.close(CauseDismiss)
		return nil

	case EventReplace:
		return m.replace(ev.Groups)

	default:
		return fmt.Errorf("unknown event type: %d", ev.Type)
	}
}

func (m *Machine) checkStamp(s Stamp) error {
	// Generations are unique per machine; the position may have been
	// remapped by Replace.
	if m.cur == nil || s.Gen != m.cur.stamp.Gen {
		return newStaleError(m.pos, s.Gen)
	}
	return nil
}

func (m *Machine) logDropped(ev Event, err error) {
	if IsStale(err) || IsClosed(err) {
		m.logger.Debug("event dropped", "event", ev.Type.String(), "reason", err.Error())
		return
	}
	m.logger.Warn("event failed", "event", ev.Type.String(), "error", err)
}

// tick folds wall-clock time into the active timer.
func (m *Machine) tick() {
	a := m.cur
	if a == nil || a.timer == nil {
		return
	}
	frac, done := a.timer.Tick(m.clock.Now())
	if frac > a.progress {
		a.progress = frac
	}
	if done {
		m.complete(CauseTimer)
	}
}

// complete handles a completion signal for the current activation.
func (m *Machine) complete(cause Cause) {
	a := m.cur
	if a == nil || a.completed {
		return
	}
	// A broken item is skipped even when paused; nothing can resume it.
	if m.status == StatusPaused && cause != CauseError {
		if a.deferred == "" {
			a.deferred = cause
			m.emit(m.transition(TransitionDeferred, cause))
		}
		return
	}

	a.completed = true
	a.progress = 1
	m.emit(m.transition(TransitionCompleted, cause))

	if m.loop {
		if cause == CauseError {
			// A broken reel stays where it is; the feed moves past it.
			return
		}
		m.restart(cause)
		return
	}
	m.step(1, cause)
}

// restart begins another pass of the current item within the same
// activation.
func (m *Machine) restart(cause Cause) {
	a := m.cur
	now := m.clock.Now()
	a.loops++
	a.completed = false
	a.progress = 0
	if a.timer != nil {
		a.timer.Reset(now)
	}
	if a.video != nil {
		a.video.Reset()
	}
	if a.adapter != nil {
		a.adapter.Seek(0)
		if err := a.adapter.Play(); err != nil {
			m.playFailed(err)
			return
		}
	}
	t := m.transition(TransitionLooped, cause)
	t.Loops = a.loops
	m.emit(t)
}

// activate deactivates the current item, if any, and starts target.
// Progress for the new item always starts at zero.
func (m *Machine) activate(target Position, cause Cause) {
	m.status = StatusAdvancing
	if m.cur != nil {
		m.deactivate(cause)
	}

	now := m.clock.Now()
	item := m.itemAt(target)
	gen := m.gens.Next()
	a := &activation{
		stamp:     Stamp{Position: target, Gen: gen},
		id:        fmt.Sprintf("%s-%d", m.session, gen),
		item:      item,
		startedAt: now,
	}
	m.pos = target
	m.cur = a
	m.reasons = 0
	m.overlayOpen = false
	m.status = StatusPlaying

	var playErr error
	if item.Kind.Timed() {
		d := item.DurationHint
		if d <= 0 {
			d = m.defaultDuration
		}
		a.timer = progress.NewTimer(d)
		a.timer.Start(now)
	} else {
		playErr = m.startVideo(a)
	}

	m.emit(m.transition(TransitionActivated, cause))

	if playErr != nil {
		m.playFailed(playErr)
	}
}

func (m *Machine) startVideo(a *activation) error {
	a.video = &progress.Video{}
	if m.factory == nil {
		return errors.New("no playback adapter configured")
	}
	stamp := a.stamp
	a.adapter = m.factory.New(a.item, func(pe playback.Event) {
		m.runner.Do(func() {
			if err := m.Dispatch(Media(stamp, pe)); err != nil {
				m.logDropped(Event{Type: EventMedia}, err)
			}
		})
	})
	a.adapter.SetMuted(m.muted)
	return a.adapter.Play()
}

// playFailed coerces a refused Play into Paused(user) and treats anything
// else as a media failure.
func (m *Machine) playFailed(err error) {
	if errors.Is(err, playback.ErrAutoplayBlocked) {
		m.logger.Info("autoplay blocked", "item", m.cur.item.ID)
		m.pause(ReasonUser, CauseAutoplay)
		return
	}
	m.mediaFailed(err)
}

func (m *Machine) mediaFailed(cause error) {
	a := m.cur
	err := newMediaError(m.pos, a.stamp.Gen, a.item.ID, cause)
	m.logger.Warn("media failed, skipping", "item", a.item.ID, "error", cause)
	t := m.transition(TransitionMediaFailed, CauseError)
	t.Err = err
	m.emit(t)
	m.complete(CauseError)
}

// deactivate cancels the current item's timer and detaches its adapter.
func (m *Machine) deactivate(cause Cause) {
	a := m.cur
	if a.timer != nil {
		if a.timer.Running() {
			a.timer.Pause(m.clock.Now())
		}
		a.timer = nil
	}
	if a.adapter != nil {
		a.adapter.Pause()
		a.adapter.Close()
		a.adapter = nil
	}
	t := m.transition(TransitionDeactivated, cause)
	t.Loops = a.loops
	m.emit(t)
	m.cur = nil
}

func (m *Machine) close(cause Cause) {
	if m.cur != nil {
		m.deactivate(cause)
	}
	m.status = StatusClosed
	m.reasons = 0
	m.overlayOpen = false
	m.pending = m.pending[:0]
	m.logger.Debug("sequence closed", "cause", string(cause), "at", m.pos.String())
	m.emit(Transition{Kind: TransitionClosed, At: m.clock.Now(), Stamp: Stamp{Position: m.pos}, Cause: cause})
}

func (m *Machine) pause(reason PauseReason, cause Cause) {
	before := m.reasons
	m.reasons = m.reasons.With(reason)
	if reason == ReasonOverlay {
		m.overlayOpen = true
	}
	if before == m.reasons {
		return
	}
	if before.Empty() {
		m.status = StatusPaused
		now := m.clock.Now()
		if a := m.cur; a != nil {
			if a.timer != nil {
				a.timer.Pause(now)
			}
			if a.adapter != nil {
				a.adapter.Pause()
			}
		}
	}
	if before.Primary() == m.reasons.Primary() {
		return
	}
	t := m.transition(TransitionPaused, cause)
	t.Reason = m.reasons.Primary()
	m.emit(t)
}

func (m *Machine) resume(reason PauseReason, cause Cause) {
	if reason == ReasonOverlay {
		m.overlayOpen = false
	}
	if !m.reasons.Has(reason) {
		return
	}
	before := m.reasons
	m.reasons = m.reasons.Without(reason)
	if !m.reasons.Empty() {
		if before.Primary() != m.reasons.Primary() {
			t := m.transition(TransitionPaused, cause)
			t.Reason = m.reasons.Primary()
			m.emit(t)
		}
		return
	}

	a := m.cur
	if a.adapter != nil {
		if err := a.adapter.Play(); err != nil {
			if errors.Is(err, playback.ErrAutoplayBlocked) {
				m.reasons = m.reasons.With(ReasonUser)
				if before.Primary() != ReasonUser {
					t := m.transition(TransitionPaused, CauseAutoplay)
					t.Reason = ReasonUser
					m.emit(t)
				}
				return
			}
			m.status = StatusPlaying
			m.mediaFailed(err)
			return
		}
	}
	m.status = StatusPlaying
	if a.timer != nil {
		a.timer.Resume(m.clock.Now())
	}
	m.emit(m.transition(TransitionResumed, cause))

	if d := a.deferred; d != "" {
		a.deferred = ""
		m.complete(d)
	}
}

func (m *Machine) setMuted(muted bool) {
	if m.muted == muted {
		return
	}
	m.muted = muted
	if m.cur != nil && m.cur.adapter != nil {
		m.cur.adapter.SetMuted(muted)
	}
	t := m.transition(TransitionMuted, CauseGesture)
	t.Muted = muted
	m.emit(t)
}

func (m *Machine) onGesture(intent gesture.Intent) {
	switch intent {
	case gesture.IntentNext:
		m.step(1, CauseGesture)
	case gesture.IntentPrevious:
		m.step(-1, CauseGesture)
	case gesture.IntentPauseToggle:
		switch {
		case m.reasons.Has(ReasonUser):
			m.resume(ReasonUser, CauseGesture)
		case m.reasons.Empty():
			m.pause(ReasonUser, CauseGesture)
		}
	case gesture.IntentDismiss:
		m.close(CauseDismiss)
	case gesture.IntentHoldStart, gesture.IntentDragStart:
		m.pause(ReasonDragging, CauseGesture)
	case gesture.IntentHoldEnd, gesture.IntentDragEnd:
		m.resume(ReasonDragging, CauseGesture)
	}
}

// emit delivers t to every listener.
func (m *Machine) emit(t Transition) {
	for _, l := range m.listeners {
		l.OnTransition(t)
	}
}

func (m *Machine) transition(kind TransitionKind, cause Cause) Transition {
	t := Transition{Kind: kind, At: m.clock.Now(), Cause: cause, Stamp: Stamp{Position: m.pos}}
	if a := m.cur; a != nil {
		t.Stamp = a.stamp
		t.ActivationID = a.id
		t.Item = a.item
		t.Progress = a.progress
		t.Loops = a.loops
	}
	return t
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	s := Snapshot{
		Status:      m.status,
		Reasons:     m.reasons,
		Position:    m.pos,
		Muted:       m.muted,
		OverlayOpen: m.overlayOpen,
		Groups:      len(m.groups),
	}
	if m.valid(m.pos) {
		s.GroupLength = len(m.groups[m.pos.Group].Items)
	}
	if a := m.cur; a != nil {
		s.Gen = a.stamp.Gen
		s.ActivationID = a.id
		s.ItemID = a.item.ID
		s.Progress = a.progress
		s.Loops = a.loops
	}
	return s
}

// Current returns the active item and its stamp, or nil when nothing is
// active.
func (m *Machine) Current() (*media.Item, Stamp) {
	if m.cur == nil {
		return nil, Stamp{Position: m.pos}
	}
	return m.cur.item, m.cur.stamp
}

// Groups returns the playlist.
func (m *Machine) Groups() []*media.Group { return m.groups }

// Muted returns the session mute preference.
func (m *Machine) Muted() bool { return m.muted }
