package harness

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/gvarikaa/new-DapDip-sub001/internal/analytics"
	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/feed"
	"github.com/gvarikaa/new-DapDip-sub001/internal/fixture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/grouping"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
	"github.com/gvarikaa/new-DapDip-sub001/internal/testutil"
	"github.com/gvarikaa/new-DapDip-sub001/internal/viewer"
)

const (
	defaultTick   = 100 * time.Millisecond
	defaultWidth  = 400.0
	defaultHeight = 800.0
)

// Harness executes one scenario.
type Harness struct {
	scenario *Scenario
	settings Settings
	logger   *slog.Logger

	clock   *clockwork.FakeClock
	backend *fixture.Backend
	net     *testutil.ManualDispatcher
	sims    *playback.SimFactory
	store   *store.Store
	metrics *analytics.Metrics
	sink    *analytics.DirectSink
	rec     *recorder

	session *viewer.Session
	feed    *feed.Controller
	router  *gesture.Router

	result *Result
}

type runOptions struct {
	logger *slog.Logger
	dbPath string
}

// Option configures Run.
type Option func(*runOptions)

// WithLogger routes engine logs to logger. Runs are silent by default.
func WithLogger(logger *slog.Logger) Option {
	return func(o *runOptions) { o.logger = logger }
}

// WithDatabase keeps the run's store at path instead of in memory, so its
// transition log can be replayed later.
func WithDatabase(path string) Option {
	return func(o *runOptions) { o.dbPath = path }
}

// Run executes a scenario in a fresh in-memory store and evaluates its
// assertions. A step that fails unexpectedly aborts the run with an error.
func Run(scenario *Scenario, opts ...Option) (*Result, error) {
	ro := runOptions{
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		dbPath: ":memory:",
	}
	for _, opt := range opts {
		opt(&ro)
	}

	st, err := store.Open(ro.dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	fx := scenario.Data
	if fx == nil {
		if fx, err = fixture.Load(scenario.Fixture); err != nil {
			return nil, err
		}
	}

	h := &Harness{
		scenario: scenario,
		settings: withDefaults(scenario.Settings),
		logger:   ro.logger,
		clock:    testutil.NewFakeClock(),
		backend:  fixture.NewBackend(fx),
		net:      &testutil.ManualDispatcher{},
		sims:     playback.NewSimFactory(),
		store:    st,
		metrics:  analytics.NewMetrics(prometheus.NewRegistry()),
		result:   NewResult(),
	}
	h.sims.BlockAutoplay = h.settings.BlockAutoplay
	h.rec = &recorder{result: h.result}
	h.sink = analytics.NewDirectSink(analytics.DirectSinkConfig{
		Client:     h.backend,
		Dispatcher: h.net,
		Outbox:     st,
		Metrics:    h.metrics,
		Logger:     h.logger,
	})

	for i, step := range scenario.Steps {
		err := h.apply(step)
		if err = checkStepError(step, err); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		if h.settings.Network == NetworkAuto {
			h.net.Drain()
		}
	}

	h.result.Final = h.final()
	actx := &AssertionContext{Store: st, Backend: h.backend, Ctx: context.Background()}
	for _, msg := range EvaluateAssertions(h.result, scenario.Assertions, actx) {
		h.result.AddError(msg)
	}
	return h.result, nil
}

func withDefaults(s Settings) Settings {
	if s.Tick <= 0 {
		s.Tick = defaultTick
	}
	if s.Width <= 0 {
		s.Width = defaultWidth
	}
	if s.Height <= 0 {
		s.Height = defaultHeight
	}
	if s.Network == "" {
		s.Network = NetworkAuto
	}
	return s
}

func boolOr(p *bool, def bool) bool {
	if p == nil {
		return def
	}
	return *p
}

func checkStepError(step Step, err error) error {
	switch {
	case step.ExpectError == "" && err != nil:
		return err
	case step.ExpectError != "" && err == nil:
		return fmt.Errorf("expected error containing %q, got none", step.ExpectError)
	case step.ExpectError != "" && !strings.Contains(err.Error(), step.ExpectError):
		return fmt.Errorf("expected error containing %q, got %v", step.ExpectError, err)
	}
	return nil
}

var errNotOpen = errors.New("nothing opened yet")

func (h *Harness) opened() bool {
	return h.session != nil || h.feed != nil
}

func (h *Harness) apply(st Step) error {
	if st.Open == nil && !h.opened() && st.Fail == nil && st.Resolve == "" {
		return errNotOpen
	}
	switch {
	case st.Open != nil:
		return h.open(*st.Open)
	case st.Advance > 0:
		h.advance(st.Advance)
	case st.Tap != "":
		h.tap(st.Tap)
	case st.Swipe != "":
		h.swipe(st.Swipe)
	case st.Hold > 0:
		h.hold(st.Hold)
	case st.Media != nil:
		return h.media(*st.Media)
	case st.Overlay != nil:
		return h.overlay(*st.Overlay)
	case st.Scroll != nil:
		h.feed.Scroll(*st.Scroll)
	case st.Settle:
		h.feed.Settle()
	case st.Resolve != "":
		h.resolve(st.Resolve)
	case st.Fail != nil:
		h.backend.FailNext(st.Fail.Op, st.Fail.Times)
	case st.Mute != nil:
		if h.session != nil {
			h.session.SetMuted(*st.Mute)
		} else {
			h.feed.SetMuted(*st.Mute)
		}
	case st.Close:
		if h.session != nil {
			return h.session.Close()
		}
		h.feed.Close()
	}
	return nil
}

func (h *Harness) sessionID() string {
	if h.scenario.SessionID != "" {
		return h.scenario.SessionID
	}
	return "s"
}

func (h *Harness) listeners() []sequencer.Listener {
	tlog := store.NewTransitionLog(h.store, h.sessionID(), func(err error) {
		h.logger.Warn("transition log", "error", err)
	})
	return []sequencer.Listener{h.rec, tlog}
}

func (h *Harness) gestureConfig(mode gesture.Mode) gesture.Config {
	return gesture.Config{Mode: mode}
}

func (h *Harness) open(o OpenStep) error {
	if h.opened() {
		return fmt.Errorf("already opened")
	}
	if h.scenario.Mode == ModeReels {
		return h.openFeed()
	}
	return h.openStories(o)
}

func (h *Harness) openStories(o OpenStep) error {
	page, err := h.backend.FetchStoryFeed(context.Background(), collab.StoryFilter{})
	if err != nil {
		return fmt.Errorf("load stories: %w", err)
	}
	valid, _ := media.NormalizeAll(page.Items)

	session := viewer.New(grouping.NewIndex(valid), viewer.Config{
		Client:          h.backend,
		Dispatcher:      h.net,
		Clock:           h.clock,
		Playback:        h.sims,
		Logger:          h.logger,
		Metrics:         h.metrics,
		Sink:            h.sink,
		Journal:         h.store,
		SessionIDs:      sequencer.NewFixedGenerator(h.sessionID()),
		Listeners:       h.listeners(),
		Gesture:         h.gestureConfig(gesture.ModeStories),
		Width:           h.settings.Width,
		Height:          h.settings.Height,
		DefaultDuration: h.settings.DefaultDuration,
		PauseOnWidget:   boolOr(h.settings.PauseOnWidget, true),
		Muted:           boolOr(h.settings.Muted, true),
	})
	session.SetCursor(page.NextCursor)

	if o.Author != "" {
		err = session.OpenAuthor(o.Author)
	} else {
		err = session.Open(sequencer.Position{Group: o.Group, Index: o.Index})
	}
	if err != nil {
		return err
	}
	h.session = session
	return nil
}

func (h *Harness) openFeed() error {
	emitter := analytics.NewEmitter(h.sink, analytics.WithMetrics(h.metrics), analytics.WithLogger(h.logger))
	router := gesture.NewRouter(h.gestureConfig(gesture.ModeReels), h.settings.Width, h.settings.Height)
	fc := feed.NewController(feed.Config{
		Client:          h.backend,
		Dispatcher:      h.net,
		Clock:           h.clock,
		Playback:        h.sims,
		Logger:          h.logger,
		Metrics:         h.metrics,
		Listeners:       append(h.listeners(), emitter),
		SessionIDs:      sequencer.NewFixedGenerator(h.sessionID()),
		ItemHeight:      h.settings.ItemHeight,
		Threshold:       h.settings.Threshold,
		Muted:           boolOr(h.settings.Muted, true),
		Loop:            boolOr(h.settings.Loop, true),
		DefaultDuration: h.settings.DefaultDuration,
	})
	if err := fc.Load(); err != nil {
		return err
	}
	h.feed, h.router = fc, router
	return nil
}

// current returns the active item, or nil.
func (h *Harness) current() *media.Item {
	var m *sequencer.Machine
	if h.session != nil {
		m = h.session.Machine()
	} else if h.feed != nil {
		m = h.feed.Machine()
	}
	if m == nil {
		return nil
	}
	item, _ := m.Current()
	return item
}

// advance moves time forward in tick steps. The active video's player
// advances with the clock.
func (h *Harness) advance(d time.Duration) {
	testutil.Steps(h.clock, d, h.settings.Tick, func(now time.Time) {
		if item := h.current(); item != nil && item.Kind == media.KindVideo {
			if sim := h.sims.Get(item.ID); sim != nil {
				sim.Advance(h.settings.Tick)
			}
		}
		if h.session != nil {
			h.session.Tick()
			return
		}
		h.intent(h.router.Tick(now))
		h.feed.Tick()
	})
}

func (h *Harness) intent(i gesture.Intent) {
	if h.session != nil {
		h.session.Intent(i)
		return
	}
	h.feed.Gesture(i)
}

func (h *Harness) down(p gesture.Pointer) {
	if h.session != nil {
		h.session.PointerDown(p)
		return
	}
	h.intent(h.router.Down(p))
}

func (h *Harness) move(p gesture.Pointer) {
	if h.session != nil {
		h.session.PointerMove(p)
		return
	}
	h.intent(h.router.Move(p))
}

func (h *Harness) up(p gesture.Pointer) {
	if h.session != nil {
		h.session.PointerUp(p)
		return
	}
	h.intent(h.router.Up(p))
}

func (h *Harness) point(x, y float64) gesture.Pointer {
	return gesture.Pointer{X: x, Y: y, At: h.clock.Now()}
}

func (h *Harness) tap(where string) {
	w := h.settings.Width
	x := w / 2
	switch where {
	case "left":
		x = w / 6
	case "right":
		x = w * 5 / 6
	}
	p := h.point(x, h.settings.Height/2)
	h.down(p)
	h.up(p)
}

func (h *Harness) swipe(dir string) {
	dist := gesture.DefaultDismissThreshold + 20
	cx, cy := h.settings.Width/2, h.settings.Height/2
	dx, dy := 0.0, 0.0
	switch dir {
	case "up":
		dy = -dist
	case "down":
		dy = dist
	case "left":
		dx = -dist
	case "right":
		dx = dist
	}
	h.down(h.point(cx, cy))
	end := h.point(cx+dx, cy+dy)
	h.move(end)
	h.up(end)
}

func (h *Harness) hold(d time.Duration) {
	p := h.point(h.settings.Width/2, h.settings.Height/2)
	h.down(p)
	h.advance(d)
	h.up(h.point(p.X, p.Y))
}

func (h *Harness) media(m MediaStep) error {
	id := m.Item
	if id == "" {
		item := h.current()
		if item == nil {
			return fmt.Errorf("media %s: no active item", m.Event)
		}
		id = item.ID
	}
	sim := h.sims.Get(id)
	if sim == nil {
		return fmt.Errorf("media %s: no player for item %s", m.Event, id)
	}
	switch m.Event {
	case "loaded":
		sim.Load(m.Duration)
	case "ended":
		sim.End()
	case "error":
		msg := m.Message
		if msg == "" {
			msg = "media error"
		}
		sim.Fail(errors.New(msg))
	case "unblock":
		sim.Unblock()
	}
	return nil
}

func (h *Harness) overlay(o OverlayStep) error {
	c := h.session.Overlay()
	switch o.Action {
	case "open":
		return c.OpenWidget()
	case "composer":
		return c.OpenComposer()
	case "submit":
		return c.Submit(o.Value)
	case "dismiss":
		return c.Dismiss()
	case "react":
		return c.ToggleReaction(o.Value)
	}
	return nil
}

func (h *Harness) resolve(n string) {
	if n == "all" {
		h.net.Drain()
		return
	}
	count, _ := strconv.Atoi(n)
	for i := 0; i < count && h.net.RunNext(); i++ {
	}
}

func (h *Harness) final() Final {
	var f Final
	for _, v := range h.backend.Views() {
		if v.Final() {
			f.Views++
		}
	}

	if h.session != nil {
		snap := h.session.Snapshot()
		f.State = snap.State()
		f.Item = snap.ItemID
		f.Group = snap.Position.Group
		f.Index = snap.Position.Index
		if o, ok := h.session.Overlay().Current(); ok {
			f.Overlay = string(o.Kind)
		}
		if err := h.session.Notice(); err != nil {
			f.Notice = err.Error()
		}
		f.Fetches = h.backend.Calls(fixture.OpFetchStoryFeed)
		return f
	}

	f.Fetches = h.backend.Calls(fixture.OpFetchReelFeed)
	if h.feed == nil {
		f.State = sequencer.StatusIdle.String()
		return f
	}
	snap := h.feed.Snapshot()
	f.State = sequencer.StatusIdle.String()
	if h.feed.Machine() != nil {
		f.State = snap.Item.State()
	}
	f.Item = snap.Item.ItemID
	f.Index = snap.Active
	if err := h.feed.Notice(); err != nil {
		f.Notice = err.Error()
	}
	return f
}
