// Package viewer composes the stories engine: the author index, the
// sequencer, gesture routing, overlays, view analytics and story
// pagination.
package viewer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gvarikaa/new-DapDip-sub001/internal/analytics"
	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/grouping"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/overlay"
	"github.com/gvarikaa/new-DapDip-sub001/internal/paging"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
)

// ErrUnknownAuthor is returned by OpenAuthor for an author not in the index.
var ErrUnknownAuthor = errors.New("author has no stories")

// Config configures a Session. Only Client and Dispatcher are required.
type Config struct {
	Client     collab.Client
	Dispatcher dispatch.Dispatcher
	Runner     sequencer.Runner
	Clock      clockwork.Clock
	Playback   playback.Factory
	Logger     *slog.Logger
	Metrics    analytics.Collector
	// Sink receives view records. Default: a DirectSink on Client.
	Sink       analytics.Sink
	Journal    overlay.Journal
	SessionIDs sequencer.IDGenerator
	// Listeners observe every transition after the built-in ones.
	Listeners []sequencer.Listener

	Gesture         gesture.Config
	Width, Height   float64
	DefaultDuration time.Duration
	PauseOnWidget   bool
	Muted           bool
	// Filter selects later story pages.
	Filter       collab.StoryFilter
	FetchTimeout time.Duration
}

// Session is one opening of the stories viewer.
//
// All methods must be called on the writer goroutine.
type Session struct {
	cfg    Config
	logger *slog.Logger

	index   *grouping.Index
	machine *sequencer.Machine
	router  *gesture.Router
	overlay *overlay.Coordinator
	emitter *analytics.Emitter
	pager   *paging.Pager

	notice error
}

// New builds a session over index. The index is shared with the caller so
// its groups reflect views merged by this session.
func New(index *grouping.Index, cfg Config) *Session {
	if cfg.Runner == nil {
		cfg.Runner = sequencer.Inline{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = analytics.Nop{}
	}
	if cfg.SessionIDs == nil {
		cfg.SessionIDs = sequencer.UUIDv7Generator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Sink == nil {
		cfg.Sink = analytics.NewDirectSink(analytics.DirectSinkConfig{
			Client:     cfg.Client,
			Dispatcher: cfg.Dispatcher,
			Metrics:    cfg.Metrics,
			Logger:     logger,
		})
	}
	cfg.Gesture.Mode = gesture.ModeStories

	s := &Session{
		cfg:    cfg,
		logger: logger.With("component", "viewer"),
		index:  index,
		router: gesture.NewRouter(cfg.Gesture, cfg.Width, cfg.Height),
	}

	opts := []sequencer.Option{
		sequencer.WithClock(cfg.Clock),
		sequencer.WithLogger(logger),
		sequencer.WithRunner(cfg.Runner),
		sequencer.WithMuted(cfg.Muted),
		sequencer.WithSessionIDs(cfg.SessionIDs),
		sequencer.WithDefaultDuration(cfg.DefaultDuration),
	}
	if cfg.Playback != nil {
		opts = append(opts, sequencer.WithPlayback(cfg.Playback))
	}
	s.machine = sequencer.New(index.Groups(), opts...)

	s.emitter = analytics.NewEmitter(cfg.Sink, analytics.WithMetrics(cfg.Metrics), analytics.WithLogger(logger))
	s.overlay = overlay.New(s.machine, overlay.Config{
		Client:        cfg.Client,
		Dispatcher:    cfg.Dispatcher,
		Runner:        cfg.Runner,
		Clock:         cfg.Clock,
		Journal:       cfg.Journal,
		Metrics:       cfg.Metrics,
		Logger:        logger,
		PauseOnWidget: cfg.PauseOnWidget,
	})
	filter := cfg.Filter
	s.pager = paging.New(paging.Config{
		Name: "stories",
		Fetch: func(ctx context.Context, cursor string) (collab.Page, error) {
			f := filter
			f.Cursor = cursor
			return cfg.Client.FetchStoryFeed(ctx, f)
		},
		Dispatcher: cfg.Dispatcher,
		Runner:     cfg.Runner,
		Timeout:    cfg.FetchTimeout,
		Logger:     logger,
		OnFetch:    func(outcome string) { cfg.Metrics.PaginationFetch("stories", outcome) },
	}, s.onPage)
	// No further pages until SetCursor says otherwise.
	s.pager.Seed("")

	// Views first so a close finalizes before anything else observes it.
	s.machine.Subscribe(s.emitter)
	s.machine.Subscribe(s.overlay)
	s.machine.Subscribe(sequencer.ListenerFunc(s.onTransition))
	for _, l := range cfg.Listeners {
		s.machine.Subscribe(l)
	}
	return s
}

// SetCursor records the story cursor returned with the index's first page.
// An empty cursor means no further pages.
func (s *Session) SetCursor(cursor string) {
	s.pager.Seed(cursor)
}

// Open starts playback at start.
func (s *Session) Open(start sequencer.Position) error {
	if err := s.machine.Open(start); err != nil {
		return fmt.Errorf("open viewer: %w", err)
	}
	return nil
}

// OpenAuthor starts at the author's first unseen item, or their first item
// when everything has been seen.
func (s *Session) OpenAuthor(authorID string) error {
	g := s.index.GroupOf(authorID)
	if g < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownAuthor, authorID)
	}
	i := s.index.Groups()[g].FirstUnseen()
	if i < 0 {
		i = 0
	}
	return s.Open(sequencer.Position{Group: g, Index: i})
}

// Tick folds time into the active item and the hold detector.
func (s *Session) Tick() {
	if intent := s.router.Tick(s.cfg.Clock.Now()); intent != gesture.IntentNone {
		s.Intent(intent)
	}
	s.dispatch(sequencer.Tick())
}

// PointerDown, PointerMove and PointerUp feed raw input through the router.
func (s *Session) PointerDown(p gesture.Pointer) { s.Intent(s.router.Down(p)) }

func (s *Session) PointerMove(p gesture.Pointer) { s.Intent(s.router.Move(p)) }

func (s *Session) PointerUp(p gesture.Pointer) { s.Intent(s.router.Up(p)) }

// PointerCancel abandons the press in progress.
func (s *Session) PointerCancel() { s.Intent(s.router.Cancel()) }

// Intent applies a classified intent.
func (s *Session) Intent(intent gesture.Intent) {
	if intent == gesture.IntentNone {
		return
	}
	s.dispatch(sequencer.Gesture(intent))
}

// SetMuted sets the session mute preference.
func (s *Session) SetMuted(muted bool) {
	s.dispatch(sequencer.Mute(muted))
}

// Close dismisses the viewer, finalizing any open view.
func (s *Session) Close() error {
	return s.machine.Close()
}

func (s *Session) onTransition(t sequencer.Transition) {
	if t.Kind != sequencer.TransitionActivated {
		return
	}
	// Entering the last loaded author loads the next page of stories.
	if t.Stamp.Position.Group < len(s.machine.Groups())-1 {
		return
	}
	if !s.pager.HasMore() || s.pager.InFlight() {
		return
	}
	if err := s.pager.Request(); err != nil {
		s.notice = err
		s.logger.Warn("story pagination not started", "error", err)
	}
}

func (s *Session) onPage(res paging.Result) {
	if res.Err != nil {
		s.notice = res.Err
		return
	}
	s.notice = nil

	valid, rejected := media.NormalizeAll(res.Page.Items)
	for _, err := range rejected {
		s.logger.Warn("story rejected", "error", err)
	}
	if s.index.Extend(valid) == 0 {
		return
	}
	if err := s.machine.Replace(s.index.Groups()); err != nil {
		s.logger.Error("merge story page", "error", err)
	}
}

func (s *Session) dispatch(ev sequencer.Event) {
	if err := s.machine.Dispatch(ev); err != nil && !sequencer.IsStale(err) && !sequencer.IsClosed(err) {
		s.logger.Warn("viewer event rejected", "event", ev.Type.String(), "error", err)
	}
}

// Snapshot returns the sequencer state.
func (s *Session) Snapshot() sequencer.Snapshot { return s.machine.Snapshot() }

func (s *Session) Machine() *sequencer.Machine { return s.machine }

func (s *Session) Overlay() *overlay.Coordinator { return s.overlay }

func (s *Session) Emitter() *analytics.Emitter { return s.emitter }

func (s *Session) Pager() *paging.Pager { return s.pager }

func (s *Session) Index() *grouping.Index { return s.index }

func (s *Session) Router() *gesture.Router { return s.router }

// Notice returns the last pagination failure, cleared by the next success.
func (s *Session) Notice() error { return s.notice }
