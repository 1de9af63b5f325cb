package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/fx"

	"github.com/gvarikaa/new-DapDip-sub001/internal/analytics"
	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/config"
	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
	"github.com/gvarikaa/new-DapDip-sub001/internal/feed"
	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/grouping"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
	"github.com/gvarikaa/new-DapDip-sub001/internal/viewer"
)

const (
	ModeStories = "stories"
	ModeReels   = "reels"

	// DefaultDwell is how long a headless reels run stays on each reel.
	DefaultDwell = 3 * time.Second

	screenWidth  = 1080.0
	screenHeight = 1920.0
)

// ErrNothingToPlay is returned when the first page has no playable items.
var ErrNothingToPlay = errors.New("nothing to play")

// PlayOptions selects what a headless run plays.
type PlayOptions struct {
	Mode   string
	Author string
	// Duration bounds the run. Zero plays until the viewer closes or the
	// feed runs out.
	Duration time.Duration
	Dwell    time.Duration
	// Session names the transition log. Default: a fresh UUIDv7.
	Session string
}

// PlayResult summarizes a headless run.
type PlayResult struct {
	Session     string `json:"session"`
	Mode        string `json:"mode"`
	Activations int    `json:"activations"`
	Completions int    `json:"completions"`
	Loops       int    `json:"loops"`
	State       string `json:"state"`
	ItemID      string `json:"item_id,omitempty"`
}

// Play provides a Player wired to the HTTP collaborator.
func Play(cfg *config.Config) fx.Option {
	return fx.Options(
		Module(cfg),
		Client(),
		fx.Provide(
			fx.Annotate(
				NewPlayer,
				fx.ParamTags(``, ``, ``, ``, ``, ``, ``, `optional:"true"`),
			),
		),
	)
}

// Player runs a viewer or feed session on the real clock. One Loop is the
// writer; network work runs on the pool and comes back through the Loop.
type Player struct {
	cfg     *config.Config
	client  collab.Client
	pool    *dispatch.Pool
	store   *store.Store
	flusher *analytics.Flusher
	metrics analytics.Collector
	log     *slog.Logger
	clock   clockwork.Clock
}

func NewPlayer(cfg *config.Config, client collab.Client, pool *dispatch.Pool, st *store.Store,
	flusher *analytics.Flusher, metrics analytics.Collector, log *slog.Logger, clock clockwork.Clock) *Player {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Player{
		cfg:     cfg,
		client:  client,
		pool:    pool,
		store:   st,
		flusher: flusher,
		metrics: metrics,
		log:     log.With("component", "player"),
		clock:   clock,
	}
}

// run is the state shared by one headless run.
type run struct {
	p         *Player
	opts      PlayOptions
	result    PlayResult
	sims      *playback.SimFactory
	loop      *sequencer.Loop
	sink      analytics.Sink
	listeners []sequencer.Listener
}

// Run plays until the session ends, opts.Duration elapses or ctx is
// cancelled. Cancellation is a normal end, not an error.
func (p *Player) Run(ctx context.Context, opts PlayOptions) (PlayResult, error) {
	if opts.Mode == "" {
		opts.Mode = ModeStories
	}
	if opts.Mode != ModeStories && opts.Mode != ModeReels {
		return PlayResult{}, fmt.Errorf("unknown mode %q: must be %s or %s", opts.Mode, ModeStories, ModeReels)
	}
	if opts.Session == "" {
		opts.Session = sequencer.UUIDv7Generator{}.Generate()
	}
	if opts.Dwell <= 0 {
		opts.Dwell = DefaultDwell
	}
	if opts.Duration > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, opts.Duration)
		defer cancel()
	}

	r := &run{
		p:      p,
		opts:   opts,
		result: PlayResult{Session: opts.Session, Mode: opts.Mode},
		sims:   playback.NewSimFactory(),
		sink: analytics.NewDirectSink(analytics.DirectSinkConfig{
			Client:     p.client,
			Dispatcher: p.pool,
			Outbox:     p.store,
			Metrics:    p.metrics,
			Logger:     p.log,
			Timeout:    p.cfg.Collab.Timeout,
		}),
	}
	r.listeners = []sequencer.Listener{
		sequencer.ListenerFunc(r.count),
		store.NewTransitionLog(p.store, opts.Session, func(err error) {
			p.log.Warn("transition not logged", "error", err)
		}),
	}

	p.log.Info("play starting", "mode", opts.Mode, "session", opts.Session)
	var err error
	if opts.Mode == ModeReels {
		err = r.reels(ctx)
	} else {
		err = r.stories(ctx)
	}
	if err != nil {
		return r.result, err
	}

	if p.flusher != nil {
		if _, err := p.flusher.Flush(context.WithoutCancel(ctx)); err != nil {
			p.log.Warn("outbox flush after play", "error", err)
		}
	}
	p.log.Info("play finished",
		"session", opts.Session,
		"activations", r.result.Activations,
		"completions", r.result.Completions,
		"state", r.result.State,
	)
	return r.result, nil
}

func (r *run) count(t sequencer.Transition) {
	switch t.Kind {
	case sequencer.TransitionActivated:
		r.result.Activations++
	case sequencer.TransitionCompleted:
		r.result.Completions++
	case sequencer.TransitionLooped:
		r.result.Loops++
	}
	item := ""
	if t.Item != nil {
		item = t.Item.ID
	}
	r.p.log.Debug("transition", "kind", string(t.Kind), "item", item, "cause", string(t.Cause))
}

func (r *run) stories(ctx context.Context) error {
	p := r.p
	page, err := p.client.FetchStoryFeed(ctx, collab.StoryFilter{})
	if err != nil {
		return fmt.Errorf("load stories: %w", err)
	}
	valid, rejected := media.NormalizeAll(page.Items)
	for _, err := range rejected {
		p.log.Warn("story rejected", "error", err)
	}
	if len(valid) == 0 {
		return ErrNothingToPlay
	}

	var s *viewer.Session
	tick := p.cfg.Viewer.TickInterval
	r.loop = sequencer.NewLoop(p.clock, tick, func(time.Time) {
		item, _ := s.Machine().Current()
		r.advanceVideo(item, tick)
		s.Tick()
		if s.Snapshot().Status == sequencer.StatusClosed {
			r.loop.Stop()
		}
	}, p.log)

	s = viewer.New(grouping.NewIndex(valid), viewer.Config{
		Client:          p.client,
		Dispatcher:      p.pool,
		Runner:          r.loop,
		Clock:           p.clock,
		Playback:        r.sims,
		Logger:          p.log,
		Metrics:         p.metrics,
		Sink:            r.sink,
		Journal:         p.store,
		SessionIDs:      sequencer.NewFixedGenerator(r.opts.Session),
		Listeners:       r.listeners,
		Gesture:         p.cfg.Gesture(gesture.ModeStories),
		Width:           screenWidth,
		Height:          screenHeight,
		DefaultDuration: p.cfg.Viewer.DefaultDuration,
		// Nobody answers widgets in a headless run.
		PauseOnWidget: false,
		Muted:         p.cfg.Viewer.Muted,
	})
	s.SetCursor(page.NextCursor)

	if r.opts.Author != "" {
		err = s.OpenAuthor(r.opts.Author)
	} else {
		err = s.Open(sequencer.Position{})
	}
	if err != nil {
		return err
	}

	if err := r.loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	r.result.ItemID = s.Snapshot().ItemID
	if s.Snapshot().Status != sequencer.StatusClosed {
		if err := s.Close(); err != nil {
			p.log.Warn("close viewer", "error", err)
		}
	}
	r.result.State = s.Snapshot().State()
	return nil
}

func (r *run) reels(ctx context.Context) error {
	p := r.p
	page, err := p.client.FetchReelFeed(ctx, "")
	if err != nil {
		return fmt.Errorf("load reels: %w", err)
	}

	emitter := analytics.NewEmitter(r.sink, analytics.WithMetrics(p.metrics), analytics.WithLogger(p.log))

	var fc *feed.Controller
	tick := p.cfg.Viewer.TickInterval
	moved := p.clock.Now()
	r.loop = sequencer.NewLoop(p.clock, tick, func(now time.Time) {
		if m := fc.Machine(); m != nil {
			item, _ := m.Current()
			r.advanceVideo(item, tick)
		}
		fc.Tick()
		if now.Sub(moved) < r.opts.Dwell {
			return
		}
		moved = now
		before := fc.Snapshot().Active
		if fc.Next() == before && !fc.Pager().InFlight() && !fc.Pager().HasMore() {
			r.loop.Stop()
		}
	}, p.log)

	fc = feed.NewController(feed.Config{
		Client:          p.client,
		Dispatcher:      p.pool,
		Runner:          r.loop,
		Clock:           p.clock,
		Playback:        r.sims,
		Logger:          p.log,
		Metrics:         p.metrics,
		Listeners:       append([]sequencer.Listener{emitter}, r.listeners...),
		SessionIDs:      sequencer.NewFixedGenerator(r.opts.Session),
		Threshold:       p.cfg.Viewer.PaginationThreshold,
		Muted:           p.cfg.Viewer.Muted,
		Loop:            p.cfg.Viewer.ReelLoop,
		DefaultDuration: p.cfg.Viewer.DefaultDuration,
	})
	fc.Seed(page)
	if fc.Snapshot().Length == 0 {
		return ErrNothingToPlay
	}

	if err := r.loop.Run(ctx); err != nil && ctx.Err() == nil {
		return err
	}
	r.result.ItemID = fc.Snapshot().Item.ItemID
	fc.Close()
	r.result.State = fc.Snapshot().Item.State()
	return nil
}

// advanceVideo plays the active video's element in step with the clock.
// Metadata is reported on the first tick from the item's duration hint.
func (r *run) advanceVideo(item *media.Item, d time.Duration) {
	if item == nil || item.Kind != media.KindVideo {
		return
	}
	sim := r.sims.Get(item.ID)
	if sim == nil {
		return
	}
	if !sim.Loaded() {
		length := item.DurationHint
		if length <= 0 {
			length = r.p.cfg.Viewer.DefaultDuration
		}
		sim.Load(length)
	}
	sim.Advance(d)
}
