package feed

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/gvarikaa/new-DapDip-sub001/internal/analytics"
	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
	"github.com/gvarikaa/new-DapDip-sub001/internal/gesture"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/paging"
	"github.com/gvarikaa/new-DapDip-sub001/internal/playback"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
)

const (
	// DefaultThreshold is how close to the end of the loaded window the
	// active reel must be to trigger the next page.
	DefaultThreshold = 2
	// DefaultItemHeight is the reel height in pixels when none is set.
	DefaultItemHeight = 800.0
)

// Config configures a Controller.
type Config struct {
	Client     collab.Client
	Dispatcher dispatch.Dispatcher
	Runner     sequencer.Runner
	Clock      clockwork.Clock
	Playback   playback.Factory
	Logger     *slog.Logger
	Metrics    analytics.Collector
	// Listeners are attached to every reel's sequence.
	Listeners  []sequencer.Listener
	SessionIDs sequencer.IDGenerator

	ItemHeight      float64
	Threshold       int
	Muted           bool
	Loop            bool
	DefaultDuration time.Duration
	FetchTimeout    time.Duration
}

// Snapshot is the observable state of the feed.
type Snapshot struct {
	Active    int
	Length    int
	ScrollTop float64
	Cursor    string
	InFlight  bool
	Fetches   int
	Muted     bool
	Item      sequencer.Snapshot
}

// Controller owns the reel list, the detector, the pager and the sequence
// of the active reel. Only the active reel has a sequence; every other reel
// is idle.
//
// All methods must be called on the writer goroutine.
type Controller struct {
	cfg      Config
	logger   *slog.Logger
	detector *Detector
	pager    *paging.Pager
	gens     *sequencer.Clock

	items   []*media.Item
	seen    map[string]bool
	active  int
	machine *sequencer.Machine
	muted   bool
	notice  error
}

func NewController(cfg Config) *Controller {
	if cfg.Runner == nil {
		cfg.Runner = sequencer.Inline{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = analytics.Nop{}
	}
	if cfg.ItemHeight <= 0 {
		cfg.ItemHeight = DefaultItemHeight
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = DefaultThreshold
	}
	if cfg.SessionIDs == nil {
		cfg.SessionIDs = sequencer.UUIDv7Generator{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	c := &Controller{
		cfg:      cfg,
		logger:   logger.With("component", "feed"),
		detector: NewDetector(cfg.ItemHeight),
		gens:     sequencer.NewClock(),
		seen:     make(map[string]bool),
		active:   -1,
		muted:    cfg.Muted,
	}
	c.pager = paging.New(paging.Config{
		Name: "reels",
		Fetch: func(ctx context.Context, cursor string) (collab.Page, error) {
			return cfg.Client.FetchReelFeed(ctx, cursor)
		},
		Dispatcher: cfg.Dispatcher,
		Runner:     cfg.Runner,
		Timeout:    cfg.FetchTimeout,
		Logger:     logger,
		OnFetch:    func(outcome string) { cfg.Metrics.PaginationFetch("reels", outcome) },
	}, c.onPage)
	return c
}

// Load requests the first page. The first reel starts when it arrives.
func (c *Controller) Load() error {
	return c.pager.Request()
}

// Seed installs an initial page loaded elsewhere and starts the first reel.
func (c *Controller) Seed(page collab.Page) {
	c.pager.Seed(page.NextCursor)
	c.merge(page.Items)
}

func (c *Controller) onPage(res paging.Result) {
	if res.Err != nil {
		// The feed keeps playing what it has; a later scroll retries.
		c.notice = res.Err
		return
	}
	c.notice = nil
	c.merge(res.Page.Items)
}

func (c *Controller) merge(raw []media.Item) {
	valid, rejected := media.NormalizeAll(raw)
	for _, err := range rejected {
		c.logger.Warn("reel rejected", "error", err)
	}
	added := 0
	for _, it := range valid {
		if c.seen[it.ID] {
			continue
		}
		c.seen[it.ID] = true
		c.items = append(c.items, it)
		added++
	}
	c.detector.SetLength(len(c.items))
	c.logger.Debug("reels merged", "added", added, "total", len(c.items))

	if c.machine == nil && len(c.items) > 0 {
		c.activate(c.detector.Active())
	}
}

// Scroll reports a new scroll offset. Pagination is checked on every
// scroll; playback only moves on Settle.
func (c *Controller) Scroll(top float64) int {
	active := c.detector.Scroll(top)
	c.maybePaginate(active)
	return active
}

// Settle is called when scrolling goes idle. It snaps the offset onto the
// nearest reel and makes that reel the one playing. It returns the snapped
// offset and whether a correction was applied.
func (c *Controller) Settle() (float64, bool) {
	offset, corrected := c.detector.Settle()
	active := c.detector.Active()
	if active >= 0 {
		c.activate(active)
		c.maybePaginate(active)
	}
	return offset, corrected
}

// Next scrolls to the following reel and settles.
func (c *Controller) Next() int {
	return c.scrollBy(1)
}

// Previous scrolls to the preceding reel and settles.
func (c *Controller) Previous() int {
	return c.scrollBy(-1)
}

func (c *Controller) scrollBy(n int) int {
	if c.detector.Length() == 0 {
		return -1
	}
	c.Scroll(c.detector.ScrollTo(c.detector.Active() + n))
	c.Settle()
	return c.active
}

// Gesture routes an intent: vertical swipes move the feed, everything else
// goes to the active reel's sequence.
func (c *Controller) Gesture(intent gesture.Intent) {
	switch intent {
	case gesture.IntentNone:
	case gesture.IntentFeedNext:
		c.Next()
	case gesture.IntentFeedPrevious:
		c.Previous()
	default:
		c.dispatch(sequencer.Gesture(intent))
	}
}

// Tick forwards a timer tick to the active reel.
func (c *Controller) Tick() {
	c.dispatch(sequencer.Tick())
}

// SetMuted sets the feed-wide mute preference. Every reel activated later
// starts with it.
func (c *Controller) SetMuted(muted bool) {
	c.muted = muted
	c.dispatch(sequencer.Mute(muted))
}

// Close finalizes the active reel.
func (c *Controller) Close() {
	if c.machine != nil {
		if err := c.machine.Close(); err != nil && !sequencer.IsClosed(err) {
			c.logger.Warn("close reel", "error", err)
		}
	}
}

func (c *Controller) activate(i int) {
	if i == c.active && c.machine != nil && c.machine.Snapshot().Status != sequencer.StatusClosed {
		return
	}
	c.Close()

	item := c.items[i]
	opts := []sequencer.Option{
		sequencer.WithClock(c.cfg.Clock),
		sequencer.WithLogger(c.logger),
		sequencer.WithRunner(c.cfg.Runner),
		sequencer.WithLoop(c.cfg.Loop),
		sequencer.WithMuted(c.muted),
		sequencer.WithGenerations(c.gens),
		sequencer.WithSessionIDs(c.cfg.SessionIDs),
		sequencer.WithDefaultDuration(c.cfg.DefaultDuration),
	}
	if c.cfg.Playback != nil {
		opts = append(opts, sequencer.WithPlayback(c.cfg.Playback))
	}
	for _, l := range c.cfg.Listeners {
		opts = append(opts, sequencer.WithListener(l))
	}

	c.active = i
	c.machine = sequencer.Single(item, opts...)
	if err := c.machine.Open(sequencer.Position{}); err != nil {
		c.logger.Error("open reel", "item", item.ID, "error", err)
		return
	}
	c.logger.Debug("reel active", "index", i, "item", item.ID)
}

func (c *Controller) maybePaginate(active int) {
	n := len(c.items)
	if n == 0 || active < n-c.cfg.Threshold {
		return
	}
	if !c.pager.HasMore() || c.pager.InFlight() {
		return
	}
	if err := c.pager.Request(); err != nil && !errors.Is(err, paging.ErrInFlight) {
		c.notice = err
		c.logger.Warn("pagination not started", "error", err)
	}
}

func (c *Controller) dispatch(ev sequencer.Event) {
	if c.machine == nil {
		return
	}
	if err := c.machine.Dispatch(ev); err != nil && !sequencer.IsStale(err) && !sequencer.IsClosed(err) {
		c.logger.Warn("reel event rejected", "event", ev.Type.String(), "error", err)
	}
}

// Machine returns the active reel's sequence, or nil.
func (c *Controller) Machine() *sequencer.Machine { return c.machine }

// Items returns the loaded reels in feed order.
func (c *Controller) Items() []*media.Item { return c.items }

func (c *Controller) Pager() *paging.Pager { return c.pager }

func (c *Controller) Detector() *Detector { return c.detector }

// Notice returns the last pagination failure, cleared by the next success.
func (c *Controller) Notice() error { return c.notice }

func (c *Controller) Snapshot() Snapshot {
	s := Snapshot{
		Active:    c.active,
		Length:    len(c.items),
		ScrollTop: c.detector.ScrollTop(),
		Cursor:    c.pager.Cursor(),
		InFlight:  c.pager.InFlight(),
		Fetches:   c.pager.Fetches(),
		Muted:     c.muted,
	}
	if c.machine != nil {
		s.Item = c.machine.Snapshot()
	}
	return s
}
