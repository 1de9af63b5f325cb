// Package overlay coordinates interactive widgets, the reply composer and
// reactions with the sequencer.
package overlay

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
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
	"github.com/gvarikaa/new-DapDip-sub001/internal/store"
)

var (
	ErrNoOverlay  = errors.New("no overlay open")
	ErrAnswered   = errors.New("widget already answered")
	ErrSubmitting = errors.New("submission in flight")
	ErrNoItem     = errors.New("no active item")
	ErrNoWidget   = errors.New("item has no widget")
)

// Kind says what the open overlay is.
type Kind string

const (
	KindWidget   Kind = "widget"
	KindComposer Kind = "composer"
)

// ComposerWidgetID is the widget id replies are submitted under.
func ComposerWidgetID(itemID string) string {
	return "reply:" + itemID
}

// Overlay describes the overlay currently shown.
type Overlay struct {
	Kind     Kind
	ItemID   string
	WidgetID string
	Stamp    sequencer.Stamp
	// ReadOnly overlays show results and do not pause.
	ReadOnly   bool
	Submitting bool
	// Err is the last submission failure, cleared on retry.
	Err error
}

// Target is the sequencer the coordinator pauses and resumes.
// *sequencer.Machine implements it.
type Target interface {
	Dispatch(ev sequencer.Event) error
	Current() (*media.Item, sequencer.Stamp)
}

// Journal records responses and reactions locally. *store.Store implements it.
type Journal interface {
	SaveResponse(ctx context.Context, itemID string, r media.InteractiveResponse, status store.ResponseStatus) error
	SaveReaction(ctx context.Context, r media.Reaction, at time.Time) error
}

var _ Journal = (*store.Store)(nil)

// Config configures a Coordinator. Journal and Metrics are optional.
type Config struct {
	Client     collab.Client
	Dispatcher dispatch.Dispatcher
	Runner     sequencer.Runner
	Clock      clockwork.Clock
	Journal    Journal
	Metrics    analytics.Collector
	Logger     *slog.Logger
	Timeout    time.Duration
	// PauseOnWidget opens an unanswered widget automatically on activation.
	PauseOnWidget bool
}

// Coordinator owns at most one overlay for the active item.
//
// It is a sequencer listener and must only be used on the writer
// goroutine. Network results come back through the Runner.
type Coordinator struct {
	cfg    Config
	target Target
	logger *slog.Logger

	open      *Overlay
	reactions map[reactionKey]bool
	pending   map[reactionKey]int
}

type reactionKey struct {
	itemID string
	emoji  string
}

func New(target Target, cfg Config) *Coordinator {
	if cfg.Runner == nil {
		cfg.Runner = sequencer.Inline{}
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = analytics.Nop{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		cfg:       cfg,
		target:    target,
		logger:    logger.With("component", "overlay"),
		reactions: make(map[reactionKey]bool),
		pending:   make(map[reactionKey]int),
	}
}

// Current returns the open overlay.
func (c *Coordinator) Current() (Overlay, bool) {
	if c.open == nil {
		return Overlay{}, false
	}
	return *c.open, true
}

func (c *Coordinator) OnTransition(t sequencer.Transition) {
	switch t.Kind {
	case sequencer.TransitionActivated:
		c.open = nil
		if c.cfg.PauseOnWidget && t.Item.HasPendingWidget() {
			c.show(KindWidget, t.Item, t.Item.Widget.ID, t.Stamp, false)
		}
	case sequencer.TransitionReplaced:
		if c.open != nil {
			c.open.Stamp = t.Stamp
		}
	case sequencer.TransitionDeactivated, sequencer.TransitionClosed:
		c.open = nil
	}
}

// OpenWidget shows the active item's widget. An answered widget opens
// read-only and leaves playback running.
func (c *Coordinator) OpenWidget() error {
	item, stamp := c.target.Current()
	if item == nil {
		return ErrNoItem
	}
	if item.Widget == nil {
		return ErrNoWidget
	}
	c.show(KindWidget, item, item.Widget.ID, stamp, item.Widget.Answered())
	return nil
}

// OpenComposer shows the reply composer for the active item.
func (c *Coordinator) OpenComposer() error {
	item, stamp := c.target.Current()
	if item == nil {
		return ErrNoItem
	}
	c.show(KindComposer, item, ComposerWidgetID(item.ID), stamp, false)
	return nil
}

func (c *Coordinator) show(kind Kind, item *media.Item, widgetID string, stamp sequencer.Stamp, readOnly bool) {
	// One overlay per item: a new one replaces the old without toggling
	// the pause in between.
	wasPausing := c.open != nil && !c.open.ReadOnly
	c.open = &Overlay{Kind: kind, ItemID: item.ID, WidgetID: widgetID, Stamp: stamp, ReadOnly: readOnly}

	switch {
	case !readOnly && !wasPausing:
		c.dispatch(sequencer.Overlay(stamp, true))
	case readOnly && wasPausing:
		c.dispatch(sequencer.Overlay(stamp, false))
	}
}

// Dismiss closes the overlay without side effects and resumes playback.
// A submission already in flight still settles into the widget.
func (c *Coordinator) Dismiss() error {
	o := c.open
	if o == nil {
		return ErrNoOverlay
	}
	c.open = nil
	if !o.ReadOnly {
		c.dispatch(sequencer.Overlay(o.Stamp, false))
	}
	return nil
}

// Submit sends a response for the open overlay.
//
// The widget is marked answered immediately. On success the server
// aggregate is merged, the overlay closes and playback resumes. On failure
// the response is reverted and the overlay stays open with playback paused.
func (c *Coordinator) Submit(value string) error {
	o := c.open
	switch {
	case o == nil:
		return ErrNoOverlay
	case o.ReadOnly:
		return ErrAnswered
	case o.Submitting:
		return ErrSubmitting
	}

	item, _ := c.target.Current()
	if item == nil || item.ID != o.ItemID {
		return ErrNoItem
	}

	resp := media.InteractiveResponse{WidgetID: o.WidgetID, Value: value, SubmittedAt: c.cfg.Clock.Now()}
	var (
		widget   *media.Widget
		previous *media.InteractiveResponse
	)
	if o.Kind == KindWidget {
		widget = item.Widget
		if err := widget.CheckValue(value); err != nil {
			return fmt.Errorf("submit response: %w", err)
		}
		previous = widget.Response
		widget.Response = &resp
	}

	o.Submitting = true
	o.Err = nil
	c.journalResponse(item.ID, resp, store.ResponsePending)

	err := c.cfg.Dispatcher.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		res, err := c.cfg.Client.SubmitInteractiveResponse(ctx, resp.WidgetID, value)
		c.cfg.Runner.Do(func() { c.settle(o, item, widget, previous, resp, res, err) })
	})
	if err != nil {
		c.settle(o, item, widget, previous, resp, collab.SubmitResult{}, err)
		return fmt.Errorf("submit response: %w", err)
	}
	return nil
}

func (c *Coordinator) settle(o *Overlay, item *media.Item, widget *media.Widget, previous *media.InteractiveResponse,
	resp media.InteractiveResponse, res collab.SubmitResult, err error) {
	o.Submitting = false

	if err != nil {
		if widget != nil {
			widget.Response = previous
		}
		o.Err = err
		c.cfg.Metrics.ResponseSubmitted("reverted")
		c.journalResponse(item.ID, resp, store.ResponseReverted)
		c.logger.Warn("response submission failed", "widget", resp.WidgetID, "error", err)
		return
	}

	if widget != nil && res.Aggregate != nil {
		widget.Aggregate = res.Aggregate
	}
	c.cfg.Metrics.ResponseSubmitted("acked")
	c.journalResponse(item.ID, resp, store.ResponseAcked)

	if c.open != o {
		// Dismissed or navigated away while in flight.
		return
	}
	c.open = nil
	c.dispatch(sequencer.Overlay(o.Stamp, false))
}

// ToggleReaction flips the local user's reaction on the active item. The
// flip is applied immediately and reverted if the collaborator rejects it.
// Playback is not affected.
func (c *Coordinator) ToggleReaction(emoji string) error {
	item, _ := c.target.Current()
	if item == nil {
		return ErrNoItem
	}
	key := reactionKey{itemID: item.ID, emoji: emoji}
	active := !c.reactions[key]
	c.reactions[key] = active
	c.pending[key]++
	c.journalReaction(key, active)

	err := c.cfg.Dispatcher.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), c.cfg.Timeout)
		defer cancel()
		err := c.cfg.Client.ToggleReaction(ctx, key.itemID, key.emoji)
		c.cfg.Runner.Do(func() { c.settleReaction(key, active, err) })
	})
	if err != nil {
		c.settleReaction(key, active, err)
		return fmt.Errorf("toggle reaction: %w", err)
	}
	return nil
}

func (c *Coordinator) settleReaction(key reactionKey, active bool, err error) {
	c.pending[key]--
	if c.pending[key] <= 0 {
		delete(c.pending, key)
	}
	if err == nil {
		return
	}
	c.logger.Warn("reaction failed", "item", key.itemID, "emoji", key.emoji, "error", err)
	// Revert only if no later toggle has overwritten this one.
	if c.reactions[key] == active {
		c.reactions[key] = !active
		c.journalReaction(key, !active)
	}
}

// Reacted reports the local reaction state.
func (c *Coordinator) Reacted(itemID, emoji string) bool {
	return c.reactions[reactionKey{itemID: itemID, emoji: emoji}]
}

func (c *Coordinator) dispatch(ev sequencer.Event) {
	if err := c.target.Dispatch(ev); err != nil && !sequencer.IsStale(err) && !sequencer.IsClosed(err) {
		c.logger.Warn("overlay event rejected", "error", err)
	}
}

func (c *Coordinator) journalResponse(itemID string, r media.InteractiveResponse, status store.ResponseStatus) {
	if c.cfg.Journal == nil {
		return
	}
	if err := c.cfg.Journal.SaveResponse(context.Background(), itemID, r, status); err != nil {
		c.logger.Warn("journal response", "widget", r.WidgetID, "error", err)
	}
}

func (c *Coordinator) journalReaction(key reactionKey, active bool) {
	if c.cfg.Journal == nil {
		return
	}
	r := media.Reaction{ItemID: key.itemID, Emoji: key.emoji, Active: active}
	if err := c.cfg.Journal.SaveReaction(context.Background(), r, c.cfg.Clock.Now()); err != nil {
		c.logger.Warn("journal reaction", "item", key.itemID, "error", err)
	}
}
