// Package paging fetches cursor-paginated feeds without blocking the
// writer goroutine.
package paging

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/dispatch"
	"github.com/gvarikaa/new-DapDip-sub001/internal/sequencer"
)

var (
	// ErrInFlight is returned by Request while a fetch is outstanding.
	ErrInFlight = errors.New("page fetch already in flight")
	// ErrExhausted is returned by Request once the feed reported no cursor.
	ErrExhausted = errors.New("feed exhausted")
)

// Fetch loads the page after cursor. An empty cursor loads the first page.
type Fetch func(ctx context.Context, cursor string) (collab.Page, error)

// Result is delivered on the runner once a fetch finishes.
type Result struct {
	// Cursor is the cursor the page was requested with.
	Cursor string
	Page   collab.Page
	Err    error
}

// Config configures a Pager.
type Config struct {
	// Name labels logs and metrics, e.g. "reels" or "stories".
	Name       string
	Fetch      Fetch
	Dispatcher dispatch.Dispatcher
	Runner     sequencer.Runner
	Timeout    time.Duration
	Logger     *slog.Logger
	// OnFetch is told the outcome of every fetch ("ok" or "error").
	OnFetch func(outcome string)
}

// Pager tracks the cursor of one feed and guards against duplicate fetches.
//
// All methods must be called on the writer goroutine; results arrive there
// through the Runner. The in-flight flag is cleared when a result arrives,
// whether it succeeded or not, so a later trigger can retry.
type Pager struct {
	cfg     Config
	logger  *slog.Logger
	deliver func(Result)

	cursor   string
	started  bool
	inFlight bool
	fetches  int
	lastErr  error
}

// New creates a pager. deliver receives each result on the runner.
func New(cfg Config, deliver func(Result)) *Pager {
	if cfg.Runner == nil {
		cfg.Runner = sequencer.Inline{}
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager{
		cfg:     cfg,
		logger:  logger.With("component", "pager", "feed", cfg.Name),
		deliver: deliver,
	}
}

// Seed records the cursor returned with an initial page loaded elsewhere.
func (p *Pager) Seed(cursor string) {
	p.cursor = cursor
	p.started = true
}

// HasMore reports whether another page may exist.
func (p *Pager) HasMore() bool {
	return !p.started || p.cursor != ""
}

func (p *Pager) InFlight() bool { return p.inFlight }

// Fetches counts requests issued so far.
func (p *Pager) Fetches() int { return p.fetches }

func (p *Pager) Cursor() string { return p.cursor }

// LastErr returns the error of the most recent failed fetch, cleared by the
// next success.
func (p *Pager) LastErr() error { return p.lastErr }

// Request starts fetching the next page.
func (p *Pager) Request() error {
	if p.inFlight {
		return ErrInFlight
	}
	if !p.HasMore() {
		return ErrExhausted
	}

	cursor := p.cursor
	p.inFlight = true
	p.fetches++
	p.logger.Debug("fetching page", "cursor", cursor, "fetch", p.fetches)

	err := p.cfg.Dispatcher.Submit(func() {
		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.Timeout)
		defer cancel()
		page, err := p.cfg.Fetch(ctx, cursor)
		p.cfg.Runner.Do(func() { p.finish(Result{Cursor: cursor, Page: page, Err: err}) })
	})
	if err != nil {
		p.inFlight = false
		return fmt.Errorf("request page: %w", err)
	}
	return nil
}

func (p *Pager) finish(res Result) {
	p.inFlight = false
	outcome := "ok"
	if res.Err != nil {
		outcome = "error"
		p.lastErr = res.Err
		p.logger.Warn("page fetch failed", "cursor", res.Cursor, "error", res.Err)
	} else {
		p.lastErr = nil
		p.cursor = res.Page.NextCursor
		p.started = true
		p.logger.Debug("page loaded", "items", len(res.Page.Items), "next_cursor", p.cursor)
	}
	if p.cfg.OnFetch != nil {
		p.cfg.OnFetch(outcome)
	}
	if p.deliver != nil {
		p.deliver(res)
	}
}
