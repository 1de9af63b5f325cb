// Package fixture serves the collaborator operations from a YAML file. It
// backs `seqctl serve` and the scenario harness.
package fixture

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/gvarikaa/new-DapDip-sub001/internal/collab"
	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

const DefaultPageSize = 10

var (
	ErrBadCursor = errors.New("bad cursor")
	// ErrInjected is returned for calls consumed by a configured failure.
	ErrInjected = errors.New("injected failure")
)

// Fixture is the YAML document.
type Fixture struct {
	PageSize int          `yaml:"page_size"`
	Stories  []media.Item `yaml:"stories"`
	Reels    []media.Item `yaml:"reels"`
	// Failures fails the first N calls of each operation.
	Failures Failures `yaml:"failures"`
}

type Failures struct {
	FetchStoryFeed            int `yaml:"fetch_story_feed"`
	FetchReelFeed             int `yaml:"fetch_reel_feed"`
	RecordView                int `yaml:"record_view"`
	SubmitInteractiveResponse int `yaml:"submit_interactive_response"`
	ToggleReaction            int `yaml:"toggle_reaction"`
}

// Parse decodes a fixture, rejecting unknown fields.
func Parse(data []byte) (*Fixture, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	var f Fixture
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("decode fixture: %w", err)
	}
	if f.PageSize < 0 {
		return nil, fmt.Errorf("page_size must not be negative")
	}
	return &f, nil
}

// Load reads and parses a fixture file.
func Load(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture: %w", err)
	}
	return Parse(data)
}

// Reply is a composer reply received for an item.
type Reply struct {
	ItemID string
	Text   string
}

// Backend is an in-memory collab.Client over a Fixture.
//
// Thread-safety: safe for concurrent use.
type Backend struct {
	mu        sync.Mutex
	pageSize  int
	stories   []media.Item
	reels     []media.Item
	items     map[string]*media.Item
	widgets   map[string]*media.Widget
	failures  map[string]int
	views     []collab.ViewRecord
	replies   []Reply
	reactions map[string]map[string]bool
	calls     map[string]int
}

var _ collab.Client = (*Backend)(nil)

func NewBackend(f *Fixture) *Backend {
	b := &Backend{
		pageSize:  f.PageSize,
		stories:   f.Stories,
		reels:     f.Reels,
		items:     make(map[string]*media.Item),
		widgets:   make(map[string]*media.Widget),
		reactions: make(map[string]map[string]bool),
		calls:     make(map[string]int),
		failures: map[string]int{
			OpFetchStoryFeed: f.Failures.FetchStoryFeed,
			OpFetchReelFeed:  f.Failures.FetchReelFeed,
			OpRecordView:     f.Failures.RecordView,
			OpSubmitResponse: f.Failures.SubmitInteractiveResponse,
			OpToggleReaction: f.Failures.ToggleReaction,
		},
	}
	if b.pageSize == 0 {
		b.pageSize = DefaultPageSize
	}
	for _, list := range [][]media.Item{b.stories, b.reels} {
		for i := range list {
			it := &list[i]
			b.items[it.ID] = it
			if it.Widget != nil {
				b.widgets[it.Widget.ID] = it.Widget
			}
		}
	}
	return b
}

// Operation names accepted by FailNext and Calls.
const (
	OpFetchStoryFeed = "fetchStoryFeed"
	OpFetchReelFeed  = "fetchReelFeed"
	OpRecordView     = "recordView"
	OpSubmitResponse = "submitInteractiveResponse"
	OpToggleReaction = "toggleReaction"
)

// call counts the operation and consumes one injected failure. Callers
// hold b.mu.
func (b *Backend) call(op string) error {
	b.calls[op]++
	if b.failures[op] > 0 {
		b.failures[op]--
		return fmt.Errorf("%s: %w", op, ErrInjected)
	}
	return nil
}

// FailNext makes the next n calls of op fail.
func (b *Backend) FailNext(op string, n int) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.failures[op] += n
}

func (b *Backend) FetchStoryFeed(_ context.Context, filter collab.StoryFilter) (collab.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call(OpFetchStoryFeed); err != nil {
		return collab.Page{}, err
	}
	items := b.stories
	if filter.AuthorID != "" {
		items = nil
		for _, it := range b.stories {
			if it.Author.ID == filter.AuthorID {
				items = append(items, it)
			}
		}
	}
	return b.page(items, filter.Cursor, filter.Limit)
}

func (b *Backend) FetchReelFeed(_ context.Context, cursor string) (collab.Page, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call(OpFetchReelFeed); err != nil {
		return collab.Page{}, err
	}
	return b.page(b.reels, cursor, 0)
}

// page slices items at the offset encoded in cursor.
func (b *Backend) page(items []media.Item, cursor string, limit int) (collab.Page, error) {
	offset := 0
	if cursor != "" {
		n, err := strconv.Atoi(cursor)
		if err != nil || n < 0 || n > len(items) {
			return collab.Page{}, fmt.Errorf("%w %q", ErrBadCursor, cursor)
		}
		offset = n
	}
	if limit <= 0 {
		limit = b.pageSize
	}
	end := min(offset+limit, len(items))

	page := collab.Page{Items: make([]media.Item, 0, end-offset)}
	for _, it := range items[offset:end] {
		page.Items = append(page.Items, copyItem(it))
	}
	if end < len(items) {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// copyItem detaches the widget so clients cannot mutate backend state.
func copyItem(it media.Item) media.Item {
	if it.Widget != nil {
		w := *it.Widget
		w.Aggregate = copyAggregate(w.Aggregate)
		it.Widget = &w
	}
	return it
}

func copyAggregate(a *media.Aggregate) *media.Aggregate {
	if a == nil {
		return nil
	}
	out := *a
	if a.Counts != nil {
		out.Counts = make(map[string]int, len(a.Counts))
		for k, v := range a.Counts {
			out.Counts[k] = v
		}
	}
	return &out
}

func (b *Backend) RecordView(_ context.Context, v collab.ViewRecord) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call(OpRecordView); err != nil {
		return err
	}
	if _, ok := b.items[v.ItemID]; !ok {
		return fmt.Errorf("item %s: %w", v.ItemID, collab.ErrNotFound)
	}
	b.views = append(b.views, v)
	return nil
}

const replyPrefix = "reply:"

func (b *Backend) SubmitInteractiveResponse(_ context.Context, widgetID, value string) (collab.SubmitResult, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call(OpSubmitResponse); err != nil {
		return collab.SubmitResult{}, err
	}

	if itemID, ok := strings.CutPrefix(widgetID, replyPrefix); ok {
		if _, ok := b.items[itemID]; !ok {
			return collab.SubmitResult{}, fmt.Errorf("item %s: %w", itemID, collab.ErrNotFound)
		}
		b.replies = append(b.replies, Reply{ItemID: itemID, Text: value})
		return collab.SubmitResult{}, nil
	}

	w, ok := b.widgets[widgetID]
	if !ok {
		return collab.SubmitResult{}, fmt.Errorf("widget %s: %w", widgetID, collab.ErrNotFound)
	}
	if err := w.CheckValue(value); err != nil {
		return collab.SubmitResult{}, err
	}
	tally(w, value)
	return collab.SubmitResult{Aggregate: copyAggregate(w.Aggregate)}, nil
}

func tally(w *media.Widget, value string) {
	if w.Aggregate == nil {
		w.Aggregate = &media.Aggregate{}
	}
	a := w.Aggregate
	switch w.Kind {
	case media.WidgetPoll:
		if a.Counts == nil {
			a.Counts = make(map[string]int)
		}
		a.Counts[value]++
	case media.WidgetSlider:
		v, _ := strconv.ParseFloat(value, 64)
		a.Average = (a.Average*float64(a.Total) + v) / float64(a.Total+1)
	}
	a.Total++
}

func (b *Backend) ToggleReaction(_ context.Context, itemID, emoji string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if err := b.call(OpToggleReaction); err != nil {
		return err
	}
	if _, ok := b.items[itemID]; !ok {
		return fmt.Errorf("item %s: %w", itemID, collab.ErrNotFound)
	}
	set := b.reactions[itemID]
	if set == nil {
		set = make(map[string]bool)
		b.reactions[itemID] = set
	}
	set[emoji] = !set[emoji]
	return nil
}

// Views returns the recorded view records in arrival order.
func (b *Backend) Views() []collab.ViewRecord {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]collab.ViewRecord(nil), b.views...)
}

func (b *Backend) Replies() []Reply {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Reply(nil), b.replies...)
}

func (b *Backend) Reacted(itemID, emoji string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reactions[itemID][emoji]
}

// Aggregate returns a copy of the widget's current results.
func (b *Backend) Aggregate(widgetID string) (*media.Aggregate, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	w, ok := b.widgets[widgetID]
	if !ok {
		return nil, false
	}
	return copyAggregate(w.Aggregate), true
}

// Calls reports how many times op was invoked, failures included.
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}
