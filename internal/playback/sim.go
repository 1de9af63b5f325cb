package playback

import (
	"sync"
	"time"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

// Sim is a scripted video element. Tests and the scenario runner drive it
// explicitly with Load, Advance, End and Fail.
type Sim struct {
	mu       sync.Mutex
	item     *media.Item
	emit     Emit
	duration time.Duration
	position time.Duration
	playing  bool
	muted    bool
	closed   bool
	blocked  bool
	plays    int
}

// Playing reports whether the element is playing.
func (s *Sim) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

func (s *Sim) Muted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.muted
}

func (s *Sim) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Plays counts accepted Play calls.
func (s *Sim) Plays() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.plays
}

func (s *Sim) Item() *media.Item { return s.item }

// Loaded reports whether metadata has been reported.
func (s *Sim) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration > 0
}

func (s *Sim) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocked {
		return ErrAutoplayBlocked
	}
	s.playing = true
	s.plays++
	return nil
}

func (s *Sim) Pause() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
}

func (s *Sim) SetMuted(muted bool) {
	s.mu.Lock()
	s.muted = muted
	s.mu.Unlock()
}

func (s *Sim) Seek(pos time.Duration) {
	s.mu.Lock()
	s.position = pos
	s.mu.Unlock()
}

func (s *Sim) Close() {
	s.mu.Lock()
	s.closed = true
	s.playing = false
	s.mu.Unlock()
}

// Unblock lets subsequent Play calls succeed.
func (s *Sim) Unblock() {
	s.mu.Lock()
	s.blocked = false
	s.mu.Unlock()
}

// Load reports metadata with the given duration.
func (s *Sim) Load(d time.Duration) {
	s.mu.Lock()
	s.duration = d
	s.mu.Unlock()
	s.send(Event{Kind: EventLoaded, Duration: d})
}

// Advance moves the playhead forward by d if playing, reporting a time
// update and the natural end when the duration is reached.
func (s *Sim) Advance(d time.Duration) {
	s.mu.Lock()
	if !s.playing || s.closed {
		s.mu.Unlock()
		return
	}
	s.position += d
	ended := s.duration > 0 && s.position >= s.duration
	if ended {
		s.position = s.duration
	}
	pos := s.position
	s.mu.Unlock()

	s.send(Event{Kind: EventTimeUpdate, Position: pos})
	if ended {
		s.End()
	}
}

// End reports the natural end of media, loaded or not.
func (s *Sim) End() {
	s.mu.Lock()
	s.playing = false
	s.mu.Unlock()
	s.send(Event{Kind: EventEnded})
}

// Fail reports a load or decode failure.
func (s *Sim) Fail(err error) {
	s.send(Event{Kind: EventError, Err: err})
}

func (s *Sim) send(ev Event) {
	s.mu.Lock()
	closed := s.closed
	s.mu.Unlock()
	if closed || s.emit == nil {
		return
	}
	s.emit(ev)
}

// SimFactory creates Sim adapters and remembers them by item id.
type SimFactory struct {
	mu sync.Mutex
	// BlockAutoplay makes new adapters refuse Play until unblocked.
	BlockAutoplay bool
	sims          map[string]*Sim
	created       []*Sim
}

func NewSimFactory() *SimFactory {
	return &SimFactory{sims: make(map[string]*Sim)}
}

func (f *SimFactory) New(item *media.Item, emit Emit) Adapter {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := &Sim{item: item, emit: emit, blocked: f.BlockAutoplay}
	f.sims[item.ID] = s
	f.created = append(f.created, s)
	return s
}

// Get returns the most recent adapter created for an item.
func (f *SimFactory) Get(itemID string) *Sim {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sims[itemID]
}

// Created returns how many adapters have been created.
func (f *SimFactory) Created() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}
