package sequencer

import "github.com/gvarikaa/new-DapDip-sub001/internal/media"

// step moves one item forward or backward.
//
// Forward past the end of a group enters the next group at index 0; past
// the last group the sequence closes. Backward from index 0 enters the
// previous group at index 0; before the first group the sequence closes.
func (m *Machine) step(dir int, cause Cause) {
	target, ok := m.neighbor(m.pos, dir)
	if !ok {
		reason := CauseEnd
		if cause == CauseGesture && dir < 0 {
			reason = CauseGesture
		}
		m.close(reason)
		return
	}
	m.activate(target, cause)
}

func (m *Machine) neighbor(p Position, dir int) (Position, bool) {
	if dir > 0 {
		if p.Index+1 < len(m.groups[p.Group].Items) {
			return Position{Group: p.Group, Index: p.Index + 1}, true
		}
		for g := p.Group + 1; g < len(m.groups); g++ {
			if len(m.groups[g].Items) > 0 {
				return Position{Group: g}, true
			}
		}
		return Position{}, false
	}

	if p.Index > 0 {
		return Position{Group: p.Group, Index: p.Index - 1}, true
	}
	for g := p.Group - 1; g >= 0; g-- {
		if len(m.groups[g].Items) > 0 {
			return Position{Group: g}, true
		}
	}
	return Position{}, false
}

func (m *Machine) valid(p Position) bool {
	return p.Group >= 0 && p.Group < len(m.groups) &&
		p.Index >= 0 && p.Index < len(m.groups[p.Group].Items)
}

func (m *Machine) itemAt(p Position) *media.Item {
	return m.groups[p.Group].Items[p.Index]
}

func (m *Machine) totalItems() int {
	n := 0
	for _, g := range m.groups {
		n += len(g.Items)
	}
	return n
}

// HasNext reports whether a forward step would stay open.
func (m *Machine) HasNext() bool {
	if !m.valid(m.pos) {
		return false
	}
	_, ok := m.neighbor(m.pos, 1)
	return ok
}

// Replace swaps the playlist, keeping the active item where it now lives.
// It is used when a new page of groups is merged in. The active item keeps
// its activation: its timer, progress and view continue undisturbed.
//
// Called from a listener, the swap is queued behind the transition being
// delivered and any error is logged instead of returned.
func (m *Machine) Replace(groups []*media.Group) error {
	if m.dispatching {
		m.pending = append(m.pending, Event{Type: EventReplace, Groups: groups})
		return nil
	}
	return m.exec(func() error { return m.replace(groups) })
}

func (m *Machine) replace(groups []*media.Group) error {
	if m.cur == nil {
		m.groups = groups
		return nil
	}
	id := m.cur.item.ID
	for gi, g := range groups {
		if ii := g.IndexOf(id); ii >= 0 {
			m.groups = groups
			m.pos = Position{Group: gi, Index: ii}
			m.cur.stamp.Position = m.pos
			m.emit(m.transition(TransitionReplaced, CauseReplace))
			return nil
		}
	}
	return newPositionError(m.pos, len(groups))
}
