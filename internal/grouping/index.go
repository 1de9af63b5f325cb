// Package grouping partitions a flat story list into per-author queues.
package grouping

import (
	"sort"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

// Build partitions items by author. Authors keep first-seen order; items
// within an author are ordered chronologically (stable on ties, so the
// fetched order breaks them).
func Build(items []*media.Item) []*media.Group {
	var groups []*media.Group
	byAuthor := make(map[string]*media.Group)

	for _, it := range items {
		g, ok := byAuthor[it.Author.ID]
		if !ok {
			g = &media.Group{Author: it.Author}
			byAuthor[it.Author.ID] = g
			groups = append(groups, g)
		}
		g.Items = append(g.Items, it)
	}

	for _, g := range groups {
		sort.SliceStable(g.Items, func(i, j int) bool {
			return g.Items[i].CreatedAt.Before(g.Items[j].CreatedAt)
		})
	}
	return groups
}

// Index holds the backing list and the groups derived from it.
//
// Groups are rebuilt only when the backing list is replaced or extended.
// Mutating an item's Viewed flag does not reorder anything.
type Index struct {
	items  []*media.Item
	seen   map[string]bool
	groups []*media.Group
	pos    map[string]int
}

func NewIndex(items []*media.Item) *Index {
	idx := &Index{}
	idx.Replace(items)
	return idx
}

// Replace swaps the backing list and rebuilds the groups.
func (x *Index) Replace(items []*media.Item) {
	x.items = nil
	x.seen = make(map[string]bool, len(items))
	x.appendUnique(items)
	x.rebuild()
}

// Extend merges a new page into the backing list. Items whose id is already
// present are skipped. It returns the number of items added.
func (x *Index) Extend(items []*media.Item) int {
	added := x.appendUnique(items)
	if added > 0 {
		x.rebuild()
	}
	return added
}

func (x *Index) appendUnique(items []*media.Item) int {
	added := 0
	for _, it := range items {
		if it == nil || x.seen[it.ID] {
			continue
		}
		x.seen[it.ID] = true
		x.items = append(x.items, it)
		added++
	}
	return added
}

func (x *Index) rebuild() {
	x.groups = Build(x.items)
	x.pos = make(map[string]int, len(x.groups))
	for i, g := range x.groups {
		x.pos[g.Author.ID] = i
	}
}

// Groups returns the current groups. The slice is shared; callers must not
// reorder it.
func (x *Index) Groups() []*media.Group {
	return x.groups
}

// Len returns the number of items in the backing list.
func (x *Index) Len() int {
	return len(x.items)
}

// GroupOf returns the group position for an author, or -1.
func (x *Index) GroupOf(authorID string) int {
	if i, ok := x.pos[authorID]; ok {
		return i
	}
	return -1
}

// HasUnseen reports whether the author has any unviewed item.
func (x *Index) HasUnseen(authorID string) bool {
	i := x.GroupOf(authorID)
	if i < 0 {
		return false
	}
	return x.groups[i].HasUnseen()
}

// MarkViewed merges a local viewed flag. It does not rebuild groups.
func (x *Index) MarkViewed(itemID string) bool {
	for _, it := range x.items {
		if it.ID == itemID {
			it.Viewed = true
			return true
		}
	}
	return false
}

// UnseenFirst returns group positions with unseen authors ahead of fully
// seen ones, each part keeping first-seen order. The underlying groups are
// not reordered.
func (x *Index) UnseenFirst() []int {
	order := make([]int, 0, len(x.groups))
	for i, g := range x.groups {
		if g.HasUnseen() {
			order = append(order, i)
		}
	}
	for i, g := range x.groups {
		if !g.HasUnseen() {
			order = append(order, i)
		}
	}
	return order
}
