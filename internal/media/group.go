package media

// Group is an author's ordered queue of story items.
type Group struct {
	Author AuthorRef
	Items  []*Item
}

// HasUnseen is derived from the items' local Viewed flags; it is never stored.
func (g *Group) HasUnseen() bool {
	for _, it := range g.Items {
		if !it.Viewed {
			return true
		}
	}
	return false
}

// FirstUnseen returns the index of the first unviewed item, or 0 when every
// item has been seen.
func (g *Group) FirstUnseen() int {
	for i, it := range g.Items {
		if !it.Viewed {
			return i
		}
	}
	return 0
}

// IndexOf returns the position of the item with the given id, or -1.
func (g *Group) IndexOf(itemID string) int {
	for i, it := range g.Items {
		if it.ID == itemID {
			return i
		}
	}
	return -1
}
