// Package feed drives the reel feed: which reel is active, when to page,
// and one looping sequence per active reel.
package feed

import "math"

// snapTolerance is how far from an item boundary a settled offset may be
// before it is corrected, in pixels.
const snapTolerance = 0.5

// ActiveIndex derives the active item from the scroll offset. It returns -1
// for an empty feed.
func ActiveIndex(scrollTop, itemHeight float64, length int) int {
	if length <= 0 {
		return -1
	}
	if itemHeight <= 0 {
		return 0
	}
	i := int(math.Round(scrollTop / itemHeight))
	if i < 0 {
		return 0
	}
	if i > length-1 {
		return length - 1
	}
	return i
}

// Detector keeps the scroll offset as the single source of truth. The
// active index is always recomputed from it, never stored.
type Detector struct {
	itemHeight float64
	length     int
	scrollTop  float64
}

func NewDetector(itemHeight float64) *Detector {
	return &Detector{itemHeight: itemHeight}
}

// SetLength updates the number of loaded items.
func (d *Detector) SetLength(n int) { d.length = n }

func (d *Detector) Length() int { return d.length }

func (d *Detector) ItemHeight() float64 { return d.itemHeight }

// Resize changes the item height, keeping the active item in place.
func (d *Detector) Resize(itemHeight float64) {
	active := d.Active()
	d.itemHeight = itemHeight
	if active >= 0 {
		d.scrollTop = float64(active) * itemHeight
	}
}

// Scroll records a new offset and returns the active index it implies.
func (d *Detector) Scroll(top float64) int {
	d.scrollTop = top
	return d.Active()
}

func (d *Detector) ScrollTop() float64 { return d.scrollTop }

// Active returns the index nearest the current offset.
func (d *Detector) Active() int {
	return ActiveIndex(d.scrollTop, d.itemHeight, d.length)
}

// Settle snaps the offset onto the active item. It returns the offset and
// whether a correction was applied.
func (d *Detector) Settle() (float64, bool) {
	active := d.Active()
	if active < 0 {
		return d.scrollTop, false
	}
	snapped := float64(active) * d.itemHeight
	if math.Abs(d.scrollTop-snapped) <= snapTolerance {
		return d.scrollTop, false
	}
	d.scrollTop = snapped
	return snapped, true
}

// ScrollTo moves the offset onto item i, clamped to the loaded range.
func (d *Detector) ScrollTo(i int) float64 {
	if d.length <= 0 {
		return d.scrollTop
	}
	if i < 0 {
		i = 0
	}
	if i > d.length-1 {
		i = d.length - 1
	}
	d.scrollTop = float64(i) * d.itemHeight
	return d.scrollTop
}
