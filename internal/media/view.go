package media

import "time"

// ViewEvent is the analytics record of one activation-to-deactivation span.
//
// It is opened when the item is activated and finalized when it is
// deactivated. Pausing does not finalize it.
type ViewEvent struct {
	ItemID            string     `json:"item_id"`
	ActivationID      string     `json:"activation_id"`
	StartedAt         time.Time  `json:"started_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
	WatchedSeconds    float64    `json:"watched_seconds"`
	CompletionPercent float64    `json:"completion_percent"`
	Loops             int        `json:"loops,omitempty"`
}

// Open reports whether the event has not been finalized yet.
func (v *ViewEvent) Open() bool {
	return v.EndedAt == nil
}

// Finalize closes the event at the given time. The watched duration is
// clamped to zero if the clock moved backwards. Calling Finalize on a closed
// event is a no-op and returns false.
func (v *ViewEvent) Finalize(at time.Time, completion float64) bool {
	if !v.Open() {
		return false
	}
	end := at
	v.EndedAt = &end
	watched := at.Sub(v.StartedAt).Seconds()
	if watched < 0 {
		watched = 0
	}
	v.WatchedSeconds = watched
	v.CompletionPercent = clampPercent(completion * 100)
	return true
}

func clampPercent(p float64) float64 {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	}
	return p
}
