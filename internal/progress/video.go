package progress

import "time"

// Video tracks progress reported by a playback adapter.
//
// Until metadata has loaded the fraction is held at 0. Afterwards it is
// position/duration, kept non-decreasing within one pass.
type Video struct {
	duration time.Duration
	loaded   bool
	fraction float64
}

// Load records the real media duration.
func (v *Video) Load(d time.Duration) {
	v.duration = d
	v.loaded = d > 0
}

func (v *Video) Loaded() bool { return v.loaded }

func (v *Video) Duration() time.Duration { return v.duration }

// Update applies a playback position and returns the fraction.
func (v *Video) Update(pos time.Duration) float64 {
	if !v.loaded {
		return 0
	}
	if f := clamp(float64(pos) / float64(v.duration)); f > v.fraction {
		v.fraction = f
	}
	return v.fraction
}

// Complete pins the fraction at 1.
func (v *Video) Complete() {
	v.fraction = 1
}

// Reset starts another pass keeping the loaded duration.
func (v *Video) Reset() {
	v.fraction = 0
}

func (v *Video) Fraction() float64 { return v.fraction }
