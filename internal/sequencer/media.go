package sequencer

import "github.com/gvarikaa/new-DapDip-sub001/internal/playback"

// onMedia applies a playback adapter event to the current video item.
// The adapter is the only progress source for video; the timer never runs.
func (m *Machine) onMedia(ev playback.Event) {
	a := m.cur
	if a.video == nil {
		m.logger.Debug("media event for timed item ignored", "item", a.item.ID, "kind", ev.Kind.String())
		return
	}

	switch ev.Kind {
	case playback.EventLoaded:
		a.video.Load(ev.Duration)

	case playback.EventTimeUpdate:
		if f := a.video.Update(ev.Position); f > a.progress {
			a.progress = f
		}

	case playback.EventEnded:
		if !a.video.Loaded() {
			// Fast failure: the element ended before metadata arrived.
			m.logger.Debug("ended before metadata", "item", a.item.ID)
		}
		a.video.Complete()
		m.complete(CauseEnded)

	case playback.EventError:
		m.mediaFailed(ev.Err)
	}
}
