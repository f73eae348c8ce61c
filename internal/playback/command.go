package playback

import (
	"math"

	"github.com/tessro/cadence/internal/core"
)

// Command is a playback mutation applied by Machine.Dispatch.
type Command interface {
	apply(s *State, pick func(n int) int)
}

// SelectTrack starts track within playlist. Selecting the current track
// toggles play/pause instead of reloading it.
type SelectTrack struct {
	Track    core.PlaylistItem
	Playlist []core.PlaylistItem
}

func (c SelectTrack) apply(s *State, _ func(int) int) {
	if s.Track != nil && s.Track.ID == c.Track.ID {
		TogglePlayPause{}.apply(s, nil)
		return
	}
	t := c.Track
	s.Track = &t
	s.Playlist = append([]core.PlaylistItem(nil), c.Playlist...)
	start(s)
}

// TogglePlayPause flips between paused and playing.
type TogglePlayPause struct{}

func (TogglePlayPause) apply(s *State, _ func(int) int) {
	if s.Track == nil {
		return
	}
	s.IsPlaying = !s.IsPlaying
}

// SetPlaying forces the playing flag, e.g. after the element refused to start.
type SetPlaying struct {
	Playing bool
}

func (c SetPlaying) apply(s *State, _ func(int) int) {
	s.IsPlaying = c.Playing && s.Track != nil
}

// Advance moves to the next or previous playlist entry and keeps playing.
type Advance struct {
	Direction Direction
}

func (c Advance) apply(s *State, pick func(int) int) {
	advance(s, c.Direction, pick)
}

// TrackEnded is reported when the element reaches the end of the track.
type TrackEnded struct{}

func (TrackEnded) apply(s *State, pick func(int) int) {
	if s.Track == nil {
		return
	}
	if s.Repeat {
		s.CurrentTime = 0
		s.IsPlaying = true
		s.Epoch++
		return
	}
	if !advance(s, Next, pick) {
		// Nowhere to go: rest at the end.
		s.IsPlaying = false
		s.CurrentTime = s.Duration
	}
}

// Seek moves the position, clamped to the known duration.
type Seek struct {
	Time float64
}

func (c Seek) apply(s *State, _ func(int) int) {
	if s.Track == nil || math.IsNaN(c.Time) {
		return
	}
	s.CurrentTime = clamp(c.Time, 0, s.Duration)
}

// SetDuration records the duration reported by the element.
type SetDuration struct {
	Duration float64
}

func (c SetDuration) apply(s *State, _ func(int) int) {
	if s.Track == nil || math.IsNaN(c.Duration) || math.IsInf(c.Duration, 0) {
		return
	}
	s.Duration = math.Max(c.Duration, 0)
	s.CurrentTime = clamp(s.CurrentTime, 0, s.Duration)
}

// SetVolume sets the volume, clamped to [0, 1].
type SetVolume struct {
	Volume float64
}

func (c SetVolume) apply(s *State, _ func(int) int) {
	if math.IsNaN(c.Volume) {
		return
	}
	s.Volume = clamp(c.Volume, 0, 1)
}

// ToggleShuffle flips shuffle.
type ToggleShuffle struct{}

func (ToggleShuffle) apply(s *State, _ func(int) int) {
	s.Shuffle = !s.Shuffle
}

// ToggleRepeat flips repeat.
type ToggleRepeat struct{}

func (ToggleRepeat) apply(s *State, _ func(int) int) {
	s.Repeat = !s.Repeat
}

// Stop returns to idle. Volume, shuffle and repeat are kept.
type Stop struct{}

func (Stop) apply(s *State, _ func(int) int) {
	s.Track = nil
	s.Playlist = nil
	s.IsPlaying = false
	s.CurrentTime = 0
	s.Duration = 0
}

// advance reports whether the current track changed.
func advance(s *State, dir Direction, pick func(int) int) bool {
	n := len(s.Playlist)
	idx := s.Index()
	if n == 0 || idx < 0 {
		return false
	}

	switch {
	case s.Shuffle:
		idx = pick(n)
	case dir == Previous:
		idx = (idx - 1 + n) % n
	default:
		idx = (idx + 1) % n
	}

	t := s.Playlist[idx]
	s.Track = &t
	start(s)
	return true
}

// start plays the current track from the beginning.
func start(s *State) {
	s.CurrentTime = 0
	s.Duration = math.Max(s.Track.DurationSec, 0)
	s.IsPlaying = true
	s.Epoch++
}

func clamp(v, lo, hi float64) float64 {
	if hi < lo {
		hi = lo
	}
	return math.Min(math.Max(v, lo), hi)
}
