// Package playback holds the intended playback state and keeps a media
// element in step with it.
package playback

import (
	"slices"

	"github.com/tessro/cadence/internal/core"
)

// DefaultVolume is the volume of a fresh machine.
const DefaultVolume = 0.5

// Status is the coarse playback state.
type Status int

const (
	StatusIdle Status = iota // no current track
	StatusPaused
	StatusPlaying
)

// String returns the status name.
func (s Status) String() string {
	switch s {
	case StatusPaused:
		return "paused"
	case StatusPlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Direction selects the neighbour to advance to.
type Direction int

const (
	Next Direction = iota
	Previous
)

// String returns the direction name.
func (d Direction) String() string {
	if d == Previous {
		return "previous"
	}
	return "next"
}

// State is a snapshot of what should be playing.
type State struct {
	Track       *core.PlaylistItem  `json:"track"`
	Playlist    []core.PlaylistItem `json:"playlist"`
	IsPlaying   bool                `json:"is_playing"`
	Volume      float64             `json:"volume"`
	Shuffle     bool                `json:"shuffle"`
	Repeat      bool                `json:"repeat"`
	CurrentTime float64             `json:"current_time"`
	Duration    float64             `json:"duration"`
	// Epoch increases whenever the current track must start again from 0.
	Epoch uint64 `json:"epoch"`
}

// Status reports idle, paused or playing.
func (s State) Status() Status {
	switch {
	case s.Track == nil:
		return StatusIdle
	case s.IsPlaying:
		return StatusPlaying
	default:
		return StatusPaused
	}
}

// Progress returns the fraction of the track elapsed, 0 when unknown.
func (s State) Progress() float64 {
	if s.Duration <= 0 {
		return 0
	}
	return s.CurrentTime / s.Duration
}

// Index returns the position of the current track in the playlist, or -1.
func (s State) Index() int {
	if s.Track == nil {
		return -1
	}
	return core.IndexOf(s.Playlist, s.Track.ID)
}

func (s State) clone() State {
	out := s
	if s.Track != nil {
		t := *s.Track
		out.Track = &t
	}
	out.Playlist = slices.Clone(s.Playlist)
	return out
}

func (s State) equal(o State) bool {
	if (s.Track == nil) != (o.Track == nil) || (s.Track != nil && *s.Track != *o.Track) {
		return false
	}
	return s.IsPlaying == o.IsPlaying &&
		s.Volume == o.Volume &&
		s.Shuffle == o.Shuffle &&
		s.Repeat == o.Repeat &&
		s.CurrentTime == o.CurrentTime &&
		s.Duration == o.Duration &&
		s.Epoch == o.Epoch &&
		slices.Equal(s.Playlist, o.Playlist)
}
