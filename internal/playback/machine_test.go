package playback

import (
	"math"
	"testing"
	"time"

	"github.com/tessro/cadence/internal/core"
)

func playlist() []core.PlaylistItem {
	return []core.PlaylistItem{
		{ID: 1, Title: "One", MediaURL: "https://cdn/1.mp3", DurationSec: 100},
		{ID: 2, Title: "Two", MediaURL: "https://cdn/2.mp3", DurationSec: 200},
		{ID: 3, Title: "Three", MediaURL: "https://cdn/3.mp3", DurationSec: 300},
	}
}

func TestNewMachineDefaults(t *testing.T) {
	st := NewMachine().State()
	if st.Track != nil || st.IsPlaying || st.Volume != DefaultVolume {
		t.Errorf("initial state = %+v", st)
	}
	if st.Status() != StatusIdle {
		t.Errorf("Status() = %v, want idle", st.Status())
	}
}

func TestSelectTrack(t *testing.T) {
	m := NewMachine()
	pl := playlist()

	st := m.SelectTrack(pl[1], pl)
	if st.Track == nil || st.Track.ID != 2 {
		t.Fatalf("Track = %+v, want 2", st.Track)
	}
	if !st.IsPlaying || st.CurrentTime != 0 || st.Duration != 200 {
		t.Errorf("state = %+v", st)
	}
	if len(st.Playlist) != 3 || st.Epoch != 1 {
		t.Errorf("Playlist len = %d Epoch = %d", len(st.Playlist), st.Epoch)
	}

	// Mutating the caller's slice does not leak into the machine.
	pl[0].Title = "changed"
	if m.State().Playlist[0].Title != "One" {
		t.Error("playlist aliased caller slice")
	}
}

func TestSelectSameTrackToggles(t *testing.T) {
	m := NewMachine()
	pl := playlist()
	m.SelectTrack(pl[0], pl)
	m.Seek(42)

	st := m.SelectTrack(pl[0], pl)
	if st.IsPlaying {
		t.Error("selecting the current track should pause")
	}
	if st.CurrentTime != 42 || st.Epoch != 1 {
		t.Errorf("reselect reloaded: time = %v epoch = %d", st.CurrentTime, st.Epoch)
	}

	st = m.SelectTrack(pl[0], pl)
	if !st.IsPlaying || st.CurrentTime != 42 {
		t.Errorf("second reselect = %+v, want playing at 42", st)
	}
}

func TestTogglePlayPauseIdleIsNoop(t *testing.T) {
	m := NewMachine()
	if st := m.TogglePlayPause(); st.IsPlaying {
		t.Error("toggle from idle should not play")
	}
	if st := m.Dispatch(SetPlaying{Playing: true}); st.IsPlaying {
		t.Error("SetPlaying(true) from idle should not play")
	}
}

func TestAdvanceWraps(t *testing.T) {
	m := NewMachine()
	pl := playlist()

	m.SelectTrack(pl[2], pl)
	if st := m.Next(); st.Track.ID != 1 {
		t.Errorf("Next() from last = %d, want 1", st.Track.ID)
	}
	if st := m.Previous(); st.Track.ID != 3 {
		t.Errorf("Previous() from first = %d, want 3", st.Track.ID)
	}
	if st := m.Previous(); st.Track.ID != 2 {
		t.Errorf("Previous() = %d, want 2", st.Track.ID)
	}
}

func TestAdvanceResetsPositionAndPlays(t *testing.T) {
	m := NewMachine()
	pl := playlist()
	m.SelectTrack(pl[0], pl)
	m.Seek(50)
	m.TogglePlayPause()

	st := m.Next()
	if st.CurrentTime != 0 || !st.IsPlaying || st.Duration != 200 {
		t.Errorf("after Next() state = %+v", st)
	}
}

func TestAdvanceRequiresMembership(t *testing.T) {
	m := NewMachine()
	pl := playlist()

	if st := m.Next(); st.Track != nil {
		t.Error("Next() from idle should do nothing")
	}

	outsider := core.PlaylistItem{ID: 9, MediaURL: "https://cdn/9.mp3"}
	m.SelectTrack(outsider, pl)
	before := m.State()
	if st := m.Next(); st.Track.ID != 9 || st.Epoch != before.Epoch {
		t.Errorf("Next() with track outside playlist moved to %d", st.Track.ID)
	}

	m.Stop()
	m.SelectTrack(pl[0], nil)
	if st := m.Next(); st.Track.ID != 1 {
		t.Error("Next() with empty playlist should do nothing")
	}
}

func TestShuffleUsesPicker(t *testing.T) {
	var gotN int
	m := NewMachine(WithShuffle(true), WithPicker(func(n int) int { gotN = n; return 0 }))
	pl := playlist()
	m.SelectTrack(pl[0], pl)

	// Shuffle may land on the current track.
	st := m.Next()
	if gotN != 3 || st.Track.ID != 1 {
		t.Errorf("picker n = %d track = %d", gotN, st.Track.ID)
	}
	if st.Epoch != 2 || st.CurrentTime != 0 {
		t.Errorf("shuffle landing on current track should restart it: %+v", st)
	}
}

func TestShuffleStaysInPlaylist(t *testing.T) {
	m := NewMachine(WithShuffle(true))
	pl := playlist()
	m.SelectTrack(pl[0], pl)
	for i := 0; i < 50; i++ {
		st := m.Next()
		if core.IndexOf(pl, st.Track.ID) < 0 {
			t.Fatalf("shuffle picked %d outside playlist", st.Track.ID)
		}
	}
}

func TestTrackEnded(t *testing.T) {
	pl := playlist()

	t.Run("repeat restarts", func(t *testing.T) {
		m := NewMachine(WithRepeat(true))
		m.SelectTrack(pl[1], pl)
		m.Dispatch(SetDuration{Duration: 201.5})
		m.Seek(201)
		st := m.TrackEnded()
		if st.Track.ID != 2 || st.CurrentTime != 0 || !st.IsPlaying {
			t.Errorf("state = %+v", st)
		}
		if st.Duration != 201.5 || st.Epoch != 2 {
			t.Errorf("Duration = %v Epoch = %d", st.Duration, st.Epoch)
		}
	})

	t.Run("advances", func(t *testing.T) {
		m := NewMachine()
		m.SelectTrack(pl[2], pl)
		m.TogglePlayPause()
		st := m.TrackEnded()
		if st.Track.ID != 1 || !st.IsPlaying {
			t.Errorf("state = %+v, want first track playing", st)
		}
	})

	t.Run("nowhere to go", func(t *testing.T) {
		m := NewMachine()
		m.SelectTrack(pl[0], nil)
		st := m.TrackEnded()
		if st.IsPlaying || st.CurrentTime != st.Duration {
			t.Errorf("state = %+v, want paused at end", st)
		}
	})
}

func TestSeekClamps(t *testing.T) {
	m := NewMachine()
	pl := playlist()

	if st := m.Seek(10); st.CurrentTime != 0 {
		t.Error("Seek() from idle should be ignored")
	}

	m.SelectTrack(pl[0], pl)
	tests := []struct {
		in, want float64
	}{
		{50, 50},
		{-5, 0},
		{500, 100},
		{100, 100},
		{math.NaN(), 100},
	}
	for _, tt := range tests {
		if st := m.Seek(tt.in); st.CurrentTime != tt.want {
			t.Errorf("Seek(%v) = %v, want %v", tt.in, st.CurrentTime, tt.want)
		}
	}

	// Idempotent, playing flag untouched.
	a := m.Seek(30)
	b := m.Seek(30)
	if a.CurrentTime != b.CurrentTime || a.IsPlaying != b.IsPlaying || !b.IsPlaying {
		t.Errorf("Seek not idempotent: %+v vs %+v", a, b)
	}
}

func TestSetDurationClampsPosition(t *testing.T) {
	m := NewMachine()
	pl := playlist()
	m.SelectTrack(pl[0], pl)
	m.Seek(90)

	st := m.Dispatch(SetDuration{Duration: 60})
	if st.Duration != 60 || st.CurrentTime != 60 {
		t.Errorf("state = %+v", st)
	}
}

func TestSetVolumeClamps(t *testing.T) {
	m := NewMachine()
	for _, tt := range []struct{ in, want float64 }{{0.3, 0.3}, {-1, 0}, {2, 1}} {
		if st := m.SetVolume(tt.in); st.Volume != tt.want {
			t.Errorf("SetVolume(%v) = %v, want %v", tt.in, st.Volume, tt.want)
		}
	}
	if NewMachine(WithVolume(7)).State().Volume != 1 {
		t.Error("WithVolume should clamp")
	}
}

func TestTogglesFlipOnlyTheirFlag(t *testing.T) {
	m := NewMachine()
	pl := playlist()
	before := m.SelectTrack(pl[0], pl)

	st := m.ToggleShuffle()
	if !st.Shuffle || st.Repeat || st.IsPlaying != before.IsPlaying || st.Track.ID != before.Track.ID {
		t.Errorf("ToggleShuffle() = %+v", st)
	}
	st = m.ToggleRepeat()
	if !st.Repeat || !st.Shuffle {
		t.Errorf("ToggleRepeat() = %+v", st)
	}
	st = m.ToggleShuffle()
	if st.Shuffle {
		t.Error("second ToggleShuffle() should turn it off")
	}
}

func TestStop(t *testing.T) {
	m := NewMachine()
	pl := playlist()
	m.SelectTrack(pl[0], pl)
	m.SetVolume(0.8)

	st := m.Stop()
	if st.Track != nil || st.IsPlaying || st.Playlist != nil || st.Volume != 0.8 {
		t.Errorf("Stop() = %+v", st)
	}
}

func TestInvariantsHoldAcrossCommands(t *testing.T) {
	m := NewMachine(WithPicker(func(n int) int { return n - 1 }))
	pl := playlist()
	cmds := []Command{
		TogglePlayPause{}, SelectTrack{Track: pl[0], Playlist: pl}, Seek{Time: 1e9},
		SetDuration{Duration: 10}, Advance{Direction: Previous}, ToggleShuffle{},
		TrackEnded{}, Seek{Time: -3}, SetVolume{Volume: 4}, Stop{}, TrackEnded{},
		ToggleRepeat{}, SelectTrack{Track: pl[1], Playlist: pl}, TrackEnded{},
	}
	for _, c := range cmds {
		st := m.Dispatch(c)
		if st.Track == nil && st.IsPlaying {
			t.Fatalf("%T: playing with no track", c)
		}
		if st.CurrentTime < 0 || st.CurrentTime > st.Duration {
			t.Fatalf("%T: time %v outside [0, %v]", c, st.CurrentTime, st.Duration)
		}
		if st.Volume < 0 || st.Volume > 1 {
			t.Fatalf("%T: volume %v", c, st.Volume)
		}
	}
}

func TestUnchangedStateIsNotBroadcast(t *testing.T) {
	m := NewMachine()
	pl := playlist()
	m.SelectTrack(pl[0], pl)
	m.TogglePlayPause()

	ch, cancel := m.Subscribe()
	defer cancel()

	m.Dispatch(SetPlaying{Playing: false})
	m.Seek(0)
	m.SetVolume(DefaultVolume)
	select {
	case st := <-ch:
		t.Fatalf("unexpected update %+v", st)
	default:
	}

	m.Seek(10)
	select {
	case st := <-ch:
		if st.CurrentTime != 10 {
			t.Errorf("CurrentTime = %v, want 10", st.CurrentTime)
		}
	default:
		t.Error("no update after seek")
	}
}

func TestSubscribeLatestWins(t *testing.T) {
	m := NewMachine()
	ch, cancel := m.Subscribe()
	defer cancel()

	m.SetVolume(0.1)
	m.SetVolume(0.2)
	m.SetVolume(0.3)

	select {
	case st := <-ch:
		if st.Volume != 0.3 {
			t.Errorf("Volume = %v, want latest 0.3", st.Volume)
		}
	case <-time.After(time.Second):
		t.Fatal("no update")
	}

	select {
	case st := <-ch:
		t.Errorf("unexpected extra update %+v", st)
	default:
	}

	cancel()
	m.SetVolume(0.4)
	select {
	case <-ch:
		t.Error("update after cancel")
	default:
	}
}

func TestStateIsACopy(t *testing.T) {
	m := NewMachine()
	pl := playlist()
	m.SelectTrack(pl[0], pl)

	st := m.State()
	st.Track.Title = "changed"
	st.Playlist[1].Title = "changed"

	again := m.State()
	if again.Track.Title != "One" || again.Playlist[1].Title != "Two" {
		t.Error("State() exposed internal storage")
	}
}
