package playback

import (
	"math/rand/v2"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/logging"
)

// Machine owns the playback state. All mutations go through Dispatch.
type Machine struct {
	mu     sync.Mutex
	state  State
	pick   func(n int) int
	subs   map[int]chan State
	nextID int
	logger *log.Logger
}

// Option configures a Machine.
type Option func(*Machine)

// WithVolume sets the initial volume.
func WithVolume(v float64) Option {
	return func(m *Machine) { SetVolume{Volume: v}.apply(&m.state, nil) }
}

// WithShuffle sets the initial shuffle flag.
func WithShuffle(on bool) Option {
	return func(m *Machine) { m.state.Shuffle = on }
}

// WithRepeat sets the initial repeat flag.
func WithRepeat(on bool) Option {
	return func(m *Machine) { m.state.Repeat = on }
}

// WithPicker replaces the shuffle index source. pick(n) must return a
// value in [0, n).
func WithPicker(pick func(n int) int) Option {
	return func(m *Machine) { m.pick = pick }
}

// WithLogger sets the logger.
func WithLogger(l *log.Logger) Option {
	return func(m *Machine) { m.logger = logging.Component(l, "playback") }
}

// NewMachine creates an idle machine at the default volume.
func NewMachine(opts ...Option) *Machine {
	m := &Machine{
		state:  State{Volume: DefaultVolume},
		pick:   rand.IntN,
		subs:   make(map[int]chan State),
		logger: logging.Discard(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Dispatch applies cmd and returns the resulting state. Subscribers are
// only notified when the state actually changed.
func (m *Machine) Dispatch(cmd Command) State {
	m.mu.Lock()
	snap := m.apply(cmd)
	m.mu.Unlock()

	if _, ok := cmd.(Seek); !ok {
		m.logger.Debug("dispatch", "cmd", commandName(cmd), "status", snap.Status())
	}
	return snap
}

// dispatchFor applies cmd only while url is the current track's media URL.
func (m *Machine) dispatchFor(url string, cmd Command) (State, bool) {
	m.mu.Lock()
	if m.state.Track == nil || m.state.Track.MediaURL != url {
		m.mu.Unlock()
		return State{}, false
	}
	snap := m.apply(cmd)
	m.mu.Unlock()
	return snap, true
}

// apply must be called with mu held.
func (m *Machine) apply(cmd Command) State {
	prev := m.state.clone()
	cmd.apply(&m.state, m.pick)
	snap := m.state.clone()
	if !snap.equal(prev) {
		m.broadcast(snap)
	}
	return snap
}

// State returns a snapshot of the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

// Subscribe returns a channel receiving a snapshot after every mutation.
// Slow readers only see the latest snapshot. Call cancel to unsubscribe.
func (m *Machine) Subscribe() (<-chan State, func()) {
	ch := make(chan State, 1)

	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = ch
	m.mu.Unlock()

	cancel := func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}
	return ch, cancel
}

// broadcast must be called with mu held.
func (m *Machine) broadcast(s State) {
	for _, ch := range m.subs {
		select {
		case <-ch:
		default:
		}
		ch <- s
	}
}

// SelectTrack starts track within playlist.
func (m *Machine) SelectTrack(track core.PlaylistItem, playlist []core.PlaylistItem) State {
	return m.Dispatch(SelectTrack{Track: track, Playlist: playlist})
}

// TogglePlayPause flips between paused and playing.
func (m *Machine) TogglePlayPause() State { return m.Dispatch(TogglePlayPause{}) }

// Next advances to the next track.
func (m *Machine) Next() State { return m.Dispatch(Advance{Direction: Next}) }

// Previous goes back to the previous track.
func (m *Machine) Previous() State { return m.Dispatch(Advance{Direction: Previous}) }

// TrackEnded handles the end of the current track.
func (m *Machine) TrackEnded() State { return m.Dispatch(TrackEnded{}) }

// Seek moves the position.
func (m *Machine) Seek(t float64) State { return m.Dispatch(Seek{Time: t}) }

// SetVolume sets the volume.
func (m *Machine) SetVolume(v float64) State { return m.Dispatch(SetVolume{Volume: v}) }

// ToggleShuffle flips shuffle.
func (m *Machine) ToggleShuffle() State { return m.Dispatch(ToggleShuffle{}) }

// ToggleRepeat flips repeat.
func (m *Machine) ToggleRepeat() State { return m.Dispatch(ToggleRepeat{}) }

// Stop returns to idle.
func (m *Machine) Stop() State { return m.Dispatch(Stop{}) }

func commandName(cmd Command) string {
	switch c := cmd.(type) {
	case SelectTrack:
		return "select"
	case TogglePlayPause:
		return "toggle"
	case SetPlaying:
		if c.Playing {
			return "set-playing"
		}
		return "set-paused"
	case Advance:
		return "advance-" + c.Direction.String()
	case TrackEnded:
		return "ended"
	case Seek:
		return "seek"
	case SetDuration:
		return "duration"
	case SetVolume:
		return "volume"
	case ToggleShuffle:
		return "shuffle"
	case ToggleRepeat:
		return "repeat"
	case Stop:
		return "stop"
	default:
		return "unknown"
	}
}
