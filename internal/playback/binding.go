package playback

import (
	"context"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"

	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
)

// Element is a media player the Binding drives.
type Element interface {
	// Load replaces the source and leaves the element paused at 0.
	Load(ctx context.Context, url string) error
	Play(ctx context.Context) error
	Pause(ctx context.Context) error
	Seek(ctx context.Context, seconds float64) error
	SetVolume(ctx context.Context, volume float64) error
	// Source is the URL currently loaded, or "".
	Source() string
	Paused() bool
}

// EventKind identifies an element notification.
type EventKind int

const (
	TimeUpdate EventKind = iota
	DurationChange
	Ended
	Error
)

func (k EventKind) String() string {
	switch k {
	case TimeUpdate:
		return "time"
	case DurationChange:
		return "duration"
	case Ended:
		return "ended"
	case Error:
		return "error"
	default:
		return "unknown"
	}
}

// Event is a notification from the element about the source it was
// playing when it fired.
type Event struct {
	Kind   EventKind
	Source string
	Value  float64 // position or duration in seconds
	Err    error
}

// Binding is the only code that touches the element. It pushes the
// machine's intent to the element and feeds element events back.
type Binding struct {
	machine *Machine
	element Element
	logger  *log.Logger

	mu         sync.Mutex // serializes Sync
	epoch      uint64
	volume     float64
	volumeSent bool

	// failed is the source whose load last failed at failedEpoch. It is
	// not loaded again until the intent changes or playback is requested.
	failed      string
	failedEpoch uint64
}

// NewBinding binds m to el.
func NewBinding(m *Machine, el Element, logger *log.Logger) *Binding {
	return &Binding{
		machine: m,
		element: el,
		logger:  logging.Component(logger, "binding"),
	}
}

// Sync makes the element match the machine. Element failures never
// propagate: a failed start leaves the machine paused.
func (b *Binding) Sync(ctx context.Context) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.machine.State()

	if !b.volumeSent || st.Volume != b.volume {
		if err := b.element.SetVolume(ctx, st.Volume); err != nil {
			b.logger.Warn("set volume failed", "err", err)
		} else {
			b.volume, b.volumeSent = st.Volume, true
		}
	}

	if st.Track == nil {
		if !b.element.Paused() {
			if err := b.element.Pause(ctx); err != nil {
				b.logger.Warn("pause failed", "err", err)
			}
		}
		return
	}

	url := st.Track.MediaURL
	switch {
	case b.element.Source() != url:
		if url == b.failed && st.Epoch == b.failedEpoch && !st.IsPlaying {
			return
		}
		b.logger.Debug("loading", "url", url)
		err := b.element.Load(ctx, url)

		// The intent may have moved on while the load was in flight.
		cur := b.machine.State()
		if cur.Track == nil || cur.Track.MediaURL != url {
			b.logger.Debug("discarding stale load", "url", url)
			return
		}
		if err != nil {
			b.failed, b.failedEpoch = url, cur.Epoch
			b.fail(url, fmt.Errorf("load %s: %w: %w", url, cerrors.ErrMediaFailed, err))
			return
		}
		b.failed = ""
		st = cur
		b.epoch = st.Epoch
		if st.CurrentTime > 0 {
			b.seek(ctx, st.CurrentTime)
		}

	case st.Epoch != b.epoch:
		b.epoch = st.Epoch
		b.seek(ctx, 0)
	}

	if st.IsPlaying == !b.element.Paused() {
		return
	}
	if !st.IsPlaying {
		if err := b.element.Pause(ctx); err != nil {
			b.logger.Warn("pause failed", "err", err)
		}
		return
	}
	if err := b.element.Play(ctx); err != nil && b.element.Source() == url {
		b.fail(url, fmt.Errorf("play %s: %w: %w", url, cerrors.ErrMediaFailed, err))
	}
}

// Scrub seeks on behalf of the user.
func (b *Binding) Scrub(ctx context.Context, seconds float64) State {
	st := b.machine.Dispatch(Seek{Time: seconds})
	if st.Track != nil && b.element.Source() == st.Track.MediaURL {
		b.seek(ctx, st.CurrentTime)
	}
	return st
}

// Handle applies an element event. Events about any source other than the
// intended track are dropped.
func (b *Binding) Handle(ev Event) {
	var cmd Command
	switch ev.Kind {
	case TimeUpdate:
		cmd = Seek{Time: ev.Value}
	case DurationChange:
		cmd = SetDuration{Duration: ev.Value}
	case Ended:
		cmd = TrackEnded{}
	case Error:
		b.logger.Warn("element error", "source", ev.Source, "err", ev.Err)
		cmd = SetPlaying{Playing: false}
	default:
		return
	}

	if _, ok := b.machine.dispatchFor(ev.Source, cmd); !ok {
		b.logger.Debug("dropping stale event", "kind", ev.Kind, "source", ev.Source)
	}
}

// Run feeds events into the machine and resyncs the element after every
// state change until ctx is done or events is closed.
func (b *Binding) Run(ctx context.Context, events <-chan Event) error {
	updates, cancel := b.machine.Subscribe()
	defer cancel()

	b.Sync(ctx)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			b.Handle(ev)
		case <-updates:
			b.Sync(ctx)
		}
	}
}

func (b *Binding) seek(ctx context.Context, seconds float64) {
	if err := b.element.Seek(ctx, seconds); err != nil {
		b.logger.Warn("seek failed", "err", err)
	}
}

// fail reverts the machine to paused if url is still the intended track.
func (b *Binding) fail(url string, err error) {
	b.logger.Warn("playback failed", "err", err)
	b.machine.dispatchFor(url, SetPlaying{Playing: false})
}
