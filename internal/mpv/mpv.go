// Package mpv drives an mpv process over its JSON IPC socket.
package mpv

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/dexterlb/mpvipc"

	"github.com/tessro/cadence/internal/logging"
	"github.com/tessro/cadence/internal/playback"
)

const (
	dialTimeout = 5 * time.Second
	eventBuffer = 64
)

// Observed property ids.
const (
	propTimePos = iota + 1
	propDuration
	propEOF
	propPause
)

var (
	errClosed     = errors.New("mpv: player closed")
	errSuperseded = errors.New("mpv: load superseded")
)

// Options configures Start.
type Options struct {
	// Path is the mpv binary, "mpv" when empty.
	Path string
	// Socket is the IPC socket path, a temp file when empty.
	Socket string
	Logger *log.Logger
}

// Player is a playback.Element backed by mpv.
type Player struct {
	conn   *mpvipc.Connection
	cmd    *exec.Cmd
	socket string
	logger *log.Logger
	events chan playback.Event
	stop   chan struct{}

	mu      sync.Mutex
	src     string
	loading string
	loaded  chan error
	paused  bool

	closeOnce sync.Once
	closed    chan struct{}
}

var _ playback.Element = (*Player)(nil)

// Start launches an idle mpv without video output and connects to it.
func Start(ctx context.Context, opts Options) (*Player, error) {
	path := opts.Path
	if path == "" {
		path = "mpv"
	}
	bin, err := exec.LookPath(path)
	if err != nil {
		return nil, fmt.Errorf("mpv not found: %w", err)
	}

	socket := opts.Socket
	if socket == "" {
		socket = filepath.Join(os.TempDir(), fmt.Sprintf("cadence-mpv-%d.sock", os.Getpid()))
	}
	_ = os.Remove(socket)

	cmd := exec.Command(bin,
		"--idle=yes",
		"--no-video",
		"--no-terminal",
		"--keep-open=yes",
		"--input-ipc-server="+socket,
	)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start mpv: %w", err)
	}

	conn, err := dial(ctx, socket)
	if err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	p := newPlayer(conn, opts.Logger)
	p.cmd = cmd
	p.socket = socket
	if err := p.observe(ctx); err != nil {
		_ = p.Close()
		return nil, err
	}
	return p, nil
}

// dial waits for mpv to create its socket.
func dial(ctx context.Context, socket string) (*mpvipc.Connection, error) {
	deadline := time.Now().Add(dialTimeout)
	for {
		conn := mpvipc.NewConnection(socket)
		err := conn.Open()
		if err == nil {
			return conn, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("failed to connect to mpv: %w", err)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(50 * time.Millisecond):
		}
	}
}

// newPlayer wraps an open IPC connection.
func newPlayer(conn *mpvipc.Connection, logger *log.Logger) *Player {
	evs, stop := conn.NewEventListener()
	p := &Player{
		conn:   conn,
		logger: logging.Component(logger, "mpv"),
		events: make(chan playback.Event, eventBuffer),
		stop:   stop,
		paused: true,
		closed: make(chan struct{}),
	}
	go p.listen(evs)
	return p
}

func (p *Player) observe(ctx context.Context) error {
	props := map[int]string{
		propTimePos:  "time-pos",
		propDuration: "duration",
		propEOF:      "eof-reached",
		propPause:    "pause",
	}
	for id, name := range props {
		if err := p.call(ctx, "observe_property", id, name); err != nil {
			return err
		}
	}
	return nil
}

// Events returns element notifications for playback.Binding.Run.
func (p *Player) Events() <-chan playback.Event {
	return p.events
}

// Load replaces the current file and waits until mpv has opened it.
func (p *Player) Load(ctx context.Context, url string) error {
	done := make(chan error, 1)
	p.mu.Lock()
	if p.loaded != nil {
		p.loaded <- errSuperseded
	}
	p.loading = url
	p.loaded = done
	p.mu.Unlock()

	if err := p.setPause(ctx, true); err != nil {
		p.abandonLoad(done)
		return err
	}
	if err := p.call(ctx, "loadfile", url, "replace"); err != nil {
		p.abandonLoad(done)
		return err
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		p.abandonLoad(done)
		return ctx.Err()
	case <-p.closed:
		return errClosed
	}
}

// Play resumes playback.
func (p *Player) Play(ctx context.Context) error {
	return p.setPause(ctx, false)
}

// Pause pauses playback.
func (p *Player) Pause(ctx context.Context) error {
	return p.setPause(ctx, true)
}

// Seek jumps to an absolute position in seconds.
func (p *Player) Seek(ctx context.Context, seconds float64) error {
	return p.call(ctx, "seek", seconds, "absolute")
}

// SetVolume sets the volume from a 0..1 fraction.
func (p *Player) SetVolume(ctx context.Context, volume float64) error {
	return p.set(ctx, "volume", volume*100)
}

// Source returns the URL of the loaded file.
func (p *Player) Source() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.src
}

// Paused reports whether mpv is paused.
func (p *Player) Paused() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.paused
}

// Close quits mpv and releases the socket.
func (p *Player) Close() error {
	var err error
	p.closeOnce.Do(func() {
		if p.cmd != nil {
			ctx, cancel := context.WithTimeout(context.Background(), time.Second)
			_ = p.call(ctx, "quit")
			cancel()
		}
		close(p.stop)
		close(p.closed)
		err = p.conn.Close()
		if p.cmd != nil {
			_ = p.cmd.Wait()
			_ = os.Remove(p.socket)
		}
	})
	return err
}

func (p *Player) setPause(ctx context.Context, paused bool) error {
	if err := p.set(ctx, "pause", paused); err != nil {
		return err
	}
	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	return nil
}

func (p *Player) call(ctx context.Context, args ...any) error {
	return p.do(ctx, fmt.Sprint(args[0]), func() error {
		_, err := p.conn.Call(args...)
		return err
	})
}

func (p *Player) set(ctx context.Context, name string, value any) error {
	return p.do(ctx, "set "+name, func() error {
		return p.conn.Set(name, value)
	})
}

// do runs a blocking IPC call, giving up when ctx ends or the player
// closes. The call itself is left to finish in the background.
func (p *Player) do(ctx context.Context, what string, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("mpv: %s: %w", what, err)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-p.closed:
		return errClosed
	}
}

func (p *Player) listen(evs <-chan *mpvipc.Event) {
	defer close(p.events)
	for {
		select {
		case <-p.closed:
			return
		case ev, ok := <-evs:
			if !ok {
				return
			}
			if ev != nil {
				p.handleEvent(ev)
			}
		}
	}
}

func (p *Player) handleEvent(ev *mpvipc.Event) {
	switch ev.Name {
	case "file-loaded":
		p.mu.Lock()
		if p.loaded != nil {
			p.src = p.loading
			p.finishLoad(nil)
		}
		p.mu.Unlock()

	case "end-file":
		if ev.Reason != "error" {
			return
		}
		p.mu.Lock()
		if p.loaded != nil {
			p.finishLoad(fmt.Errorf("mpv: failed to open %s", p.loading))
			p.mu.Unlock()
			return
		}
		src := p.src
		p.mu.Unlock()
		p.emit(playback.Event{Kind: playback.Error, Source: src, Err: fmt.Errorf("mpv: playback of %s failed", src)})

	case "property-change":
		p.handleProperty(ev)
	}
}

func (p *Player) abandonLoad(done chan error) {
	p.mu.Lock()
	if p.loaded == done {
		p.loaded = nil
		p.loading = ""
	}
	p.mu.Unlock()
}

// finishLoad must be called with mu held.
func (p *Player) finishLoad(err error) {
	if p.loaded == nil {
		return
	}
	p.loaded <- err
	p.loaded = nil
	p.loading = ""
}

func (p *Player) handleProperty(ev *mpvipc.Event) {
	if ev.Data == nil {
		return
	}

	p.mu.Lock()
	src := p.src
	p.mu.Unlock()

	switch int(ev.ID) {
	case propTimePos, propDuration:
		v, ok := ev.Data.(float64)
		if !ok {
			return
		}
		kind := playback.TimeUpdate
		if int(ev.ID) == propDuration {
			kind = playback.DurationChange
		}
		p.emit(playback.Event{Kind: kind, Source: src, Value: v})

	case propEOF:
		if eof, ok := ev.Data.(bool); ok && eof {
			p.emit(playback.Event{Kind: playback.Ended, Source: src})
		}

	case propPause:
		if paused, ok := ev.Data.(bool); ok {
			p.mu.Lock()
			p.paused = paused
			p.mu.Unlock()
		}
	}
}

func (p *Player) emit(ev playback.Event) {
	if ev.Source == "" {
		return
	}
	select {
	case p.events <- ev:
	default:
		p.logger.Debug("event buffer full, dropping", "kind", ev.Kind)
	}
}
