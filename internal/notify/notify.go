// Package notify keeps short-lived user notices that dismiss themselves.
package notify

import (
	"slices"
	"sync"
	"time"
)

// DefaultDuration is how long a notice stays visible.
const DefaultDuration = 3 * time.Second

// Level is the severity of a notice.
type Level int

const (
	Info Level = iota
	Error
)

func (l Level) String() string {
	if l == Error {
		return "error"
	}
	return "info"
}

// Notice is one visible message.
type Notice struct {
	ID      uint64
	Level   Level
	Message string
	Expires time.Time
}

// Center holds the active notices.
type Center struct {
	ttl time.Duration

	mu        sync.Mutex
	nextID    uint64
	notices   []Notice
	timers    map[uint64]*time.Timer
	listeners []func([]Notice)
}

// New creates a Center whose notices live for ttl, or DefaultDuration when
// ttl is not positive.
func New(ttl time.Duration) *Center {
	if ttl <= 0 {
		ttl = DefaultDuration
	}
	return &Center{ttl: ttl, timers: make(map[uint64]*time.Timer)}
}

// Info posts an informational notice.
func (c *Center) Info(msg string) Notice {
	return c.post(Info, msg)
}

// Error posts an error notice.
func (c *Center) Error(msg string) Notice {
	return c.post(Error, msg)
}

func (c *Center) post(level Level, msg string) Notice {
	c.mu.Lock()
	c.nextID++
	n := Notice{ID: c.nextID, Level: level, Message: msg, Expires: time.Now().Add(c.ttl)}
	c.notices = append(c.notices, n)
	id := n.ID
	c.timers[id] = time.AfterFunc(c.ttl, func() { c.Dismiss(id) })
	c.mu.Unlock()

	c.changed()
	return n
}

// Dismiss removes a notice before it expires.
func (c *Center) Dismiss(id uint64) {
	c.mu.Lock()
	i := slices.IndexFunc(c.notices, func(n Notice) bool { return n.ID == id })
	if i < 0 {
		c.mu.Unlock()
		return
	}
	c.notices = slices.Delete(c.notices, i, i+1)
	if t, ok := c.timers[id]; ok {
		t.Stop()
		delete(c.timers, id)
	}
	c.mu.Unlock()

	c.changed()
}

// Active returns the visible notices, oldest first.
func (c *Center) Active() []Notice {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.notices)
}

// Latest returns the newest visible notice.
func (c *Center) Latest() (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.notices) == 0 {
		return Notice{}, false
	}
	return c.notices[len(c.notices)-1], true
}

// Subscribe registers fn to receive the active notices after every change.
func (c *Center) Subscribe(fn func([]Notice)) {
	c.mu.Lock()
	c.listeners = append(c.listeners, fn)
	c.mu.Unlock()
}

func (c *Center) changed() {
	c.mu.Lock()
	active := slices.Clone(c.notices)
	listeners := slices.Clone(c.listeners)
	c.mu.Unlock()

	for _, fn := range listeners {
		fn(active)
	}
}
