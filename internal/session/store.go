// Package session owns the signed-in identity: durable token storage,
// the cookie mirror, and the lifecycle phase.
package session

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
)

// Store is the single writer of the session record.
type Store struct {
	storage *Storage
	cookies *CookieMirror
	logger  *log.Logger

	mu        sync.RWMutex
	session   Session
	phase     Phase
	listeners []func(Session)
}

// NewStore creates a store backed by storage. cookies may be nil.
func NewStore(storage *Storage, cookies *CookieMirror, logger *log.Logger) *Store {
	return &Store{
		storage: storage,
		cookies: cookies,
		logger:  logging.Component(logger, "session"),
	}
}

// Restore loads the persisted session. A corrupt record is discarded and
// the store stays anonymous; only I/O failures are returned.
func (s *Store) Restore() error {
	values, err := s.storage.All()
	if errors.Is(err, cerrors.ErrCorruptSession) {
		s.logger.Warn("discarding unreadable storage file", "path", s.storage.Path(), "err", err)
		return s.discard()
	}
	if err != nil {
		return err
	}

	sess := Session{Access: values[KeyAccess], Refresh: values[KeyRefresh]}
	if raw, ok := values[KeyUser]; ok && raw != "" {
		var user core.User
		if err := json.Unmarshal([]byte(raw), &user); err != nil {
			s.logger.Warn("discarding corrupt session record", "err", err)
			return s.discard()
		}
		sess.User = &user
	}
	if sess.Access == "" && (sess.Refresh != "" || sess.User != nil) {
		s.logger.Warn("discarding partial session record")
		return s.discard()
	}

	s.mu.Lock()
	s.session = sess
	s.phase = phaseFor(sess)
	s.mu.Unlock()

	if sess.IsAuthenticated() {
		if s.cookies != nil && s.cookies.Value(AccessCookie) != sess.Access {
			s.mirror(sess.Access, sess.Refresh)
		}
		s.logger.Debug("session restored", "user", username(sess))
		s.notify(sess)
	}
	return nil
}

// Session returns a copy of the current session.
func (s *Store) Session() Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session
}

// Phase returns the lifecycle phase.
func (s *Store) Phase() Phase {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.phase
}

// AccessToken returns the current access token, or "".
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Access
}

// RefreshToken returns the current refresh token, or "".
func (s *Store) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.Refresh
}

// BeginAuth marks a login or signup as in flight. It returns a function
// that reverts to the previous phase if the attempt does not complete.
func (s *Store) BeginAuth() (abort func()) {
	s.mu.Lock()
	prev := s.phase
	s.phase = Authenticating
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.phase == Authenticating {
			s.phase = prev
		}
	}
}

// SetSession replaces the session after a successful login or signup.
func (s *Store) SetSession(sess Session) error {
	if !sess.IsAuthenticated() {
		return fmt.Errorf("set session: %w", cerrors.ErrNotAuthenticated)
	}

	values := map[string]string{
		KeyAccess:  sess.Access,
		KeyRefresh: sess.Refresh,
	}
	if sess.User != nil {
		data, err := json.Marshal(sess.User)
		if err != nil {
			return fmt.Errorf("failed to marshal user: %w", err)
		}
		values[KeyUser] = string(data)
	}

	s.mu.Lock()
	if err := s.storage.Set(values); err != nil {
		s.mu.Unlock()
		return err
	}
	if sess.User == nil {
		_ = s.storage.Delete(KeyUser)
	}
	s.session = sess
	s.phase = Authenticated
	s.mu.Unlock()

	s.mirror(sess.Access, sess.Refresh)
	s.logger.Info("signed in", "user", username(sess))
	s.notify(sess)
	return nil
}

// SetAccessToken stores a refreshed access token. The refresh token and
// user record are kept.
func (s *Store) SetAccessToken(access string) error {
	s.mu.Lock()
	if s.session.Refresh == "" && s.session.Access == "" {
		s.mu.Unlock()
		return fmt.Errorf("set access token: %w", cerrors.ErrNotAuthenticated)
	}
	if err := s.storage.Set(map[string]string{KeyAccess: access}); err != nil {
		s.mu.Unlock()
		return err
	}
	s.session.Access = access
	s.phase = Authenticated
	s.mu.Unlock()

	s.mirror(access, "")
	s.logger.Debug("access token refreshed")
	return nil
}

// Clear wipes tokens, user and cookies and returns to anonymous. Clearing an
// anonymous store is a no-op apart from the storage write.
func (s *Store) Clear() error {
	s.mu.Lock()
	was := s.session.IsAuthenticated()
	err := s.storage.Delete(KeyAccess, KeyRefresh, KeyUser)
	if errors.Is(err, cerrors.ErrCorruptSession) {
		err = s.storage.Reset()
	}
	s.session = Session{}
	s.phase = Anonymous
	s.mu.Unlock()

	if s.cookies != nil {
		if cerr := s.cookies.Expire(); cerr != nil {
			s.logger.Warn("failed to expire cookies", "err", cerr)
		}
	}
	if was {
		s.logger.Info("signed out")
		s.notify(Session{})
	}
	return err
}

// AccessExpiry returns the exp claim of the access token, if readable.
func (s *Store) AccessExpiry() (time.Time, bool) {
	return TokenExpiry(s.AccessToken())
}

// AccessExpired reports whether the access token is known to expire within skew.
func (s *Store) AccessExpired(skew time.Duration) bool {
	return TokenExpired(s.AccessToken(), skew)
}

// OnChange registers fn to run after every sign-in, restore and sign-out.
// Listeners run synchronously, in registration order, without the lock held.
func (s *Store) OnChange(fn func(Session)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// MenuOpen returns the persisted sidebar preference.
func (s *Store) MenuOpen() bool {
	v, ok, err := s.storage.Get(KeyMenuOpen)
	if err != nil || !ok {
		return false
	}
	open, _ := strconv.ParseBool(v)
	return open
}

// SetMenuOpen persists the sidebar preference.
func (s *Store) SetMenuOpen(open bool) error {
	return s.storage.Set(map[string]string{KeyMenuOpen: strconv.FormatBool(open)})
}

// Cookies returns the cookie mirror, which may be nil.
func (s *Store) Cookies() *CookieMirror {
	return s.cookies
}

func (s *Store) discard() error {
	s.mu.Lock()
	err := s.storage.Delete(KeyAccess, KeyRefresh, KeyUser)
	if errors.Is(err, cerrors.ErrCorruptSession) {
		err = s.storage.Reset()
	}
	s.session = Session{}
	s.phase = Anonymous
	s.mu.Unlock()

	if s.cookies != nil {
		_ = s.cookies.Expire()
	}
	return err
}

func (s *Store) mirror(access, refresh string) {
	if s.cookies == nil {
		return
	}
	if err := s.cookies.Mirror(access, refresh); err != nil {
		s.logger.Warn("failed to mirror cookies", "err", err)
	}
}

func (s *Store) notify(sess Session) {
	s.mu.RLock()
	listeners := make([]func(Session), len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.RUnlock()

	for _, fn := range listeners {
		fn(sess)
	}
}

func phaseFor(sess Session) Phase {
	if sess.IsAuthenticated() {
		return Authenticated
	}
	return Anonymous
}

func username(sess Session) string {
	if sess.User == nil {
		return ""
	}
	return sess.User.Username
}
