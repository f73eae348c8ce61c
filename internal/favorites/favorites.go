// Package favorites mirrors the signed-in user's liked tracks and applies
// like/unlike optimistically.
package favorites

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
	"github.com/tessro/cadence/internal/notify"
	"github.com/tessro/cadence/internal/session"
)

// MsgSignIn is shown when an anonymous user tries to like a track.
const MsgSignIn = "Sign in to add favorites"

// Remote is the favorites API.
type Remote interface {
	FavoriteTracks(ctx context.Context) ([]core.Track, error)
	LikeTrack(ctx context.Context, id int) error
	UnlikeTrack(ctx context.Context, id int) error
}

// Notifier shows transient error messages.
type Notifier interface {
	Error(msg string) notify.Notice
}

// Credentials reports the current access token.
type Credentials interface {
	AccessToken() string
}

// Synchronizer owns the local favorite set.
type Synchronizer struct {
	remote   Remote
	notifier Notifier
	creds    Credentials
	logger   *log.Logger

	mu       sync.Mutex
	ids      map[int]struct{}
	inflight map[int]*inflight
	loaded   bool
	// gen changes on Reset so results from an older session are ignored.
	gen uint64

	wg sync.WaitGroup
}

// New creates an empty synchronizer.
func New(remote Remote, creds Credentials, notifier Notifier, logger *log.Logger) *Synchronizer {
	return &Synchronizer{
		remote:   remote,
		creds:    creds,
		notifier: notifier,
		logger:   logging.Component(logger, "favorites"),
		ids:      make(map[int]struct{}),
		inflight: make(map[int]*inflight),
	}
}

// Load fetches the remote favorites and replaces the local set.
func (s *Synchronizer) Load(ctx context.Context) error {
	if !s.authenticated() {
		return cerrors.ErrNotAuthenticated
	}

	s.mu.Lock()
	gen := s.gen
	s.mu.Unlock()

	tracks, err := s.remote.FavoriteTracks(ctx)
	if err != nil {
		return fmt.Errorf("failed to load favorites: %w", err)
	}

	ids := make(map[int]struct{}, len(tracks))
	for _, t := range tracks {
		ids[t.ID] = struct{}{}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil
	}
	s.ids = ids
	s.loaded = true
	s.logger.Debug("favorites loaded", "count", len(ids))
	return nil
}

// ToggleLike flips id locally and syncs the change in the background. It
// returns the new local membership. The returned error only reports
// local rejection; remote failures are rolled back and surfaced as notices.
func (s *Synchronizer) ToggleLike(ctx context.Context, id int) (bool, error) {
	if !s.authenticated() {
		s.notifier.Error(MsgSignIn)
		return s.Contains(id), cerrors.ErrNotAuthenticated
	}

	op := s.begin(id)
	op.applyOptimistic()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ctx := context.WithoutCancel(ctx)

		var err error
		if op.liked {
			err = s.remote.LikeTrack(ctx, id)
		} else {
			err = s.remote.UnlikeTrack(ctx, id)
		}
		if err != nil {
			op.rollback()
			s.logger.Warn("favorite toggle failed", "track", id, "err", err)
			s.notifier.Error(failureMessage(err))
			return
		}
		op.commit()
	}()

	return op.liked, nil
}

// Wait blocks until background toggles and loads have finished.
func (s *Synchronizer) Wait() {
	s.wg.Wait()
}

// Reset empties the set, e.g. after sign-out.
func (s *Synchronizer) Reset() {
	s.mu.Lock()
	s.ids = make(map[int]struct{})
	s.inflight = make(map[int]*inflight)
	s.loaded = false
	s.gen++
	s.mu.Unlock()
}

// Bind loads favorites whenever a session starts and resets them when it
// ends.
func (s *Synchronizer) Bind(ctx context.Context, store interface {
	OnChange(func(session.Session))
}) {
	store.OnChange(func(sess session.Session) {
		if !sess.IsAuthenticated() {
			s.Reset()
			return
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.Load(ctx); err != nil && !errors.Is(err, context.Canceled) {
				s.logger.Warn("favorites load failed", "err", err)
			}
		}()
	})
}

// Contains reports whether id is liked.
func (s *Synchronizer) Contains(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the liked track ids in ascending order.
func (s *Synchronizer) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Loaded reports whether the set reflects a completed Load.
func (s *Synchronizer) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loaded
}

func (s *Synchronizer) authenticated() bool {
	return s.creds != nil && s.creds.AccessToken() != ""
}

func failureMessage(err error) string {
	switch cerrors.Classify(err) {
	case cerrors.KindAuthorization:
		return "Session expired, sign in again"
	case cerrors.KindTransport:
		return "Couldn't reach the server, favorite not saved"
	default:
		var sc cerrors.StatusCoder
		if errors.As(err, &sc) {
			return "Couldn't update favorites: " + err.Error()
		}
		return "Couldn't update favorites"
	}
}
