// Package app wires the session, API client, favorites and playback
// together from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/tessro/cadence/internal/api"
	"github.com/tessro/cadence/internal/config"
	"github.com/tessro/cadence/internal/favorites"
	"github.com/tessro/cadence/internal/logging"
	"github.com/tessro/cadence/internal/mpv"
	"github.com/tessro/cadence/internal/notify"
	"github.com/tessro/cadence/internal/playback"
	"github.com/tessro/cadence/internal/session"
)

const (
	storageFile = "storage.json"
	cookieFile  = "cookies.json"

	// MsgSessionExpired is posted when a refresh fails and the session ends.
	MsgSessionExpired = "Session expired, please sign in again"
)

// App is the running client.
type App struct {
	Config    *config.Config
	Logger    *log.Logger
	Store     *session.Store
	API       *api.Client
	Notices   *notify.Center
	Favorites *favorites.Synchronizer
	Machine   *playback.Machine

	// Redirects receives the sign-in path whenever the session is forced
	// to end. Buffered; a full channel drops the redirect.
	Redirects chan string

	ctx     context.Context
	cancel  context.CancelFunc
	closers []io.Closer
}

// New builds the client and restores any persisted session.
func New(ctx context.Context, cfg *config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = logging.Discard()
	}

	dir, err := cfg.StorageDir()
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create storage directory: %w", err)
	}

	storage, err := session.NewStorage(filepath.Join(dir, storageFile))
	if err != nil {
		return nil, err
	}
	cookies, err := session.NewCookieMirror(filepath.Join(dir, cookieFile), cfg.API.BaseURL)
	if err != nil {
		return nil, err
	}
	store := session.NewStore(storage, cookies, logger)

	ctx, cancel := context.WithCancel(ctx)
	a := &App{
		Config:    cfg,
		Logger:    logger,
		Store:     store,
		Notices:   notify.New(time.Duration(cfg.Notify.DurationMS) * time.Millisecond),
		Redirects: make(chan string, 1),
		ctx:       ctx,
		cancel:    cancel,
	}

	a.API = api.New(store, api.Options{
		BaseURL:   cfg.API.BaseURL,
		Timeout:   time.Duration(cfg.API.Timeout) * time.Second,
		Jar:       cookies.Jar(),
		OnExpired: a.expired,
		Logger:    logger,
	})
	a.Favorites = favorites.New(a.API, store, a.Notices, logger)
	a.Favorites.Bind(ctx, store)

	a.Machine = playback.NewMachine(
		playback.WithVolume(float64(cfg.Player.Volume)/100),
		playback.WithShuffle(cfg.Player.Shuffle),
		playback.WithRepeat(cfg.Player.Repeat),
		playback.WithLogger(logger),
	)

	// Restore after Bind so a restored session loads favorites.
	if err := store.Restore(); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to restore session: %w", err)
	}
	return a, nil
}

// Login signs in and stores the session.
func (a *App) Login(ctx context.Context, email, password string) (session.Session, error) {
	abort := a.Store.BeginAuth()
	sess, err := a.API.Login(ctx, email, password)
	if err != nil {
		abort()
		return session.Session{}, err
	}
	if err := a.Store.SetSession(sess); err != nil {
		abort()
		return session.Session{}, err
	}
	return sess, nil
}

// Signup registers an account and stores the resulting session.
func (a *App) Signup(ctx context.Context, creds api.Credentials) (session.Session, error) {
	abort := a.Store.BeginAuth()
	sess, err := a.API.Signup(ctx, creds)
	if err != nil {
		abort()
		return session.Session{}, err
	}
	if err := a.Store.SetSession(sess); err != nil {
		abort()
		return session.Session{}, err
	}
	return sess, nil
}

// Logout ends the session. Favorites reset through the store listener.
func (a *App) Logout() error {
	a.Machine.Stop()
	return a.Store.Clear()
}

// StartPlayer launches mpv and binds it to the playback machine. The
// binding runs until the app is closed.
func (a *App) StartPlayer(ctx context.Context) (*playback.Binding, error) {
	player, err := mpv.Start(ctx, mpv.Options{
		Path:   a.Config.Player.MpvPath,
		Logger: a.Logger,
	})
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, player)

	b := playback.NewBinding(a.Machine, player, a.Logger)
	go func() {
		if err := b.Run(a.ctx, player.Events()); err != nil && !errors.Is(err, context.Canceled) {
			a.Logger.Error("playback binding stopped", "err", err)
		}
	}()
	return b, nil
}

// Close stops background work and releases the player.
func (a *App) Close() error {
	a.cancel()
	a.Favorites.Wait()

	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func (a *App) expired(redirect string) {
	a.Machine.Stop()
	a.Notices.Error(MsgSessionExpired)
	a.Logger.Warn("session expired", "redirect", redirect)
	select {
	case a.Redirects <- redirect:
	default:
	}
}
