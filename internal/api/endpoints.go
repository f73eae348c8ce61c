package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/tessro/cadence/internal/core"
	"github.com/tessro/cadence/internal/session"
)

// Service paths.
const (
	PathLogin          = "/user/login/"
	PathSignup         = "/user/signup/"
	PathRefresh        = "/user/token/refresh/"
	PathAllTracks      = "/tracks/all"
	PathFavoriteTracks = "/tracks/favorite/all"
	PathSelections     = "/selections/"
)

// Credentials are sent to the login and signup endpoints.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Username string `json:"username,omitempty"`
}

type authResponse struct {
	Access  string     `json:"access"`
	Refresh string     `json:"refresh"`
	User    *core.User `json:"user"`
}

type refreshResponse struct {
	Access string `json:"access"`
}

// Login exchanges email and password for a session.
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	return c.authenticate(ctx, PathLogin, Credentials{Email: email, Password: password})
}

// Signup registers an account and returns its session.
func (c *Client) Signup(ctx context.Context, creds Credentials) (session.Session, error) {
	return c.authenticate(ctx, PathSignup, creds)
}

func (c *Client) authenticate(ctx context.Context, path string, creds Credentials) (session.Session, error) {
	var resp authResponse
	if err := c.request(ctx, c.anon, http.MethodPost, path, creds, &resp); err != nil {
		return session.Session{}, err
	}
	if resp.Access == "" {
		return session.Session{}, errors.New("authentication response has no access token")
	}
	return session.Session{Access: resp.Access, Refresh: resp.Refresh, User: resp.User}, nil
}

// RefreshAccess exchanges a refresh token for a new access token.
func (c *Client) RefreshAccess(ctx context.Context, refresh string) (string, error) {
	var resp refreshResponse
	body := map[string]string{"refresh": refresh}
	if err := c.request(ctx, c.anon, http.MethodPost, PathRefresh, body, &resp); err != nil {
		return "", err
	}
	if resp.Access == "" {
		return "", errors.New("refresh response has no access token")
	}
	return resp.Access, nil
}

// AllTracks returns the full catalog.
func (c *Client) AllTracks(ctx context.Context) ([]core.Track, error) {
	return getList[core.Track](ctx, c, PathAllTracks)
}

// Selections returns the curated playlists.
func (c *Client) Selections(ctx context.Context) ([]core.Selection, error) {
	return getList[core.Selection](ctx, c, PathSelections)
}

// SelectionTracks returns the tracks of one curated playlist.
func (c *Client) SelectionTracks(ctx context.Context, id int) ([]core.Track, error) {
	return getList[core.Track](ctx, c, "/selections/"+strconv.Itoa(id)+"/tracks")
}

// FavoriteTracks returns the signed-in user's liked tracks.
func (c *Client) FavoriteTracks(ctx context.Context) ([]core.Track, error) {
	return getList[core.Track](ctx, c, PathFavoriteTracks)
}

// LikeTrack adds a track to the user's favorites.
func (c *Client) LikeTrack(ctx context.Context, id int) error {
	return c.Post(ctx, favoritePath(id), nil, nil)
}

// UnlikeTrack removes a track from the user's favorites.
func (c *Client) UnlikeTrack(ctx context.Context, id int) error {
	return c.Delete(ctx, favoritePath(id))
}

func favoritePath(id int) string {
	return "/tracks/" + strconv.Itoa(id) + "/favorite"
}

// getList fetches a list that may come bare or wrapped as {"data": [...]}.
func getList[T any](ctx context.Context, c *Client, path string) ([]T, error) {
	var raw json.RawMessage
	if err := c.Get(ctx, path, &raw); err != nil {
		return nil, err
	}
	return decodeList[T](raw)
}

func decodeList[T any](raw json.RawMessage) ([]T, error) {
	if len(raw) == 0 {
		return []T{}, nil
	}

	var bare []T
	if err := json.Unmarshal(raw, &bare); err == nil {
		if bare == nil {
			bare = []T{}
		}
		return bare, nil
	}

	var wrapped struct {
		Data []T `json:"data"`
	}
	if err := json.Unmarshal(raw, &wrapped); err != nil {
		return nil, fmt.Errorf("failed to parse list response: %w", err)
	}
	if wrapped.Data == nil {
		wrapped.Data = []T{}
	}
	return wrapped.Data, nil
}
