package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/singleflight"

	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
)

// SignInPath is where clients are sent after an irrecoverable refresh failure.
const SignInPath = "/signin"

// TokenSource is the session state the Transport reads and updates.
type TokenSource interface {
	AccessToken() string
	RefreshToken() string
	SetAccessToken(access string) error
	AccessExpired(skew time.Duration) bool
	Clear() error
}

// RefreshFunc exchanges a refresh token for a new access token.
type RefreshFunc func(ctx context.Context, refresh string) (string, error)

// Transport attaches the bearer token to outgoing requests and recovers
// from a 401 by refreshing the access token once per call.
type Transport struct {
	Base      http.RoundTripper
	Tokens    TokenSource
	Refresh   RefreshFunc
	OnExpired func(redirect string)

	logger *log.Logger
	group  singleflight.Group
}

// NewTransport creates a Transport over base, or http.DefaultTransport.
func NewTransport(base http.RoundTripper, tokens TokenSource, refresh RefreshFunc, logger *log.Logger) *Transport {
	if base == nil {
		base = http.DefaultTransport
	}
	return &Transport{
		Base:    base,
		Tokens:  tokens,
		Refresh: refresh,
		logger:  logging.Component(logger, "auth"),
	}
}

type callKey struct{}

// callState is shared by every attempt of one logical API call.
type callState struct {
	refreshed atomic.Bool
}

// WithCall marks ctx as a single logical call. Retries that reuse the
// returned context share one refresh budget.
func WithCall(ctx context.Context) context.Context {
	if _, ok := ctx.Value(callKey{}).(*callState); ok {
		return ctx
	}
	return context.WithValue(ctx, callKey{}, &callState{})
}

func callFrom(ctx context.Context) *callState {
	if st, ok := ctx.Value(callKey{}).(*callState); ok {
		return st
	}
	return &callState{}
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	if isRefreshRequest(req) {
		return t.Base.RoundTrip(req)
	}

	ctx := req.Context()
	state := callFrom(ctx)

	token := t.Tokens.AccessToken()
	if token != "" && t.Tokens.RefreshToken() != "" && t.Tokens.AccessExpired(0) && state.refreshed.CompareAndSwap(false, true) {
		t.logger.Debug("access token expired, refreshing before request", "path", req.URL.Path)
		fresh, err := t.refresh(ctx)
		if err != nil {
			return nil, err
		}
		token = fresh
	}

	resp, err := t.Base.RoundTrip(authorize(req, token))
	if err != nil || resp.StatusCode != http.StatusUnauthorized {
		return resp, err
	}

	if !state.refreshed.CompareAndSwap(false, true) {
		t.logger.Debug("401 after refresh, giving up", "path", req.URL.Path)
		return resp, nil
	}

	retry, err := rewind(req)
	if err != nil {
		return resp, nil
	}

	_, _ = io.Copy(io.Discard, resp.Body)
	_ = resp.Body.Close()

	// Another call may already have refreshed while this one was in flight.
	fresh := t.Tokens.AccessToken()
	if fresh == "" || fresh == token {
		fresh, err = t.refresh(ctx)
		if err != nil {
			return nil, err
		}
	}

	t.logger.Debug("retrying with refreshed token", "path", req.URL.Path)
	return t.Base.RoundTrip(authorize(retry, fresh))
}

// refresh obtains a new access token, coalescing concurrent callers. Any
// failure ends the session.
func (t *Transport) refresh(ctx context.Context) (string, error) {
	v, err, _ := t.group.Do("refresh", func() (any, error) {
		refresh := t.Tokens.RefreshToken()
		if refresh == "" {
			t.expire()
			return "", fmt.Errorf("%w: %w", cerrors.ErrSessionExpired, cerrors.ErrNoRefreshToken)
		}
		if t.Refresh == nil {
			t.expire()
			return "", fmt.Errorf("%w: no refresh handler", cerrors.ErrSessionExpired)
		}

		access, err := t.Refresh(context.WithoutCancel(ctx), refresh)
		if err != nil {
			t.logger.Warn("token refresh failed", "err", err)
			t.expire()
			return "", fmt.Errorf("%w: %w", cerrors.ErrSessionExpired, err)
		}
		if err := t.Tokens.SetAccessToken(access); err != nil {
			t.logger.Warn("failed to persist refreshed token", "err", err)
		}
		return access, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (t *Transport) expire() {
	if err := t.Tokens.Clear(); err != nil {
		t.logger.Warn("failed to clear session", "err", err)
	}
	if t.OnExpired != nil {
		t.OnExpired(SignInPath)
	}
}

func authorize(req *http.Request, token string) *http.Request {
	out := req.Clone(req.Context())
	if token != "" {
		out.Header.Set("Authorization", "Bearer "+token)
	} else {
		out.Header.Del("Authorization")
	}
	return out
}

// rewind returns a copy of req whose body can be sent again.
func rewind(req *http.Request) (*http.Request, error) {
	out := req.Clone(req.Context())
	if req.Body == nil || req.Body == http.NoBody {
		return out, nil
	}
	if req.GetBody == nil {
		return nil, fmt.Errorf("request body cannot be replayed")
	}
	body, err := req.GetBody()
	if err != nil {
		return nil, err
	}
	out.Body = body
	return out, nil
}

func isRefreshRequest(req *http.Request) bool {
	return strings.HasSuffix(strings.TrimSuffix(req.URL.Path, "/"), strings.TrimSuffix(PathRefresh, "/"))
}
