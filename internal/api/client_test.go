package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tessro/cadence/internal/core"
	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/session"
)

func newStore(t *testing.T, access, refresh string) *session.Store {
	t.Helper()
	storage, err := session.NewStorage(filepath.Join(t.TempDir(), "storage.json"))
	if err != nil {
		t.Fatal(err)
	}
	store := session.NewStore(storage, nil, nil)
	if access != "" {
		if err := store.SetSession(session.Session{Access: access, Refresh: refresh}); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func newTestClient(t *testing.T, srv *httptest.Server, store *session.Store) *Client {
	t.Helper()
	c := New(store, Options{BaseURL: srv.URL})
	c.retryWait = time.Millisecond
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestAllTracksDecodesBareAndWrapped(t *testing.T) {
	tracks := []core.Track{{ID: 1, Title: "Song One", Genres: []string{"rock"}}}

	for _, wrapped := range []bool{false, true} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != PathAllTracks {
				t.Errorf("path = %q", r.URL.Path)
			}
			if wrapped {
				writeJSON(w, 200, map[string]any{"data": tracks})
				return
			}
			writeJSON(w, 200, tracks)
		}))

		got, err := newTestClient(t, srv, newStore(t, "", "")).AllTracks(context.Background())
		srv.Close()
		if err != nil {
			t.Fatalf("AllTracks() wrapped=%v error = %v", wrapped, err)
		}
		if len(got) != 1 || got[0].Title != "Song One" || got[0].Genres[0] != "rock" {
			t.Errorf("AllTracks() wrapped=%v = %+v", wrapped, got)
		}
	}
}

func TestBearerAndRequestID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer a1" {
			t.Errorf("Authorization = %q", got)
		}
		if r.Header.Get("X-Request-ID") == "" {
			t.Error("missing X-Request-ID")
		}
		writeJSON(w, 200, []core.Track{})
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv, newStore(t, "a1", "r1")).FavoriteTracks(context.Background()); err != nil {
		t.Fatalf("FavoriteTracks() error = %v", err)
	}
}

func TestAnonymousRequestHasNoBearer(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "" {
			t.Errorf("Authorization = %q, want none", got)
		}
		writeJSON(w, 200, []core.Track{})
	}))
	defer srv.Close()

	if _, err := newTestClient(t, srv, newStore(t, "", "")).AllTracks(context.Background()); err != nil {
		t.Fatalf("AllTracks() error = %v", err)
	}
}

// refreshServer serves tracks for bearer "new" and 401 otherwise.
type refreshServer struct {
	refreshes   atomic.Int32
	trackCalls  atomic.Int32
	refreshCode int
	refreshWait time.Duration
	alwaysDeny  bool
}

func (s *refreshServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case PathRefresh:
		s.refreshes.Add(1)
		time.Sleep(s.refreshWait)
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if s.refreshCode != 0 {
			writeJSON(w, s.refreshCode, map[string]string{"detail": "token invalid"})
			return
		}
		if body["refresh"] != "r1" {
			writeJSON(w, 401, map[string]string{"detail": "bad refresh"})
			return
		}
		writeJSON(w, 200, map[string]string{"access": "new"})
	case PathAllTracks:
		s.trackCalls.Add(1)
		if s.alwaysDeny || r.Header.Get("Authorization") != "Bearer new" {
			writeJSON(w, 401, map[string]string{"detail": "token expired"})
			return
		}
		writeJSON(w, 200, []core.Track{{ID: 1}})
	default:
		http.NotFound(w, r)
	}
}

func TestRefreshOnUnauthorized(t *testing.T) {
	rs := &refreshServer{}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	store := newStore(t, "old", "r1")
	got, err := newTestClient(t, srv, store).AllTracks(context.Background())
	if err != nil {
		t.Fatalf("AllTracks() error = %v", err)
	}
	if len(got) != 1 {
		t.Errorf("AllTracks() = %v", got)
	}
	if n := rs.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
	if n := rs.trackCalls.Load(); n != 2 {
		t.Errorf("track calls = %d, want 2", n)
	}
	if store.AccessToken() != "new" || store.RefreshToken() != "r1" {
		t.Errorf("session = %+v, want refreshed access", store.Session())
	}
}

func TestSecondUnauthorizedDoesNotRefreshAgain(t *testing.T) {
	rs := &refreshServer{alwaysDeny: true}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	_, err := newTestClient(t, srv, newStore(t, "old", "r1")).AllTracks(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("AllTracks() error = %v, want 401", err)
	}
	if n := rs.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
	if n := rs.trackCalls.Load(); n != 2 {
		t.Errorf("track calls = %d, want 2", n)
	}
}

func TestServerErrorRetryKeepsSingleRefresh(t *testing.T) {
	var refreshes, calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == PathRefresh {
			refreshes.Add(1)
			writeJSON(w, 200, map[string]string{"access": "new"})
			return
		}
		// 401, then 500 on the refreshed retry, then 401 forever.
		switch calls.Add(1) {
		case 2:
			writeJSON(w, 500, map[string]string{"detail": "boom"})
		default:
			writeJSON(w, 401, map[string]string{"detail": "nope"})
		}
	}))
	defer srv.Close()

	_, err := newTestClient(t, srv, newStore(t, "old", "r1")).AllTracks(context.Background())
	if !IsUnauthorized(err) {
		t.Fatalf("AllTracks() error = %v, want 401", err)
	}
	if n := refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
	if n := calls.Load(); n != 3 {
		t.Errorf("calls = %d, want 3", n)
	}
}

func TestRefreshFailureClearsSession(t *testing.T) {
	rs := &refreshServer{refreshCode: 401}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	store := newStore(t, "old", "r1")
	var redirect string
	c := New(store, Options{BaseURL: srv.URL, OnExpired: func(to string) { redirect = to }})
	c.retryWait = time.Millisecond

	_, err := c.AllTracks(context.Background())
	if !errors.Is(err, cerrors.ErrSessionExpired) {
		t.Fatalf("AllTracks() error = %v, want ErrSessionExpired", err)
	}
	if store.Session().IsAuthenticated() || store.RefreshToken() != "" {
		t.Errorf("session not cleared: %+v", store.Session())
	}
	if redirect != SignInPath {
		t.Errorf("redirect = %q, want %q", redirect, SignInPath)
	}
	if n := rs.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
	if n := rs.trackCalls.Load(); n != 1 {
		t.Errorf("track calls = %d, want 1", n)
	}
}

func TestMissingRefreshTokenClearsSession(t *testing.T) {
	rs := &refreshServer{}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	store := newStore(t, "old", "")
	_, err := newTestClient(t, srv, store).AllTracks(context.Background())
	if !errors.Is(err, cerrors.ErrSessionExpired) || !errors.Is(err, cerrors.ErrNoRefreshToken) {
		t.Fatalf("AllTracks() error = %v", err)
	}
	if rs.refreshes.Load() != 0 {
		t.Error("refresh endpoint called without a refresh token")
	}
	if store.Session().IsAuthenticated() {
		t.Error("session not cleared")
	}
}

func TestConcurrentRefreshIsCoalesced(t *testing.T) {
	rs := &refreshServer{refreshWait: 50 * time.Millisecond}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	c := newTestClient(t, srv, newStore(t, "old", "r1"))

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AllTracks(context.Background())
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		if err != nil {
			t.Errorf("AllTracks() error = %v", err)
		}
	}
	if n := rs.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
}

func TestProactiveRefreshOfExpiredToken(t *testing.T) {
	rs := &refreshServer{}
	srv := httptest.NewServer(rs)
	defer srv.Close()

	expired, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"exp": time.Now().Add(-time.Minute).Unix(),
	}).SignedString([]byte("k"))
	if err != nil {
		t.Fatal(err)
	}

	if _, err := newTestClient(t, srv, newStore(t, expired, "r1")).AllTracks(context.Background()); err != nil {
		t.Fatalf("AllTracks() error = %v", err)
	}
	if n := rs.trackCalls.Load(); n != 1 {
		t.Errorf("track calls = %d, want 1 (refresh before sending)", n)
	}
	if n := rs.refreshes.Load(); n != 1 {
		t.Errorf("refreshes = %d, want 1", n)
	}
}

func TestRefreshEndpointIsNotIntercepted(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		writeJSON(w, 401, map[string]string{"detail": "no"})
	}))
	defer srv.Close()

	store := newStore(t, "old", "r1")
	tr := NewTransport(nil, store, func(context.Context, string) (string, error) {
		t.Error("refresh called for refresh endpoint")
		return "", nil
	}, nil)

	req, _ := http.NewRequest(http.MethodPost, srv.URL+PathRefresh, nil)
	resp, err := tr.RoundTrip(req)
	if err != nil {
		t.Fatalf("RoundTrip() error = %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != 401 || hits.Load() != 1 {
		t.Errorf("status = %d hits = %d", resp.StatusCode, hits.Load())
	}
	if !store.Session().IsAuthenticated() {
		t.Error("session cleared by refresh endpoint 401")
	}
}

func TestLoginValidationError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "" {
			t.Error("login should not carry a bearer token")
		}
		writeJSON(w, 401, map[string]string{"detail": "Incorrect email or password"})
	}))
	defer srv.Close()

	store := newStore(t, "old", "r1")
	_, err := newTestClient(t, srv, store).Login(context.Background(), "a@b.c", "pw")

	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "Incorrect email or password" {
		t.Fatalf("Login() error = %v", err)
	}
	if !store.Session().IsAuthenticated() {
		t.Error("failed login must not end the existing session")
	}
}

func TestSignup(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != PathSignup {
			t.Errorf("path = %q", r.URL.Path)
		}
		var creds Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Username != "ann" {
			writeJSON(w, 400, map[string][]string{"username": {"This field is required."}})
			return
		}
		writeJSON(w, 201, map[string]any{
			"access":  "a1",
			"refresh": "r1",
			"user":    map[string]any{"id": 3, "username": "ann", "email": "ann@example.com"},
		})
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newStore(t, "", ""))

	_, err := c.Signup(context.Background(), Credentials{Email: "ann@example.com", Password: "pw"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Message != "username: This field is required." {
		t.Errorf("Signup() without username error = %v", err)
	}

	sess, err := c.Signup(context.Background(), Credentials{Email: "ann@example.com", Password: "pw", Username: "ann"})
	if err != nil {
		t.Fatalf("Signup() error = %v", err)
	}
	if sess.Access != "a1" || sess.User == nil || sess.User.ID != 3 {
		t.Errorf("Signup() = %+v", sess)
	}
}

func TestLikeAndUnlike(t *testing.T) {
	var got []string
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		got = append(got, r.Method+" "+r.URL.Path)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := newTestClient(t, srv, newStore(t, "a1", "r1"))
	if err := c.LikeTrack(context.Background(), 7); err != nil {
		t.Fatal(err)
	}
	if err := c.UnlikeTrack(context.Background(), 7); err != nil {
		t.Fatal(err)
	}

	want := []string{"POST /tracks/7/favorite", "DELETE /tracks/7/favorite"}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("requests = %v, want %v", got, want)
	}
}

func TestServerErrorsAreRetried(t *testing.T) {
	var calls atomic.Int32
	var ids sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ids.Store(r.Header.Get("X-Request-ID"), true)
		if calls.Add(1) < 3 {
			writeJSON(w, 503, map[string]string{"detail": "busy"})
			return
		}
		writeJSON(w, 200, []core.Selection{{ID: 1, Name: "Daily"}})
	}))
	defer srv.Close()

	got, err := newTestClient(t, srv, newStore(t, "", "")).Selections(context.Background())
	if err != nil {
		t.Fatalf("Selections() error = %v", err)
	}
	if len(got) != 1 || got[0].Name != "Daily" {
		t.Errorf("Selections() = %+v", got)
	}

	n := 0
	ids.Range(func(_, _ any) bool { n++; return true })
	if n != 1 {
		t.Errorf("distinct request ids = %d, want 1 across retries", n)
	}
}

func TestAPIError(t *testing.T) {
	err := newAPIError(409, []byte(`{"message":"User already exists"}`))
	if got, want := err.Error(), "API error 409: User already exists"; got != want {
		t.Errorf("Error() = %q, want %q", got, want)
	}
	if cerrors.Classify(err) != cerrors.KindValidation {
		t.Errorf("Classify() = %v, want validation", cerrors.Classify(err))
	}

	if got := newAPIError(502, nil).Message; got != "Bad Gateway" {
		t.Errorf("empty body message = %q", got)
	}
}
