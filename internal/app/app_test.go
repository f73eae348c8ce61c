package app

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tessro/cadence/internal/api"
	"github.com/tessro/cadence/internal/config"
	"github.com/tessro/cadence/internal/notify"
	"github.com/tessro/cadence/internal/session"
)

func newService(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc(api.PathLogin, func(w http.ResponseWriter, r *http.Request) {
		var creds api.Credentials
		_ = json.NewDecoder(r.Body).Decode(&creds)
		if creds.Password != "secret" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"detail":"Invalid credentials"}`))
			return
		}
		_, _ = w.Write([]byte(`{"access":"a1","refresh":"r1","user":{"id":1,"username":"ada","email":"ada@example.com"}}`))
	})
	mux.HandleFunc(api.PathRefresh, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	mux.HandleFunc(api.PathFavoriteTracks, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"_id":4,"name":"Four"}]`))
	})
	mux.HandleFunc(api.PathAllTracks, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func newApp(t *testing.T, baseURL, dir string) *App {
	t.Helper()
	cfg := config.Default()
	cfg.API.BaseURL = baseURL
	cfg.Storage.Dir = dir

	a, err := New(context.Background(), cfg, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = a.Close() })
	return a
}

func TestLoginRestoresAcrossRuns(t *testing.T) {
	srv := newService(t)
	dir := t.TempDir()

	a := newApp(t, srv.URL, dir)
	if _, err := a.Login(context.Background(), "ada@example.com", "nope"); err == nil {
		t.Fatal("Login() with a bad password succeeded")
	}
	if a.Store.Phase() != session.Anonymous {
		t.Errorf("phase after failed login = %v", a.Store.Phase())
	}

	sess, err := a.Login(context.Background(), "ada@example.com", "secret")
	if err != nil {
		t.Fatalf("Login() error = %v", err)
	}
	if sess.User == nil || sess.User.Username != "ada" {
		t.Errorf("user = %+v", sess.User)
	}
	a.Favorites.Wait()
	if !a.Favorites.Contains(4) {
		t.Error("favorites not loaded after login")
	}

	b := newApp(t, srv.URL, dir)
	b.Favorites.Wait()
	if b.Store.AccessToken() != "a1" {
		t.Errorf("restored access = %q", b.Store.AccessToken())
	}
	if !b.Favorites.Contains(4) {
		t.Error("favorites not loaded after restore")
	}
}

func TestExpiredSessionRedirects(t *testing.T) {
	srv := newService(t)
	a := newApp(t, srv.URL, t.TempDir())

	if _, err := a.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	a.Favorites.Wait()

	if _, err := a.API.AllTracks(context.Background()); err == nil {
		t.Fatal("AllTracks() succeeded with a rejected refresh")
	}

	select {
	case got := <-a.Redirects:
		if got != api.SignInPath {
			t.Errorf("redirect = %q", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no redirect")
	}
	if a.Store.Session().IsAuthenticated() {
		t.Error("session not cleared")
	}
	if a.Favorites.Contains(4) {
		t.Error("favorites not reset")
	}
	n, ok := a.Notices.Latest()
	if !ok || n.Level != notify.Error || n.Message != MsgSessionExpired {
		t.Errorf("notice = %+v", n)
	}
}

func TestLogout(t *testing.T) {
	srv := newService(t)
	a := newApp(t, srv.URL, t.TempDir())

	if _, err := a.Login(context.Background(), "ada@example.com", "secret"); err != nil {
		t.Fatal(err)
	}
	a.Favorites.Wait()

	if err := a.Logout(); err != nil {
		t.Fatalf("Logout() error = %v", err)
	}
	if a.Store.Phase() != session.Anonymous {
		t.Errorf("phase = %v", a.Store.Phase())
	}
	if len(a.Favorites.IDs()) != 0 {
		t.Error("favorites survived logout")
	}
}
