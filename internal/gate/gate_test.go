package gate

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/tessro/cadence/internal/session"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		access string
		want   string
	}{
		{"anonymous home", "/", "", "/signin?next=%2F"},
		{"anonymous favorites", "/favorites", "", "/signin?next=%2Ffavorites"},
		{"anonymous category", "/category/7", "", "/signin?next=%2Fcategory%2F7"},
		{"anonymous signin", "/signin", "", ""},
		{"anonymous signup", "/signup", "", ""},
		{"anonymous asset", "/assets/app.js", "", ""},
		{"authenticated home", "/", "tok", ""},
		{"authenticated category", "/category/7", "tok", ""},
		{"authenticated signin", "/signin", "tok", "/"},
		{"authenticated signup", "/signup", "tok", "/"},
		{"category index is not protected", "/category", "", ""},
		{"query kept in next", "/favorites?sort=desc&page=2", "", "/signin?next=%2Ffavorites%3Fsort%3Ddesc%26page%3D2"},
		{"query on auth view", "/signin?next=%2F", "tok", "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.path, tt.access)
			if got.Redirect != tt.want {
				t.Errorf("Decide(%q, %q) = %q, want %q", tt.path, tt.access, got.Redirect, tt.want)
			}
			if got.Allowed() != (tt.want == "") {
				t.Errorf("Allowed() = %v", got.Allowed())
			}
		})
	}
}

func newRoot(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte("<app>"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, "app.js"), []byte("js"), 0o644); err != nil {
		t.Fatal(err)
	}
	return root
}

func TestRouter(t *testing.T) {
	router := Router(newRoot(t), nil)

	tests := []struct {
		name     string
		path     string
		access   string
		wantCode int
		wantLoc  string
		wantBody string
	}{
		{name: "anonymous protected view", path: "/favorites", wantCode: http.StatusFound, wantLoc: "/signin?next=%2Ffavorites"},
		{name: "anonymous deep link with query", path: "/category/3?sort=asc", wantCode: http.StatusFound, wantLoc: "/signin?next=%2Fcategory%2F3%3Fsort%3Dasc"},
		{name: "anonymous signin view", path: "/signin", wantCode: http.StatusOK, wantBody: "<app>"},
		{name: "authenticated view", path: "/category/3", access: "tok", wantCode: http.StatusOK, wantBody: "<app>"},
		{name: "authenticated signup", path: "/signup", access: "tok", wantCode: http.StatusFound, wantLoc: "/"},
		{name: "static asset", path: "/app.js", wantCode: http.StatusOK, wantBody: "js"},
		{name: "missing asset", path: "/missing.css", wantCode: http.StatusNotFound},
		{name: "health", path: "/healthz", wantCode: http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tt.path, nil)
			if tt.access != "" {
				req.AddCookie(&http.Cookie{Name: session.AccessCookie, Value: tt.access})
			}
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)

			if rec.Code != tt.wantCode {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantCode)
			}
			if tt.wantLoc != "" && rec.Header().Get("Location") != tt.wantLoc {
				t.Errorf("Location = %q, want %q", rec.Header().Get("Location"), tt.wantLoc)
			}
			if tt.wantBody != "" && !strings.Contains(rec.Body.String(), tt.wantBody) {
				t.Errorf("body = %q, want %q", rec.Body.String(), tt.wantBody)
			}
		})
	}
}
