// Package gate decides, per request, whether a visitor may see a view based
// on the cookie-mirrored access token.
package gate

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/tessro/cadence/internal/logging"
	"github.com/tessro/cadence/internal/session"
)

const (
	SignInPath = "/signin"
	SignUpPath = "/signup"
	HomePath   = "/"

	// NextParam carries the intended destination through sign-in.
	NextParam = "next"
)

// Decision is the outcome of gating one request.
type Decision struct {
	// Redirect is empty when the request may proceed.
	Redirect string
}

// Allowed reports whether the request may proceed.
func (d Decision) Allowed() bool {
	return d.Redirect == ""
}

// Protected reports whether path requires a session.
func Protected(path string) bool {
	switch {
	case path == HomePath:
		return true
	case path == "/favorites" || strings.HasPrefix(path, "/favorites/"):
		return true
	case strings.HasPrefix(path, "/category/"):
		return true
	}
	return false
}

// AuthView reports whether path is a sign-in or sign-up view.
func AuthView(path string) bool {
	return path == SignInPath || path == SignUpPath
}

// Decide gates target, a request URI, given the mirrored access token.
// Anonymous visitors to protected views go to sign-in with the whole
// target, query included, in ?next=. Authenticated visitors to auth views
// go home.
func Decide(target, accessCookie string) Decision {
	authenticated := accessCookie != ""
	path, _, _ := strings.Cut(target, "?")

	switch {
	case !authenticated && Protected(path):
		q := url.Values{NextParam: {target}}
		return Decision{Redirect: SignInPath + "?" + q.Encode()}
	case authenticated && AuthView(path):
		return Decision{Redirect: HomePath}
	}
	return Decision{}
}

// Middleware applies Decide to every request passing through a router.
func Middleware(logger *log.Logger) func(http.Handler) http.Handler {
	logger = logging.Component(logger, "gate")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var access string
			if c, err := r.Cookie(session.AccessCookie); err == nil {
				access = c.Value
			}

			d := Decide(r.URL.RequestURI(), access)
			if !d.Allowed() {
				logger.Debug("redirect", "path", r.URL.Path, "to", d.Redirect)
				http.Redirect(w, r, d.Redirect, http.StatusFound)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
