package session

import (
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/tessro/cadence/internal/core"
)

// Session is the signed-in identity, or the zero value for anonymous use.
type Session struct {
	Access  string     `json:"access"`
	Refresh string     `json:"refresh"`
	User    *core.User `json:"user,omitempty"`
}

// IsAuthenticated reports whether an access token is present.
func (s Session) IsAuthenticated() bool {
	return s.Access != ""
}

// Phase is a step in the session lifecycle.
type Phase int

const (
	Anonymous Phase = iota
	Authenticating
	Authenticated
)

func (p Phase) String() string {
	switch p {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// TokenExpiry reads the exp claim of a JWT without verifying its signature.
// The client never holds the signing key, so the claim is advisory only.
func TokenExpiry(token string) (time.Time, bool) {
	if token == "" {
		return time.Time{}, false
	}

	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}, false
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// TokenExpired reports whether token is known to expire within skew.
// Tokens without a readable exp claim are never considered expired.
func TokenExpired(token string, skew time.Duration) bool {
	exp, ok := TokenExpiry(token)
	if !ok {
		return false
	}
	return time.Now().Add(skew).After(exp)
}
