package session

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": 1,
		"exp":     exp.Unix(),
	})
	s, err := tok.SignedString([]byte("test-secret"))
	if err != nil {
		t.Fatalf("SignedString() error = %v", err)
	}
	return s
}

func TestTokenExpiry(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	got, ok := TokenExpiry(signedToken(t, exp))
	if !ok {
		t.Fatal("TokenExpiry() ok = false")
	}
	if !got.Equal(exp) {
		t.Errorf("TokenExpiry() = %v, want %v", got, exp)
	}

	if _, ok := TokenExpiry("opaque-token"); ok {
		t.Error("TokenExpiry() should fail on non-JWT")
	}
	if _, ok := TokenExpiry(""); ok {
		t.Error("TokenExpiry() should fail on empty token")
	}
}

func TestTokenExpired(t *testing.T) {
	tests := []struct {
		name  string
		token string
		want  bool
	}{
		{"valid", signedToken(t, time.Now().Add(time.Hour)), false},
		{"within skew", signedToken(t, time.Now().Add(30*time.Second)), true},
		{"expired", signedToken(t, time.Now().Add(-time.Minute)), true},
		{"opaque", "opaque-token", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TokenExpired(tt.token, time.Minute); got != tt.want {
				t.Errorf("TokenExpired() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSessionIsAuthenticated(t *testing.T) {
	if (Session{}).IsAuthenticated() {
		t.Error("zero session should be anonymous")
	}
	if (Session{Refresh: "r"}).IsAuthenticated() {
		t.Error("refresh token alone should not authenticate")
	}
	if !(Session{Access: "a"}).IsAuthenticated() {
		t.Error("access token should authenticate")
	}
}
