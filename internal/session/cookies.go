package session

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	// DefaultCookieFileName is the default name for the persisted cookie jar.
	DefaultCookieFileName = "cookies.json"

	AccessCookie  = "access_token"
	RefreshCookie = "refresh_token"

	// CookieMaxAge is how long mirrored token cookies live.
	CookieMaxAge = 7 * 24 * time.Hour
)

// NewCookie builds a token cookie with the mirror's attributes.
func NewCookie(name, value string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   int(CookieMaxAge / time.Second),
		Expires:  time.Now().Add(CookieMaxAge),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie builds a cookie that removes name from a jar or browser.
func ExpiredCookie(name string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	}
}

type storedCookie struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Expires time.Time `json:"expires"`
}

// CookieMirror keeps the token cookies for the API origin in a cookie jar
// that survives restarts.
type CookieMirror struct {
	path   string
	origin *url.URL
	jar    *cookiejar.Jar
	// expires tracks cookie lifetimes, which the jar does not expose.
	expires map[string]time.Time
	mu      sync.Mutex
}

// NewCookieMirror opens the jar persisted at path for origin. Unreadable
// jar files are discarded.
func NewCookieMirror(path, origin string) (*CookieMirror, error) {
	u, err := url.Parse(origin)
	if err != nil {
		return nil, fmt.Errorf("invalid cookie origin: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	m := &CookieMirror{path: path, origin: u, jar: jar, expires: make(map[string]time.Time)}
	stored, err := m.read()
	if err != nil {
		_ = os.Remove(path)
		return m, nil
	}

	now := time.Now()
	var live []*http.Cookie
	for _, c := range stored {
		if c.Expires.After(now) {
			ck := NewCookie(c.Name, c.Value, m.secure())
			ck.Expires = c.Expires
			ck.MaxAge = int(time.Until(c.Expires) / time.Second)
			live = append(live, ck)
			m.expires[c.Name] = c.Expires
		}
	}
	jar.SetCookies(u, live)
	return m, nil
}

// Jar returns the cookie jar to attach to HTTP clients talking to the origin.
func (m *CookieMirror) Jar() http.CookieJar {
	return m.jar
}

// Mirror writes the token cookies. An empty refresh token leaves the
// existing refresh cookie alone.
func (m *CookieMirror) Mirror(access, refresh string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	cookies := []*http.Cookie{NewCookie(AccessCookie, access, m.secure())}
	if refresh != "" {
		cookies = append(cookies, NewCookie(RefreshCookie, refresh, m.secure()))
	}
	m.jar.SetCookies(m.origin, cookies)
	for _, c := range cookies {
		m.expires[c.Name] = c.Expires
	}
	return m.save()
}

// Expire removes both token cookies.
func (m *CookieMirror) Expire() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.jar.SetCookies(m.origin, []*http.Cookie{
		ExpiredCookie(AccessCookie, m.secure()),
		ExpiredCookie(RefreshCookie, m.secure()),
	})
	clear(m.expires)
	return m.save()
}

// Value returns the current value of the named cookie for the origin.
func (m *CookieMirror) Value(name string) string {
	for _, c := range m.jar.Cookies(m.origin) {
		if c.Name == name {
			return c.Value
		}
	}
	return ""
}

func (m *CookieMirror) secure() bool {
	return m.origin.Scheme == "https"
}

func (m *CookieMirror) read() ([]storedCookie, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	var stored []storedCookie
	if err := json.Unmarshal(data, &stored); err != nil {
		return nil, err
	}
	return stored, nil
}

// save persists the jar's token cookies.
func (m *CookieMirror) save() error {
	var stored []storedCookie
	for _, c := range m.jar.Cookies(m.origin) {
		if c.Name != AccessCookie && c.Name != RefreshCookie {
			continue
		}
		exp, ok := m.expires[c.Name]
		if !ok {
			exp = time.Now().Add(CookieMaxAge)
		}
		stored = append(stored, storedCookie{Name: c.Name, Value: c.Value, Expires: exp})
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(stored, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cookies: %w", err)
	}
	if err := os.WriteFile(m.path, data, 0600); err != nil {
		return fmt.Errorf("failed to write cookie file: %w", err)
	}
	return nil
}
