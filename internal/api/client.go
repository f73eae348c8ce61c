// Package api is the client for the remote music service.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	cerrors "github.com/tessro/cadence/internal/errors"
	"github.com/tessro/cadence/internal/logging"
)

const (
	// DefaultTimeout bounds every HTTP exchange with the service.
	DefaultTimeout = 30 * time.Second

	// Retry configuration for transient errors
	maxRetries    = 3
	baseRetryWait = 500 * time.Millisecond
)

// Options configures a Client.
type Options struct {
	BaseURL string
	Timeout time.Duration
	// Jar receives the cookies the service sets and sends the mirrored ones.
	Jar http.CookieJar
	// Base is the underlying transport, http.DefaultTransport when nil.
	Base http.RoundTripper
	// OnExpired is called with the sign-in path when the session ends.
	OnExpired func(redirect string)
	Logger    *log.Logger
}

// Client talks to the remote music service.
type Client struct {
	baseURL   string
	authed    *http.Client // behind Transport
	anon      *http.Client // auth endpoints, no bearer token
	transport *Transport
	logger    *log.Logger
	retryWait time.Duration
}

// New creates a client whose authenticated calls go through a Transport
// reading tokens.
func New(tokens TokenSource, opts Options) *Client {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	base := opts.Base
	if base == nil {
		base = http.DefaultTransport
	}

	c := &Client{
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		logger:    logging.Component(opts.Logger, "api"),
		retryWait: baseRetryWait,
	}
	c.transport = NewTransport(base, tokens, c.RefreshAccess, opts.Logger)
	c.transport.OnExpired = opts.OnExpired
	c.authed = &http.Client{Timeout: timeout, Transport: c.transport, Jar: opts.Jar}
	c.anon = &http.Client{Timeout: timeout, Transport: base, Jar: opts.Jar}
	return c
}

// Transport returns the re-auth transport used for authenticated calls.
func (c *Client) Transport() *Transport {
	return c.transport
}

// BaseURL returns the service root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get performs an authenticated GET request.
func (c *Client) Get(ctx context.Context, path string, result any) error {
	return c.request(ctx, c.authed, http.MethodGet, path, nil, result)
}

// Post performs an authenticated POST request.
func (c *Client) Post(ctx context.Context, path string, body any, result any) error {
	return c.request(ctx, c.authed, http.MethodPost, path, body, result)
}

// Delete performs an authenticated DELETE request.
func (c *Client) Delete(ctx context.Context, path string) error {
	return c.request(ctx, c.authed, http.MethodDelete, path, nil, nil)
}

func (c *Client) request(ctx context.Context, hc *http.Client, method, path string, body any, result any) error {
	var jsonBody []byte
	if body != nil {
		var err error
		jsonBody, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
	}

	fullURL := c.baseURL + path
	requestID := uuid.NewString()
	logger := c.logger.With("request_id", requestID)
	logger.Debug("request", "method", method, "url", fullURL)

	// One refresh budget for the whole call, across retries.
	ctx = WithCall(ctx)

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		// Wait before retry (skip on first attempt)
		if attempt > 0 {
			wait := c.retryWait * time.Duration(1<<(attempt-1)) // exponential backoff
			logger.Debug("retrying", "attempt", attempt, "max", maxRetries, "wait", wait, "err", lastErr)
			if !sleep(ctx, wait) {
				return ctx.Err()
			}
		}

		var bodyReader io.Reader
		if jsonBody != nil {
			bodyReader = bytes.NewReader(jsonBody)
		}

		req, err := http.NewRequestWithContext(ctx, method, fullURL, bodyReader)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		resp, err := hc.Do(req)
		if err != nil {
			if errors.Is(err, cerrors.ErrSessionExpired) {
				return err
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%w: %w", cerrors.ErrNetworkError, err)
			logger.Debug("network error", "err", err)
			continue // Retry on network error
		}

		respBody, err := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if err != nil {
			lastErr = fmt.Errorf("failed to read response: %w", err)
			logger.Debug("read error", "err", err)
			continue
		}

		logger.Debug("response", "status", resp.StatusCode)

		// Retry on 5xx server errors
		if resp.StatusCode >= 500 {
			lastErr = newAPIError(resp.StatusCode, respBody)
			logger.Debug("server error, will retry", "err", lastErr)
			continue
		}

		// Don't retry 4xx errors
		if resp.StatusCode >= 400 {
			return newAPIError(resp.StatusCode, respBody)
		}

		if result != nil && len(bytes.TrimSpace(respBody)) > 0 {
			if err := json.Unmarshal(respBody, result); err != nil {
				return fmt.Errorf("failed to parse response: %w", err)
			}
		}

		return nil
	}

	return fmt.Errorf("request failed after %d retries: %w", maxRetries, lastErr)
}

// APIError is a non-2xx response from the service.
type APIError struct {
	Status  int
	Message string
}

func newAPIError(status int, body []byte) *APIError {
	return &APIError{Status: status, Message: errorMessage(status, body)}
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error %d: %s", e.Status, e.Message)
}

// StatusCode returns the HTTP status of the response.
func (e *APIError) StatusCode() int {
	return e.Status
}

// IsUnauthorized checks if an error is a 401 from the service.
func IsUnauthorized(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized
}

// errorMessage extracts the server's own wording from an error body. Known
// shapes are {"detail": ...}, {"message": ...}, {"error": ...} and
// per-field lists such as {"email": ["already registered"]}.
func errorMessage(status int, body []byte) string {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return http.StatusText(status)
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return string(body)
	}

	for _, key := range []string{"detail", "message", "error"} {
		if raw, ok := obj[key]; ok {
			var s string
			if err := json.Unmarshal(raw, &s); err == nil && s != "" {
				return s
			}
		}
	}

	var parts []string
	for field, raw := range obj {
		var list []string
		if err := json.Unmarshal(raw, &list); err == nil && len(list) > 0 {
			parts = append(parts, field+": "+strings.Join(list, ", "))
		}
	}
	if len(parts) > 0 {
		slices.Sort(parts)
		return strings.Join(parts, "; ")
	}
	return string(body)
}

// sleep waits for the specified duration or until context is cancelled.
// Returns true if sleep completed, false if context was cancelled.
func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
