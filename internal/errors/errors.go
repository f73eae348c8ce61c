package errors

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

// Error types for common failure scenarios.
var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSessionExpired   = errors.New("session expired")
	ErrCorruptSession   = errors.New("corrupt session record")
	ErrNoRefreshToken   = errors.New("no refresh token")
	ErrTrackNotFound    = errors.New("track not found")
	ErrMediaFailed      = errors.New("media playback failed")
	ErrNetworkError     = errors.New("network error")
	ErrTimeout          = errors.New("request timeout")
	ErrConfigNotFound   = errors.New("config file not found")
	ErrInvalidConfig    = errors.New("invalid configuration")
)

// CadenceError wraps an error with a user-friendly suggestion.
type CadenceError struct {
	Err        error
	Suggestion string
}

func (e *CadenceError) Error() string {
	return e.Err.Error()
}

func (e *CadenceError) Unwrap() error {
	return e.Err
}

// WithSuggestion wraps an error with a helpful suggestion.
func WithSuggestion(err error, suggestion string) error {
	return &CadenceError{
		Err:        err,
		Suggestion: suggestion,
	}
}

// Kind is the failure category an error belongs to.
type Kind int

const (
	KindUnknown Kind = iota
	KindTransport
	KindAuthorization
	KindValidation
	KindMedia
	KindCorrupt
)

func (k Kind) String() string {
	switch k {
	case KindTransport:
		return "transport"
	case KindAuthorization:
		return "authorization"
	case KindValidation:
		return "validation"
	case KindMedia:
		return "media"
	case KindCorrupt:
		return "corrupt"
	default:
		return "unknown"
	}
}

// StatusCoder is implemented by errors that carry an HTTP status.
type StatusCoder interface {
	StatusCode() int
}

// Classify places err in the failure taxonomy.
func Classify(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	switch {
	case errors.Is(err, ErrCorruptSession):
		return KindCorrupt
	case errors.Is(err, ErrMediaFailed):
		return KindMedia
	case errors.Is(err, ErrNotAuthenticated), errors.Is(err, ErrSessionExpired), errors.Is(err, ErrNoRefreshToken):
		return KindAuthorization
	case errors.Is(err, ErrNetworkError), errors.Is(err, ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return KindTransport
	}

	var sc StatusCoder
	if errors.As(err, &sc) {
		switch code := sc.StatusCode(); {
		case code == 401 || code == 403:
			return KindAuthorization
		case code >= 500:
			return KindTransport
		case code >= 400:
			return KindValidation
		}
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransport
	}

	return KindUnknown
}

// IsTransient reports whether err should be shown as a short-lived notice
// rather than ending the session.
func IsTransient(err error) bool {
	switch Classify(err) {
	case KindTransport, KindValidation, KindUnknown:
		return true
	default:
		return false
	}
}

// GetSuggestion returns a suggestion for the given error.
func GetSuggestion(err error) string {
	if err == nil {
		return ""
	}

	var cadenceErr *CadenceError
	if errors.As(err, &cadenceErr) && cadenceErr.Suggestion != "" {
		return cadenceErr.Suggestion
	}

	errStr := strings.ToLower(err.Error())

	switch Classify(err) {
	case KindCorrupt:
		return "The saved session was unreadable and has been discarded. Run 'cadence auth login'"
	case KindAuthorization:
		if errors.Is(err, ErrSessionExpired) {
			return "Your session has expired. Run 'cadence auth login' to sign in again"
		}
		return "Run 'cadence auth login' to sign in"
	case KindMedia:
		return "Check that mpv is installed and the track URL is reachable"
	case KindTransport:
		if strings.Contains(errStr, "500") || strings.Contains(errStr, "server error") {
			return "The music service is having issues. Try again in a moment"
		}
		return "Check your internet connection and try again"
	}

	if strings.Contains(errStr, "executable file not found") {
		return "Install mpv or set player.mpv_path in your config"
	}

	if errors.Is(err, ErrConfigNotFound) || errors.Is(err, ErrInvalidConfig) || strings.Contains(errStr, "config") {
		return "Run 'cadence config show' to inspect your configuration"
	}

	return ""
}

// Format returns a formatted error message with suggestion if available.
func Format(err error) string {
	if err == nil {
		return ""
	}

	suggestion := GetSuggestion(err)
	if suggestion != "" {
		return fmt.Sprintf("Error: %s\n\nSuggestion: %s", err.Error(), suggestion)
	}

	return fmt.Sprintf("Error: %s", err.Error())
}

// PartialResult represents a result that may have partial failures.
type PartialResult[T any] struct {
	Data   T
	Errors []error
}

// HasErrors returns true if there were any errors.
func (p *PartialResult[T]) HasErrors() bool {
	return len(p.Errors) > 0
}

// AddError adds an error to the partial result.
func (p *PartialResult[T]) AddError(err error) {
	if err != nil {
		p.Errors = append(p.Errors, err)
	}
}

// ErrorSummary returns a summary of all errors.
func (p *PartialResult[T]) ErrorSummary() string {
	if len(p.Errors) == 0 {
		return ""
	}
	if len(p.Errors) == 1 {
		return p.Errors[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d errors occurred:\n", len(p.Errors)))
	for i, err := range p.Errors {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}
