package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) StatusCode() int { return int(s) }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"nil", nil, KindUnknown},
		{"corrupt", fmt.Errorf("restore: %w", ErrCorruptSession), KindCorrupt},
		{"expired", ErrSessionExpired, KindAuthorization},
		{"media", fmt.Errorf("load: %w", ErrMediaFailed), KindMedia},
		{"deadline", fmt.Errorf("get: %w", context.DeadlineExceeded), KindTransport},
		{"unauthorized", statusErr(401), KindAuthorization},
		{"bad request", statusErr(400), KindValidation},
		{"conflict", statusErr(409), KindValidation},
		{"server", statusErr(502), KindTransport},
		{"plain", errors.New("boom"), KindUnknown},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.err); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsTransient(t *testing.T) {
	if !IsTransient(statusErr(400)) {
		t.Error("validation errors should be transient")
	}
	if IsTransient(ErrSessionExpired) {
		t.Error("expired session should not be transient")
	}
}

func TestFormat(t *testing.T) {
	if Format(nil) != "" {
		t.Error("Format(nil) should be empty")
	}

	got := Format(ErrSessionExpired)
	if !strings.Contains(got, "Error: session expired") || !strings.Contains(got, "cadence auth login") {
		t.Errorf("Format() = %q", got)
	}

	custom := WithSuggestion(errors.New("nope"), "try again")
	if got := GetSuggestion(custom); got != "try again" {
		t.Errorf("GetSuggestion() = %q, want %q", got, "try again")
	}
}

func TestPartialResult(t *testing.T) {
	var p PartialResult[int]
	p.AddError(nil)
	if p.HasErrors() {
		t.Error("nil error should not be recorded")
	}
	p.AddError(errors.New("one"))
	p.AddError(errors.New("two"))
	if !strings.HasPrefix(p.ErrorSummary(), "2 errors occurred") {
		t.Errorf("ErrorSummary() = %q", p.ErrorSummary())
	}
}
