package oputil

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"typed error", New(KindInputMissing, "no dataset"), KindInputMissing},
		{"wrapped typed error", fmt.Errorf("outer: %w", New(KindParseError, "bad table")), KindParseError},
		{"context canceled", context.Canceled, KindCancelled},
		{"deadline exceeded", fmt.Errorf("call: %w", context.DeadlineExceeded), KindCancelled},
		{"plain error", errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := KindOf(tt.err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrapCancellationOverridesKind(t *testing.T) {
	err := Wrap(context.Canceled, KindAPITransient, "call aborted")
	if err.Kind != KindCancelled {
		t.Errorf("Kind = %q, want %q", err.Kind, KindCancelled)
	}
}

func TestFailCarriesSuggestion(t *testing.T) {
	err := New(KindConfigError, "DS_KEY not set").WithSuggestion("export DS_KEY before running")
	r := Fail(err)
	if r.Status != "error" {
		t.Errorf("Status = %q, want error", r.Status)
	}
	if r.Kind != KindConfigError {
		t.Errorf("Kind = %q, want %q", r.Kind, KindConfigError)
	}
	if r.Suggestion != "export DS_KEY before running" {
		t.Errorf("Suggestion = %q", r.Suggestion)
	}
}
