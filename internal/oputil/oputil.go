// Package oputil defines the operation-level error kinds and the JSON result
// envelope every analytical operation returns.
package oputil

import (
	"context"
	"errors"
	"fmt"
)

// Kind classifies an operation failure for callers that need to decide
// between retrying, fixing input, or giving up.
type Kind string

const (
	KindInputMissing      Kind = "input_missing"
	KindInputMalformed    Kind = "input_malformed"
	KindConfigError       Kind = "config_error"
	KindAPITransient      Kind = "api_transient"
	KindAPIPermanent      Kind = "api_permanent"
	KindParseError        Kind = "parse_error"
	KindIndexCorrupt      Kind = "index_corrupt"
	KindIndexIncompatible Kind = "index_incompatible"
	KindCancelled         Kind = "cancelled"
	KindInternal          Kind = "internal"
)

// Error carries a kind, a human-readable message, and an optional suggestion
// for how to proceed.
type Error struct {
	Kind       Kind
	Message    string
	Suggestion string
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an Error with the given kind and formatted message.
func New(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a kind and message to an underlying error. Context
// cancellation always maps to KindCancelled regardless of the requested kind.
func Wrap(err error, kind Kind, format string, args ...any) *Error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		kind = KindCancelled
	}
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// WithSuggestion returns a copy of the error carrying a remediation hint.
func (e *Error) WithSuggestion(s string) *Error {
	cp := *e
	cp.Suggestion = s
	return &cp
}

// KindOf extracts the Kind from an error chain, defaulting to KindInternal.
// Context cancellation is recognized even when unwrapped.
func KindOf(err error) Kind {
	var oe *Error
	if errors.As(err, &oe) {
		return oe.Kind
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return KindCancelled
	}
	return KindInternal
}

// Result is the envelope printed by every CLI operation.
type Result struct {
	Status     string `json:"status"`
	Kind       Kind   `json:"kind,omitempty"`
	Message    string `json:"message,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Data       any    `json:"data,omitempty"`
}

// OK wraps a payload in a success result.
func OK(data any) Result {
	return Result{Status: "success", Data: data}
}

// Fail converts an error into a failure result, preserving kind and
// suggestion when present.
func Fail(err error) Result {
	r := Result{Status: "error", Kind: KindOf(err), Message: err.Error()}
	var oe *Error
	if errors.As(err, &oe) {
		r.Message = oe.Message
		if oe.Err != nil {
			r.Message = fmt.Sprintf("%s: %v", oe.Message, oe.Err)
		}
		r.Suggestion = oe.Suggestion
	}
	return r
}
