package llm

import (
	"fmt"
)

// ErrorKind classifies a failed completion call by its cause.
type ErrorKind string

const (
	ErrAuth       ErrorKind = "auth"        // 401: bad or missing key
	ErrQuota      ErrorKind = "quota"       // 402: balance exhausted
	ErrArg        ErrorKind = "argument"    // 400/422: request rejected
	ErrRateLimit  ErrorKind = "rate_limit"  // 429: slow down
	ErrOverloaded ErrorKind = "overloaded"  // 503/504: upstream busy
	ErrServer     ErrorKind = "server"      // 500: upstream fault
	ErrTimeout    ErrorKind = "timeout"     // deadline exceeded
	ErrTransport  ErrorKind = "transport"   // network-level failure
)

// Error is a classified completion failure. It carries the provider so a
// caller can name the right credentials in its message, and never triggers a
// retry by itself.
type Error struct {
	Kind     ErrorKind
	Provider Provider
	Status   int
	Message  string
	Hint     string
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (%s, HTTP %d): %s", e.Kind, e.Provider, e.Status, e.Message)
	}
	return fmt.Sprintf("%s (%s): %s", e.Kind, e.Provider, e.Message)
}

// Transient reports whether a caller may reasonably retry the call.
func (e *Error) Transient() bool {
	switch e.Kind {
	case ErrRateLimit, ErrOverloaded, ErrServer, ErrTimeout, ErrTransport:
		return true
	default:
		return false
	}
}

// classify maps an HTTP status to an Error for the given provider.
func classify(p Provider, status int, message string) *Error {
	e := &Error{Provider: p, Status: status, Message: message}
	switch status {
	case 401:
		e.Kind = ErrAuth
		e.Hint = fmt.Sprintf("check the %s environment variable", p.KeyEnv())
	case 402:
		e.Kind = ErrQuota
		e.Hint = "top up the account balance"
	case 400, 422:
		e.Kind = ErrArg
	case 429:
		e.Kind = ErrRateLimit
		e.Hint = "reduce request rate or batch size and retry after a pause"
	case 503, 504:
		e.Kind = ErrOverloaded
		e.Hint = "the upstream is busy; retry later"
	case 500:
		e.Kind = ErrServer
	default:
		e.Kind = ErrTransport
	}
	return e
}
