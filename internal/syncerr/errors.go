package syncerr

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// Kind is the closed set of failure classes the engine distinguishes. Retry
// classification switches exhaustively over Kind; there is no open hierarchy.
type Kind int

const (
	KindUnknown Kind = iota
	KindNetwork
	KindTimeout
	KindRateLimit
	KindAuth
	KindValidation
	KindConflict
)

func (k Kind) String() string {
	switch k {
	case KindNetwork:
		return "network"
	case KindTimeout:
		return "timeout"
	case KindRateLimit:
		return "rate_limit"
	case KindAuth:
		return "authentication"
	case KindValidation:
		return "validation"
	case KindConflict:
		return "data_conflict"
	default:
		return "unknown"
	}
}

// Error is the engine's error type. RetryAfter carries a server-provided
// backoff hint for rate-limit failures; zero means no hint.
type Error struct {
	Kind       Kind
	Message    string
	RetryAfter time.Duration
	Err        error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New builds an Error of the given kind wrapping an optional cause.
func New(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Err: cause}
}

func Network(message string, cause error) *Error {
	return New(KindNetwork, message, cause)
}

func Timeout(message string, cause error) *Error {
	return New(KindTimeout, message, cause)
}

func RateLimited(message string, retryAfter time.Duration, cause error) *Error {
	return &Error{Kind: KindRateLimit, Message: message, RetryAfter: retryAfter, Err: cause}
}

func Auth(message string, cause error) *Error {
	return New(KindAuth, message, cause)
}

func Validation(message string, cause error) *Error {
	return New(KindValidation, message, cause)
}

func Conflict(message string, cause error) *Error {
	return New(KindConflict, message, cause)
}

// KindOf classifies an arbitrary error. Unwrapped context deadline errors are
// treated as timeouts; anything unrecognized is KindUnknown and retried
// conservatively.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}
	var se *Error
	if errors.As(err, &se) {
		return se.Kind
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	return KindUnknown
}

// Retryable reports whether an error class is worth retrying at all.
// Authentication and validation failures are fatal; data conflicts are routed
// to the conflict resolver rather than retried blindly.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindNetwork, KindTimeout, KindRateLimit, KindUnknown:
		return true
	case KindAuth, KindValidation, KindConflict:
		return false
	default:
		return false
	}
}

// RetryAfterHint extracts a server-provided retry delay, if any.
func RetryAfterHint(err error) (time.Duration, bool) {
	var se *Error
	if errors.As(err, &se) && se.RetryAfter > 0 {
		return se.RetryAfter, true
	}
	return 0, false
}
