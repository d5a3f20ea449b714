package llm

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// ErrorKind classifies provider failures. The dispatcher's retry and failover
// policy is driven entirely by this kind, never by string matching.
type ErrorKind int

const (
	// KindUnknown covers failures with no more specific classification.
	KindUnknown ErrorKind = iota
	// KindTimeout is a per-call deadline expiry. Retried.
	KindTimeout
	// KindRateLimited is a 429-style rejection. Retried with backoff.
	KindRateLimited
	// KindAuthFailed is a credential rejection. Never retried; usually
	// misconfiguration, not a transient fault.
	KindAuthFailed
	// KindOverloaded is a provider-side capacity rejection (529/503).
	// Retried with a longer backoff.
	KindOverloaded
)

func (k ErrorKind) String() string {
	switch k {
	case KindTimeout:
		return "timeout"
	case KindRateLimited:
		return "rate_limited"
	case KindAuthFailed:
		return "auth_failed"
	case KindOverloaded:
		return "overloaded"
	default:
		return "unknown"
	}
}

// Error is a typed provider failure.
type Error struct {
	Kind     ErrorKind
	Provider string
	Message  string
	cause    error
}

func (e *Error) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s: %s", e.Provider, e.Kind, e.Message)
	}
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Provider, e.Kind, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Kind)
}

func (e *Error) Unwrap() error {
	return e.cause
}

// NewError builds a typed provider error wrapping cause.
func NewError(kind ErrorKind, provider, message string, cause error) *Error {
	return &Error{Kind: kind, Provider: provider, Message: message, cause: cause}
}

// KindOf extracts the error kind from err's chain. Context deadline expiry and
// network timeouts classify as KindTimeout even without an explicit *Error.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindUnknown
	}

	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}

	return KindUnknown
}

// Retryable reports whether an error kind is worth retrying on the same
// provider. Auth failures and unknown errors go straight to failover.
func Retryable(err error) bool {
	switch KindOf(err) {
	case KindTimeout, KindRateLimited, KindOverloaded:
		return true
	default:
		return false
	}
}

// KindForStatus maps an HTTP status code to an error kind.
func KindForStatus(status int) ErrorKind {
	switch status {
	case 401, 403:
		return KindAuthFailed
	case 408:
		return KindTimeout
	case 429:
		return KindRateLimited
	case 503, 529:
		return KindOverloaded
	default:
		return KindUnknown
	}
}
