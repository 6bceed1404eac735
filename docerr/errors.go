// Package docerr defines the enumerated error kinds carried across docvault's
// component boundaries, so that every user-visible failure maps to a stable,
// classifiable code instead of a raw upstream error string.
package docerr

import (
	"errors"
	"fmt"
)

// Kind classifies an error for propagation policy and for audit logging.
type Kind string

const (
	// InvalidArgs means a tool call's arguments failed schema or value
	// validation. Not retried.
	InvalidArgs Kind = "invalid_args"
	// UnknownTool means the tool registry has no entry for the requested name.
	UnknownTool Kind = "unknown_tool"
	// NotFound means a referenced source or job does not exist.
	NotFound Kind = "not_found"
	// Conflict means a duplicate in-flight job already exists; callers should
	// treat this as success and use the returned existing job id.
	Conflict Kind = "conflict"
	// RateLimited means a local or external rate limit was hit. Transient.
	RateLimited Kind = "rate_limited"
	// UpstreamUnavailable means the docs host or embedding provider failed
	// after exhausting retries.
	UpstreamUnavailable Kind = "upstream_unavailable"
	// StoreTransient means a deadlock or serialization failure occurred and
	// was already retried internally without success.
	StoreTransient Kind = "store_transient"
	// StoreFatal means a schema mismatch or migration checksum mismatch was
	// detected. Fatal at startup; surfaced at request time elsewhere.
	StoreFatal Kind = "store_fatal"
	// Cancelled means cooperative cancellation took effect. Not a failure
	// per se.
	Cancelled Kind = "cancelled"
)

// Error is docvault's user-visible error type. Message never includes
// secrets or raw upstream response bodies; Cause may carry that detail for
// structured logs behind a redaction filter.
type Error struct {
	Kind    Kind
	Message string
	Field   string // set for InvalidArgs: the offending field name
	Cause   error
}

func (e *Error) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (field=%s)", e.Kind, e.Message, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// New builds an *Error of the given kind with a message.
func New(kind Kind, message string) *Error {
	return &Error{Kind: kind, Message: message}
}

// Wrap builds an *Error of the given kind, wrapping cause.
func Wrap(kind Kind, message string, cause error) *Error {
	return &Error{Kind: kind, Message: message, Cause: cause}
}

// InvalidField builds an InvalidArgs error naming the offending field.
func InvalidField(field, message string) *Error {
	return &Error{Kind: InvalidArgs, Message: message, Field: field}
}

// Is reports whether err (or something it wraps) is a docvault *Error of kind.
func Is(err error, kind Kind) bool {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind == kind
	}
	return false
}

// KindOf returns the Kind of err if it is (or wraps) a docvault *Error,
// and ok=false otherwise.
func KindOf(err error) (Kind, bool) {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind, true
	}
	return "", false
}
