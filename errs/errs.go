// Package errs defines the error taxonomy surfaced by managers. Client
// errors carry a message plus optional data and info that the resolver
// adapter passes back to the caller unchanged.
package errs

import (
	"errors"
	"fmt"
)

// Kind classifies an error.
type Kind string

const (
	Validation        Kind = "VALIDATION"
	NotFound          Kind = "NOT_FOUND"
	AlreadyExists     Kind = "ALREADY_EXISTS"
	Conflict          Kind = "CONFLICT"
	Forbidden         Kind = "FORBIDDEN"
	UnverifiedContact Kind = "UNVERIFIED_CONTACT"
	Blocked           Kind = "BLOCKED"
	StatusNotAllowed  Kind = "STATUS_NOT_ALLOWED"
	Collaborator      Kind = "COLLABORATOR"
	Invariant         Kind = "INVARIANT"
	Retryable         Kind = "RETRYABLE"
)

// Client reports whether errors of this kind are attributable to the caller.
func (k Kind) Client() bool {
	switch k {
	case Validation, NotFound, AlreadyExists, Conflict, Forbidden, UnverifiedContact, Blocked, StatusNotAllowed:
		return true
	}
	return false
}

// Error is the application error type.
type Error struct {
	Kind    Kind
	Message string
	Data    map[string]any
	Info    map[string]any
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches another *Error of the same kind and message, so that package
// level error values can be used as errors.Is targets.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// WithData returns a copy of e carrying data.
func (e *Error) WithData(data map[string]any) *Error {
	c := *e
	c.Data = data
	return &c
}

// WithInfo returns a copy of e carrying info.
func (e *Error) WithInfo(info map[string]any) *Error {
	c := *e
	c.Info = info
	return &c
}

// WithCause returns a copy of e wrapping cause.
func (e *Error) WithCause(cause error) *Error {
	c := *e
	c.Cause = cause
	return &c
}

func newf(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

func NewValidation(format string, args ...any) *Error { return newf(Validation, format, args...) }
func NewNotFound(format string, args ...any) *Error   { return newf(NotFound, format, args...) }
func NewAlreadyExists(format string, args ...any) *Error {
	return newf(AlreadyExists, format, args...)
}
func NewConflict(format string, args ...any) *Error  { return newf(Conflict, format, args...) }
func NewForbidden(format string, args ...any) *Error { return newf(Forbidden, format, args...) }
func NewUnverifiedContact(format string, args ...any) *Error {
	return newf(UnverifiedContact, format, args...)
}
func NewBlocked(format string, args ...any) *Error { return newf(Blocked, format, args...) }
func NewStatusNotAllowed(format string, args ...any) *Error {
	return newf(StatusNotAllowed, format, args...)
}

// NewCollaborator wraps a failure reported by an external service.
func NewCollaborator(service string, cause error) *Error {
	return &Error{Kind: Collaborator, Message: service, Cause: cause}
}

// NewInvariant reports broken internal state, such as a missing parent row.
func NewInvariant(format string, args ...any) *Error { return newf(Invariant, format, args...) }

// NewRetryable asks an at-least-once caller to redeliver.
func NewRetryable(cause error) *Error {
	return &Error{Kind: Retryable, Message: "retry", Cause: cause}
}

// KindOf returns the kind of the first *Error in err's chain, or "".
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// Is reports whether err carries an *Error of kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// IsClient reports whether err is attributable to the caller.
func IsClient(err error) bool {
	return KindOf(err).Client()
}
