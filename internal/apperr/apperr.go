// Package apperr defines the error kinds returned by the service layer.
// Handlers map a Kind to an HTTP status; services never deal in status codes.
package apperr

import (
	"errors"
	"strings"
)

// Kind classifies an application error.
type Kind int

const (
	Internal Kind = iota
	Validation
	NotFound
	Conflict
	Unauthorized
)

func (k Kind) String() string {
	switch k {
	case Validation:
		return "validation"
	case NotFound:
		return "not_found"
	case Conflict:
		return "conflict"
	case Unauthorized:
		return "unauthorized"
	default:
		return "internal"
	}
}

// Error is an application error carrying a kind and a human-readable message.
// Conflicts lists the clashing titles or names when the error reports more
// than one uniqueness violation at once.
type Error struct {
	Kind      Kind
	Message   string
	Conflicts []string
	Err       error
}

func (e *Error) Error() string {
	if len(e.Conflicts) > 0 {
		return e.Message + ": " + strings.Join(e.Conflicts, ", ")
	}
	return e.Message
}

// Unwrap exposes the underlying cause, if any.
func (e *Error) Unwrap() error { return e.Err }

func ValidationErr(msg string) error { return &Error{Kind: Validation, Message: msg} }
func NotFoundErr(msg string) error   { return &Error{Kind: NotFound, Message: msg} }

func UnauthorizedErr(msg string) error { return &Error{Kind: Unauthorized, Message: msg} }

// ConflictErr reports a uniqueness violation. Pass the clashing values when
// more than one is involved.
func ConflictErr(msg string, conflicts ...string) error {
	return &Error{Kind: Conflict, Message: msg, Conflicts: conflicts}
}

// Wrap attaches a kind and message to a lower-level cause.
func Wrap(kind Kind, msg string, err error) error {
	return &Error{Kind: kind, Message: msg, Err: err}
}

// KindOf returns the kind of err, or Internal when err is not an *Error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return Internal
}

// ConflictsOf returns the conflicting values carried by err, if any.
func ConflictsOf(err error) []string {
	var e *Error
	if errors.As(err, &e) {
		return e.Conflicts
	}
	return nil
}

// Is reports whether err is an application error of the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}
