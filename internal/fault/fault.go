// Package fault defines the error taxonomy shared by every order-affecting
// operation. Each rejection carries a kind (how the caller should react) and a
// stable machine-readable code.
package fault

import (
	"errors"
	"fmt"
)

type Kind string

const (
	// KindValidation rejects malformed or inconsistent input before any write.
	KindValidation Kind = "validation"
	// KindConflict rejects an operation against stale or contested state.
	KindConflict Kind = "conflict"
	// KindUnavailable marks an external dependency as unreachable; the caller
	// may retry or fall back.
	KindUnavailable Kind = "unavailable"
	// KindNotFound marks a missing target resource.
	KindNotFound Kind = "not_found"
	// KindForbidden marks an authorization denial.
	KindForbidden Kind = "forbidden"
	// KindInternal marks storage or infrastructure failure.
	KindInternal Kind = "internal"
)

type Error struct {
	Kind    Kind
	Code    string
	Message string
	Meta    map[string]any
	cause   error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s (%s): %s: %v", e.Code, e.Kind, e.Message, e.cause)
	}
	return fmt.Sprintf("%s (%s): %s", e.Code, e.Kind, e.Message)
}

func (e *Error) Unwrap() error { return e.cause }

// With attaches context for the caller, e.g. the authoritative current state
// after a stale-state rejection.
func (e *Error) With(key string, value any) *Error {
	if e.Meta == nil {
		e.Meta = make(map[string]any)
	}
	e.Meta[key] = value
	return e
}

func Validation(code, message string) *Error {
	return &Error{Kind: KindValidation, Code: code, Message: message}
}

func Conflict(code, message string) *Error {
	return &Error{Kind: KindConflict, Code: code, Message: message}
}

func Unavailable(code, message string, cause error) *Error {
	return &Error{Kind: KindUnavailable, Code: code, Message: message, cause: cause}
}

func NotFound(code, message string) *Error {
	return &Error{Kind: KindNotFound, Code: code, Message: message}
}

func Forbidden(code, message string) *Error {
	return &Error{Kind: KindForbidden, Code: code, Message: message}
}

func Internal(message string, cause error) *Error {
	return &Error{Kind: KindInternal, Code: "internal_error", Message: message, cause: cause}
}

// KindOf classifies any error; non-fault errors are internal.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return KindInternal
}

// As unwraps err into a *Error when possible.
func As(err error) (*Error, bool) {
	var fe *Error
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}
