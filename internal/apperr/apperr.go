// Package apperr defines the error kinds shared by the service layer and the
// HTTP edge.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind classifies an error for callers and for HTTP status mapping.
type Kind int

const (
	KindInternal Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindCreation
	KindUpdate
	KindDeletion
	// KindCriticalInconsistency means a compensating action failed and the
	// identity provider and the local store no longer agree.
	KindCriticalInconsistency
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindCreation:
		return "creation_error"
	case KindUpdate:
		return "update_error"
	case KindDeletion:
		return "deletion_error"
	case KindCriticalInconsistency:
		return "critical_inconsistency"
	default:
		return "internal"
	}
}

// Error is the structured error returned by services and gateways.
type Error struct {
	Kind    Kind
	Op      string
	Message string
	// Fields carries per-field validation messages.
	Fields map[string]string
	Err    error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = e.Kind.String()
	}
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// New builds an error of the given kind.
func New(kind Kind, op, message string) *Error {
	return &Error{Kind: kind, Op: op, Message: message}
}

// Wrap builds an error of the given kind around a cause.
func Wrap(kind Kind, op, message string, err error) *Error {
	return &Error{Kind: kind, Op: op, Message: message, Err: err}
}

// Validation builds a validation error carrying field messages.
func Validation(op string, fields map[string]string) *Error {
	return &Error{Kind: KindValidation, Op: op, Message: "Validation failed", Fields: fields}
}

// NotFound is shorthand for New(KindNotFound, ...).
func NotFound(op, message string) *Error {
	return New(KindNotFound, op, message)
}

// Conflict is shorthand for New(KindConflict, ...).
func Conflict(op, message string) *Error {
	return New(KindConflict, op, message)
}

// Internal wraps an unexpected failure.
func Internal(op string, err error) *Error {
	return Wrap(KindInternal, op, "internal error", err)
}

// KindOf returns the kind of the outermost *Error in the chain, or
// KindInternal when err carries none.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindInternal
}

// Is reports whether err has the given kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-facing message of err.
func MessageOf(err error) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return err.Error()
}

// FieldsOf returns validation field messages, if any.
func FieldsOf(err error) map[string]string {
	var e *Error
	if errors.As(err, &e) {
		return e.Fields
	}
	return nil
}

// HTTPStatus maps err onto an HTTP status code.
func HTTPStatus(err error) int {
	switch KindOf(err) {
	case KindValidation:
		return http.StatusBadRequest
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
