package errors

import (
	stderrors "errors"
	"fmt"
)

// Kind classifies an application error so callers can react without parsing messages.
type Kind string

const (
	KindInvalidTransition    Kind = "invalid_transition"
	KindNoResourceAvailable  Kind = "no_resource_available"
	KindInvalidDate          Kind = "invalid_date"
	KindResourceConflict     Kind = "resource_conflict"
	KindSequenceViolation    Kind = "sequence_violation"
	KindReferentialIntegrity Kind = "referential_integrity_violation"
	KindStorageFailure       Kind = "storage_failure"

	KindNotFound     Kind = "not_found"
	KindValidation   Kind = "validation"
	KindUnauthorized Kind = "unauthorized"
	KindForbidden    Kind = "forbidden"
	KindInternal     Kind = "internal"
)

// AppError represents an application error
type AppError struct {
	Kind    Kind           `json:"kind"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`
	Err     error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches any AppError of the same kind, so sentinels work with errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && (t.Message == "" || t.Message == e.Message)
}

// With returns a copy of the error carrying an extra detail field.
func (e *AppError) With(key string, value any) *AppError {
	cp := *e
	cp.Details = make(map[string]any, len(e.Details)+1)
	for k, v := range e.Details {
		cp.Details[k] = v
	}
	cp.Details[key] = value
	return &cp
}

func New(kind Kind, message string) *AppError {
	return &AppError{Kind: kind, Message: message}
}

func Wrap(kind Kind, message string, err error) *AppError {
	return &AppError{Kind: kind, Message: message, Err: err}
}

// KindOf returns the kind of the first AppError in err's chain, or KindStorageFailure
// for anything else.
func KindOf(err error) Kind {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Kind
	}
	return KindStorageFailure
}

// As returns the first AppError in err's chain.
func As(err error) (*AppError, bool) {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	var appErr *AppError
	return stderrors.As(err, &appErr) && appErr.Kind == kind
}

func InvalidTransition(current, action string) *AppError {
	return &AppError{
		Kind:    KindInvalidTransition,
		Message: fmt.Sprintf("cannot %s an appointment that is %s", action, current),
		Details: map[string]any{"current_status": current, "action": action},
	}
}

func NoResourceAvailable(message string) *AppError {
	return New(KindNoResourceAvailable, message)
}

func InvalidDate(message string) *AppError {
	return New(KindInvalidDate, message)
}

func ResourceConflict(message string) *AppError {
	return New(KindResourceConflict, message)
}

func SequenceViolation(message string) *AppError {
	return New(KindSequenceViolation, message)
}

func ReferentialIntegrity(resource string, references int) *AppError {
	return &AppError{
		Kind:    KindReferentialIntegrity,
		Message: fmt.Sprintf("%s is referenced by %d appointment(s)", resource, references),
		Details: map[string]any{"references": references},
	}
}

func StorageFailure(err error) *AppError {
	return Wrap(KindStorageFailure, "storage failure", err)
}

func NotFound(resource string) *AppError {
	return New(KindNotFound, fmt.Sprintf("%s not found", resource))
}

func Validation(message string) *AppError {
	return New(KindValidation, message)
}

func Unauthorized(message string) *AppError {
	return New(KindUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(KindForbidden, message)
}
