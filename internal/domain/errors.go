package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound          = errors.New("not found")
	ErrConflict          = errors.New("already exists")
	ErrForbidden         = errors.New("forbidden")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInvalidState      = errors.New("invalid state")
	ErrInvalidTransition = errors.New("invalid closing action")
	ErrValidation        = errors.New("validation failed")
	ErrRateLimited       = errors.New("rate limited")
	ErrLockHeld          = errors.New("lock already held")
	ErrUnavailable       = errors.New("unavailable")
)

// FieldError names a single rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field problem found in one request.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// Add records a field problem.
func (e *ValidationError) Add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

// Err returns e when at least one field was rejected, nil otherwise.
func (e *ValidationError) Err() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// TransitionError reports a closing action that does not pair with the
// trade's opening action.
type TransitionError struct {
	Open     OpeningAction
	Close    ClosingAction
	Expected ClosingAction
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("Invalid closing action. For %s, you must use %s", e.Open, e.Expected)
}

func (e *TransitionError) Unwrap() error { return ErrInvalidTransition }

// UserError pairs a sentinel with a message that is safe to return to the
// caller as is. Code optionally overrides the machine-readable error code.
type UserError struct {
	Kind    error
	Code    string
	Message string
}

func (e *UserError) Error() string { return e.Message }

func (e *UserError) Unwrap() error { return e.Kind }

// Reject builds a UserError of the given kind.
func Reject(kind error, message string) error {
	return &UserError{Kind: kind, Message: message}
}

// RejectCode builds a UserError with an explicit error code.
func RejectCode(kind error, code, message string) error {
	return &UserError{Kind: kind, Code: code, Message: message}
}
