package errs

import (
	"errors"
	"fmt"
)

const (
	KindValidation = "validation"
	KindConflict   = "conflict"
	KindNotFound   = "not_found"
	KindInternal   = "internal"
)

// ValidationError names the field whose invariant failed. Nothing is persisted
// when it is returned; the caller re-prompts.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "validation failed: " + e.Reason
	}
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

// ConflictError reports a lost optimistic check or an already-decided record.
// Callers should reload and retry.
type ConflictError struct {
	Resource string
	ID       string
	Reason   string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s %s: %s", e.Resource, e.ID, e.Reason)
}

type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Resource, e.ID)
}

func Validation(field string, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

func Validationf(field string, format string, args ...any) error {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func Conflict(resource string, id string, reason string) error {
	return &ConflictError{Resource: resource, ID: id, Reason: reason}
}

func NotFound(resource string, id string) error {
	return &NotFoundError{Resource: resource, ID: id}
}

func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func IsConflict(err error) bool {
	var target *ConflictError
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// ValidationField returns the failing field of a wrapped ValidationError, or "".
func ValidationField(err error) string {
	var target *ValidationError
	if errors.As(err, &target) {
		return target.Field
	}
	return ""
}

func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case IsValidation(err):
		return KindValidation
	case IsConflict(err):
		return KindConflict
	case IsNotFound(err):
		return KindNotFound
	default:
		return KindInternal
	}
}
