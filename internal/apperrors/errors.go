package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the broad failure classes. Code that only needs to
// branch on the class can use errors.Is against these; code that needs the
// message or extra fields can errors.As into the concrete types below.
var (
	ErrValidation       = errors.New("validation failed")
	ErrAuthRequired     = errors.New("authentication required")
	ErrPermissionDenied = errors.New("permission denied")
	ErrConflict         = errors.New("conflict")
	ErrNotFound         = errors.New("not found")
	ErrInference        = errors.New("inference failed")
	ErrTimeout          = errors.New("timed out")
	ErrStorage          = errors.New("storage failed")
)

// ValidationError reports a bad input shape or a broken business rule.
// Always recoverable; surfaced to the user with the specific message.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }
func (e *ValidationError) Is(target error) bool {
	return target == ErrValidation
}

func Validation(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// PermissionError distinguishes "no session" from "not allowed".
type PermissionError struct {
	Msg          string
	AuthRequired bool
}

func (e *PermissionError) Error() string { return e.Msg }
func (e *PermissionError) Is(target error) bool {
	if e.AuthRequired && target == ErrAuthRequired {
		return true
	}
	return target == ErrPermissionDenied
}

func AuthRequired(msg string) error {
	return &PermissionError{Msg: msg, AuthRequired: true}
}

func PermissionDenied(format string, args ...any) error {
	return &PermissionError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError marks a unique-constraint violation on an operation that is
// expected to be idempotent (duplicate signature, duplicate profile). Callers
// that treat the duplicate as success swallow it; it never reaches the user.
type ConflictError struct {
	Msg string
}

func (e *ConflictError) Error() string { return e.Msg }
func (e *ConflictError) Is(target error) bool {
	return target == ErrConflict
}

func Conflict(format string, args ...any) error {
	return &ConflictError{Msg: fmt.Sprintf(format, args...)}
}

// InferenceError wraps a failure of the external AI collaborator. Timeout
// reports whether the call exceeded its deadline, so the caller can surface a
// retry affordance distinct from a malformed-payload failure.
type InferenceError struct {
	Msg     string
	Timeout bool
	Cause   error
}

func (e *InferenceError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}
func (e *InferenceError) Unwrap() error { return e.Cause }
func (e *InferenceError) Is(target error) bool {
	if e.Timeout && target == ErrTimeout {
		return true
	}
	return target == ErrInference
}

// StorageError wraps a failure of the object-storage collaborator. Hint
// carries the bucket/permission-specific message shown to the user when the
// underlying error suggests a storage-layer cause.
type StorageError struct {
	Msg   string
	Hint  string
	Cause error
}

func (e *StorageError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Cause)
	}
	return e.Msg
}
func (e *StorageError) Unwrap() error { return e.Cause }
func (e *StorageError) Is(target error) bool {
	return target == ErrStorage
}
