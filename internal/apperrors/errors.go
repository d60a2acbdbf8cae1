// Package apperrors provides structured application errors for task orchestration.
package apperrors

import (
	"errors"
	"fmt"
)

// Sentinel errors for classification via errors.Is().
var (
	ErrValidation    = errors.New("validation error")
	ErrNotFound      = errors.New("not found")
	ErrTransient     = errors.New("transient error")
	ErrJobFailed     = errors.New("job failed")
	ErrCommandFailed = errors.New("command failed")
	ErrInternal      = errors.New("internal error")
)

// Error provides structured error with context.
type Error struct {
	Sentinel   error  // Wrapped sentinel for errors.Is() classification
	Message    string // Human-readable message
	Field      string // For validation errors (e.g., "task_id", "project")
	Op         string // Operation that failed (e.g., "mortar.getJob")
	JobID      string // Remote job identifier, when known
	StatusCode string // Remote job status code, for job failures
	ClusterID  string // Remote cluster identifier, when known
	Cause      error  // Underlying error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	return e.Message
}

// Unwrap returns the sentinel error for errors.Is() classification.
func (e *Error) Unwrap() error {
	return e.Sentinel
}

// Validation creates a validation error for a specific field.
func Validation(field, message string) error {
	return &Error{
		Sentinel: ErrValidation,
		Message:  message,
		Field:    field,
	}
}

// NotFound creates a not found error for a resource.
func NotFound(resource, id string) error {
	return &Error{
		Sentinel: ErrNotFound,
		Message:  fmt.Sprintf("%s %s not found", resource, id),
	}
}

// Transient creates a retryable error wrapping an underlying cause.
func Transient(op string, cause error) error {
	return &Error{
		Sentinel: ErrTransient,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}

// JobFailure creates an error for a job that reached a terminal non-success status.
func JobFailure(jobID, statusCode, detail string) error {
	msg := fmt.Sprintf("job %s failed with status_code %s", jobID, statusCode)
	if detail != "" {
		msg += ": " + detail
	}
	return &Error{
		Sentinel:   ErrJobFailed,
		Message:    msg,
		JobID:      jobID,
		StatusCode: statusCode,
	}
}

// CommandFailure creates an error for a shell command that exited uncleanly.
func CommandFailure(message string) error {
	return &Error{
		Sentinel: ErrCommandFailed,
		Message:  message,
	}
}

// Internal creates an internal error wrapping an underlying cause.
func Internal(op string, cause error) error {
	return &Error{
		Sentinel: ErrInternal,
		Message:  fmt.Sprintf("%s: %v", op, cause),
		Op:       op,
		Cause:    cause,
	}
}
