// Package errors provides standardized error handling for the signup workflow.
package errors

import (
	"fmt"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeValidationFailed        ErrorCode = "VALIDATION_FAILED"
	ErrCodeCriticalServiceFailure  ErrorCode = "CRITICAL_SERVICE_FAILURE"
	ErrCodeDegradedServiceFailure  ErrorCode = "DEGRADED_SERVICE_FAILURE"
	ErrCodeStatusPersistenceFailed ErrorCode = "STATUS_PERSISTENCE_FAILED"
	ErrCodeUnhandledException      ErrorCode = "UNHANDLED_EXCEPTION"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// HTTPStatus maps the error class to the status code surfaced to callers.
// Only validation and critical failures are user-visible as non-200 responses.
func (e *StandardError) HTTPStatus() int {
	switch e.Code {
	case ErrCodeValidationFailed:
		return 400
	default:
		return 500
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewValidationError creates a non-retryable payload validation error.
// missingFields is recorded so the 400 response can list them.
func NewValidationError(missingFields []string) *StandardError {
	return &StandardError{
		Code:      ErrCodeValidationFailed,
		Message:   fmt.Sprintf("Missing required fields: %s", joinFields(missingFields)),
		Retryable: false,
		Metadata:  map[string]interface{}{"missingFields": missingFields},
		Timestamp: time.Now().UTC(),
	}
}

// NewCriticalServiceError creates a run-aborting external service error.
func NewCriticalServiceError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeCriticalServiceFailure,
		Message:   fmt.Sprintf("Critical failure: %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewDegradedServiceError creates an absorbed, non-aborting service error.
func NewDegradedServiceError(service, details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeDegradedServiceFailure,
		Message:   fmt.Sprintf("Degraded failure in %s", service),
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewStatusPersistenceError creates a logged-and-swallowed store write error.
func NewStatusPersistenceError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeStatusPersistenceFailed,
		Message:   "Failed to persist status snapshot",
		Details:   err.Error(),
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

// NewUnhandledError wraps any unexpected error caught by the top-level handler.
func NewUnhandledError(err error) *StandardError {
	return &StandardError{
		Code:      ErrCodeUnhandledException,
		Message:   "Workflow processing failed",
		Details:   err.Error(),
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// ==========================
// 3. Utility Functions
// ==========================

// Convert coerces any error to a StandardError, defaulting to the
// unhandled-exception class.
func Convert(err error) *StandardError {
	if stdErr, ok := err.(*StandardError); ok {
		return stdErr
	}
	return NewUnhandledError(err)
}

// IsCritical reports whether the error aborts the run.
func IsCritical(err error) bool {
	stdErr, ok := err.(*StandardError)
	return ok && stdErr.Code == ErrCodeCriticalServiceFailure
}

func joinFields(fields []string) string {
	out := ""
	for i, f := range fields {
		if i > 0 {
			out += ", "
		}
		out += f
	}
	return out
}
