// Package errors provides standardized error handling for the round pipeline.
package errors

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ==========================
// 1. Standard Error Types
// ==========================

// ErrorCode represents standardized internal error codes.
type ErrorCode string

const (
	ErrCodeAuthFailed            ErrorCode = "AUTH_FAILED"
	ErrCodeRequestInvalid        ErrorCode = "REQUEST_INVALID"
	ErrCodeAttachmentUnavailable ErrorCode = "ATTACHMENT_UNAVAILABLE"
	ErrCodeGenerationFailed      ErrorCode = "GENERATION_FAILED"
	ErrCodeExtractionAmbiguous   ErrorCode = "EXTRACTION_AMBIGUOUS"
	ErrCodeRepositoryFailed      ErrorCode = "REPOSITORY_FAILED"
	ErrCodeDeliveryFailed        ErrorCode = "DELIVERY_FAILED"
	ErrCodeQueueFull             ErrorCode = "QUEUE_FULL"
	ErrCodeInternal              ErrorCode = "INTERNAL_ERROR"
)

// StandardError represents a structured application error.
type StandardError struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Retryable bool                   `json:"retryable"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	Timestamp time.Time              `json:"timestamp"`

	cause error
}

func (e *StandardError) Error() string {
	return fmt.Sprintf("StandardError[%s]: %s", e.Code, e.Message)
}

// Unwrap exposes the underlying cause so errors.Is reaches component sentinels.
func (e *StandardError) Unwrap() error {
	return e.cause
}

// WithMetadata attaches a key/value pair and returns the same error.
func (e *StandardError) WithMetadata(key string, value interface{}) *StandardError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func newError(code ErrorCode, message string, cause error, retryable bool) *StandardError {
	details := ""
	if cause != nil {
		details = cause.Error()
	}
	return &StandardError{
		Code:      code,
		Message:   message,
		Details:   details,
		Retryable: retryable,
		Timestamp: time.Now().UTC(),
		cause:     cause,
	}
}

// ==========================
// 2. Error Constructors
// ==========================

// NewAuthFailedError is the only failure surfaced to the caller synchronously.
func NewAuthFailedError() *StandardError {
	return &StandardError{
		Code:      ErrCodeAuthFailed,
		Message:   "Shared secret mismatch",
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewRequestInvalidError creates a non-retryable request validation error.
func NewRequestInvalidError(details string) *StandardError {
	return &StandardError{
		Code:      ErrCodeRequestInvalid,
		Message:   "Request validation failed",
		Details:   details,
		Retryable: false,
		Timestamp: time.Now().UTC(),
	}
}

// NewAttachmentUnavailableError degrades a single digest; the batch continues.
func NewAttachmentUnavailableError(name string, err error) *StandardError {
	return newError(ErrCodeAttachmentUnavailable, "Attachment could not be decoded", err, false).
		WithMetadata("attachment", name)
}

func NewGenerationFailedError(err error) *StandardError {
	return newError(ErrCodeGenerationFailed, "Generation backend call failed", err, false)
}

func NewExtractionAmbiguousError(err error) *StandardError {
	return newError(ErrCodeExtractionAmbiguous, "No document marker in generator output", err, false)
}

// NewRepositoryFailedError creates a round-fatal repository error.
func NewRepositoryFailedError(step string, err error) *StandardError {
	return newError(ErrCodeRepositoryFailed, fmt.Sprintf("Repository step '%s' failed", step), err, false).
		WithMetadata("step", step)
}

// NewDeliveryFailedError creates a round-fatal notification error.
func NewDeliveryFailedError(attempts int, err error) *StandardError {
	return newError(ErrCodeDeliveryFailed, "Evaluator notification failed", err, false).
		WithMetadata("attempts", attempts)
}

func NewQueueFullError() *StandardError {
	return &StandardError{
		Code:      ErrCodeQueueFull,
		Message:   "Round queue is full",
		Retryable: true,
		Timestamp: time.Now().UTC(),
	}
}

func NewInternalError(err error) *StandardError {
	return newError(ErrCodeInternal, "Unexpected error", err, false)
}

// ==========================
// 3. Utility Functions
// ==========================

// Normalize ensures we always have a StandardError.
func Normalize(err error) *StandardError {
	if err == nil {
		return nil
	}
	var stdErr *StandardError
	if errors.As(err, &stdErr) {
		return stdErr
	}
	return NewInternalError(err)
}

// CodeOf returns the error code of err, or INTERNAL_ERROR.
func CodeOf(err error) ErrorCode {
	if stdErr := Normalize(err); stdErr != nil {
		return stdErr.Code
	}
	return ""
}

// GetErrorCategory returns the category of the error code.
func GetErrorCategory(code ErrorCode) string {
	codeStr := string(code)
	switch {
	case strings.HasPrefix(codeStr, "AUTH") || strings.HasPrefix(codeStr, "REQUEST") || strings.HasPrefix(codeStr, "QUEUE"):
		return "INTAKE"
	case strings.Contains(codeStr, "ATTACHMENT"):
		return "ATTACHMENT"
	case strings.Contains(codeStr, "GENERATION") || strings.Contains(codeStr, "EXTRACTION"):
		return "GENERATION"
	case strings.Contains(codeStr, "REPOSITORY"):
		return "REPOSITORY"
	case strings.Contains(codeStr, "DELIVERY"):
		return "DELIVERY"
	default:
		return "OTHER"
	}
}
