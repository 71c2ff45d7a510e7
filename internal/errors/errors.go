package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error identifier
type ErrorCode string

const (
	// Authentication & Authorization
	ErrCodeUnauthorized         ErrorCode = "UNAUTHORIZED"
	ErrCodeForbidden            ErrorCode = "FORBIDDEN"
	ErrCodeCrossTenantForbidden ErrorCode = "CROSS_TENANT_FORBIDDEN"
	ErrCodeNotAssignedTeacher   ErrorCode = "NOT_ASSIGNED_TEACHER"
	ErrCodeNotInBatch           ErrorCode = "NOT_IN_BATCH"
	ErrCodeNotModerator         ErrorCode = "NOT_MODERATOR"

	// Room / lifecycle
	ErrCodeMuted        ErrorCode = "MUTED"
	ErrCodeClassEnded   ErrorCode = "CLASS_ENDED"
	ErrCodeAlreadyEnded ErrorCode = "ALREADY_ENDED"

	// Validation
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeMissingRequired ErrorCode = "MISSING_REQUIRED"

	// Resource
	ErrCodeNotFound ErrorCode = "NOT_FOUND"
	ErrCodeConflict ErrorCode = "CONFLICT"

	// Rate Limiting
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"

	// Internal
	ErrCodeInternal         ErrorCode = "INTERNAL_ERROR"
	ErrCodeDatabase         ErrorCode = "DATABASE_ERROR"
	ErrCodeUpstreamProvider ErrorCode = "UPSTREAM_PROVIDER_ERROR"
)

// AppError is a structured error that can be returned to clients
type AppError struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
	Details any       `json:"details,omitempty"`
	cause   error
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.cause
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(err error) *AppError {
	e.cause = err
	return e
}

// WithDetails adds details to the error
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// New creates a new AppError
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Common error constructors

func Unauthorized(message string) *AppError {
	return New(ErrCodeUnauthorized, message)
}

func Forbidden(message string) *AppError {
	return New(ErrCodeForbidden, message)
}

func CrossTenantForbidden() *AppError {
	return New(ErrCodeCrossTenantForbidden, "Forbidden: cross-institution access")
}

func NotAssignedTeacher() *AppError {
	return New(ErrCodeNotAssignedTeacher, "Forbidden: not assigned teacher")
}

func NotInBatch() *AppError {
	return New(ErrCodeNotInBatch, "Forbidden: student not in batch")
}

func NotModerator() *AppError {
	return New(ErrCodeNotModerator, "Forbidden: moderator role required")
}

func Muted() *AppError {
	return New(ErrCodeMuted, "Muted: cannot send messages")
}

func ClassEnded() *AppError {
	return New(ErrCodeClassEnded, "Class has ended")
}

func AlreadyEnded() *AppError {
	return New(ErrCodeAlreadyEnded, "Stream already ended")
}

func NotFound(resource string) *AppError {
	return New(ErrCodeNotFound, fmt.Sprintf("%s not found", resource))
}

func InvalidInput(field string, reason string) *AppError {
	return New(ErrCodeInvalidInput, fmt.Sprintf("Invalid %s: %s", field, reason))
}

func MissingRequired(field string) *AppError {
	return New(ErrCodeMissingRequired, fmt.Sprintf("%s is required", field))
}

func RateLimitExceeded() *AppError {
	return New(ErrCodeRateLimitExceeded, "Rate limit exceeded")
}

func Internal(message string) *AppError {
	return New(ErrCodeInternal, message)
}

func Database(cause error) *AppError {
	return Wrap(ErrCodeDatabase, "Database error", cause)
}

func UpstreamProvider(op string, cause error) *AppError {
	return Wrap(ErrCodeUpstreamProvider, fmt.Sprintf("Broadcast provider error: %s", op), cause)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// AsAppError converts an error to an AppError if possible
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// GetCode returns the error code if the error is an AppError, otherwise returns ErrCodeInternal
func GetCode(err error) ErrorCode {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ErrCodeInternal
}
