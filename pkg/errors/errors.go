package errors

import (
	"errors"
	"fmt"
)

// ErrorCode classifies gateway errors along the pipeline taxonomy:
// rejected and rate-limited outcomes are terminal by design, degraded
// outcomes continue with reduced fidelity, failed outcomes reach the
// user as a generic message, unavailable/internal are infrastructure.
type ErrorCode string

const (
	CodeInvalidInput ErrorCode = "INVALID_INPUT"
	CodeNotFound     ErrorCode = "NOT_FOUND"
	CodeRejected     ErrorCode = "REJECTED"
	CodeRateLimited  ErrorCode = "RATE_LIMITED"
	CodeDegraded     ErrorCode = "DEGRADED"
	CodeFailed       ErrorCode = "FAILED"
	CodeUnavailable  ErrorCode = "SERVICE_UNAVAILABLE"
	CodeInternal     ErrorCode = "INTERNAL_ERROR"
)

// AppError carries a code alongside the message so callers can branch
// on classification without string matching.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates an AppError with an arbitrary code.
func New(code ErrorCode, message string) *AppError {
	return &AppError{Code: code, Message: message}
}

// Wrap creates an AppError with a cause.
func Wrap(code ErrorCode, message string, cause error) *AppError {
	return &AppError{Code: code, Message: message, Err: cause}
}

// NewInvalidInput creates an invalid-input error.
func NewInvalidInput(message string) *AppError {
	return &AppError{Code: CodeInvalidInput, Message: message}
}

// NewNotFound creates a not-found error.
func NewNotFound(message string) *AppError {
	return &AppError{Code: CodeNotFound, Message: message}
}

// NewUnavailable marks a dependency (usually the store) as down.
// Callers must treat this as distinct from an empty result.
func NewUnavailable(message string, cause error) *AppError {
	return &AppError{Code: CodeUnavailable, Message: message, Err: cause}
}

// NewInternal creates an internal error.
func NewInternal(message string, cause error) *AppError {
	return &AppError{Code: CodeInternal, Message: message, Err: cause}
}

// CodeOf extracts the ErrorCode from err, or CodeInternal if err is not
// an AppError.
func CodeOf(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// IsNotFound reports whether err is a not-found error.
func IsNotFound(err error) bool {
	return is(err, CodeNotFound)
}

// IsUnavailable reports whether err marks the backing store as down.
func IsUnavailable(err error) bool {
	return is(err, CodeUnavailable)
}

// IsInvalidInput reports whether err is an invalid-input error.
func IsInvalidInput(err error) bool {
	return is(err, CodeInvalidInput)
}

func is(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}
