// Package errors defines structured error codes shared by the context
// pipeline, its adapters and the HTTP surface.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a specific error type.
type ErrorCode string

const (
	// ErrCodeInvalidArgument indicates invalid input parameters.
	ErrCodeInvalidArgument ErrorCode = "INVALID_ARGUMENT"
	// ErrCodeAdapterUnavailable indicates a host subsystem is not present.
	ErrCodeAdapterUnavailable ErrorCode = "ADAPTER_UNAVAILABLE"
	// ErrCodeAdapterFailed indicates a host subsystem failed during retrieval.
	ErrCodeAdapterFailed ErrorCode = "ADAPTER_FAILED"
	// ErrCodeServiceUnavailable indicates the service is not available.
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	// ErrCodeRateLimitExceeded indicates rate limit has been exceeded.
	ErrCodeRateLimitExceeded ErrorCode = "RATE_LIMIT_EXCEEDED"
	// ErrCodeContextCanceled indicates the operation was canceled.
	ErrCodeContextCanceled ErrorCode = "CONTEXT_CANCELED"
	// ErrCodeTimeout indicates the operation timed out.
	ErrCodeTimeout ErrorCode = "TIMEOUT"
)

// AppError represents a structured error.
type AppError struct {
	Code    ErrorCode
	Message string
	Cause   error
	Context map[string]any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithContext adds context to the error.
func (e *AppError) WithContext(key string, value any) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// InvalidArgument creates an invalid argument error.
func InvalidArgument(msg string, cause error) *AppError {
	return &AppError{Code: ErrCodeInvalidArgument, Message: msg, Cause: cause}
}

// AdapterUnavailable creates an adapter unavailable error.
func AdapterUnavailable(adapter string) *AppError {
	return &AppError{
		Code:    ErrCodeAdapterUnavailable,
		Message: fmt.Sprintf("%s source is not configured", adapter),
	}
}

// AdapterFailed creates an adapter failure error.
func AdapterFailed(adapter string, cause error) *AppError {
	return &AppError{
		Code:    ErrCodeAdapterFailed,
		Message: fmt.Sprintf("%s retrieval failed", adapter),
		Cause:   cause,
	}
}

// ServiceUnavailable creates a service unavailable error.
func ServiceUnavailable(msg string, cause error) *AppError {
	return &AppError{Code: ErrCodeServiceUnavailable, Message: msg, Cause: cause}
}

// RateLimitExceeded creates a rate limit exceeded error.
func RateLimitExceeded(msg string) *AppError {
	return &AppError{Code: ErrCodeRateLimitExceeded, Message: msg}
}

// ContextCanceled creates a context canceled error.
func ContextCanceled(cause error) *AppError {
	return &AppError{Code: ErrCodeContextCanceled, Message: "operation canceled", Cause: cause}
}

// Timeout creates a timeout error.
func Timeout(msg string) *AppError {
	return &AppError{Code: ErrCodeTimeout, Message: msg}
}

// IsCode checks if any error in the chain carries the code.
func IsCode(err error, code ErrorCode) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCodeFromError extracts the error code from any error.
// Returns the provided default code if the chain holds no AppError.
func GetCodeFromError(err error, defaultCode ErrorCode) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return defaultCode
}
