// Package errors provides error code definitions for the Serene core.
package errors

import "fmt"

// ErrorCode represents a unique error code surfaced to callers.
type ErrorCode string

const (
	// General errors
	ErrInternal   ErrorCode = "INTERNAL_ERROR"
	ErrInvalid    ErrorCode = "INVALID_INPUT"
	ErrNotFound   ErrorCode = "NOT_FOUND"
	ErrValidation ErrorCode = "VALIDATION_ERROR"

	// Storage errors
	ErrStorage   ErrorCode = "STORAGE_ERROR"
	ErrCorrupted ErrorCode = "CORRUPTED_RECORD"

	// Content sync errors
	ErrSyncFailed     ErrorCode = "SYNC_FAILED"
	ErrSyncInProgress ErrorCode = "SYNC_IN_PROGRESS"
	ErrVersionCheck   ErrorCode = "VERSION_CHECK_FAILED"
	ErrContentFetch   ErrorCode = "CONTENT_FETCH_FAILED"

	// Offline queue errors
	ErrQueueFull        ErrorCode = "QUEUE_FULL"
	ErrOperationMissing ErrorCode = "OPERATION_NOT_FOUND"
	ErrRetriesExhausted ErrorCode = "RETRIES_EXHAUSTED"
	ErrOffline          ErrorCode = "OFFLINE"

	// Activity / analytics errors
	ErrActivityLog   ErrorCode = "ACTIVITY_LOG_FAILED"
	ErrFlushFailed   ErrorCode = "FLUSH_FAILED"
	ErrDeliveryError ErrorCode = "DELIVERY_FAILED"

	// Remote API errors
	ErrAPIUnavailable ErrorCode = "API_UNAVAILABLE"
	ErrAPIStatus      ErrorCode = "API_BAD_STATUS"

	// Config errors
	ErrConfig ErrorCode = "CONFIG_ERROR"
)

// AppError represents an application error with code and message.
type AppError struct {
	Code    ErrorCode
	Message string
	Err     error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code ErrorCode, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with an error code.
func Wrap(code ErrorCode, message string, err error) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Is checks if an error carries a specific code.
func Is(err error, code ErrorCode) bool {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of err, or ErrInternal for unknown errors.
func CodeOf(err error) ErrorCode {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return ErrInternal
}
