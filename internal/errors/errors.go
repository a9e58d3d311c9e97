package errors

import (
	stderrors "errors"
	"fmt"
)

// AppError is the structured error type for novelindex.
// It carries a stable code plus classification for logging and handling.
type AppError struct {
	// Code is the unique error code (e.g., "ERR_201_FILE_NOT_FOUND").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, File, Backend, ...).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches AppErrors by code, enabling errors.Is against sentinels.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// New creates a new AppError with the given code and message.
// Category and severity are derived from the code.
func New(code string, message string, cause error) *AppError {
	return &AppError{
		Code:     code,
		Message:  message,
		Category: categoryFromCode(code),
		Severity: severityFromCode(code),
		Cause:    cause,
	}
}

// Newf creates a new AppError with a formatted message.
func Newf(code string, format string, args ...any) *AppError {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Wrap creates an AppError from an existing error.
// Returns nil when err is nil.
func Wrap(code string, err error) *AppError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// HasCode reports whether any error in the chain is an AppError with the
// given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if !stderrors.As(err, &appErr) {
		return false
	}
	return appErr.Code == code
}

// ErrNotInitialized is returned by backend operations invoked before the
// backend is initialized. This is a programming-contract violation.
var ErrNotInitialized = New(ErrCodeNotInitialized, "index not initialized", nil)

// DimensionMismatch reports a fatal embedding-dimension configuration error.
func DimensionMismatch(expected, got int) *AppError {
	return Newf(ErrCodeDimensionMismatch, "vector dimension mismatch: expected %d, got %d", expected, got)
}
