package errors

import (
	"errors"
	"fmt"
)

// ErrorCode represents a unique error code for stable testing
type ErrorCode string

// Error codes for different error categories
const (
	// General errors
	ErrUnknown       ErrorCode = "UNKNOWN"
	ErrInternal      ErrorCode = "INTERNAL"
	ErrInvalidInput  ErrorCode = "INVALID_INPUT"
	ErrAlreadyExists ErrorCode = "ALREADY_EXISTS"

	// Configuration errors
	ErrConfigLoad  ErrorCode = "CONFIG_LOAD"
	ErrConfigValid ErrorCode = "CONFIG_INVALID"

	// Mapping errors
	ErrNotAFile       ErrorCode = "NOT_A_FILE"
	ErrAlreadyManaged ErrorCode = "ALREADY_MANAGED"
	ErrNotManaged     ErrorCode = "NOT_MANAGED"
	ErrNoVariant      ErrorCode = "NO_VARIANT"

	// Deployment errors
	ErrConflict      ErrorCode = "CONFLICT"
	ErrSymlinkCreate ErrorCode = "SYMLINK_CREATE"
	ErrDirCreate     ErrorCode = "DIR_CREATE"
	ErrFileCopy      ErrorCode = "FILE_COPY"

	// Sync errors
	ErrSyncFailure ErrorCode = "SYNC_FAILURE"
	ErrLockTimeout ErrorCode = "LOCK_TIMEOUT"
)

// DotdavError represents a structured error with code and details
type DotdavError struct {
	Code    ErrorCode
	Message string
	Details map[string]interface{}
	Wrapped error
}

// Error implements the error interface
func (e *DotdavError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *DotdavError) Unwrap() error {
	return e.Wrapped
}

// Is matches two errors by code so tests and callers can use errors.Is
func (e *DotdavError) Is(target error) bool {
	var targetErr *DotdavError
	if errors.As(target, &targetErr) {
		return e.Code == targetErr.Code
	}
	return false
}

// New creates a new DotdavError with the given code and message
func New(code ErrorCode, message string) *DotdavError {
	return &DotdavError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Newf creates a new DotdavError with a formatted message
func Newf(code ErrorCode, format string, args ...interface{}) *DotdavError {
	return &DotdavError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
	}
}

// Wrap wraps an existing error with a DotdavError
func Wrap(err error, code ErrorCode, message string) *DotdavError {
	if err == nil {
		return nil
	}
	return &DotdavError{
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// Wrapf wraps an existing error with a formatted message
func Wrapf(err error, code ErrorCode, format string, args ...interface{}) *DotdavError {
	if err == nil {
		return nil
	}
	return &DotdavError{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Details: make(map[string]interface{}),
		Wrapped: err,
	}
}

// WithDetail adds a detail to the error
func (e *DotdavError) WithDetail(key string, value interface{}) *DotdavError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// IsCode reports whether err carries the given error code
func IsCode(err error, code ErrorCode) bool {
	var derr *DotdavError
	if errors.As(err, &derr) {
		return derr.Code == code
	}
	return false
}
