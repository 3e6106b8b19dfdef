package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents stable error codes for all failure modes
type ErrorCode string

const (
	// MalformedStructure indicates a level gap, a non-level-1 root, or a duplicated section
	MalformedStructure ErrorCode = "MALFORMED_STRUCTURE"
	// BrokenReference indicates an internal anchor that resolves to no section
	BrokenReference ErrorCode = "BROKEN_REFERENCE"
	// SnapshotUnreadable indicates the input snapshot cannot be read or decoded at all
	SnapshotUnreadable ErrorCode = "SNAPSHOT_UNREADABLE"
	// CacheUnavailable indicates the persisted link cache cannot be opened or written
	CacheUnavailable ErrorCode = "CACHE_UNAVAILABLE"
	// ConfigInvalid indicates a configuration value is out of range
	ConfigInvalid ErrorCode = "CONFIG_INVALID"
	// InternalError indicates unexpected error
	InternalError ErrorCode = "INTERNAL_ERROR"
)

// Fatal reports whether an error with this code must stop a run before validation.
func (c ErrorCode) Fatal() bool {
	return c == SnapshotUnreadable || c == ConfigInvalid
}

// Error is a coded error with an optional document location.
type Error struct {
	Code     ErrorCode `json:"code"`
	Message  string    `json:"message"`
	Location string    `json:"location,omitempty"`
	Hint     string    `json:"hint,omitempty"`
	cause    error     // Underlying error (not exported to JSON)
}

// New creates a new coded error.
func New(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		cause:   cause,
	}
}

// Newf creates a coded error without a cause from a format string.
func Newf(code ErrorCode, format string, args ...interface{}) *Error {
	return New(code, fmt.Sprintf(format, args...), nil)
}

// Error implements the error interface
func (e *Error) Error() string {
	msg := fmt.Sprintf("[%s] %s", e.Code, e.Message)
	if e.Location != "" {
		msg += " (at " + e.Location + ")"
	}
	if e.cause != nil {
		msg += ": " + e.cause.Error()
	}
	return msg
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.cause
}

// WithLocation records where in the document or on disk the error applies.
func (e *Error) WithLocation(location string) *Error {
	e.Location = location
	return e
}

// WithHint attaches a suggestion for the author.
func (e *Error) WithHint(hint string) *Error {
	e.Hint = hint
	return e
}

// CodeOf returns the code of the first coded error in err's chain.
func CodeOf(err error) (ErrorCode, bool) {
	var coded *Error
	if stderrors.As(err, &coded) {
		return coded.Code, true
	}
	return "", false
}

// HasCode reports whether err's chain contains a coded error with code.
func HasCode(err error, code ErrorCode) bool {
	got, ok := CodeOf(err)
	return ok && got == code
}
