// Package errors provides coded errors for the reconciliation engine.
// The code, not the message, is what callers and tests compare against.
package errors

import (
	"errors"
	"fmt"
)

// ErrorCode identifies an error category.
type ErrorCode string

const (
	ErrUnknown ErrorCode = "UNKNOWN"

	// Engine taxonomy
	ErrProbeIndeterminate ErrorCode = "PROBE_INDETERMINATE"
	ErrTransientExecution ErrorCode = "TRANSIENT_EXECUTION"
	ErrPermanentExecution ErrorCode = "PERMANENT_EXECUTION"
	ErrAlreadySatisfied   ErrorCode = "ALREADY_SATISFIED"
	ErrLogWrite           ErrorCode = "LOG_WRITE"
	ErrBatchBusy          ErrorCode = "BATCH_BUSY"
	ErrCancelled          ErrorCode = "CANCELLED"

	// Load boundary
	ErrConfigLoad    ErrorCode = "CONFIG_LOAD"
	ErrConfigInvalid ErrorCode = "CONFIG_INVALID"
	ErrSettingsLoad  ErrorCode = "SETTINGS_LOAD"
)

// ForgeError is an error carrying an ErrorCode.
type ForgeError struct {
	Code    ErrorCode
	Message string
	Wrapped error
}

func (e *ForgeError) Error() string {
	if e.Wrapped != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Wrapped)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *ForgeError) Unwrap() error {
	return e.Wrapped
}

// Is matches any ForgeError with the same code.
func (e *ForgeError) Is(target error) bool {
	var t *ForgeError
	if errors.As(target, &t) {
		return e.Code == t.Code
	}
	return false
}

// New creates a ForgeError.
func New(code ErrorCode, message string) *ForgeError {
	return &ForgeError{Code: code, Message: message}
}

// Newf creates a ForgeError with a formatted message.
func Newf(code ErrorCode, format string, args ...any) *ForgeError {
	return &ForgeError{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code to err. It returns nil when err is nil.
func Wrap(err error, code ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	return &ForgeError{Code: code, Message: message, Wrapped: err}
}

// Wrapf is Wrap with a formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) error {
	if err == nil {
		return nil
	}
	return &ForgeError{Code: code, Message: fmt.Sprintf(format, args...), Wrapped: err}
}

// IsErrorCode reports whether any error in err's chain has code.
func IsErrorCode(err error, code ErrorCode) bool {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Code == code
	}
	return false
}

// GetErrorCode returns the code of the first ForgeError in err's chain,
// or ErrUnknown.
func GetErrorCode(err error) ErrorCode {
	var fe *ForgeError
	if errors.As(err, &fe) {
		return fe.Code
	}
	return ErrUnknown
}
