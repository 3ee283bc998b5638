// internal/core/errors.go
package core

import "fmt"

// Error represents a structured error with code and optional cause.
type Error struct {
	Code    string
	Message string
	Cause   error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for errors.Is/As support.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is implements errors.Is matching by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// WrapError creates a new error with the same code but with a cause.
func WrapError(base *Error, cause error) *Error {
	return &Error{
		Code:    base.Code,
		Message: base.Message,
		Cause:   cause,
	}
}

// Predefined errors
var (
	// Data errors
	ErrNoData          = &Error{Code: "NO_DATA", Message: "no data available"}
	ErrUnknownUniverse = &Error{Code: "UNKNOWN_UNIVERSE", Message: "no provider for universe"}

	// Collector errors
	ErrCollectorFailed = &Error{Code: "COLLECTOR_FAILED", Message: "collector failed"}

	// Signal errors
	ErrMalformedSignal = &Error{Code: "MALFORMED_SIGNAL", Message: "signal record is malformed"}
	ErrInvalidStop     = &Error{Code: "INVALID_STOP", Message: "stop loss must be positive"}
	ErrInvalidEntry    = &Error{Code: "INVALID_ENTRY", Message: "entry open must be positive and above the stop"}
	ErrInvalidRisk     = &Error{Code: "INVALID_RISK", Message: "risk per unit must be positive"}

	// Storage errors
	ErrSignalNotFound  = &Error{Code: "SIGNAL_NOT_FOUND", Message: "signal not found"}
	ErrDuplicateSignal = &Error{Code: "DUPLICATE_SIGNAL", Message: "signal already exists"}
	ErrStorageFailed   = &Error{Code: "STORAGE_FAILED", Message: "storage operation failed"}

	// Config errors
	ErrConfigInvalid = &Error{Code: "CONFIG_INVALID", Message: "configuration invalid"}
	ErrConfigMissing = &Error{Code: "CONFIG_MISSING", Message: "required configuration missing"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid api key"}
	ErrInvalidQuery = &Error{Code: "INVALID_QUERY", Message: "invalid query parameter"}
)
