// internal/core/errors.go
package core

import (
	"errors"
	"fmt"
)

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

// Is matches by code, so a wrapped error still satisfies errors.Is against its base.
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

// Errorf wraps base with a formatted cause.
func Errorf(base *Error, format string, args ...any) *Error {
	return WrapError(base, fmt.Errorf(format, args...))
}

// IsFatal reports whether err must abort a run before any report is built.
func IsFatal(err error) bool {
	var e *Error
	if !errors.As(err, &e) {
		return true
	}
	switch e.Code {
	case ErrNoPosition.Code, ErrInsufficientFunds.Code, ErrSizeTooSmall.Code, ErrPositionOpen.Code, ErrInvalidOrder.Code:
		return false
	}
	return true
}

// Predefined errors
var (
	// Run setup errors, fatal
	ErrConfigInvalid   = &Error{Code: "INVALID_CONFIGURATION", Message: "configuration invalid"}
	ErrEmptySeries     = &Error{Code: "EMPTY_SERIES", Message: "price series has no bars"}
	ErrInvalidSeries   = &Error{Code: "INVALID_SERIES", Message: "price series is not strictly ascending"}
	ErrUnknownStrategy = &Error{Code: "UNKNOWN_STRATEGY", Message: "strategy not registered"}
	ErrCancelled       = &Error{Code: "CANCELLED", Message: "backtest cancelled"}

	// Execution anomalies, recovered per bar
	ErrNoPosition        = &Error{Code: "NO_POSITION", Message: "no open position"}
	ErrInsufficientFunds = &Error{Code: "INSUFFICIENT_FUNDS", Message: "insufficient funds"}
	ErrSizeTooSmall      = &Error{Code: "SIZE_TOO_SMALL", Message: "order size below minimum"}
	ErrPositionOpen      = &Error{Code: "POSITION_OPEN", Message: "position already open"}
	ErrInvalidOrder      = &Error{Code: "INVALID_ORDER", Message: "invalid order"}

	// Data errors
	ErrDataUnavailable = &Error{Code: "DATA_UNAVAILABLE", Message: "market data unavailable"}
	ErrNotFound        = &Error{Code: "NOT_FOUND", Message: "not found"}

	// LLM errors
	ErrLLMFailed = &Error{Code: "LLM_FAILED", Message: "LLM request failed"}

	// API errors
	ErrUnauthorized = &Error{Code: "UNAUTHORIZED", Message: "missing or invalid API key"}
)
