// Package errors provides structured error handling with typed error codes.
//
// Error codes are organized into categories:
//   - General errors (1-99): Unknown and general errors
//   - Validation errors (100-199): Invalid parameters, configuration, symbol lists
//   - Session errors (200-299): Login handshake and missing-session errors
//   - Instrument errors (300-399): Instrument token lookup failures
//   - Fetch errors (400-499): Historical data retrieval failures
//   - Writer errors (500-599): Output file and flush failures
//   - Job errors (600-699): Fetch job lifecycle errors
//
// Usage:
//
//	// Create a new error
//	err := errors.New(errors.ErrCodeInvalidParameter, "invalid parameter value")
//
//	// Wrap an existing error
//	err := errors.Wrap(errors.ErrCodeFetchFailed, "historical data request failed", originalErr)
//
//	// Check error code
//	if errors.HasCode(err, errors.ErrCodeInstrumentNotFound) { ... }
package errors

import (
	"errors"
	"fmt"
)

// Error represents a structured error with an error code and message.
type Error struct {
	Code    ErrorCode
	Message string
	Cause   error
}

// New creates a new Error with the given code and message.
func New(code ErrorCode, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   nil,
	}
}

// Newf creates a new Error with the given code and formatted message.
func Newf(code ErrorCode, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   nil,
	}
}

// Wrap wraps an existing error with a new Error containing the given code and message.
func Wrap(code ErrorCode, message string, cause error) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// Wrapf wraps an existing error with a new Error containing the given code and formatted message.
func Wrapf(code ErrorCode, cause error, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
	}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%d] %s: %v", e.Code, e.Message, e.Cause)
	}

	return fmt.Sprintf("[%d] %s", e.Code, e.Message)
}

// Unwrap returns the underlying error cause.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether any error in err's chain matches target.
// This is a convenience wrapper around the standard errors.Is function.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
// This is a convenience wrapper around the standard errors.As function.
func As(err error, target any) bool {
	return errors.As(err, target)
}

// GetCode extracts the ErrorCode from an error if it's an *Error type.
// Returns ErrCodeUnknown if the error is not an *Error type.
func GetCode(err error) ErrorCode {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}

	return ErrCodeUnknown
}

// HasCode checks if an error has a specific ErrorCode.
func HasCode(err error, code ErrorCode) bool {
	return GetCode(err) == code
}

// InstrumentNotFoundError reports a symbol that has no entry in the
// provider's instrument dump. It ends up as an error row in the output,
// never as a job failure.
type InstrumentNotFoundError struct {
	Symbol   string
	Exchange string
}

// NewInstrumentNotFoundError creates a new InstrumentNotFoundError.
func NewInstrumentNotFoundError(symbol, exchange string) *InstrumentNotFoundError {
	return &InstrumentNotFoundError{
		Symbol:   symbol,
		Exchange: exchange,
	}
}

// Error implements the error interface.
func (e *InstrumentNotFoundError) Error() string {
	if e.Exchange == "" {
		return fmt.Sprintf("instrument token not found for %s", e.Symbol)
	}

	return fmt.Sprintf("instrument token not found for %s on %s", e.Symbol, e.Exchange)
}

// IsInstrumentNotFound checks if an error is an InstrumentNotFoundError.
// It uses errors.As to check the error chain.
func IsInstrumentNotFound(err error) bool {
	var notFound *InstrumentNotFoundError

	return errors.As(err, &notFound)
}
