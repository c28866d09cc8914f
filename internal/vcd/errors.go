package vcd

import (
	"errors"
	"fmt"
)

// Error is returned by every Writer operation that rejects its input.
//
// Errors fall into two kinds:
//   - type errors: the call was malformed (bad enumeration, bad value
//     encoding, missing size, duplicate or empty name)
//   - phase errors: the call is not legal in the writer's current state
//     (registration finished, writer closed, time went backwards,
//     unknown variable)
//
// Neither kind touches output already written. The writer stays usable
// after either kind.
type Error struct {
	// Code identifies the error category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Scope and Name identify the variable involved, when there is one.
	Scope string
	Name  string
}

// ErrorCode categorizes writer errors.
type ErrorCode string

const (
	// Type errors.
	ErrCodeInvalidType   ErrorCode = "INVALID_TYPE"
	ErrCodeInvalidValue  ErrorCode = "INVALID_VALUE"
	ErrCodeMissingSize   ErrorCode = "MISSING_SIZE"
	ErrCodeDuplicate     ErrorCode = "DUPLICATE_VARIABLE"
	ErrCodeEmptyName     ErrorCode = "EMPTY_NAME"
	ErrCodeInvalidHeader ErrorCode = "INVALID_HEADER"

	// Phase errors.
	ErrCodeRegistrationClosed ErrorCode = "REGISTRATION_CLOSED"
	ErrCodeClosed             ErrorCode = "WRITER_CLOSED"
	ErrCodeOutOfOrder         ErrorCode = "OUT_OF_ORDER"
	ErrCodeUnknownVariable    ErrorCode = "UNKNOWN_VARIABLE"
)

// Phase reports whether the code is a lifecycle violation.
func (c ErrorCode) Phase() bool {
	switch c {
	case ErrCodeRegistrationClosed, ErrCodeClosed, ErrCodeOutOfOrder, ErrCodeUnknownVariable:
		return true
	}
	return false
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Scope != "" || e.Name != "" {
		return fmt.Sprintf("%s: %s (scope=%s, var=%s)", e.Code, e.Message, e.Scope, e.Name)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsTypeError reports whether err is a validation failure.
// Uses errors.As to handle wrapped errors.
func IsTypeError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return !e.Code.Phase()
	}
	return false
}

// IsPhaseError reports whether err is a lifecycle violation.
func IsPhaseError(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code.Phase()
	}
	return false
}

// HasCode reports whether err is an *Error carrying code.
func HasCode(err error, code ErrorCode) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

func newError(code ErrorCode, msg string) *Error {
	return &Error{Code: code, Message: msg}
}

func newVarError(code ErrorCode, scope, name, msg string) *Error {
	return &Error{Code: code, Message: msg, Scope: scope, Name: name}
}
