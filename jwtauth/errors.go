package jwtauth

import "fmt"

// ErrorCode represents an authentication error code
type ErrorCode string

const (
	ErrKeyFormatInvalid ErrorCode = "KEY_FORMAT_INVALID"
	ErrSigningFailed    ErrorCode = "SIGNING_FAILED"
	ErrMissingToken     ErrorCode = "MISSING_TOKEN"
	ErrMalformed        ErrorCode = "MALFORMED"
	ErrInvalidSignature ErrorCode = "INVALID_SIGNATURE"
	ErrExpired          ErrorCode = "EXPIRED"
	ErrConfigError      ErrorCode = "CONFIG_ERROR"
)

// ValidationError represents a signing or validation error with a code and message
type ValidationError struct {
	Code     ErrorCode
	Message  string
	Internal error
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap implements the error unwrapping interface
func (e *ValidationError) Unwrap() error {
	return e.Internal
}

// NewValidationError creates a new validation error
func NewValidationError(code ErrorCode, message string, internal error) *ValidationError {
	return &ValidationError{
		Code:     code,
		Message:  message,
		Internal: internal,
	}
}

// IsVerificationFailure reports whether code is one of the reasons a
// presented token is rejected. All of them map to the same unauthenticated
// response.
func (c ErrorCode) IsVerificationFailure() bool {
	switch c {
	case ErrMissingToken, ErrMalformed, ErrInvalidSignature, ErrExpired:
		return true
	}
	return false
}
