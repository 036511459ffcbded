package errors

import (
	"errors"
	"fmt"
)

// New creates a new Error with the specified code and message.
// Use this for creating errors without an underlying cause.
//
// Example:
//
//	err := errors.New(errors.CodeTokenEmpty, "auth: token must not be empty")
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
	}
}

// Newf creates a new Error with the specified code and formatted message.
//
// Example:
//
//	err := errors.Newf(errors.CodeAudienceMismatch, "audience %q not accepted", aud)
func Newf(code Code, format string, args ...any) *Error {
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
	}
}

// Wrap wraps an existing error with additional context. The wrapped error
// becomes the Cause of the new error. If err is nil, Wrap returns nil.
//
// Example:
//
//	rows, err := store.Query(ctx, sql)
//	if err != nil {
//	    return errors.Wrap(err, errors.CodeUnavailableDependency, "role lookup failed")
//	}
func Wrap(err error, code Code, message string) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with a formatted message.
// If err is nil, Wrapf returns nil.
func Wrapf(err error, code Code, format string, args ...any) *Error {
	if err == nil {
		return nil
	}
	return &Error{
		Code:    code,
		Message: fmt.Sprintf(format, args...),
		Cause:   err,
	}
}

// Unauthorized creates a new authentication error.
// Use this when authentication fails (invalid or missing credentials).
func Unauthorized(message string) *Error {
	return New(CodeAuthentication, message)
}

// Forbidden creates a new authorization error.
// Use this when the authenticated user lacks a required role.
func Forbidden(message string) *Error {
	return New(CodeAuthorizationDenied, message)
}

// Internal creates a new internal error. Use this for unexpected system
// failures that should not expose details to users.
func Internal(message string) *Error {
	return New(CodeInternal, message)
}

// Unavailable creates a new dependency unavailable error. Use this when a
// dependency remains unreachable after its bounded retry policy.
func Unavailable(message string) *Error {
	return New(CodeUnavailableDependency, message)
}

// FromError converts a standard error to an Error. If the error is already
// an *Error, it is returned as-is. Otherwise, it is wrapped as an internal
// error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}

	var e *Error
	if errors.As(err, &e) {
		return e
	}

	return Wrap(err, CodeInternal, "an unexpected error occurred")
}
