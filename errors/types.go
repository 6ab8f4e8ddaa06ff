package errors

import (
	"errors"
	"net/http"
)

// NewError creates a new RelayError with the given parameters.
// It is a general-purpose constructor that allows full control over
// the error's fields. For most cases, you should use one of the
// specialized constructors below.
//
// Example:
//
//	err := NewError(InternalError, MessageGeneric, 500, "req_123", encodeErr)
func NewError(errType ErrorType, message string, code int, requestID string, err error) *RelayError {
	return &RelayError{
		Type:      errType,
		Message:   message,
		Code:      code,
		RequestID: requestID,
		err:       err,
	}
}

// NewMethodNotAllowedError creates the 405 error returned for any method
// other than POST and OPTIONS. It carries no details.
func NewMethodNotAllowedError(requestID string) *RelayError {
	return &RelayError{
		Type:      MethodNotAllowedError,
		Message:   MessageMethodNotAllowed,
		Code:      http.StatusMethodNotAllowed,
		RequestID: requestID,
	}
}

// Wrap classifies err as errType and gives it the uniform 500 contract.
// If err already is a RelayError it is returned unchanged so the
// innermost classification wins.
//
// Example:
//
//	return nil, errors.Wrap(errors.ParseError, jsonErr)
func Wrap(errType ErrorType, err error) *RelayError {
	var re *RelayError
	if errors.As(err, &re) {
		return re
	}
	return &RelayError{
		Type:    errType,
		Message: MessageGeneric,
		Code:    http.StatusInternalServerError,
		err:     err,
	}
}

// NewInternalError creates an internal server error with appropriate defaults.
// Use this for unexpected errors that are not covered by other error types,
// such as recovered panics or a response that could not be encoded.
func NewInternalError(requestID string, err error) *RelayError {
	return &RelayError{
		Type:      InternalError,
		Message:   MessageGeneric,
		Code:      http.StatusInternalServerError,
		RequestID: requestID,
		err:       err,
	}
}

// TypeOf reports the ErrorType of err, defaulting to InternalError for
// errors that were never classified.
func TypeOf(err error) ErrorType {
	var re *RelayError
	if errors.As(err, &re) {
		return re.Type
	}
	return InternalError
}

// Is is a wrapper around errors.Is so callers importing this package
// do not also need the standard library one.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As is a wrapper around errors.As for better error type assertion
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
