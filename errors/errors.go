// Package errors provides the error handling used throughout the chat relay.
// It defines the structured RelayError type, the public JSON error envelope,
// request ID correlation and integrated logging with Uber's zap logger.
//
// Every failure that happens after method validation is reported to the
// caller with the same envelope and status:
//
//	HTTP/1.1 500 Internal Server Error
//	{"error":"Something went wrong. Please try again.","details":"<cause>"}
//
// The ErrorType carried by a RelayError never changes the status code; it
// only feeds logs and metrics so operators can tell failures apart.
//
// Basic usage:
//
//	err := errors.Wrap(errors.ProviderError, upstreamErr)
//	errors.WriteError(w, err.WithRequestID(requestID))
package errors

import (
	"fmt"

	"go.uber.org/zap"
)

// DefaultLogger is the default zap logger instance used throughout the package.
// It is initialized to a production configuration but can be overridden using SetLogger.
var DefaultLogger *zap.Logger

func init() {
	var err error
	DefaultLogger, err = zap.NewProduction()
	if err != nil {
		DefaultLogger = zap.NewNop()
	}
}

// SetLogger allows setting a custom zap logger instance.
// If nil is provided, the function will do nothing to prevent
// accidentally disabling logging.
func SetLogger(logger *zap.Logger) {
	if logger != nil {
		DefaultLogger = logger
	}
}

// ErrorType categorizes a failure for logs and metrics.
type ErrorType string

const (
	// MethodNotAllowedError is the only failure with its own status code.
	MethodNotAllowedError ErrorType = "method_not_allowed"

	// ParseError represents a request body that is absent or not a JSON object.
	ParseError ErrorType = "parse_error"

	// ProviderError represents any failure of the completion service call:
	// network, authentication, quota, missing credential or malformed reply.
	ProviderError ErrorType = "provider_error"

	// ConfigError represents a relay that could not be assembled from its configuration.
	ConfigError ErrorType = "config_error"

	// InternalError represents unexpected failures such as panics.
	InternalError ErrorType = "internal_error"
)

const (
	// MessageMethodNotAllowed is the fixed body message of the 405 response.
	MessageMethodNotAllowed = "Method not allowed"

	// MessageGeneric is the fixed body message of every 500 response.
	MessageGeneric = "Something went wrong. Please try again."
)

// RelayError is the error type that implements the error interface and
// carries enough context to render the public envelope and to log the
// failure. It is never serialized directly; see Response.
type RelayError struct {
	// Type categorizes the error for logging and metrics
	Type ErrorType

	// Message is the public, caller-facing message
	Message string

	// Code is the HTTP status code
	Code int

	// RequestID links the error to a specific request
	RequestID string

	// err is the underlying cause; its message becomes the public details
	err error
}

// Error implements the error interface. It returns a string that
// combines the error type, message, and underlying error (if any).
func (e *RelayError) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error, implementing the unwrap
// interface for error chains.
func (e *RelayError) Unwrap() error {
	return e.err
}

// Is implements error matching for errors.Is, allowing type-based
// error matching while ignoring other fields.
func (e *RelayError) Is(target error) bool {
	t, ok := target.(*RelayError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Details returns the message of the underlying cause, or an empty string
// when there is none.
func (e *RelayError) Details() string {
	if e.err == nil {
		return ""
	}
	return e.err.Error()
}

// WithRequestID returns a copy of the error bound to the given request.
func (e *RelayError) WithRequestID(requestID string) *RelayError {
	cp := *e
	cp.RequestID = requestID
	return &cp
}

// Response renders the public envelope for this error.
func (e *RelayError) Response() ErrorResponse {
	resp := ErrorResponse{Error: e.Message}
	if e.Type != MethodNotAllowedError {
		details := e.Details()
		resp.Details = &details
	}
	return resp
}
