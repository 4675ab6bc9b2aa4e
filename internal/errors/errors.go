// Package errors provides the application error type used across the
// fulfillment pipeline, with codes for classification and HTTP mapping.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Code represents an application error code.
type Code string

// Error codes for different error categories.
const (
	// Inbound request errors
	CodeInvalidPayload Code = "INVALID_PAYLOAD"

	// External service errors
	CodeExternalService   Code = "EXTERNAL_SERVICE_ERROR"
	CodeCircuitOpen       Code = "CIRCUIT_OPEN"
	CodeTimeout           Code = "TIMEOUT"
	CodeEmptyCompletion   Code = "EMPTY_COMPLETION"
	CodeSinkNotConfigured Code = "SINK_NOT_CONFIGURED"

	// Internal errors
	CodeInternal Code = "INTERNAL_ERROR"
	CodeDatabase Code = "DATABASE_ERROR"
	CodeConfig   Code = "CONFIG_ERROR"
)

// Kind represents the kind of error for classification.
type Kind int

const (
	// KindUnknown is an unknown error kind.
	KindUnknown Kind = iota
	// KindUser indicates a caller-caused error (malformed payload).
	KindUser
	// KindSystem indicates a system error (database down, misconfiguration).
	KindSystem
	// KindTransient indicates a temporary error that may succeed later.
	KindTransient
)

// Error is the base application error type.
type Error struct {
	// Code is the machine-readable error code.
	Code Code `json:"code"`
	// Message is the human-readable error message.
	Message string `json:"message"`
	// Kind classifies the error for handling decisions.
	Kind Kind `json:"-"`
	// Op is the operation being performed (e.g., "leads.SheetSink.Record").
	Op string `json:"-"`
	// Err is the underlying error, if any.
	Err error `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Op != "" {
		if e.Err != nil {
			return fmt.Sprintf("%s: %s: %v", e.Op, e.Message, e.Err)
		}
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target matches this error.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// HTTPStatus returns the HTTP status code for this error.
// The fulfillment contract surfaces every escaping failure as a 500, so only
// the external-service codes get a gateway status for the health endpoints.
func (e *Error) HTTPStatus() int {
	switch e.Code {
	case CodeExternalService, CodeCircuitOpen, CodeEmptyCompletion:
		return http.StatusBadGateway
	case CodeTimeout:
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// IsTransient returns true if the error may clear up on its own.
func (e *Error) IsTransient() bool {
	return e.Kind == KindTransient
}

// New creates a new Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
	}
}

// Wrap wraps an existing error with additional context.
func Wrap(err error, op string, code Code, message string) *Error {
	return &Error{
		Code:    code,
		Message: message,
		Kind:    kindForCode(code),
		Op:      op,
		Err:     err,
	}
}

// kindForCode returns the default Kind for a given Code.
func kindForCode(code Code) Kind {
	switch code {
	case CodeInvalidPayload:
		return KindUser
	case CodeExternalService, CodeCircuitOpen, CodeTimeout, CodeEmptyCompletion:
		return KindTransient
	default:
		return KindSystem
	}
}

// Sentinel errors for common cases

var (
	// ErrCircuitOpen indicates the completion API circuit breaker is open.
	ErrCircuitOpen = New(CodeCircuitOpen, "service temporarily unavailable")

	// ErrSinkNotConfigured indicates no lead sink endpoint was configured.
	ErrSinkNotConfigured = New(CodeSinkNotConfigured, "lead sink endpoint not configured")

	// ErrEmptyCompletion indicates the completion API answered without text.
	ErrEmptyCompletion = New(CodeEmptyCompletion, "completion returned no content")
)

// InvalidPayload creates an error for an undecodable webhook body.
func InvalidPayload(err error) *Error {
	return &Error{
		Code:    CodeInvalidPayload,
		Message: "invalid fulfillment payload",
		Kind:    KindUser,
		Err:     err,
	}
}

// ExternalServiceError creates an external service error.
func ExternalServiceError(service string, err error) *Error {
	return &Error{
		Code:    CodeExternalService,
		Message: fmt.Sprintf("%s service error", service),
		Kind:    KindTransient,
		Err:     err,
	}
}

// DatabaseError creates a database error with the underlying cause.
func DatabaseError(op string, err error) *Error {
	return &Error{
		Code:    CodeDatabase,
		Message: "database operation failed",
		Kind:    KindSystem,
		Op:      op,
		Err:     err,
	}
}

// GetCode extracts the error code from an error, returning CodeInternal for non-app errors.
func GetCode(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeInternal
}

// GetHTTPStatus extracts the HTTP status from an error, returning 500 for non-app errors.
func GetHTTPStatus(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.HTTPStatus()
	}
	return http.StatusInternalServerError
}

// IsTransient checks if an error is transient.
func IsTransient(err error) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.IsTransient()
	}
	return false
}
