// Package apperror provides domain-specific error types for the user service.
// These errors carry an HTTP status code and a user-safe message. The Echo
// error handler maps them to appropriate HTTP responses automatically.
//
// NEVER return raw database or infrastructure errors to the client. Always
// wrap them in an apperror type or return a generic internal error.
package apperror

import (
	"errors"
	"fmt"
	"net/http"
)

// Machine-readable error types. Handlers and tests match on these rather than
// on messages, which are free to change.
const (
	TypeNotFound              = "not_found"
	TypeBadRequest            = "bad_request"
	TypeUnauthorized          = "unauthorized"
	TypeForbidden             = "forbidden"
	TypeConflict              = "conflict"
	TypeValidation            = "validation_error"
	TypeInternal              = "internal_error"
	TypeInvalidSignature      = "invalid_signature"
	TypeTokenExpired          = "token_expired"
	TypeTokenRevoked          = "token_revoked"
	TypeWrongPurpose          = "wrong_purpose"
	TypeInvalidCredentials    = "invalid_credentials"
	TypeDuplicateEmail        = "duplicate_email"
	TypeInvalidRole           = "invalid_role"
	TypeInvalidOrExpiredToken = "invalid_or_expired_token"
	TypeIncorrectOldPassword  = "incorrect_old_password"
)

// AppError is the base error type for all domain errors. It carries an
// HTTP status code, a machine-readable error type, and a human-readable
// message safe to show to the client.
type AppError struct {
	// Code is the HTTP status code (e.g., 404, 400, 500).
	Code int `json:"-"`

	// Type is a machine-readable error classifier (e.g., "not_found").
	Type string `json:"type"`

	// Message is a human-readable description safe for the client.
	Message string `json:"message"`

	// Internal holds the underlying error for logging. Never exposed to client.
	Internal error `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error for errors.Is/As support.
func (e *AppError) Unwrap() error {
	return e.Internal
}

// StatusCode returns the HTTP status code.
func (e *AppError) StatusCode() int {
	return e.Code
}

// --- Constructors for common error types ---

// New creates an AppError with an explicit status code and type.
func New(code int, typ, message string) *AppError {
	return &AppError{Code: code, Type: typ, Message: message}
}

// NewNotFound creates a 404 Not Found error.
func NewNotFound(message string) *AppError {
	return New(http.StatusNotFound, TypeNotFound, message)
}

// NewBadRequest creates a 400 Bad Request error.
func NewBadRequest(message string) *AppError {
	return New(http.StatusBadRequest, TypeBadRequest, message)
}

// NewUnauthorized creates a 401 Unauthorized error.
func NewUnauthorized(message string) *AppError {
	return New(http.StatusUnauthorized, TypeUnauthorized, message)
}

// NewForbidden creates a 403 Forbidden error.
func NewForbidden(message string) *AppError {
	return New(http.StatusForbidden, TypeForbidden, message)
}

// NewConflict creates a 409 Conflict error.
func NewConflict(message string) *AppError {
	return New(http.StatusConflict, TypeConflict, message)
}

// NewValidation creates a 400 error for request payloads that fail field
// validation.
func NewValidation(message string) *AppError {
	return New(http.StatusBadRequest, TypeValidation, message)
}

// errMissingContext is the shared internal error for nil precondition checks.
var errMissingContext = errors.New("missing required context")

// NewMissingContext creates a 500 error for handler nil-context guards
// (principal not set, dependency not wired).
func NewMissingContext() *AppError {
	return NewInternal(errMissingContext)
}

// NewInternal creates a 500 Internal Server Error. The real error is stored
// in Internal for logging but the client only sees a generic message.
func NewInternal(err error) *AppError {
	return &AppError{
		Code:     http.StatusInternalServerError,
		Type:     TypeInternal,
		Message:  "An unexpected error occurred. Please try again.",
		Internal: err,
	}
}

// Is reports whether err is an AppError of the given type.
func Is(err error, typ string) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Type == typ
}

// SafeMessage returns the client-safe error message from an error. If the
// error is an AppError, returns its Message field (which is safe to expose).
// For any other error type, returns a generic message to prevent leaking
// internal details like table names or query structure.
func SafeMessage(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "an unexpected error occurred"
}

// SafeCode returns the HTTP status code from an AppError, or 500 for
// any other error type.
func SafeCode(err error) int {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return http.StatusInternalServerError
}
