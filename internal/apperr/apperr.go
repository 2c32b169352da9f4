// Package apperr defines the error taxonomy shared by every handler.
// Each error carries a Kind that decides the status code of the response
// envelope, a user-safe Message and the underlying cause for diagnosis.
package apperr

import (
	"errors"
	"net/http"
)

// Kind classifies an error for the response envelope.
type Kind string

const (
	// KindClient is a malformed or incomplete request.
	KindClient Kind = "CLIENT_ERROR"
	// KindUnauthorized is a missing or invalid identity on an identity-scoped call.
	KindUnauthorized Kind = "UNAUTHORIZED"
	// KindValidation is input that cannot be processed (unsupported, empty or corrupt image).
	KindValidation Kind = "VALIDATION_ERROR"
	// KindDependency is a failed call to storage or the metadata store.
	KindDependency Kind = "DEPENDENCY_ERROR"
	// KindConfiguration is missing required configuration.
	KindConfiguration Kind = "CONFIGURATION_ERROR"
)

// HTTPStatus returns the status code used when an error of this kind is returned to a caller.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindClient:
		return http.StatusBadRequest
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindValidation:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// Error is a classified error.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

// New creates a classified error.
func New(kind Kind, message string, err error) *Error {
	return &Error{Kind: kind, Message: message, Err: err}
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Err == nil {
		return e.Message
	}
	return e.Message + ": " + e.Err.Error()
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Client wraps err as a client error.
func Client(message string, err error) *Error {
	return New(KindClient, message, err)
}

// Unauthorized wraps err as an unauthorized error.
func Unauthorized(message string, err error) *Error {
	return New(KindUnauthorized, message, err)
}

// Validation wraps err as a validation error.
func Validation(message string, err error) *Error {
	return New(KindValidation, message, err)
}

// Dependency wraps err as a dependency error.
func Dependency(message string, err error) *Error {
	return New(KindDependency, message, err)
}

// Configuration wraps err as a configuration error.
func Configuration(message string, err error) *Error {
	return New(KindConfiguration, message, err)
}

// KindOf reports the kind of err. Unclassified errors are treated as
// dependency failures.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindDependency
}

// Is reports whether err is classified as kind.
func Is(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

// MessageOf returns the user-safe message of err, or fallback when err is
// not classified.
func MessageOf(err error, fallback string) string {
	var e *Error
	if errors.As(err, &e) && e.Message != "" {
		return e.Message
	}
	return fallback
}
