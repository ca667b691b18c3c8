// Package errors defines the error values the HTTP layer knows how to render.
// Codes are part of the public API; messages may change.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is an error with a stable code, an HTTP status and optional
// client-facing details. Internal is logged, never rendered.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Details    any    `json:"details,omitempty"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches on code, so a sentinel still matches after WithMessage,
// WithDetails or WithInternal.
func (e *AppError) Is(target error) bool {
	var other *AppError
	if e == nil || e.Code == "" || !errors.As(target, &other) || other == nil {
		return false
	}
	return e.Code == other.Code
}

func (e *AppError) clone() *AppError {
	cpy := *e
	return &cpy
}

// WithInternal returns a copy carrying the underlying cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cpy := e.clone()
	cpy.Internal = err
	return cpy
}

// WithMessage returns a copy with a more specific message.
func (e *AppError) WithMessage(message string) *AppError {
	if e == nil {
		return nil
	}
	cpy := e.clone()
	cpy.Message = message
	return cpy
}

// WithDetails returns a copy carrying structured context for the client, for
// example the admission outcome behind a rejection or the failed fields.
func (e *AppError) WithDetails(details any) *AppError {
	if e == nil {
		return nil
	}
	cpy := e.clone()
	cpy.Details = details
	return cpy
}

// Status is the HTTP status to answer with; zero means 500.
func (e *AppError) Status() int {
	if e == nil || e.StatusCode == 0 {
		return http.StatusInternalServerError
	}
	return e.StatusCode
}

var (
	ErrUnauthorized   = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrForbidden      = New("FORBIDDEN", "Permission denied", http.StatusForbidden)
	ErrNotFound       = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest     = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrValidation     = New("VALIDATION_ERROR", "Invalid request payload", http.StatusBadRequest)
	ErrConflict       = New("CONFLICT", "The resource changed, please retry", http.StatusConflict)
	ErrInternalServer = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
)

func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// Wrap hides err behind a 500 with the given message.
func Wrap(err error, message string) *AppError {
	return ErrInternalServer.WithMessage(message).WithInternal(err)
}

// FromError finds the AppError in err's chain or wraps err as a 500.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) && appErr != nil {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// StatusOf is FromError(err).Status() with nil mapped to 200.
func StatusOf(err error) int {
	if err == nil {
		return http.StatusOK
	}
	return FromError(err).Status()
}

// NewBadRequest reports a request that could not be decoded at all.
func NewBadRequest(message string) *AppError {
	return ErrBadRequest.WithMessage(message)
}

// NewValidation reports a decoded payload that broke one or more rules.
func NewValidation(message string, details any) *AppError {
	return ErrValidation.WithMessage(message).WithDetails(details)
}
