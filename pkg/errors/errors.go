package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes used across the service
const (
	CodeValidation            = "VALIDATION_ERROR"
	CodeNotFound              = "RESOURCE_NOT_FOUND"
	CodeConflict              = "CONFLICT"
	CodeInvalidState          = "INVALID_STATE"
	CodeInsufficientAvailable = "INSUFFICIENT_AVAILABLE"
	CodeInsufficientStock     = "INSUFFICIENT_STOCK"
	CodeInvariantViolation    = "INVARIANT_VIOLATION"
	CodeUnauthorized          = "UNAUTHORIZED"
	CodeForbidden             = "FORBIDDEN"
	CodeInternal              = "INTERNAL_ERROR"
	CodeUnavailable           = "SERVICE_UNAVAILABLE"
)

// AppError is the structured error carried across layer boundaries.
type AppError struct {
	Code       string         `json:"code"`
	Message    string         `json:"message"`
	Details    map[string]any `json:"details,omitempty"`
	HTTPStatus int            `json:"-"`
	Err        error          `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// WithDetail attaches a detail key/value and returns the error for chaining.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// WithCause attaches an underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Err = err
	return e
}

func newError(code, message string, status int) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status}
}

// NewValidation creates a validation error (HTTP 400)
func NewValidation(message string) *AppError {
	return newError(CodeValidation, message, http.StatusBadRequest)
}

// NewNotFound creates a not-found error (HTTP 404)
func NewNotFound(message string) *AppError {
	return newError(CodeNotFound, message, http.StatusNotFound)
}

// NewConflict creates a conflict error (HTTP 409)
func NewConflict(message string) *AppError {
	return newError(CodeConflict, message, http.StatusConflict)
}

// NewInvalidState creates an invalid-state-transition error (HTTP 409)
func NewInvalidState(message string) *AppError {
	return newError(CodeInvalidState, message, http.StatusConflict)
}

// NewInsufficientAvailable signals a reservation exceeding available stock (HTTP 422)
func NewInsufficientAvailable(message string) *AppError {
	return newError(CodeInsufficientAvailable, message, http.StatusUnprocessableEntity)
}

// NewInsufficientStock signals a consumption exceeding on-hand stock (HTTP 422)
func NewInsufficientStock(message string) *AppError {
	return newError(CodeInsufficientStock, message, http.StatusUnprocessableEntity)
}

// NewInvariantViolation signals corrupted ledger state (HTTP 500)
func NewInvariantViolation(message string) *AppError {
	return newError(CodeInvariantViolation, message, http.StatusInternalServerError)
}

// NewInternal creates an internal error (HTTP 500)
func NewInternal(message string) *AppError {
	return newError(CodeInternal, message, http.StatusInternalServerError)
}

// NewUnavailable creates a service-unavailable error (HTTP 503)
func NewUnavailable(message string) *AppError {
	return newError(CodeUnavailable, message, http.StatusServiceUnavailable)
}

// AsAppError extracts an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// HTTPStatus returns the HTTP status for an error, defaulting to 500.
func HTTPStatus(err error) int {
	if appErr, ok := AsAppError(err); ok {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}
