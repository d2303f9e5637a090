package models

import (
	"errors"
	"fmt"
	"net/http"
)

// Common errors used throughout the application
var (
	ErrCartNotFound  = errors.New("cart not found")
	ErrItemNotFound  = errors.New("item not found")
	ErrOrderNotFound = errors.New("order not found")
	ErrEmptyCart     = errors.New("cart is empty")
)

// ValidationError indicates malformed or out-of-range input (400-class).
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// NewValidationError creates a ValidationError with a formatted message
func NewValidationError(format string, args ...interface{}) *ValidationError {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// NotFoundError indicates a referenced entity is absent (404-class).
type NotFoundError struct {
	Message string
}

func (e *NotFoundError) Error() string {
	return e.Message
}

// NewNotFoundError creates a NotFoundError with a formatted message
func NewNotFoundError(format string, args ...interface{}) *NotFoundError {
	return &NotFoundError{Message: fmt.Sprintf(format, args...)}
}

// ConflictError indicates a duplicate purchase or capacity conflict (409-class).
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// NewConflictError creates a ConflictError with a formatted message
func NewConflictError(format string, args ...interface{}) *ConflictError {
	return &ConflictError{Message: fmt.Sprintf(format, args...)}
}

// AuthenticationError indicates the caller has no active session (401-class).
type AuthenticationError struct {
	Message string
}

func (e *AuthenticationError) Error() string {
	return e.Message
}

// NewAuthenticationError creates an AuthenticationError
func NewAuthenticationError(message string) *AuthenticationError {
	return &AuthenticationError{Message: message}
}

// PaymentGatewayError indicates an upstream payment provider failure (503-class).
// It wraps the provider error so callers can log the original cause.
type PaymentGatewayError struct {
	Message string
	Err     error
}

func (e *PaymentGatewayError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *PaymentGatewayError) Unwrap() error {
	return e.Err
}

// NewPaymentGatewayError wraps a provider error
func NewPaymentGatewayError(message string, err error) *PaymentGatewayError {
	return &PaymentGatewayError{Message: message, Err: err}
}

// DatabaseError indicates a persistence failure (500-class). Any in-flight
// transaction has been rolled back by the time this error surfaces.
type DatabaseError struct {
	Message string
	Err     error
}

func (e *DatabaseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DatabaseError) Unwrap() error {
	return e.Err
}

// NewDatabaseError wraps a persistence error
func NewDatabaseError(message string, err error) *DatabaseError {
	return &DatabaseError{Message: message, Err: err}
}

// HTTPStatus maps an error to its HTTP status code. Gateway errors are
// checked before validation errors: a provider message like
// "Stripe error: Invalid ..." must not be classified as plain bad input.
func HTTPStatus(err error) int {
	var gatewayErr *PaymentGatewayError
	if errors.As(err, &gatewayErr) {
		return http.StatusServiceUnavailable
	}

	var authErr *AuthenticationError
	if errors.As(err, &authErr) {
		return http.StatusUnauthorized
	}

	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return http.StatusNotFound
	}

	var conflictErr *ConflictError
	if errors.As(err, &conflictErr) {
		return http.StatusConflict
	}

	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return http.StatusBadRequest
	}

	return http.StatusInternalServerError
}

// ErrorKind returns the machine-readable kind for an error, used in
// structured API error responses.
func ErrorKind(err error) string {
	switch HTTPStatus(err) {
	case http.StatusServiceUnavailable:
		return "payment_gateway_error"
	case http.StatusUnauthorized:
		return "authentication_error"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusBadRequest:
		return "validation_error"
	default:
		return "internal_error"
	}
}
