package models

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
)

func TestHTTPStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"validation", NewValidationError("bad input"), http.StatusBadRequest},
		{"not found", NewNotFoundError("missing"), http.StatusNotFound},
		{"conflict", NewConflictError("taken"), http.StatusConflict},
		{"authentication", NewAuthenticationError("no session"), http.StatusUnauthorized},
		{"gateway", NewPaymentGatewayError("stripe down", errors.New("timeout")), http.StatusServiceUnavailable},
		{"database", NewDatabaseError("query failed", errors.New("conn reset")), http.StatusInternalServerError},
		{"plain error", errors.New("boom"), http.StatusInternalServerError},
		{"wrapped not found", fmt.Errorf("loading order: %w", NewNotFoundError("missing")), http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := HTTPStatus(tt.err); got != tt.want {
				t.Errorf("HTTPStatus() = %d, want %d", got, tt.want)
			}
		})
	}
}

// A gateway failure whose message mentions invalid parameters is still a
// gateway failure, never client input.
func TestHTTPStatusGatewayBeatsValidation(t *testing.T) {
	err := NewPaymentGatewayError("failed to create payment session",
		errors.New("Invalid currency: xyz"))
	if got := HTTPStatus(err); got != http.StatusServiceUnavailable {
		t.Errorf("HTTPStatus() = %d, want %d", got, http.StatusServiceUnavailable)
	}
	if kind := ErrorKind(err); kind != "payment_gateway_error" {
		t.Errorf("ErrorKind() = %q, want payment_gateway_error", kind)
	}
}

func TestErrorUnwrap(t *testing.T) {
	cause := errors.New("underlying")
	if !errors.Is(NewDatabaseError("wrapped", cause), cause) {
		t.Error("DatabaseError should unwrap to its cause")
	}
	if !errors.Is(NewPaymentGatewayError("wrapped", cause), cause) {
		t.Error("PaymentGatewayError should unwrap to its cause")
	}
}
