package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"coursemarket/internal/middleware"
	"coursemarket/internal/services"
)

// CheckoutHandler exposes checkout over HTTP
type CheckoutHandler struct {
	checkout services.CheckoutServiceInterface
	logger   *zap.Logger
}

// NewCheckoutHandler creates a new checkout handler
func NewCheckoutHandler(checkout services.CheckoutServiceInterface, logger *zap.Logger) *CheckoutHandler {
	return &CheckoutHandler{checkout: checkout, logger: logger}
}

// Checkout handles POST /api/checkout
func (h *CheckoutHandler) Checkout(w http.ResponseWriter, r *http.Request) {
	var req services.CheckoutRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	result, err := h.checkout.Checkout(r.Context(), effectiveSessionKey(r), middleware.GetUserID(r.Context()), req)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}
