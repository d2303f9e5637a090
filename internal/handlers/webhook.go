package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v80"
	"go.uber.org/zap"

	"coursemarket/internal/models"
	"coursemarket/internal/services"
)

const maxWebhookBody = 64 * 1024

// WebhookHandler receives payment events from Stripe. Responses decide
// Stripe's retry behavior: 2xx acknowledges, 4xx rejects the delivery as
// malformed, 5xx asks for a redelivery. Only transient database failures
// return 5xx, so every delivery eventually lands exactly once.
type WebhookHandler struct {
	verifier  services.WebhookVerifier
	finalizer services.FinalizerInterface
	logger    *zap.Logger
}

// NewWebhookHandler creates a new webhook handler
func NewWebhookHandler(verifier services.WebhookVerifier, finalizer services.FinalizerInterface, logger *zap.Logger) *WebhookHandler {
	return &WebhookHandler{verifier: verifier, finalizer: finalizer, logger: logger}
}

// HandleStripeWebhook handles POST /api/webhooks/stripe
func (h *WebhookHandler) HandleStripeWebhook(w http.ResponseWriter, r *http.Request) {
	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, h.logger, models.NewValidationError("failed to read request body"))
		return
	}

	event, err := h.verifier.VerifyWebhook(payload, r.Header.Get("Stripe-Signature"))
	if err != nil {
		h.logger.Warn("webhook signature verification failed", zap.Error(err))
		writeError(w, h.logger, err)
		return
	}

	switch event.Type {
	case "checkout.session.completed":
		err = h.handleCheckoutCompleted(r, event)
	case "payment_intent.succeeded":
		err = h.handlePaymentIntentSucceeded(r, event)
	default:
		h.logger.Debug("ignoring webhook event", zap.String("type", string(event.Type)))
	}

	if err != nil {
		var dbErr *models.DatabaseError
		if errors.As(err, &dbErr) {
			// 5xx makes Stripe redeliver; completion is idempotent so the
			// retry is safe.
			writeError(w, h.logger, err)
			return
		}
		h.logger.Error("webhook processing failed", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "received"})
}

func (h *WebhookHandler) handleCheckoutCompleted(r *http.Request, event stripe.Event) error {
	var sess stripe.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
		h.logger.Error("failed to decode checkout session event", zap.Error(err))
		return nil
	}

	if sess.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
		h.logger.Info("checkout session completed but unpaid",
			zap.String("session_id", sess.ID),
			zap.String("payment_status", string(sess.PaymentStatus)))
		return nil
	}

	var intentID string
	if sess.PaymentIntent != nil {
		intentID = sess.PaymentIntent.ID
	}

	orderID, _ := strconv.Atoi(sess.Metadata["order_id"])
	return h.finalizer.HandleCheckoutCompleted(r.Context(), orderID, intentID)
}

func (h *WebhookHandler) handlePaymentIntentSucceeded(r *http.Request, event stripe.Event) error {
	var intent stripe.PaymentIntent
	if err := json.Unmarshal(event.Data.Raw, &intent); err != nil {
		h.logger.Error("failed to decode payment intent event", zap.Error(err))
		return nil
	}
	return h.finalizer.HandlePaymentSucceeded(r.Context(), intent.ID)
}
