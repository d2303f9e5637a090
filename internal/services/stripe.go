package services

import (
	"context"
	"strconv"

	"github.com/stripe/stripe-go/v80"
	"github.com/stripe/stripe-go/v80/checkout/session"
	"github.com/stripe/stripe-go/v80/webhook"
	"go.uber.org/zap"

	"coursemarket/internal/models"
)

// StripeGateway implements PaymentGateway and WebhookVerifier on Stripe
// Checkout
type StripeGateway struct {
	webhookSecret string
	logger        *zap.Logger
}

// NewStripeGateway configures the Stripe client and returns the gateway
func NewStripeGateway(secretKey, webhookSecret string, logger *zap.Logger) *StripeGateway {
	stripe.Key = secretKey
	return &StripeGateway{
		webhookSecret: webhookSecret,
		logger:        logger,
	}
}

// CreateSession creates a hosted Stripe Checkout session for the order.
// The order id travels in the session metadata so the completion webhook
// can find its way back even if the payment intent was never linked.
func (g *StripeGateway) CreateSession(ctx context.Context, order *models.Order, lines []models.OrderLine, successURL, cancelURL string) (*PaymentSession, error) {
	params := &stripe.CheckoutSessionParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:    stripe.String(successURL),
		CancelURL:     stripe.String(cancelURL),
		CustomerEmail: stripe.String(order.ContactEmail),
	}
	params.Context = ctx
	params.AddMetadata("order_id", strconv.Itoa(order.ID))
	params.AddExpand("payment_intent")
	params.LineItems = buildLineItems(order, lines)

	sess, err := session.New(params)
	if err != nil {
		return nil, models.NewPaymentGatewayError("failed to create payment session", err)
	}

	result := &PaymentSession{ID: sess.ID, URL: sess.URL}
	if sess.PaymentIntent != nil {
		result.PaymentIntentID = sess.PaymentIntent.ID
	}

	g.logger.Info("stripe checkout session created",
		zap.Int("order_id", order.ID),
		zap.String("session_id", sess.ID))

	return result, nil
}

// buildLineItems converts the order lines into Stripe line items. The order
// total includes tax the lines do not carry, so a tax line covers the
// difference: the session must collect exactly order.TotalAmount.
func buildLineItems(order *models.Order, lines []models.OrderLine) []*stripe.CheckoutSessionLineItemParams {
	items := make([]*stripe.CheckoutSessionLineItemParams, 0, len(lines)+1)
	lineTotal := 0
	for _, line := range lines {
		lineTotal += line.Price * line.Quantity
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(int64(line.Quantity)),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(order.Currency),
				UnitAmount: stripe.Int64(int64(line.Price)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(line.Title),
				},
			},
		})
	}

	if tax := order.TotalAmount - lineTotal; tax > 0 {
		items = append(items, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(1),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(order.Currency),
				UnitAmount: stripe.Int64(int64(tax)),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String("Sales tax"),
				},
			},
		})
	}

	return items
}

// VerifyWebhook validates the delivery signature and decodes the event
func (g *StripeGateway) VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error) {
	event, err := webhook.ConstructEvent(payload, sigHeader, g.webhookSecret)
	if err != nil {
		return stripe.Event{}, models.NewAuthenticationError("invalid webhook signature")
	}
	return event, nil
}
