package services

import (
	"context"

	"github.com/stripe/stripe-go/v80"

	"coursemarket/internal/models"
)

// PaymentSession is a hosted gateway payment page linked to an order
type PaymentSession struct {
	ID              string
	URL             string
	PaymentIntentID string
}

// PaymentGateway abstracts the payment provider
type PaymentGateway interface {
	CreateSession(ctx context.Context, order *models.Order, lines []models.OrderLine, successURL, cancelURL string) (*PaymentSession, error)
}

// WebhookVerifier checks a webhook delivery's signature and decodes it
type WebhookVerifier interface {
	VerifyWebhook(payload []byte, sigHeader string) (stripe.Event, error)
}

// EmailSender delivers transactional email
type EmailSender interface {
	SendOrderConfirmation(order *models.Order, items []*models.OrderItem, bookings []*models.Booking) error
}

// WhatsAppNotifier delivers booking confirmations over WhatsApp
type WhatsAppNotifier interface {
	SendBookingConfirmation(order *models.Order, booking *models.Booking) error
}

// CartServiceInterface defines the cart operations exposed to handlers
type CartServiceInterface interface {
	AddItem(ctx context.Context, sessionKey string, userID *int, item models.CartItem) (*models.Cart, error)
	GetCart(ctx context.Context, sessionKey string) (*models.Cart, error)
	UpdateItemQuantity(ctx context.Context, sessionKey string, itemType models.ItemType, itemID, quantity int) (*models.Cart, error)
	RemoveItem(ctx context.Context, sessionKey string, itemType models.ItemType, itemID int) (*models.Cart, error)
	ClearCart(ctx context.Context, sessionKey string) error
	GetItemCount(ctx context.Context, sessionKey string) (int, error)
	ValidateCart(ctx context.Context, sessionKey string) (*CartValidation, error)
	MergeGuestCart(ctx context.Context, guestKey, userKey string) (*models.Cart, error)
}

// CheckoutServiceInterface defines the checkout operation exposed to handlers
type CheckoutServiceInterface interface {
	Checkout(ctx context.Context, sessionKey string, userID *int, req CheckoutRequest) (*CheckoutResult, error)
}

// FinalizerInterface defines the webhook-driven completion operations
type FinalizerInterface interface {
	HandlePaymentSucceeded(ctx context.Context, paymentIntentID string) error
	HandleCheckoutCompleted(ctx context.Context, orderID int, paymentIntentID string) error
}
