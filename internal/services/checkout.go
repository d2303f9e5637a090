package services

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"coursemarket/internal/models"
)

// OrderCreator is the slice of the order repository the checkout flow needs
type OrderCreator interface {
	CreateFromCart(ctx context.Context, req *models.OrderCreateRequest) (*models.Order, error)
	SetPaymentIntent(ctx context.Context, orderID int, paymentIntentID string) error
}

// CheckoutRequest carries the buyer-supplied checkout fields
type CheckoutRequest struct {
	ContactEmail string `json:"contact_email"`
	ContactPhone string `json:"contact_phone,omitempty"`
	SuccessURL   string `json:"success_url,omitempty"`
	CancelURL    string `json:"cancel_url,omitempty"`
}

// CheckoutResult is returned to the client so it can redirect to the
// gateway's hosted payment page
type CheckoutResult struct {
	OrderID           int    `json:"order_id"`
	PaymentSessionID  string `json:"payment_session_id"`
	PaymentSessionURL string `json:"payment_session_url"`
}

// CheckoutService turns a validated cart into a pending order with a linked
// payment session. The order rows, item snapshots, event bookings and
// capacity decrements commit in one database transaction; the gateway call
// happens after that commit, so a gateway failure leaves a pending order
// with no payment intent for the reconciliation sweep to cancel.
type CheckoutService struct {
	cart       *CartService
	orders     OrderCreator
	gateway    PaymentGateway
	currency   string
	successURL string
	cancelURL  string
	logger     *zap.Logger
}

// NewCheckoutService creates a new checkout service
func NewCheckoutService(
	cart *CartService,
	orders OrderCreator,
	gateway PaymentGateway,
	currency, successURL, cancelURL string,
	logger *zap.Logger,
) *CheckoutService {
	return &CheckoutService{
		cart:       cart,
		orders:     orders,
		gateway:    gateway,
		currency:   currency,
		successURL: successURL,
		cancelURL:  cancelURL,
		logger:     logger,
	}
}

// Checkout runs the full flow: re-validate the cart against the live
// catalog, create the order transactionally, then create the gateway
// session and link its payment intent to the order.
func (s *CheckoutService) Checkout(ctx context.Context, sessionKey string, userID *int, req CheckoutRequest) (*CheckoutResult, error) {
	if sessionKey == "" {
		return nil, models.NewAuthenticationError("no cart session")
	}

	email := strings.TrimSpace(strings.ToLower(req.ContactEmail))
	if err := models.ValidateContactEmail(email); err != nil {
		return nil, err
	}

	// Checkout never trusts a client-side validation pass; the cart is
	// re-validated here against the live catalog.
	validation, err := s.cart.ValidateCart(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if validation.Cart.IsEmpty() {
		return nil, models.NewValidationError("cart is empty")
	}
	if !validation.Valid {
		return nil, models.NewValidationError(
			"some items in your cart are no longer available: %s",
			strings.Join(validation.Errors, "; "))
	}

	cart := validation.Cart
	lines := make([]models.OrderLine, 0, len(cart.Items))
	for _, item := range cart.Items {
		lines = append(lines, models.OrderLine{
			ItemType: item.ItemType,
			ItemID:   item.ItemID,
			Title:    item.Title,
			Price:    item.UnitPrice,
			Quantity: item.Quantity,
		})
	}

	createReq := &models.OrderCreateRequest{
		UserID:         userID,
		ContactEmail:   email,
		ContactPhone:   strings.TrimSpace(req.ContactPhone),
		Currency:       s.currency,
		TotalAmount:    cart.Total,
		CartSessionKey: sessionKey,
		Lines:          lines,
	}
	if err := createReq.Validate(); err != nil {
		return nil, err
	}

	order, err := s.orders.CreateFromCart(ctx, createReq)
	if err != nil {
		return nil, err
	}

	s.logger.Info("order created",
		zap.Int("order_id", order.ID),
		zap.Int("total_amount", order.TotalAmount),
		zap.Int("lines", len(lines)))

	successURL := req.SuccessURL
	if successURL == "" {
		successURL = s.successURL
	}
	cancelURL := req.CancelURL
	if cancelURL == "" {
		cancelURL = s.cancelURL
	}

	session, err := s.gateway.CreateSession(ctx, order, lines, successURL, cancelURL)
	if err != nil {
		// The pending order stays behind with no payment intent; the
		// reconciliation worker cancels it and restores capacity.
		s.logger.Error("payment session creation failed",
			zap.Int("order_id", order.ID), zap.Error(err))
		return nil, err
	}

	if session.PaymentIntentID != "" {
		if err := s.orders.SetPaymentIntent(ctx, order.ID, session.PaymentIntentID); err != nil {
			s.logger.Error("failed to link payment intent",
				zap.Int("order_id", order.ID),
				zap.String("payment_intent_id", session.PaymentIntentID),
				zap.Error(err))
			return nil, err
		}
	}

	return &CheckoutResult{
		OrderID:           order.ID,
		PaymentSessionID:  session.ID,
		PaymentSessionURL: session.URL,
	}, nil
}
