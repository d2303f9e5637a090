package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coursemarket/internal/models"
)

type mockOrderCreator struct {
	createCalls  []*models.OrderCreateRequest
	createErr    error
	linkedOrder  int
	linkedIntent string
	linkErr      error
	nextID       int
}

func (m *mockOrderCreator) CreateFromCart(ctx context.Context, req *models.OrderCreateRequest) (*models.Order, error) {
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.createCalls = append(m.createCalls, req)
	m.nextID++
	return &models.Order{
		ID:             m.nextID,
		UserID:         req.UserID,
		Status:         models.OrderPending,
		TotalAmount:    req.TotalAmount,
		Currency:       req.Currency,
		ContactEmail:   req.ContactEmail,
		ContactPhone:   req.ContactPhone,
		CartSessionKey: req.CartSessionKey,
		CreatedAt:      time.Now(),
	}, nil
}

func (m *mockOrderCreator) SetPaymentIntent(ctx context.Context, orderID int, intentID string) error {
	if m.linkErr != nil {
		return m.linkErr
	}
	m.linkedOrder = orderID
	m.linkedIntent = intentID
	return nil
}

type mockGateway struct {
	session *PaymentSession
	err     error
	calls   int
}

func (m *mockGateway) CreateSession(ctx context.Context, order *models.Order, lines []models.OrderLine, successURL, cancelURL string) (*PaymentSession, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	return m.session, nil
}

func newTestCheckout(cart *CartService, orders *mockOrderCreator, gateway *mockGateway) *CheckoutService {
	return NewCheckoutService(cart, orders, gateway, "usd",
		"https://shop.test/success", "https://shop.test/cancel", zap.NewNop())
}

func seededCart(t *testing.T) *CartService {
	t.Helper()
	catalog := &mockCatalog{items: map[string]*models.CatalogItem{
		catalogKey(models.ItemTypeCourse, 1): {
			ItemType: models.ItemTypeCourse, ItemID: 1, Title: "Course 1", Price: 4999, Published: true,
		},
	}}
	svc := newTestCartService(catalog, nil)
	_, err := svc.AddItem(context.Background(), "sess-1", nil, courseItem(1, 4999, 2))
	require.NoError(t, err)
	return svc
}

func TestCheckoutHappyPath(t *testing.T) {
	ctx := context.Background()
	cart := seededCart(t)
	orders := &mockOrderCreator{}
	gateway := &mockGateway{session: &PaymentSession{
		ID: "cs_1", URL: "https://pay.test/cs_1", PaymentIntentID: "pi_1",
	}}
	svc := newTestCheckout(cart, orders, gateway)

	result, err := svc.Checkout(ctx, "sess-1", nil, CheckoutRequest{ContactEmail: "Buyer@Example.com"})
	require.NoError(t, err)

	// Exactly one order with one line and the correct totals.
	require.Len(t, orders.createCalls, 1)
	created := orders.createCalls[0]
	require.Len(t, created.Lines, 1)
	assert.Equal(t, 2, created.Lines[0].Quantity)
	assert.Equal(t, 9998+800, created.TotalAmount)
	assert.Equal(t, "buyer@example.com", created.ContactEmail)
	assert.Equal(t, "sess-1", created.CartSessionKey)

	// The payment intent was linked to the created order.
	assert.Equal(t, 1, orders.linkedOrder)
	assert.Equal(t, "pi_1", orders.linkedIntent)

	assert.Equal(t, 1, result.OrderID)
	assert.Equal(t, "cs_1", result.PaymentSessionID)
	assert.Equal(t, "https://pay.test/cs_1", result.PaymentSessionURL)
}

func TestCheckoutEmptyCart(t *testing.T) {
	cart := newTestCartService(nil, nil)
	orders := &mockOrderCreator{}
	gateway := &mockGateway{}
	svc := newTestCheckout(cart, orders, gateway)

	_, err := svc.Checkout(context.Background(), "sess-1", nil, CheckoutRequest{ContactEmail: "buyer@example.com"})

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, orders.createCalls)
	assert.Zero(t, gateway.calls)
}

func TestCheckoutMissingSession(t *testing.T) {
	svc := newTestCheckout(newTestCartService(nil, nil), &mockOrderCreator{}, &mockGateway{})

	_, err := svc.Checkout(context.Background(), "", nil, CheckoutRequest{ContactEmail: "buyer@example.com"})

	var authErr *models.AuthenticationError
	assert.ErrorAs(t, err, &authErr)
}

func TestCheckoutInvalidEmail(t *testing.T) {
	cart := seededCart(t)
	orders := &mockOrderCreator{}
	svc := newTestCheckout(cart, orders, &mockGateway{})

	_, err := svc.Checkout(context.Background(), "sess-1", nil, CheckoutRequest{ContactEmail: "nope"})

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, orders.createCalls)
}

func TestCheckoutRevalidatesCart(t *testing.T) {
	ctx := context.Background()
	// Catalog is empty, so the cart's only line has vanished since it was added.
	cart := newTestCartService(nil, nil)
	_, err := cart.AddItem(ctx, "sess-1", nil, courseItem(1, 4999, 1))
	require.NoError(t, err)

	orders := &mockOrderCreator{}
	svc := newTestCheckout(cart, orders, &mockGateway{})

	_, err = svc.Checkout(ctx, "sess-1", nil, CheckoutRequest{ContactEmail: "buyer@example.com"})

	var validationErr *models.ValidationError
	require.ErrorAs(t, err, &validationErr)
	assert.Empty(t, orders.createCalls)
}

func TestCheckoutGatewayFailureLeavesPendingOrder(t *testing.T) {
	ctx := context.Background()
	cart := seededCart(t)
	orders := &mockOrderCreator{}
	gateway := &mockGateway{err: models.NewPaymentGatewayError("stripe down", errors.New("timeout"))}
	svc := newTestCheckout(cart, orders, gateway)

	_, err := svc.Checkout(ctx, "sess-1", nil, CheckoutRequest{ContactEmail: "buyer@example.com"})

	var gatewayErr *models.PaymentGatewayError
	require.ErrorAs(t, err, &gatewayErr)

	// The order was created but never linked; reconciliation owns it now.
	assert.Len(t, orders.createCalls, 1)
	assert.Zero(t, orders.linkedOrder)
	assert.Empty(t, orders.linkedIntent)
}

func TestCheckoutSessionWithoutIntentSkipsLink(t *testing.T) {
	ctx := context.Background()
	cart := seededCart(t)
	orders := &mockOrderCreator{}
	// Stripe may not materialize the payment intent until the session
	// completes; the webhook links it later via the session metadata.
	gateway := &mockGateway{session: &PaymentSession{ID: "cs_1", URL: "https://pay.test/cs_1"}}
	svc := newTestCheckout(cart, orders, gateway)

	result, err := svc.Checkout(ctx, "sess-1", nil, CheckoutRequest{ContactEmail: "buyer@example.com"})
	require.NoError(t, err)

	assert.Zero(t, orders.linkedOrder)
	assert.Equal(t, "cs_1", result.PaymentSessionID)
}

func TestCheckoutConflictPropagates(t *testing.T) {
	cart := seededCart(t)
	orders := &mockOrderCreator{createErr: models.NewConflictError("not enough available spots for event 5")}
	svc := newTestCheckout(cart, orders, &mockGateway{})

	_, err := svc.Checkout(context.Background(), "sess-1", nil, CheckoutRequest{ContactEmail: "buyer@example.com"})

	var conflictErr *models.ConflictError
	assert.ErrorAs(t, err, &conflictErr)
}
