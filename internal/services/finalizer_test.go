package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coursemarket/internal/models"
)

type mockOrderCompleter struct {
	mu       sync.Mutex
	order    *models.Order
	items    []*models.OrderItem
	bookings []*models.Booking
	notified map[int][]string
}

func (m *mockOrderCompleter) CompleteByPaymentIntent(ctx context.Context, intentID string) (*models.Order, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order == nil || m.order.PaymentIntentID == nil || *m.order.PaymentIntentID != intentID {
		return nil, false, nil
	}
	if m.order.Status == models.OrderCompleted {
		return m.order, false, nil
	}
	m.order.Status = models.OrderCompleted
	for _, b := range m.bookings {
		b.Status = models.BookingConfirmed
	}
	return m.order, true, nil
}

func (m *mockOrderCompleter) SetPaymentIntent(ctx context.Context, orderID int, intentID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.order != nil && m.order.ID == orderID && m.order.Status == models.OrderPending {
		m.order.PaymentIntentID = &intentID
		m.order.Status = models.OrderPaymentPending
	}
	return nil
}

func (m *mockOrderCompleter) GetItems(ctx context.Context, orderID int) ([]*models.OrderItem, error) {
	return m.items, nil
}

func (m *mockOrderCompleter) GetBookings(ctx context.Context, orderID int) ([]*models.Booking, error) {
	return m.bookings, nil
}

func (m *mockOrderCompleter) MarkBookingNotified(ctx context.Context, bookingID int, channel string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notified == nil {
		m.notified = make(map[int][]string)
	}
	m.notified[bookingID] = append(m.notified[bookingID], channel)
	return nil
}

type mockEmailSender struct {
	mu    sync.Mutex
	calls int
}

func (m *mockEmailSender) SendOrderConfirmation(order *models.Order, items []*models.OrderItem, bookings []*models.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return nil
}

func (m *mockEmailSender) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func paidOrder(intentID string) *models.Order {
	return &models.Order{
		ID:              1,
		Status:          models.OrderPaymentPending,
		TotalAmount:     9998,
		Currency:        "usd",
		PaymentIntentID: &intentID,
		ContactEmail:    "buyer@example.com",
		CartSessionKey:  "sess-1",
		CreatedAt:       time.Now(),
	}
}

func TestHandlePaymentSucceeded(t *testing.T) {
	ctx := context.Background()
	orders := &mockOrderCompleter{
		order: paidOrder("pi_1"),
		items: []*models.OrderItem{{ID: 1, OrderID: 1, ItemType: models.ItemTypeCourse, Title: "Course 1", Price: 4999, Quantity: 2}},
	}
	cart := newTestCartService(nil, nil)
	_, err := cart.AddItem(ctx, "sess-1", nil, courseItem(1, 4999, 2))
	require.NoError(t, err)

	email := &mockEmailSender{}
	f := NewOrderFinalizer(orders, cart, email, nil, zap.NewNop())

	require.NoError(t, f.HandlePaymentSucceeded(ctx, "pi_1"))
	f.Wait()

	assert.Equal(t, models.OrderCompleted, orders.order.Status)
	assert.Equal(t, 1, email.count())

	// The cart behind the order was cleared.
	count, err := cart.GetItemCount(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestHandlePaymentSucceededIsIdempotent(t *testing.T) {
	ctx := context.Background()
	orders := &mockOrderCompleter{order: paidOrder("pi_1")}
	cart := newTestCartService(nil, nil)
	email := &mockEmailSender{}
	f := NewOrderFinalizer(orders, cart, email, nil, zap.NewNop())

	// Webhooks are delivered at-least-once; a redelivery must not repeat
	// side effects.
	require.NoError(t, f.HandlePaymentSucceeded(ctx, "pi_1"))
	require.NoError(t, f.HandlePaymentSucceeded(ctx, "pi_1"))
	require.NoError(t, f.HandlePaymentSucceeded(ctx, "pi_1"))
	f.Wait()

	assert.Equal(t, models.OrderCompleted, orders.order.Status)
	assert.Equal(t, 1, email.count())
}

func TestHandlePaymentSucceededUnknownIntent(t *testing.T) {
	orders := &mockOrderCompleter{}
	email := &mockEmailSender{}
	f := NewOrderFinalizer(orders, newTestCartService(nil, nil), email, nil, zap.NewNop())

	// Unknown intents are acknowledged, not retried forever.
	require.NoError(t, f.HandlePaymentSucceeded(context.Background(), "pi_stranger"))
	f.Wait()
	assert.Zero(t, email.count())
}

func TestHandlePaymentSucceededConfirmsBookingsAndMarksNotified(t *testing.T) {
	ctx := context.Background()
	orders := &mockOrderCompleter{
		order: paidOrder("pi_1"),
		bookings: []*models.Booking{
			{ID: 10, EventID: 5, OrderID: 1, Status: models.BookingPending, Attendees: 2, TotalPrice: 50000},
		},
	}
	email := &mockEmailSender{}
	f := NewOrderFinalizer(orders, newTestCartService(nil, nil), email, nil, zap.NewNop())

	require.NoError(t, f.HandlePaymentSucceeded(ctx, "pi_1"))
	f.Wait()

	assert.Equal(t, models.BookingConfirmed, orders.bookings[0].Status)
	assert.Contains(t, orders.notified[10], "email")
}

func TestHandleCheckoutCompletedLinksIntentFirst(t *testing.T) {
	ctx := context.Background()
	order := paidOrder("")
	order.Status = models.OrderPending
	order.PaymentIntentID = nil
	orders := &mockOrderCompleter{order: order}
	email := &mockEmailSender{}
	f := NewOrderFinalizer(orders, newTestCartService(nil, nil), email, nil, zap.NewNop())

	// The session completed before the intent was ever linked; the event
	// carries both the order id and the intent.
	require.NoError(t, f.HandleCheckoutCompleted(ctx, 1, "pi_late"))
	f.Wait()

	assert.Equal(t, models.OrderCompleted, orders.order.Status)
	require.NotNil(t, orders.order.PaymentIntentID)
	assert.Equal(t, "pi_late", *orders.order.PaymentIntentID)
	assert.Equal(t, 1, email.count())
}

func TestHandlePaymentSucceededEmptyIntent(t *testing.T) {
	f := NewOrderFinalizer(&mockOrderCompleter{}, newTestCartService(nil, nil), nil, nil, zap.NewNop())
	assert.NoError(t, f.HandlePaymentSucceeded(context.Background(), ""))
}
