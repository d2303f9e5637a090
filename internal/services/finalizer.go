package services

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"coursemarket/internal/models"
)

// OrderCompleter is the slice of the order repository the finalizer needs
type OrderCompleter interface {
	CompleteByPaymentIntent(ctx context.Context, paymentIntentID string) (*models.Order, bool, error)
	SetPaymentIntent(ctx context.Context, orderID int, paymentIntentID string) error
	GetItems(ctx context.Context, orderID int) ([]*models.OrderItem, error)
	GetBookings(ctx context.Context, orderID int) ([]*models.Booking, error)
	MarkBookingNotified(ctx context.Context, bookingID int, channel string) error
}

// OrderFinalizer reacts to payment confirmations from the gateway's
// webhooks. Completion is idempotent: the status-guarded update in the
// repository decides a single winner per payment intent, and only the
// winner clears the cart and dispatches notifications, so redelivered
// webhooks are acknowledged without side effects.
type OrderFinalizer struct {
	orders   OrderCompleter
	cart     *CartService
	email    EmailSender
	whatsapp WhatsAppNotifier
	logger   *zap.Logger

	wg sync.WaitGroup
}

// NewOrderFinalizer creates a new order finalizer. email and whatsapp may
// be nil when the corresponding channel is not configured.
func NewOrderFinalizer(
	orders OrderCompleter,
	cart *CartService,
	email EmailSender,
	whatsapp WhatsAppNotifier,
	logger *zap.Logger,
) *OrderFinalizer {
	return &OrderFinalizer{
		orders:   orders,
		cart:     cart,
		email:    email,
		whatsapp: whatsapp,
		logger:   logger,
	}
}

// HandlePaymentSucceeded marks the order behind the payment intent as paid
// and confirms its bookings. Unknown intents are logged and swallowed so
// the webhook is still acknowledged; only transient database errors
// propagate, which makes the gateway retry the delivery.
func (f *OrderFinalizer) HandlePaymentSucceeded(ctx context.Context, paymentIntentID string) error {
	if paymentIntentID == "" {
		f.logger.Warn("payment confirmation without a payment intent id")
		return nil
	}

	order, won, err := f.orders.CompleteByPaymentIntent(ctx, paymentIntentID)
	if err != nil {
		return err
	}
	if order == nil {
		f.logger.Warn("payment confirmation for unknown payment intent",
			zap.String("payment_intent_id", paymentIntentID))
		return nil
	}
	if !won {
		f.logger.Info("payment confirmation already processed",
			zap.Int("order_id", order.ID),
			zap.String("payment_intent_id", paymentIntentID))
		return nil
	}

	f.logger.Info("order paid",
		zap.Int("order_id", order.ID),
		zap.String("payment_intent_id", paymentIntentID))

	if order.CartSessionKey != "" {
		if err := f.cart.ClearCart(ctx, order.CartSessionKey); err != nil {
			// The cart eventually expires with its TTL either way.
			f.logger.Warn("failed to clear cart after payment",
				zap.Int("order_id", order.ID), zap.Error(err))
		}
	}

	f.wg.Add(1)
	go f.dispatchNotifications(order)

	return nil
}

// HandleCheckoutCompleted handles the gateway's session-completion event,
// which may arrive before the payment intent was linked to the order. It
// links the intent first, then completes as usual.
func (f *OrderFinalizer) HandleCheckoutCompleted(ctx context.Context, orderID int, paymentIntentID string) error {
	if paymentIntentID == "" {
		f.logger.Warn("checkout completion without a payment intent id",
			zap.Int("order_id", orderID))
		return nil
	}

	if orderID > 0 {
		// Only takes effect if the order is still awaiting the link; a
		// linked or finished order is left alone.
		if err := f.orders.SetPaymentIntent(ctx, orderID, paymentIntentID); err != nil {
			f.logger.Warn("failed to link payment intent from checkout event",
				zap.Int("order_id", orderID), zap.Error(err))
		}
	}

	return f.HandlePaymentSucceeded(ctx, paymentIntentID)
}

// Wait blocks until in-flight notification dispatches finish. Used on
// shutdown and in tests.
func (f *OrderFinalizer) Wait() {
	f.wg.Wait()
}

// dispatchNotifications sends the confirmation email and per-booking
// WhatsApp messages. Failures are logged and never affect the completed
// order.
func (f *OrderFinalizer) dispatchNotifications(order *models.Order) {
	defer f.wg.Done()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	items, err := f.orders.GetItems(ctx, order.ID)
	if err != nil {
		f.logger.Error("failed to load order items for notification",
			zap.Int("order_id", order.ID), zap.Error(err))
		return
	}
	bookings, err := f.orders.GetBookings(ctx, order.ID)
	if err != nil {
		f.logger.Error("failed to load bookings for notification",
			zap.Int("order_id", order.ID), zap.Error(err))
		return
	}

	if f.email != nil {
		if err := f.email.SendOrderConfirmation(order, items, bookings); err != nil {
			f.logger.Error("failed to send order confirmation email",
				zap.Int("order_id", order.ID), zap.Error(err))
		} else {
			for _, b := range bookings {
				if err := f.orders.MarkBookingNotified(ctx, b.ID, "email"); err != nil {
					f.logger.Warn("failed to mark booking email-notified",
						zap.Int("booking_id", b.ID), zap.Error(err))
				}
			}
		}
	}

	if f.whatsapp != nil && order.ContactPhone != "" {
		for _, b := range bookings {
			if err := f.whatsapp.SendBookingConfirmation(order, b); err != nil {
				f.logger.Error("failed to send whatsapp booking confirmation",
					zap.Int("booking_id", b.ID), zap.Error(err))
				continue
			}
			if err := f.orders.MarkBookingNotified(ctx, b.ID, "whatsapp"); err != nil {
				f.logger.Warn("failed to mark booking whatsapp-notified",
					zap.Int("booking_id", b.ID), zap.Error(err))
			}
		}
	}
}
