package repositories

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"coursemarket/internal/models"
)

// OrderRepository handles order, order item and booking persistence
type OrderRepository struct {
	db *sql.DB
}

// NewOrderRepository creates a new order repository
func NewOrderRepository(db *sql.DB) *OrderRepository {
	return &OrderRepository{db: db}
}

const orderColumns = `id, user_id, status, total_amount, currency, stripe_payment_intent_id,
	contact_email, contact_phone, cart_session_key, created_at, updated_at`

func scanOrder(row interface{ Scan(...interface{}) error }) (*models.Order, error) {
	order := &models.Order{}
	var userID sql.NullInt64
	var intentID sql.NullString

	err := row.Scan(
		&order.ID,
		&userID,
		&order.Status,
		&order.TotalAmount,
		&order.Currency,
		&intentID,
		&order.ContactEmail,
		&order.ContactPhone,
		&order.CartSessionKey,
		&order.CreatedAt,
		&order.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if userID.Valid {
		id := int(userID.Int64)
		order.UserID = &id
	}
	if intentID.Valid {
		order.PaymentIntentID = &intentID.String
	}
	return order, nil
}

// CreateFromCart creates an order with its line items and event bookings in
// one transaction. Event lines atomically decrement the event's available
// spots; if any line fails the capacity check the whole order rolls back and
// no partial rows persist.
func (r *OrderRepository) CreateFromCart(ctx context.Context, req *models.OrderCreateRequest) (*models.Order, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, models.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	now := time.Now()
	row := tx.QueryRowContext(ctx, `
		INSERT INTO orders (user_id, status, total_amount, currency, contact_email, contact_phone, cart_session_key, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING `+orderColumns,
		nullInt(req.UserID), models.OrderPending, req.TotalAmount, req.Currency,
		req.ContactEmail, req.ContactPhone, req.CartSessionKey, now, now)

	order, err := scanOrder(row)
	if err != nil {
		return nil, models.NewDatabaseError("failed to create order", err)
	}

	for _, line := range req.Lines {
		var courseID, productID *int
		switch line.ItemType {
		case models.ItemTypeCourse:
			id := line.ItemID
			courseID = &id
		case models.ItemTypeDigitalProduct:
			id := line.ItemID
			productID = &id
		case models.ItemTypeEvent:
			// Atomic check-and-decrement: the guard keeps available_spots
			// from going negative under concurrent checkouts.
			result, err := tx.ExecContext(ctx, `
				UPDATE events
				SET available_spots = available_spots - $2
				WHERE id = $1 AND available_spots >= $2`,
				line.ItemID, line.Quantity)
			if err != nil {
				return nil, models.NewDatabaseError("failed to reserve event capacity", err)
			}
			affected, err := result.RowsAffected()
			if err != nil {
				return nil, models.NewDatabaseError("failed to reserve event capacity", err)
			}
			if affected == 0 {
				return nil, models.NewConflictError("not enough available spots for event %d", line.ItemID)
			}
		}

		_, err = tx.ExecContext(ctx, `
			INSERT INTO order_items (order_id, course_id, digital_product_id, item_type, title, price, quantity)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			order.ID, nullInt(courseID), nullInt(productID), line.ItemType, line.Title, line.Price, line.Quantity)
		if err != nil {
			return nil, models.NewDatabaseError("failed to create order item", err)
		}

		if line.ItemType == models.ItemTypeEvent {
			_, err = tx.ExecContext(ctx, `
				INSERT INTO bookings (user_id, event_id, order_id, status, attendees, total_price)
				VALUES ($1, $2, $3, $4, $5, $6)`,
				nullInt(req.UserID), line.ItemID, order.ID, models.BookingPending,
				line.Quantity, line.Price*line.Quantity)
			if err != nil {
				return nil, models.NewDatabaseError("failed to create booking", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, models.NewDatabaseError("failed to commit order creation", err)
	}

	return order, nil
}

// GetByID retrieves an order by ID
func (r *OrderRepository) GetByID(ctx context.Context, id int) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`, id)

	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, models.NewNotFoundError("order %d not found", id)
		}
		return nil, models.NewDatabaseError("failed to get order", err)
	}
	return order, nil
}

// GetByPaymentIntent retrieves an order by its payment intent id. Returns
// (nil, nil) when no order matches: an unknown intent is a benign condition
// for the webhook path, not an error.
func (r *OrderRepository) GetByPaymentIntent(ctx context.Context, intentID string) (*models.Order, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE stripe_payment_intent_id = $1`, intentID)

	order, err := scanOrder(row)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, models.NewDatabaseError("failed to get order by payment intent", err)
	}
	return order, nil
}

// SetPaymentIntent links a gateway payment intent to a pending order and
// moves it to payment_pending. The status guard makes the two-phase linkage
// explicit: only an order still waiting for its gateway session can be linked.
func (r *OrderRepository) SetPaymentIntent(ctx context.Context, orderID int, intentID string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE orders
		SET stripe_payment_intent_id = $2, status = $3, updated_at = $4
		WHERE id = $1 AND status = $5`,
		orderID, intentID, models.OrderPaymentPending, time.Now(), models.OrderPending)
	if err != nil {
		return models.NewDatabaseError("failed to set payment intent", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return models.NewDatabaseError("failed to set payment intent", err)
	}
	if affected == 0 {
		return models.NewNotFoundError("no pending order with id %d", orderID)
	}
	return nil
}

// CompleteByPaymentIntent transitions the order with the given intent id to
// completed and confirms its bookings, in one transaction. The status-guarded
// update closes the race between concurrent webhook deliveries: only the
// delivery whose update reports a row has won. Returns (nil, false, nil) when
// no order carries the intent id, and (order, false, nil) when the order was
// already in a terminal state.
func (r *OrderRepository) CompleteByPaymentIntent(ctx context.Context, intentID string) (*models.Order, bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, models.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE stripe_payment_intent_id = $1
		  AND status NOT IN ($4, $5, $6)
		RETURNING `+orderColumns,
		intentID, models.OrderCompleted, time.Now(),
		models.OrderCompleted, models.OrderCancelled, models.OrderRefunded)

	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		// Either an unknown intent or a replayed delivery; look up which.
		existing, lookupErr := r.GetByPaymentIntent(ctx, intentID)
		if lookupErr != nil {
			return nil, false, lookupErr
		}
		return existing, false, nil
	}
	if err != nil {
		return nil, false, models.NewDatabaseError("failed to complete order", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE bookings SET status = $2 WHERE order_id = $1 AND status = $3`,
		order.ID, models.BookingConfirmed, models.BookingPending)
	if err != nil {
		return nil, false, models.NewDatabaseError("failed to confirm bookings", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, false, models.NewDatabaseError("failed to commit order completion", err)
	}

	return order, true, nil
}

// GetItems retrieves the line items of an order
func (r *OrderRepository) GetItems(ctx context.Context, orderID int) ([]*models.OrderItem, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, course_id, digital_product_id, item_type, title, price, quantity
		FROM order_items WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, models.NewDatabaseError("failed to get order items", err)
	}
	defer rows.Close()

	var items []*models.OrderItem
	for rows.Next() {
		item := &models.OrderItem{}
		var courseID, productID sql.NullInt64
		err := rows.Scan(&item.ID, &item.OrderID, &courseID, &productID,
			&item.ItemType, &item.Title, &item.Price, &item.Quantity)
		if err != nil {
			return nil, models.NewDatabaseError("failed to scan order item", err)
		}
		if courseID.Valid {
			id := int(courseID.Int64)
			item.CourseID = &id
		}
		if productID.Valid {
			id := int(productID.Int64)
			item.DigitalProductID = &id
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDatabaseError("error iterating order items", err)
	}
	return items, nil
}

// GetBookings retrieves the bookings of an order
func (r *OrderRepository) GetBookings(ctx context.Context, orderID int) ([]*models.Booking, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, event_id, order_id, status, attendees, total_price, email_notified, whatsapp_notified
		FROM bookings WHERE order_id = $1 ORDER BY id`, orderID)
	if err != nil {
		return nil, models.NewDatabaseError("failed to get bookings", err)
	}
	defer rows.Close()

	var bookings []*models.Booking
	for rows.Next() {
		booking := &models.Booking{}
		var userID sql.NullInt64
		err := rows.Scan(&booking.ID, &userID, &booking.EventID, &booking.OrderID,
			&booking.Status, &booking.Attendees, &booking.TotalPrice,
			&booking.EmailNotified, &booking.WhatsappNotified)
		if err != nil {
			return nil, models.NewDatabaseError("failed to scan booking", err)
		}
		if userID.Valid {
			id := int(userID.Int64)
			booking.UserID = &id
		}
		bookings = append(bookings, booking)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDatabaseError("error iterating bookings", err)
	}
	return bookings, nil
}

// MarkBookingNotified flips a booking's notification flag for the given
// channel ("email" or "whatsapp")
func (r *OrderRepository) MarkBookingNotified(ctx context.Context, bookingID int, channel string) error {
	var column string
	switch channel {
	case "email":
		column = "email_notified"
	case "whatsapp":
		column = "whatsapp_notified"
	default:
		return models.NewValidationError("unknown notification channel: %q", channel)
	}

	_, err := r.db.ExecContext(ctx,
		fmt.Sprintf("UPDATE bookings SET %s = TRUE WHERE id = $1", column), bookingID)
	if err != nil {
		return models.NewDatabaseError("failed to mark booking notified", err)
	}
	return nil
}

// HasPurchased reports whether the user already owns the given item through a
// paid or completed order. Used by the duplicate-purchase guard; events are
// excluded because they can be booked repeatedly.
func (r *OrderRepository) HasPurchased(ctx context.Context, userID int, itemType models.ItemType, itemID int) (bool, error) {
	var column string
	switch itemType {
	case models.ItemTypeCourse:
		column = "course_id"
	case models.ItemTypeDigitalProduct:
		column = "digital_product_id"
	default:
		return false, nil
	}

	var exists bool
	err := r.db.QueryRowContext(ctx, fmt.Sprintf(`
		SELECT EXISTS(
			SELECT 1 FROM order_items oi
			JOIN orders o ON oi.order_id = o.id
			WHERE o.user_id = $1 AND oi.%s = $2 AND o.status IN ($3, $4, $5)
		)`, column),
		userID, itemID, models.OrderPaid, models.OrderProcessing, models.OrderCompleted).Scan(&exists)
	if err != nil {
		return false, models.NewDatabaseError("failed to check purchase history", err)
	}
	return exists, nil
}

// GetByUser retrieves orders for a user, newest first, with the total count
func (r *OrderRepository) GetByUser(ctx context.Context, userID int, limit, offset int) ([]*models.Order, int, error) {
	if limit <= 0 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM orders WHERE user_id = $1", userID).Scan(&total)
	if err != nil {
		return nil, 0, models.NewDatabaseError("failed to count orders", err)
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`, userID, limit, offset)
	if err != nil {
		return nil, 0, models.NewDatabaseError("failed to list orders", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, 0, models.NewDatabaseError("failed to scan order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, models.NewDatabaseError("error iterating orders", err)
	}
	return orders, total, nil
}

// FindStalePending retrieves pending orders older than the cutoff that never
// received a payment intent. These never reached the gateway and can be
// cancelled safely.
func (r *OrderRepository) FindStalePending(ctx context.Context, olderThan time.Duration) ([]*models.Order, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+orderColumns+`
		FROM orders
		WHERE status = $1 AND stripe_payment_intent_id IS NULL AND created_at < $2
		ORDER BY created_at ASC`,
		models.OrderPending, time.Now().Add(-olderThan))
	if err != nil {
		return nil, models.NewDatabaseError("failed to find stale orders", err)
	}
	defer rows.Close()

	var orders []*models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, models.NewDatabaseError("failed to scan stale order", err)
		}
		orders = append(orders, order)
	}
	if err := rows.Err(); err != nil {
		return nil, models.NewDatabaseError("error iterating stale orders", err)
	}
	return orders, nil
}

// CancelStale cancels a stale pending order and restores the event capacity
// held by its bookings, in one transaction. The status guard makes the cancel
// a no-op if the order progressed in the meantime.
func (r *OrderRepository) CancelStale(ctx context.Context, orderID int) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return models.NewDatabaseError("failed to begin transaction", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE orders
		SET status = $2, updated_at = $3
		WHERE id = $1 AND status = $4 AND stripe_payment_intent_id IS NULL`,
		orderID, models.OrderCancelled, time.Now(), models.OrderPending)
	if err != nil {
		return models.NewDatabaseError("failed to cancel order", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return models.NewDatabaseError("failed to cancel order", err)
	}
	if affected == 0 {
		return nil
	}

	rows, err := tx.QueryContext(ctx, `
		SELECT id, event_id, attendees FROM bookings
		WHERE order_id = $1 AND status = $2`,
		orderID, models.BookingPending)
	if err != nil {
		return models.NewDatabaseError("failed to load bookings for cancellation", err)
	}

	type held struct{ id, eventID, attendees int }
	var holds []held
	for rows.Next() {
		var h held
		if err := rows.Scan(&h.id, &h.eventID, &h.attendees); err != nil {
			rows.Close()
			return models.NewDatabaseError("failed to scan booking", err)
		}
		holds = append(holds, h)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return models.NewDatabaseError("error iterating bookings", err)
	}

	for _, h := range holds {
		_, err := tx.ExecContext(ctx,
			"UPDATE events SET available_spots = available_spots + $2 WHERE id = $1",
			h.eventID, h.attendees)
		if err != nil {
			return models.NewDatabaseError("failed to restore event capacity", err)
		}
		_, err = tx.ExecContext(ctx,
			"UPDATE bookings SET status = $2 WHERE id = $1",
			h.id, models.BookingCancelled)
		if err != nil {
			return models.NewDatabaseError("failed to cancel booking", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return models.NewDatabaseError("failed to commit cancellation", err)
	}
	return nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}
