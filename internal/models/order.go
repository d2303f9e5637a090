package models

import (
	"regexp"
	"strings"
	"time"
)

// OrderStatus represents the status of an order
type OrderStatus string

const (
	OrderPending        OrderStatus = "pending"
	OrderPaymentPending OrderStatus = "payment_pending"
	OrderPaid           OrderStatus = "paid"
	OrderProcessing     OrderStatus = "processing"
	OrderCompleted      OrderStatus = "completed"
	OrderCancelled      OrderStatus = "cancelled"
	OrderRefunded       OrderStatus = "refunded"
)

// orderStatusTransitions defines the valid transitions. The happy path is
// linear (pending → payment_pending → paid → processing → completed);
// cancelled and refunded are terminal side branches.
var orderStatusTransitions = map[OrderStatus][]OrderStatus{
	OrderPending:        {OrderPaymentPending, OrderPaid, OrderCompleted, OrderCancelled},
	OrderPaymentPending: {OrderPaid, OrderCompleted, OrderCancelled},
	OrderPaid:           {OrderProcessing, OrderCompleted, OrderCancelled, OrderRefunded},
	OrderProcessing:     {OrderCompleted, OrderCancelled, OrderRefunded},
	OrderCompleted:      {OrderRefunded},
	OrderCancelled:      {},
	OrderRefunded:       {},
}

// CanTransitionTo returns true if moving from s to target is a valid
// status transition
func (s OrderStatus) CanTransitionTo(target OrderStatus) bool {
	for _, allowed := range orderStatusTransitions[s] {
		if allowed == target {
			return true
		}
	}
	return false
}

// IsTerminal returns true for statuses with no outgoing transitions
func (s OrderStatus) IsTerminal() bool {
	return len(orderStatusTransitions[s]) == 0
}

// Order represents a durable record of a purchase attempt. UserID is nil for
// guest checkout. PaymentIntentID is nil until the gateway call succeeds and
// unique once set; it is the only key the finalizer uses to locate the order.
type Order struct {
	ID              int         `json:"id" db:"id"`
	UserID          *int        `json:"user_id" db:"user_id"`
	Status          OrderStatus `json:"status" db:"status"`
	TotalAmount     int         `json:"total_amount" db:"total_amount"` // in cents
	Currency        string      `json:"currency" db:"currency"`
	PaymentIntentID *string     `json:"payment_intent_id" db:"stripe_payment_intent_id"`
	ContactEmail    string      `json:"contact_email" db:"contact_email"`
	ContactPhone    string      `json:"contact_phone,omitempty" db:"contact_phone"`
	CartSessionKey  string      `json:"-" db:"cart_session_key"`
	CreatedAt       time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt       time.Time   `json:"updated_at" db:"updated_at"`
}

// OrderItem belongs to exactly one order. For product-backed lines exactly
// one of CourseID / DigitalProductID is set; event lines carry neither and
// are paired with a Booking row instead. Title, price and quantity are
// captured at order-creation time and never change with the catalog.
type OrderItem struct {
	ID               int      `json:"id" db:"id"`
	OrderID          int      `json:"order_id" db:"order_id"`
	CourseID         *int     `json:"course_id,omitempty" db:"course_id"`
	DigitalProductID *int     `json:"digital_product_id,omitempty" db:"digital_product_id"`
	ItemType         ItemType `json:"item_type" db:"item_type"`
	Title            string   `json:"title" db:"title"`
	Price            int      `json:"price" db:"price"` // in cents
	Quantity         int      `json:"quantity" db:"quantity"`
}

// Validate checks the mutual-exclusion constraint on product references
func (i *OrderItem) Validate() error {
	if i.CourseID != nil && i.DigitalProductID != nil {
		return NewValidationError("order item cannot reference both a course and a digital product")
	}
	switch i.ItemType {
	case ItemTypeCourse:
		if i.CourseID == nil {
			return NewValidationError("course order item requires a course id")
		}
	case ItemTypeDigitalProduct:
		if i.DigitalProductID == nil {
			return NewValidationError("digital product order item requires a product id")
		}
	case ItemTypeEvent:
		if i.CourseID != nil || i.DigitalProductID != nil {
			return NewValidationError("event order item must not reference a course or product")
		}
	default:
		return NewValidationError("invalid item type: %q", i.ItemType)
	}
	if i.Quantity < 1 {
		return NewValidationError("quantity must be positive")
	}
	if i.Price < 0 {
		return NewValidationError("price cannot be negative")
	}
	return nil
}

// OrderLine is one line of an order creation request, taken from a
// validated cart snapshot.
type OrderLine struct {
	ItemType ItemType `json:"item_type"`
	ItemID   int      `json:"item_id"`
	Title    string   `json:"title"`
	Price    int      `json:"price"` // in cents
	Quantity int      `json:"quantity"`
}

// OrderCreateRequest represents the data needed to create a new order with
// its line items (and bookings for event lines) in one transaction.
type OrderCreateRequest struct {
	UserID         *int        `json:"user_id"`
	ContactEmail   string      `json:"contact_email"`
	ContactPhone   string      `json:"contact_phone,omitempty"`
	Currency       string      `json:"currency"`
	TotalAmount    int         `json:"total_amount"`
	CartSessionKey string      `json:"-"`
	Lines          []OrderLine `json:"lines"`
}

// Email validation regex for checkout contact addresses
var contactEmailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}$`)

// ValidateContactEmail validates a checkout contact email address
func ValidateContactEmail(email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return NewValidationError("contact email is required")
	}
	if len(email) > 255 {
		return NewValidationError("contact email must be less than 255 characters")
	}
	if !contactEmailRegex.MatchString(email) {
		return NewValidationError("contact email format is invalid")
	}
	return nil
}

var contactPhoneRegex = regexp.MustCompile(`^\+?[0-9]{7,15}$`)

// ValidateContactPhone validates an optional checkout phone number in E.164
// style. An empty phone is allowed.
func ValidateContactPhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !contactPhoneRegex.MatchString(phone) {
		return NewValidationError("contact phone format is invalid")
	}
	return nil
}

// Validate validates order creation data
func (req *OrderCreateRequest) Validate() error {
	if err := ValidateContactEmail(req.ContactEmail); err != nil {
		return err
	}
	if err := ValidateContactPhone(req.ContactPhone); err != nil {
		return err
	}
	if req.TotalAmount < 0 {
		return NewValidationError("total amount cannot be negative")
	}
	if req.Currency == "" {
		return NewValidationError("currency is required")
	}
	if len(req.Lines) == 0 {
		return NewValidationError("order requires at least one line")
	}
	for _, line := range req.Lines {
		if !line.ItemType.IsValid() {
			return NewValidationError("invalid item type: %q", line.ItemType)
		}
		if line.ItemID <= 0 {
			return NewValidationError("item id is required")
		}
		if line.Quantity < 1 {
			return NewValidationError("quantity must be positive")
		}
		if line.Price < 0 {
			return NewValidationError("price cannot be negative")
		}
	}
	return nil
}

// IsPending returns true if the order is pending
func (o *Order) IsPending() bool {
	return o.Status == OrderPending
}

// IsCompleted returns true if the order is completed
func (o *Order) IsCompleted() bool {
	return o.Status == OrderCompleted
}

// HasPaymentIntent returns true once the gateway session has been linked
func (o *Order) HasPaymentIntent() bool {
	return o.PaymentIntentID != nil && *o.PaymentIntentID != ""
}

// CanBeCancelled returns true if the order can be cancelled
func (o *Order) CanBeCancelled() bool {
	return o.Status.CanTransitionTo(OrderCancelled)
}

// IsStale reports whether a pending order without a payment intent is older
// than the given cutoff. These orders never reached the gateway and are
// swept by the reconciliation worker.
func (o *Order) IsStale(maxAge time.Duration) bool {
	if o.Status != OrderPending || o.HasPaymentIntent() {
		return false
	}
	return time.Since(o.CreatedAt) > maxAge
}

// TotalAmountInCurrency returns the total amount in major units as a float
func (o *Order) TotalAmountInCurrency() float64 {
	return float64(o.TotalAmount) / 100.0
}
