package models

// BookingStatus represents the status of an event booking
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking is the event-specific half of an order line. It carries the
// attendee count whose capacity was decremented when the order was created.
// The notified flags track which confirmation channels have gone out.
type Booking struct {
	ID               int           `json:"id" db:"id"`
	UserID           *int          `json:"user_id" db:"user_id"`
	EventID          int           `json:"event_id" db:"event_id"`
	OrderID          int           `json:"order_id" db:"order_id"`
	Status           BookingStatus `json:"status" db:"status"`
	Attendees        int           `json:"attendees" db:"attendees"`
	TotalPrice       int           `json:"total_price" db:"total_price"` // in cents
	EmailNotified    bool          `json:"email_notified" db:"email_notified"`
	WhatsappNotified bool          `json:"whatsapp_notified" db:"whatsapp_notified"`
}

// Validate validates the booking data
func (b *Booking) Validate() error {
	if b.EventID <= 0 {
		return NewValidationError("event id is required")
	}
	if b.Attendees < 1 {
		return NewValidationError("attendees must be positive")
	}
	if b.TotalPrice < 0 {
		return NewValidationError("total price cannot be negative")
	}
	return nil
}

// IsConfirmed returns true if the booking is confirmed
func (b *Booking) IsConfirmed() bool {
	return b.Status == BookingConfirmed
}
