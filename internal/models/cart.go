package models

import (
	"math"
	"time"
)

// ItemType identifies which catalog table a cart line refers to.
type ItemType string

const (
	ItemTypeCourse         ItemType = "course"
	ItemTypeEvent          ItemType = "event"
	ItemTypeDigitalProduct ItemType = "digital_product"
)

// IsValid returns true for a known item type
func (t ItemType) IsValid() bool {
	switch t {
	case ItemTypeCourse, ItemTypeEvent, ItemTypeDigitalProduct:
		return true
	default:
		return false
	}
}

// MaxItemQuantity is the per-line quantity ceiling. Adds that would push a
// line past it are rejected, not truncated.
const MaxItemQuantity = 10

// CartItem represents one line in the shopping cart. Title, slug and image
// URL are a display cache; unit price is a snapshot taken at add time and is
// never authoritative — the cart must be re-validated before funding an order.
type CartItem struct {
	ItemType  ItemType `json:"item_type"`
	ItemID    int      `json:"item_id"`
	Title     string   `json:"title"`
	Slug      string   `json:"slug"`
	ImageURL  string   `json:"image_url,omitempty"`
	UnitPrice int      `json:"unit_price"` // in cents
	Quantity  int      `json:"quantity"`
}

// Validate validates the cart item shape
func (i *CartItem) Validate() error {
	if !i.ItemType.IsValid() {
		return NewValidationError("invalid item type: %q", i.ItemType)
	}
	if i.ItemID <= 0 {
		return NewValidationError("item id is required")
	}
	if i.UnitPrice < 0 {
		return NewValidationError("unit price cannot be negative")
	}
	if i.Quantity < 1 || i.Quantity > MaxItemQuantity {
		return NewValidationError("quantity must be between 1 and %d", MaxItemQuantity)
	}
	return nil
}

// Subtotal returns the line subtotal in cents
func (i *CartItem) Subtotal() int {
	return i.UnitPrice * i.Quantity
}

// Cart represents a session-scoped shopping cart. It lives in the key-value
// store under the session key and expires on a sliding TTL.
type Cart struct {
	SessionKey string     `json:"session_key"`
	Items      []CartItem `json:"items"`
	Subtotal   int        `json:"subtotal"`   // in cents
	Tax        int        `json:"tax"`        // in cents
	Total      int        `json:"total"`      // in cents
	ItemCount  int        `json:"item_count"` // sum of quantities
	UpdatedAt  time.Time  `json:"updated_at"`
}

// NewCart returns an empty cart for the given session key
func NewCart(sessionKey string) *Cart {
	return &Cart{
		SessionKey: sessionKey,
		Items:      []CartItem{},
	}
}

// IsEmpty returns true if the cart has no items
func (c *Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

// FindItem returns the index of the line with the given (type, id) key,
// or -1 if not present
func (c *Cart) FindItem(itemType ItemType, itemID int) int {
	for i, item := range c.Items {
		if item.ItemType == itemType && item.ItemID == itemID {
			return i
		}
	}
	return -1
}

// RemoveItemAt removes the line at index i, preserving order of the rest
func (c *Cart) RemoveItemAt(i int) {
	c.Items = append(c.Items[:i], c.Items[i+1:]...)
}

// Recalculate recomputes subtotal, tax, total and item count from the lines.
// Tax is rounded to the nearest cent. The calculation is pure: recomputing
// with the same lines and rate always yields the same result.
func (c *Cart) Recalculate(taxRate float64) {
	subtotal := 0
	count := 0
	for _, item := range c.Items {
		subtotal += item.Subtotal()
		count += item.Quantity
	}
	c.Subtotal = subtotal
	c.Tax = int(math.Round(float64(subtotal) * taxRate))
	c.Total = c.Subtotal + c.Tax
	c.ItemCount = count
}
