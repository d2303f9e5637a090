package models

import "time"

// Course represents a sellable course
type Course struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Slug      string    `json:"slug" db:"slug"`
	Price     int       `json:"price" db:"price"` // in cents
	ImageURL  string    `json:"image_url" db:"image_url"`
	Published bool      `json:"published" db:"published"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DigitalProduct represents a sellable digital download
type DigitalProduct struct {
	ID        int       `json:"id" db:"id"`
	Title     string    `json:"title" db:"title"`
	Slug      string    `json:"slug" db:"slug"`
	Price     int       `json:"price" db:"price"` // in cents
	ImageURL  string    `json:"image_url" db:"image_url"`
	Published bool      `json:"published" db:"published"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// Event represents a bookable event with limited capacity
type Event struct {
	ID             int       `json:"id" db:"id"`
	Title          string    `json:"title" db:"title"`
	Slug           string    `json:"slug" db:"slug"`
	Price          int       `json:"price" db:"price"` // in cents
	ImageURL       string    `json:"image_url" db:"image_url"`
	Published      bool      `json:"published" db:"published"`
	StartsAt       time.Time `json:"starts_at" db:"starts_at"`
	AvailableSpots int       `json:"available_spots" db:"available_spots"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// HasStarted returns true if the event start time has passed
func (e *Event) HasStarted() bool {
	return !e.StartsAt.After(time.Now())
}

// HasCapacity returns true if at least n spots are available
func (e *Event) HasCapacity(n int) bool {
	return e.AvailableSpots >= n
}

// CatalogItem is the uniform catalog view the cart validates lines against.
// StartsAt and AvailableSpots are set only for events.
type CatalogItem struct {
	ItemType       ItemType   `json:"item_type"`
	ItemID         int        `json:"item_id"`
	Title          string     `json:"title"`
	Slug           string     `json:"slug"`
	Price          int        `json:"price"` // in cents
	ImageURL       string     `json:"image_url"`
	Published      bool       `json:"published"`
	StartsAt       *time.Time `json:"starts_at,omitempty"`
	AvailableSpots *int       `json:"available_spots,omitempty"`
}

// IsPurchasable reports whether the item can currently fund a cart line for
// the requested quantity. Unpublished items and started or full events are
// not purchasable.
func (ci *CatalogItem) IsPurchasable(quantity int) bool {
	if !ci.Published {
		return false
	}
	if ci.ItemType == ItemTypeEvent {
		if ci.StartsAt != nil && !ci.StartsAt.After(time.Now()) {
			return false
		}
		if ci.AvailableSpots != nil && *ci.AvailableSpots < quantity {
			return false
		}
	}
	return true
}
