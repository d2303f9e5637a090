package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coursemarket/internal/cartstore"
	"coursemarket/internal/models"
)

// CatalogReader provides the live catalog view used for cart re-validation
type CatalogReader interface {
	FindItem(ctx context.Context, itemType models.ItemType, itemID int) (*models.CatalogItem, error)
}

// PurchaseHistory answers the duplicate-purchase guard from order history
type PurchaseHistory interface {
	HasPurchased(ctx context.Context, userID int, itemType models.ItemType, itemID int) (bool, error)
}

// CartService owns the per-session cart document, the single mutable
// pre-order state. Updates are read-modify-write with no cross-request
// locking: the last writer wins. A single session is driven by one browser
// in practice, so concurrent writes to the same cart are rare; merge and
// clear are convergent either way. This is a known, accepted race.
type CartService struct {
	store   cartstore.Store
	catalog CatalogReader
	history PurchaseHistory
	ttl     time.Duration
	taxRate float64
	logger  *zap.Logger
}

// NewCartService creates a new cart service
func NewCartService(
	store cartstore.Store,
	catalog CatalogReader,
	history PurchaseHistory,
	ttl time.Duration,
	taxRate float64,
	logger *zap.Logger,
) *CartService {
	return &CartService{
		store:   store,
		catalog: catalog,
		history: history,
		ttl:     ttl,
		taxRate: taxRate,
		logger:  logger,
	}
}

// CartValidation is the outcome of re-validating a cart against the catalog.
// Valid is true only if no line had to be removed; price corrections alone
// surface as warnings and do not invalidate.
type CartValidation struct {
	Valid    bool         `json:"valid"`
	Errors   []string     `json:"errors"`
	Warnings []string     `json:"warnings,omitempty"`
	Cart     *models.Cart `json:"cart"`
}

func cartKey(sessionKey string) string {
	return "cart:session:" + sessionKey
}

// load reads the cart document. Returns (nil, nil) when no cart exists.
func (s *CartService) load(ctx context.Context, sessionKey string) (*models.Cart, error) {
	data, err := s.store.Get(ctx, cartKey(sessionKey))
	if err != nil {
		return nil, models.NewDatabaseError("failed to read cart", err)
	}
	if data == nil {
		return nil, nil
	}

	var cart models.Cart
	if err := json.Unmarshal(data, &cart); err != nil {
		return nil, models.NewDatabaseError("failed to decode cart", err)
	}
	return &cart, nil
}

// save persists the cart document and resets its TTL
func (s *CartService) save(ctx context.Context, cart *models.Cart) error {
	cart.UpdatedAt = time.Now()
	data, err := json.Marshal(cart)
	if err != nil {
		return models.NewDatabaseError("failed to encode cart", err)
	}
	if err := s.store.Set(ctx, cartKey(cart.SessionKey), data, s.ttl); err != nil {
		return models.NewDatabaseError("failed to save cart", err)
	}
	return nil
}

// AddItem validates the item and adds it to the session's cart, creating the
// cart on first add. Adding an existing (type, id) line increments its
// quantity; pushing a line past the per-line maximum is rejected, not
// truncated. Users who already own a course or digital product get a
// ConflictError.
func (s *CartService) AddItem(ctx context.Context, sessionKey string, userID *int, item models.CartItem) (*models.Cart, error) {
	if err := item.Validate(); err != nil {
		return nil, err
	}

	if userID != nil && item.ItemType != models.ItemTypeEvent {
		owned, err := s.history.HasPurchased(ctx, *userID, item.ItemType, item.ItemID)
		if err != nil {
			return nil, err
		}
		if owned {
			return nil, models.NewConflictError("you already own this %s", item.ItemType)
		}
	}

	cart, err := s.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = models.NewCart(sessionKey)
	}

	if idx := cart.FindItem(item.ItemType, item.ItemID); idx >= 0 {
		newQuantity := cart.Items[idx].Quantity + item.Quantity
		if newQuantity > models.MaxItemQuantity {
			return nil, models.NewValidationError(
				"cannot have more than %d of the same item", models.MaxItemQuantity)
		}
		cart.Items[idx].Quantity = newQuantity
	} else {
		cart.Items = append(cart.Items, item)
	}

	cart.Recalculate(s.taxRate)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}

	s.logger.Debug("item added to cart",
		zap.String("session_key", sessionKey),
		zap.String("item_type", string(item.ItemType)),
		zap.Int("item_id", item.ItemID))

	return cart, nil
}

// GetCart returns the session's cart, refreshing its TTL. An absent cart is
// returned as the normalized empty shape, never nil.
func (s *CartService) GetCart(ctx context.Context, sessionKey string) (*models.Cart, error) {
	cart, err := s.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		empty := models.NewCart(sessionKey)
		empty.Recalculate(s.taxRate)
		return empty, nil
	}

	if err := s.store.Touch(ctx, cartKey(sessionKey), s.ttl); err != nil {
		s.logger.Warn("failed to refresh cart TTL", zap.Error(err))
	}
	return cart, nil
}

// UpdateItemQuantity sets the quantity of an existing line. Quantity zero
// removes the line.
func (s *CartService) UpdateItemQuantity(ctx context.Context, sessionKey string, itemType models.ItemType, itemID, quantity int) (*models.Cart, error) {
	if quantity < 0 || quantity > models.MaxItemQuantity {
		return nil, models.NewValidationError(
			"quantity must be between 0 and %d", models.MaxItemQuantity)
	}

	cart, err := s.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return nil, models.NewNotFoundError("cart not found")
	}

	idx := cart.FindItem(itemType, itemID)
	if idx < 0 {
		return nil, models.NewNotFoundError("%s %d is not in the cart", itemType, itemID)
	}

	if quantity == 0 {
		cart.RemoveItemAt(idx)
	} else {
		cart.Items[idx].Quantity = quantity
	}

	cart.Recalculate(s.taxRate)
	if err := s.save(ctx, cart); err != nil {
		return nil, err
	}
	return cart, nil
}

// RemoveItem removes a line from the cart, leaving other lines untouched
func (s *CartService) RemoveItem(ctx context.Context, sessionKey string, itemType models.ItemType, itemID int) (*models.Cart, error) {
	return s.UpdateItemQuantity(ctx, sessionKey, itemType, itemID, 0)
}

// ClearCart deletes the cart document entirely. Clearing an absent cart
// succeeds.
func (s *CartService) ClearCart(ctx context.Context, sessionKey string) error {
	if err := s.store.Delete(ctx, cartKey(sessionKey)); err != nil {
		return models.NewDatabaseError("failed to clear cart", err)
	}
	return nil
}

// GetItemCount returns the sum of line quantities, 0 for an absent cart
func (s *CartService) GetItemCount(ctx context.Context, sessionKey string) (int, error) {
	cart, err := s.load(ctx, sessionKey)
	if err != nil {
		return 0, err
	}
	if cart == nil {
		return 0, nil
	}

	if err := s.store.Touch(ctx, cartKey(sessionKey), s.ttl); err != nil {
		s.logger.Warn("failed to refresh cart TTL", zap.Error(err))
	}
	return cart.ItemCount, nil
}

// ValidateCart re-reads the catalog for every line. Lines whose item has
// vanished, is unpublished, or (for events) has started or lacks capacity
// are removed and reported as errors, one per removed line. Stale price
// snapshots are corrected in place and reported as warnings; stale display
// fields (title, slug, image) are refreshed silently. The corrected cart is
// persisted before returning.
func (s *CartService) ValidateCart(ctx context.Context, sessionKey string) (*CartValidation, error) {
	cart, err := s.load(ctx, sessionKey)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		empty := models.NewCart(sessionKey)
		empty.Recalculate(s.taxRate)
		return &CartValidation{Valid: true, Errors: []string{}, Cart: empty}, nil
	}

	validation := &CartValidation{Valid: true, Errors: []string{}}
	kept := cart.Items[:0]
	changed := false

	for _, item := range cart.Items {
		entry, err := s.catalog.FindItem(ctx, item.ItemType, item.ItemID)
		if err != nil {
			var notFound *models.NotFoundError
			if !errors.As(err, &notFound) {
				return nil, err
			}
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("%q is no longer available and was removed from your cart", item.Title))
			validation.Valid = false
			changed = true
			continue
		}

		if !entry.Published {
			validation.Errors = append(validation.Errors,
				fmt.Sprintf("%q is no longer available and was removed from your cart", item.Title))
			validation.Valid = false
			changed = true
			continue
		}

		if item.ItemType == models.ItemTypeEvent {
			if entry.StartsAt != nil && !entry.StartsAt.After(time.Now()) {
				validation.Errors = append(validation.Errors,
					fmt.Sprintf("%q has already started and was removed from your cart", item.Title))
				validation.Valid = false
				changed = true
				continue
			}
			if entry.AvailableSpots != nil && *entry.AvailableSpots < item.Quantity {
				validation.Errors = append(validation.Errors,
					fmt.Sprintf("%q no longer has %d spots available and was removed from your cart",
						item.Title, item.Quantity))
				validation.Valid = false
				changed = true
				continue
			}
		}

		// The display cache is client-supplied at add time; the catalog is
		// the source of truth for what ends up on order items.
		if item.Title != entry.Title || item.Slug != entry.Slug || item.ImageURL != entry.ImageURL {
			item.Title = entry.Title
			item.Slug = entry.Slug
			item.ImageURL = entry.ImageURL
			changed = true
		}

		if item.UnitPrice != entry.Price {
			validation.Warnings = append(validation.Warnings,
				fmt.Sprintf("the price of %q changed from %d to %d", item.Title, item.UnitPrice, entry.Price))
			item.UnitPrice = entry.Price
			changed = true
		}

		kept = append(kept, item)
	}

	cart.Items = kept
	if changed {
		cart.Recalculate(s.taxRate)
		if err := s.save(ctx, cart); err != nil {
			return nil, err
		}
	}

	validation.Cart = cart
	return validation, nil
}

// MergeGuestCart folds a guest cart into the user's cart after login.
// Overlapping lines sum their quantities, clamped to the per-line maximum;
// the rest are unioned. Either side may be absent. The guest document is
// deleted afterwards.
func (s *CartService) MergeGuestCart(ctx context.Context, guestKey, userKey string) (*models.Cart, error) {
	guestCart, err := s.load(ctx, guestKey)
	if err != nil {
		return nil, err
	}
	userCart, err := s.load(ctx, userKey)
	if err != nil {
		return nil, err
	}

	if userCart == nil {
		userCart = models.NewCart(userKey)
	}

	if guestCart != nil {
		for _, item := range guestCart.Items {
			if idx := userCart.FindItem(item.ItemType, item.ItemID); idx >= 0 {
				merged := userCart.Items[idx].Quantity + item.Quantity
				if merged > models.MaxItemQuantity {
					merged = models.MaxItemQuantity
				}
				userCart.Items[idx].Quantity = merged
			} else {
				userCart.Items = append(userCart.Items, item)
			}
		}
	}

	userCart.Recalculate(s.taxRate)
	if err := s.save(ctx, userCart); err != nil {
		return nil, err
	}

	if err := s.store.Delete(ctx, cartKey(guestKey)); err != nil {
		// The merged cart is already saved; a dangling guest document just
		// expires with its TTL.
		s.logger.Warn("failed to delete guest cart after merge",
			zap.String("guest_key", guestKey), zap.Error(err))
	}

	return userCart, nil
}
