package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coursemarket/internal/middleware"
	"coursemarket/internal/models"
	"coursemarket/internal/services"
)

// CartHandler exposes the cart operations over HTTP
type CartHandler struct {
	cart   services.CartServiceInterface
	logger *zap.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cart services.CartServiceInterface, logger *zap.Logger) *CartHandler {
	return &CartHandler{cart: cart, logger: logger}
}

// addItemRequest is the body of POST /api/cart/items
type addItemRequest struct {
	ItemType  string `json:"item_type"`
	ItemID    int    `json:"item_id"`
	Title     string `json:"title"`
	Slug      string `json:"slug"`
	ImageURL  string `json:"image_url"`
	UnitPrice int    `json:"unit_price"`
	Quantity  int    `json:"quantity"`
}

// AddItem handles POST /api/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req addItemRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	item := models.CartItem{
		ItemType:  models.ItemType(req.ItemType),
		ItemID:    req.ItemID,
		Title:     req.Title,
		Slug:      req.Slug,
		ImageURL:  req.ImageURL,
		UnitPrice: req.UnitPrice,
		Quantity:  req.Quantity,
	}

	cart, err := h.cart.AddItem(r.Context(), effectiveSessionKey(r), middleware.GetUserID(r.Context()), item)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// GetCart handles GET /api/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	cart, err := h.cart.GetCart(r.Context(), effectiveSessionKey(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// itemRef pulls the (type, id) pair addressing a cart line out of the URL
func itemRef(r *http.Request) (models.ItemType, int, error) {
	itemType := models.ItemType(r.URL.Query().Get("type"))
	if !itemType.IsValid() {
		return "", 0, models.NewValidationError("invalid or missing item type")
	}
	itemID, err := strconv.Atoi(chi.URLParam(r, "itemID"))
	if err != nil || itemID <= 0 {
		return "", 0, models.NewValidationError("invalid item id")
	}
	return itemType, itemID, nil
}

// updateItemRequest is the body of PUT /api/cart/items/{itemID}
type updateItemRequest struct {
	Quantity int `json:"quantity"`
}

// UpdateItem handles PUT /api/cart/items/{itemID}?type=
func (h *CartHandler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	itemType, itemID, err := itemRef(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	var req updateItemRequest
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	cart, err := h.cart.UpdateItemQuantity(r.Context(), effectiveSessionKey(r), itemType, itemID, req.Quantity)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// RemoveItem handles DELETE /api/cart/items/{itemID}?type=
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	itemType, itemID, err := itemRef(r)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	cart, err := h.cart.RemoveItem(r.Context(), effectiveSessionKey(r), itemType, itemID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}

// ClearCart handles DELETE /api/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	if err := h.cart.ClearCart(r.Context(), effectiveSessionKey(r)); err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// GetItemCount handles GET /api/cart/count
func (h *CartHandler) GetItemCount(w http.ResponseWriter, r *http.Request) {
	count, err := h.cart.GetItemCount(r.Context(), effectiveSessionKey(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": count})
}

// ValidateCart handles POST /api/cart/validate
func (h *CartHandler) ValidateCart(w http.ResponseWriter, r *http.Request) {
	validation, err := h.cart.ValidateCart(r.Context(), effectiveSessionKey(r))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, validation)
}

// MergeCart handles POST /api/cart/merge. Called after login, it folds the
// guest cookie-session cart into the user's stable cart.
func (h *CartHandler) MergeCart(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == nil {
		writeError(w, h.logger, models.NewAuthenticationError("login required to merge carts"))
		return
	}

	guestKey := middleware.GetSessionKey(r.Context())
	if guestKey == "" {
		writeError(w, h.logger, models.NewValidationError("no guest session to merge"))
		return
	}

	cart, err := h.cart.MergeGuestCart(r.Context(), guestKey, middleware.UserSessionKey(*userID))
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, cart)
}
