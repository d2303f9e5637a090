package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"coursemarket/internal/middleware"
	"coursemarket/internal/models"
)

// OrderReader is the slice of the order repository the read endpoints need
type OrderReader interface {
	GetByID(ctx context.Context, id int) (*models.Order, error)
	GetByUser(ctx context.Context, userID int, limit, offset int) ([]*models.Order, int, error)
	GetItems(ctx context.Context, orderID int) ([]*models.OrderItem, error)
	GetBookings(ctx context.Context, orderID int) ([]*models.Booking, error)
}

// OrderHandler exposes order history and detail
type OrderHandler struct {
	orders OrderReader
	logger *zap.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orders OrderReader, logger *zap.Logger) *OrderHandler {
	return &OrderHandler{orders: orders, logger: logger}
}

// orderListResponse is the body of GET /api/orders
type orderListResponse struct {
	Orders []*models.Order `json:"orders"`
	Total  int             `json:"total"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

// ListOrders handles GET /api/orders
func (h *OrderHandler) ListOrders(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == nil {
		writeError(w, h.logger, models.NewAuthenticationError("login required"))
		return
	}

	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	orders, total, err := h.orders.GetByUser(r.Context(), *userID, limit, offset)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	if orders == nil {
		orders = []*models.Order{}
	}

	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: orders,
		Total:  total,
		Limit:  limit,
		Offset: offset,
	})
}

// orderDetailResponse is the body of GET /api/orders/{orderID}
type orderDetailResponse struct {
	Order    *models.Order       `json:"order"`
	Items    []*models.OrderItem `json:"items"`
	Bookings []*models.Booking   `json:"bookings,omitempty"`
}

// GetOrder handles GET /api/orders/{orderID}
func (h *OrderHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == nil {
		writeError(w, h.logger, models.NewAuthenticationError("login required"))
		return
	}

	orderID, err := strconv.Atoi(chi.URLParam(r, "orderID"))
	if err != nil || orderID <= 0 {
		writeError(w, h.logger, models.NewValidationError("invalid order id"))
		return
	}

	order, err := h.orders.GetByID(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	// Guest orders and other users' orders read as absent, not forbidden.
	if order.UserID == nil || *order.UserID != *userID {
		writeError(w, h.logger, models.NewNotFoundError("order %d not found", orderID))
		return
	}

	items, err := h.orders.GetItems(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}
	bookings, err := h.orders.GetBookings(r.Context(), orderID)
	if err != nil {
		writeError(w, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, orderDetailResponse{
		Order:    order,
		Items:    items,
		Bookings: bookings,
	})
}
