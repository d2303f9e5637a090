package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/sessions"
	"go.uber.org/zap"

	"coursemarket/internal/middleware"
	"coursemarket/internal/models"
)

type stubOrderReader struct {
	order    *models.Order
	orders   []*models.Order
	total    int
	items    []*models.OrderItem
	bookings []*models.Booking
}

func (s *stubOrderReader) GetByID(ctx context.Context, id int) (*models.Order, error) {
	if s.order == nil || s.order.ID != id {
		return nil, models.NewNotFoundError("order %d not found", id)
	}
	return s.order, nil
}

func (s *stubOrderReader) GetByUser(ctx context.Context, userID, limit, offset int) ([]*models.Order, int, error) {
	return s.orders, s.total, nil
}

func (s *stubOrderReader) GetItems(ctx context.Context, orderID int) ([]*models.OrderItem, error) {
	return s.items, nil
}

func (s *stubOrderReader) GetBookings(ctx context.Context, orderID int) ([]*models.Booking, error) {
	return s.bookings, nil
}

func newOrderRouter(stub *stubOrderReader) http.Handler {
	sessionStore := sessions.NewCookieStore([]byte("test-secret-key-32-bytes-long!!!"))
	sessionMW := middleware.NewSessionMiddleware(sessionStore, 3600)
	handler := NewOrderHandler(stub, zap.NewNop())

	r := chi.NewRouter()
	r.Use(sessionMW.EnsureCartSession)
	r.Get("/api/orders", handler.ListOrders)
	r.Get("/api/orders/{orderID}", handler.GetOrder)
	return r
}

func TestListOrdersRequiresAuth(t *testing.T) {
	router := newOrderRouter(&stubOrderReader{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest("GET", "/api/orders", nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestListOrders(t *testing.T) {
	userID := 42
	stub := &stubOrderReader{
		orders: []*models.Order{{ID: 1, UserID: &userID, Status: models.OrderCompleted}},
		total:  1,
	}
	router := newOrderRouter(stub)

	req := httptest.NewRequest("GET", "/api/orders", nil)
	req.Header.Set("X-User-ID", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}

	var resp struct {
		Orders []*models.Order `json:"orders"`
		Total  int             `json:"total"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Total != 1 || len(resp.Orders) != 1 {
		t.Errorf("got %d orders, total %d", len(resp.Orders), resp.Total)
	}
}

func TestGetOrderHidesOtherUsersOrders(t *testing.T) {
	owner := 7
	stub := &stubOrderReader{
		order: &models.Order{ID: 1, UserID: &owner, Status: models.OrderCompleted},
	}
	router := newOrderRouter(stub)

	// A different user reads it as absent, not forbidden.
	req := httptest.NewRequest("GET", "/api/orders/1", nil)
	req.Header.Set("X-User-ID", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestGetOrderDetail(t *testing.T) {
	owner := 42
	stub := &stubOrderReader{
		order: &models.Order{ID: 1, UserID: &owner, Status: models.OrderCompleted, TotalAmount: 9998},
		items: []*models.OrderItem{{ID: 1, OrderID: 1, ItemType: models.ItemTypeCourse, Title: "Go Basics", Price: 4999, Quantity: 2}},
	}
	router := newOrderRouter(stub)

	req := httptest.NewRequest("GET", "/api/orders/1", nil)
	req.Header.Set("X-User-ID", "42")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Order *models.Order       `json:"order"`
		Items []*models.OrderItem `json:"items"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Order.ID != 1 || len(resp.Items) != 1 {
		t.Errorf("unexpected detail payload: %+v", resp)
	}
}
