package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"coursemarket/internal/models"
)

// MockPaymentGateway stands in for Stripe in development when no API keys
// are configured. Sessions succeed immediately with fake identifiers.
type MockPaymentGateway struct {
	logger *zap.Logger
}

// NewMockPaymentGateway creates a new mock gateway
func NewMockPaymentGateway(logger *zap.Logger) *MockPaymentGateway {
	return &MockPaymentGateway{logger: logger}
}

// CreateSession returns a fabricated payment session without calling any
// external service
func (g *MockPaymentGateway) CreateSession(ctx context.Context, order *models.Order, lines []models.OrderLine, successURL, cancelURL string) (*PaymentSession, error) {
	now := time.Now().UnixNano()
	g.logger.Info("mock payment session created",
		zap.Int("order_id", order.ID),
		zap.Int("total_amount", order.TotalAmount))
	return &PaymentSession{
		ID:              fmt.Sprintf("cs_mock_%d_%d", order.ID, now),
		URL:             successURL,
		PaymentIntentID: fmt.Sprintf("pi_mock_%d_%d", order.ID, now),
	}, nil
}
