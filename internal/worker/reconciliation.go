package worker

import (
	"context"
	"time"

	"go.uber.org/zap"

	"coursemarket/internal/models"
)

// StaleOrderStore is the slice of the order repository the sweep needs
type StaleOrderStore interface {
	FindStalePending(ctx context.Context, olderThan time.Duration) ([]*models.Order, error)
	CancelStale(ctx context.Context, orderID int) error
}

// ReconciliationWorker periodically sweeps pending orders that never
// received a payment intent. These orders hold event capacity that the
// gateway will never release; cancelling them restores it. Orders that
// progressed between the find and the cancel are skipped by the cancel's
// own status guard.
type ReconciliationWorker struct {
	orders   StaleOrderStore
	interval time.Duration
	maxAge   time.Duration
	logger   *zap.Logger
}

// NewReconciliationWorker creates a new reconciliation worker
func NewReconciliationWorker(orders StaleOrderStore, interval, maxAge time.Duration, logger *zap.Logger) *ReconciliationWorker {
	return &ReconciliationWorker{
		orders:   orders,
		interval: interval,
		maxAge:   maxAge,
		logger:   logger,
	}
}

// Start runs the sweep loop until the context is cancelled. It blocks, so
// callers run it in a goroutine.
func (w *ReconciliationWorker) Start(ctx context.Context) {
	w.logger.Info("reconciliation worker started",
		zap.Duration("interval", w.interval),
		zap.Duration("max_age", w.maxAge))

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("reconciliation worker stopped")
			return
		case <-ticker.C:
			if err := w.RunOnce(ctx); err != nil {
				w.logger.Error("reconciliation sweep failed", zap.Error(err))
			}
		}
	}
}

// RunOnce performs a single sweep. Per-order cancellation failures are
// logged and do not stop the sweep; the order is retried next round.
func (w *ReconciliationWorker) RunOnce(ctx context.Context) error {
	stale, err := w.orders.FindStalePending(ctx, w.maxAge)
	if err != nil {
		return err
	}
	if len(stale) == 0 {
		return nil
	}

	w.logger.Info("cancelling stale pending orders", zap.Int("count", len(stale)))

	for _, order := range stale {
		if err := w.orders.CancelStale(ctx, order.ID); err != nil {
			w.logger.Error("failed to cancel stale order",
				zap.Int("order_id", order.ID), zap.Error(err))
			continue
		}
		w.logger.Info("stale order cancelled",
			zap.Int("order_id", order.ID),
			zap.Time("created_at", order.CreatedAt))
	}
	return nil
}
