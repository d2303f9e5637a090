package worker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"coursemarket/internal/models"
)

type mockStaleOrderStore struct {
	stale     []*models.Order
	findErr   error
	cancelErr map[int]error
	cancelled []int
}

func (m *mockStaleOrderStore) FindStalePending(ctx context.Context, olderThan time.Duration) ([]*models.Order, error) {
	if m.findErr != nil {
		return nil, m.findErr
	}
	return m.stale, nil
}

func (m *mockStaleOrderStore) CancelStale(ctx context.Context, orderID int) error {
	if err := m.cancelErr[orderID]; err != nil {
		return err
	}
	m.cancelled = append(m.cancelled, orderID)
	return nil
}

func TestRunOnceCancelsStaleOrders(t *testing.T) {
	store := &mockStaleOrderStore{stale: []*models.Order{
		{ID: 1, Status: models.OrderPending},
		{ID: 2, Status: models.OrderPending},
	}}
	w := NewReconciliationWorker(store, time.Minute, time.Hour, zap.NewNop())

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, []int{1, 2}, store.cancelled)
}

func TestRunOnceNoStaleOrders(t *testing.T) {
	store := &mockStaleOrderStore{}
	w := NewReconciliationWorker(store, time.Minute, time.Hour, zap.NewNop())

	require.NoError(t, w.RunOnce(context.Background()))
	assert.Empty(t, store.cancelled)
}

func TestRunOnceFindFailurePropagates(t *testing.T) {
	store := &mockStaleOrderStore{findErr: errors.New("db down")}
	w := NewReconciliationWorker(store, time.Minute, time.Hour, zap.NewNop())

	assert.Error(t, w.RunOnce(context.Background()))
}

func TestRunOnceContinuesPastCancelFailure(t *testing.T) {
	store := &mockStaleOrderStore{
		stale: []*models.Order{
			{ID: 1, Status: models.OrderPending},
			{ID: 2, Status: models.OrderPending},
			{ID: 3, Status: models.OrderPending},
		},
		cancelErr: map[int]error{2: errors.New("deadlock")},
	}
	w := NewReconciliationWorker(store, time.Minute, time.Hour, zap.NewNop())

	// One failed cancel is retried next sweep; the rest still go through.
	require.NoError(t, w.RunOnce(context.Background()))
	assert.Equal(t, []int{1, 3}, store.cancelled)
}

func TestStartStopsOnContextCancel(t *testing.T) {
	store := &mockStaleOrderStore{}
	w := NewReconciliationWorker(store, 10*time.Millisecond, time.Hour, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after context cancellation")
	}
}
