package inventory_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
)

type staticBOM map[string][]inventory.BOMComponent

func (b staticBOM) Components(_ context.Context, productID string) ([]inventory.BOMComponent, error) {
	comps, ok := b[productID]
	if !ok {
		return nil, fmt.Errorf("producto %s: %w", productID, domain.ErrNotFound)
	}
	return comps, nil
}

func hooksFixture(t *testing.T) (*fixture, *inventory.OrderHooks) {
	f := newFixture(t)
	f.material("paper", "Couché", 1000)
	f.material("lam", "Laminado", 100)
	bom := staticBOM{
		"flyer": {
			{MaterialID: "paper", PerUnit: qty("0.25")},
			{MaterialID: "lam", PerUnit: qty("0.1")},
		},
	}
	return f, inventory.NewOrderHooks(f.orch, bom, nil)
}

func TestLineItemAdded(t *testing.T) {
	f, h := hooksFixture(t)

	ids, err := h.LineItemAdded(context.Background(), inventory.LineItem{OrderID: "o-1", ProductID: "flyer", Quantity: 10}, "u-1")
	require.NoError(t, err)
	require.Len(t, ids, 2)
	// 0.25 × 10 = 2.5 -> 3; 0.1 × 10 = 1
	assert.Equal(t, int64(997), available(t, f, "paper"))
	assert.Equal(t, int64(99), available(t, f, "lam"))
	assert.Equal(t, int64(1000), f.onHand(t, "paper"))

	_, err = h.LineItemAdded(context.Background(), inventory.LineItem{OrderID: "o-1", ProductID: "ghost", Quantity: 1}, "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = h.LineItemAdded(context.Background(), inventory.LineItem{OrderID: "o-1", ProductID: "flyer", Quantity: 0}, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestLineItemRemoved(t *testing.T) {
	f, h := hooksFixture(t)
	ctx := context.Background()
	item := inventory.LineItem{OrderID: "o-1", ProductID: "flyer", Quantity: 40}

	ids, err := h.LineItemAdded(ctx, item, "")
	require.NoError(t, err)
	require.NoError(t, h.LineItemRemoved(ctx, item, ids, ""))
	assert.Equal(t, int64(1000), available(t, f, "paper"))
	assert.Empty(t, f.store.Movements())
}

func TestLineItemRemoved_SinReservasDevuelveMaterial(t *testing.T) {
	f, h := hooksFixture(t)

	require.NoError(t, h.LineItemRemoved(context.Background(), inventory.LineItem{OrderID: "o-1", ProductID: "flyer", Quantity: 40}, nil, ""))
	assert.Equal(t, int64(1010), f.onHand(t, "paper"))
	assert.Equal(t, int64(104), f.onHand(t, "lam"))

	movs := f.store.Movements()
	require.Len(t, movs, 2)
	assert.Equal(t, entity.MovementAdd, movs[0].Kind)
	assert.Equal(t, "o-1", movs[0].OrderID)
}

func TestLineItemQuantityChanged(t *testing.T) {
	f, h := hooksFixture(t)
	ctx := context.Background()
	item := inventory.LineItem{OrderID: "o-1", ProductID: "flyer", Quantity: 40}

	ids, err := h.LineItemAdded(ctx, item, "")
	require.NoError(t, err)
	assert.Equal(t, int64(990), available(t, f, "paper"))

	f.clock.Advance(time.Minute)
	item.Quantity = 100
	ids, err = h.LineItemQuantityChanged(ctx, item, 40, ids, "")
	require.NoError(t, err)
	assert.Len(t, ids, 4)
	assert.Equal(t, int64(975), available(t, f, "paper"))
	assert.Equal(t, int64(90), available(t, f, "lam"))

	// 100 -> 60: paper libera 10, lam libera 4. La reserva más nueva de paper (15) se cancela y
	// se vuelven a reservar 5; la de lam (6) se cancela y se reservan 2.
	item.Quantity = 60
	ids, err = h.LineItemQuantityChanged(ctx, item, 100, ids, "")
	require.NoError(t, err)
	assert.Len(t, ids, 4)
	assert.Equal(t, int64(985), available(t, f, "paper"))
	assert.Equal(t, int64(94), available(t, f, "lam"))

	var active int64
	for _, r := range f.store.Reservations() {
		if r.Status == entity.ReservationActive && r.MaterialID == "paper" {
			active += r.Quantity
		}
	}
	assert.Equal(t, int64(15), active)

	same, err := h.LineItemQuantityChanged(ctx, item, 60, ids, "")
	require.NoError(t, err)
	assert.Equal(t, ids, same)
}

func TestOrderConfirmed(t *testing.T) {
	f, h := hooksFixture(t)
	ctx := context.Background()

	ids, err := h.LineItemAdded(ctx, inventory.LineItem{OrderID: "o-1", ProductID: "flyer", Quantity: 40}, "")
	require.NoError(t, err)

	out, err := h.OrderConfirmed(ctx, ids, "u-1")
	require.NoError(t, err)
	require.Len(t, out, 2)
	assert.Equal(t, int64(990), f.onHand(t, "paper"))
	assert.Equal(t, int64(96), f.onHand(t, "lam"))
	assert.Len(t, f.store.Movements(), 2)
}
