package inventory_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
)

func available(t *testing.T, f *fixture, id string) int64 {
	t.Helper()
	n, err := f.res.AvailableQuantity(context.Background(), id)
	require.NoError(t, err)
	return n
}

func TestReservation_CicloDeVida(t *testing.T) {
	f := newFixture(t)
	f.material("paper", "Bond", 500)
	ctx := context.Background()

	res, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", OrderID: "o-1", Quantity: qty("120")})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationActive, res.Status)
	assert.Nil(t, res.ExpiresAt)
	assert.Equal(t, int64(500), f.onHand(t, "paper"))
	assert.Equal(t, int64(380), available(t, f, "paper"))

	out, err := f.res.Cancel(ctx, res.ID, "cliente desistió", "u-1")
	require.NoError(t, err)
	assert.True(t, out.Changed)
	assert.Equal(t, entity.ReservationCancelled, out.Reservation.Status)
	assert.Equal(t, int64(500), available(t, f, "paper"))
	assert.Empty(t, f.store.Movements())
}

func TestReservation_FulfillDescuentaYRegistraMovimiento(t *testing.T) {
	f := newFixture(t)
	f.material("paper", "Bond", 500)
	ctx := context.Background()

	res, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", OrderID: "o-1", Quantity: qty("99.5")})
	require.NoError(t, err)
	assert.Equal(t, int64(100), res.Quantity)
	before := available(t, f, "paper")

	out, err := f.res.Fulfill(ctx, res.ID, "u-2")
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationFulfilled, out.Reservation.Status)
	assert.Equal(t, int64(400), out.Spend.NewQuantity)
	assert.Equal(t, int64(400), f.onHand(t, "paper"))
	assert.Equal(t, before, available(t, f, "paper"))

	movs := f.store.Movements()
	require.Len(t, movs, 1)
	assert.Equal(t, entity.MovementSpend, movs[0].Kind)
	assert.Equal(t, int64(-100), movs[0].Delta)
	assert.Equal(t, "o-1", movs[0].OrderID)
	assert.Equal(t, "u-2", movs[0].ActorID)

	_, err = f.res.Fulfill(ctx, res.ID, "u-2")
	assert.ErrorIs(t, err, domain.ErrReservationClosed)
	assert.ErrorIs(t, err, domain.ErrConflict)
	assert.Equal(t, int64(400), f.onHand(t, "paper"))
}

func TestReservation_NoSobrevende(t *testing.T) {
	f := newFixture(t)
	f.material("paper", "Bond", 100)
	ctx := context.Background()

	_, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("70")})
	require.NoError(t, err)

	_, err = f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("31")})
	var ins *domain.InsufficientStockError
	require.ErrorAs(t, err, &ins)
	assert.Equal(t, int64(30), ins.Available)
	assert.Equal(t, int64(31), ins.Requested)
}

func TestReservation_ConcurrentesNoSobrevenden(t *testing.T) {
	f := newFixture(t)
	f.material("paper", "Bond", 100)
	ctx := context.Background()

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("10")}); err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 10, ok)
	assert.Zero(t, available(t, f, "paper"))
}

func TestReservation_DobleCancelacion(t *testing.T) {
	f := newFixture(t)
	f.material("paper", "Bond", 50)
	ctx := context.Background()

	res, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("10")})
	require.NoError(t, err)

	first, err := f.res.Cancel(ctx, res.ID, "", "")
	require.NoError(t, err)
	assert.True(t, first.Changed)

	second, err := f.res.Cancel(ctx, res.ID, "", "")
	require.NoError(t, err)
	assert.False(t, second.Changed)
	assert.Equal(t, entity.ReservationCancelled, second.Reservation.Status)

	hist, err := f.report.ReservationHistory(ctx, res.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, entity.ActionCreated, hist[0].Action)
	assert.Equal(t, entity.ActionCancelled, hist[1].Action)

	_, err = f.res.Cancel(ctx, "missing", "", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = f.res.Fulfill(ctx, "missing", "")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestReservation_Vencimiento(t *testing.T) {
	f := newFixture(t)
	f.material("paper", "Bond", 100)
	ctx := context.Background()

	hold, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("40"), DefaultHold: true})
	require.NoError(t, err)
	require.NotNil(t, hold.ExpiresAt)
	assert.Equal(t, t0.Add(24*time.Hour), *hold.ExpiresAt)

	_, err = f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("10")})
	require.NoError(t, err)
	assert.Equal(t, int64(50), available(t, f, "paper"))

	f.clock.Advance(25 * time.Hour)

	// Vencida por tiempo ya no cuenta aunque el barrido no haya corrido.
	assert.Equal(t, int64(90), available(t, f, "paper"))

	n, err := f.res.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	n, err = f.res.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	got, err := f.res.Get(ctx, hold.ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationExpired, got.Status)
	assert.Equal(t, int64(100), f.onHand(t, "paper"))

	out, err := f.res.Cancel(ctx, hold.ID, "", "")
	require.NoError(t, err)
	assert.False(t, out.Changed)
}

func TestReservation_VencimientoPasadoEsInvalido(t *testing.T) {
	f := newFixture(t)
	f.material("paper", "Bond", 100)

	past := t0.Add(-time.Minute)
	_, err := f.res.Create(context.Background(), inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("1"), ExpiresAt: &past})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)

	_, err = f.res.Create(context.Background(), inventory.CreateReservationInput{MaterialID: "paper", Quantity: qty("0")})
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReservation_ListByOrder(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	f.material("b", "Vinilo", 100)
	ctx := context.Background()

	r1, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "a", OrderID: "o-9", Quantity: qty("1")})
	require.NoError(t, err)
	r2, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "b", OrderID: "o-9", Quantity: qty("2")})
	require.NoError(t, err)
	_, err = f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "b", OrderID: "o-10", Quantity: qty("3")})
	require.NoError(t, err)

	list, err := f.res.ListByOrder(ctx, "o-9")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, r1.ID, list[0].ID)
	assert.Equal(t, r2.ID, list[1].ID)

	_, err = f.res.ListByOrder(ctx, "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}
