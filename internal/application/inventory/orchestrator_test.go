package inventory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
)

func TestReserveMaterials_LoteAtomico(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	f.material("b", "Vinilo", 10)
	ctx := context.Background()

	_, err := f.orch.ReserveMaterials(ctx, []inventory.ReserveItem{
		{MaterialID: "a", Quantity: qty("50"), OrderID: "o-1"},
		{MaterialID: "b", Quantity: qty("11"), OrderID: "o-1"},
	}, "u-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Empty(t, f.store.Reservations())
	assert.Equal(t, int64(100), available(t, f, "a"))

	recs := f.store.AuditRecords()
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.NotEmpty(t, recs[0].Error)

	list, err := f.orch.ReserveMaterials(ctx, []inventory.ReserveItem{
		{MaterialID: "a", Quantity: qty("50"), OrderID: "o-1"},
		{MaterialID: "b", Quantity: qty("10"), OrderID: "o-1", NoExpiry: true},
	}, "u-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.NotNil(t, list[0].ExpiresAt)
	assert.Equal(t, t0.Add(24*time.Hour), *list[0].ExpiresAt)
	assert.Nil(t, list[1].ExpiresAt)
	assert.Equal(t, int64(50), available(t, f, "a"))
	assert.Zero(t, available(t, f, "b"))
	assert.Equal(t, int64(100), f.onHand(t, "a"))
}

func TestUnreserveMaterials(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	f.material("b", "Vinilo", 100)
	ctx := context.Background()

	_, err := f.orch.ReserveMaterials(ctx, []inventory.ReserveItem{
		{MaterialID: "a", Quantity: qty("10"), OrderID: "o-1"},
		{MaterialID: "b", Quantity: qty("10"), OrderID: "o-1"},
		{MaterialID: "a", Quantity: qty("5"), OrderID: "o-2"},
	}, "")
	require.NoError(t, err)

	n, err := f.orch.UnreserveMaterials(ctx, []string{"a"}, "o-1", "u-1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(95), available(t, f, "a"))
	assert.Equal(t, int64(90), available(t, f, "b"))

	n, err = f.orch.UnreserveMaterials(ctx, []string{"a"}, "o-1", "u-1")
	require.NoError(t, err)
	assert.Zero(t, n)

	_, err = f.orch.UnreserveMaterials(ctx, nil, "", "")
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestReserveAndSpend(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	ctx := context.Background()

	out, err := f.orch.ReserveAndSpend(ctx, inventory.ReserveAndSpendInput{MaterialID: "a", Quantity: qty("30"), OrderID: "o-1", Reason: "urgente"})
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationFulfilled, out.Reservation.Status)
	assert.Equal(t, int64(70), f.onHand(t, "a"))
	assert.Equal(t, int64(70), available(t, f, "a"))
	require.Len(t, f.store.Movements(), 1)

	_, err = f.orch.ReserveAndSpend(ctx, inventory.ReserveAndSpendInput{MaterialID: "a", Quantity: qty("71"), OrderID: "o-1"})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(70), f.onHand(t, "a"))
	assert.Len(t, f.store.Reservations(), 1)
}

func TestOrchestratorCheckAvailability_TodosLosFaltantes(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 10)
	f.material("b", "Vinilo", 10)
	f.material("c", "Tinta", 10)
	ctx := context.Background()

	_, err := f.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "b", Quantity: qty("5")})
	require.NoError(t, err)

	report, err := f.orch.CheckAvailability(ctx, []inventory.Requirement{
		{MaterialID: "a", Quantity: qty("11")},
		{MaterialID: "b", Quantity: qty("6")},
		{MaterialID: "c", Quantity: qty("9.5")},
	})
	require.NoError(t, err)
	assert.False(t, report.OK())
	require.Len(t, report.Items, 3)
	require.Len(t, report.Shortfalls, 2)
	assert.Equal(t, "a", report.Shortfalls[0].MaterialID)
	assert.Equal(t, "b", report.Shortfalls[1].MaterialID)
	assert.Equal(t, int64(5), report.Shortfalls[1].AvailableQuantity)

	_, err = f.orch.CheckAvailability(ctx, []inventory.Requirement{{MaterialID: "zzz", Quantity: qty("1")}})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestExecute(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	ctx := context.Background()

	out, err := f.orch.Execute(ctx, inventory.SpendOp{MaterialID: "a", Quantity: qty("10"), OrderID: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, inventory.OpSpend, out.Operation)
	require.NotNil(t, out.Change)
	assert.Equal(t, int64(90), out.Change.NewQuantity)

	out, err = f.orch.Execute(ctx, inventory.AddOp{MaterialID: "a", Quantity: qty("5")})
	require.NoError(t, err)
	assert.Equal(t, int64(95), out.Change.NewQuantity)

	out, err = f.orch.Execute(ctx, inventory.AdjustOp{MaterialID: "a", NewQuantity: qty("80")})
	require.NoError(t, err)
	require.NotNil(t, out.Adjustment)
	assert.Equal(t, int64(-15), out.Adjustment.Delta)

	out, err = f.orch.Execute(ctx, inventory.ReserveOp{MaterialID: "a", Quantity: qty("20"), OrderID: "o-1"})
	require.NoError(t, err)
	require.Len(t, out.Reservations, 1)

	out, err = f.orch.Execute(ctx, inventory.UnreserveOp{OrderID: "o-1"})
	require.NoError(t, err)
	assert.Equal(t, 1, out.Cancelled)

	_, err = f.orch.Execute(ctx, inventory.SpendOp{MaterialID: "a", Quantity: qty("81")})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	recs := f.store.AuditRecords()
	require.Len(t, recs, 6)
	assert.Equal(t, string(inventory.OpSpend), recs[0].Operation)
	require.NotNil(t, recs[0].QuantityBefore)
	assert.Equal(t, int64(100), *recs[0].QuantityBefore)
	assert.Equal(t, int64(90), *recs[0].QuantityAfter)
	assert.True(t, recs[0].Success)
	assert.False(t, recs[5].Success)
}

func TestAuditoriaFallidaNoOcultaElResultado(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	f.store.FailAudit(errors.New("audit table locked"))

	out, err := f.orch.Execute(context.Background(), inventory.SpendOp{MaterialID: "a", Quantity: qty("1")})
	require.NoError(t, err)
	assert.Equal(t, int64(99), out.Change.NewQuantity)
	assert.Equal(t, int64(99), f.onHand(t, "a"))
	assert.Empty(t, f.store.AuditRecords())

	_, err = f.orch.Execute(context.Background(), inventory.SpendOp{MaterialID: "a", Quantity: qty("1000")})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
}

func TestFulfillReservations_TodoONada(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	ctx := context.Background()

	list, err := f.orch.ReserveMaterials(ctx, []inventory.ReserveItem{
		{MaterialID: "a", Quantity: qty("10"), OrderID: "o-1"},
		{MaterialID: "a", Quantity: qty("20"), OrderID: "o-1"},
	}, "")
	require.NoError(t, err)
	_, err = f.res.Cancel(ctx, list[1].ID, "", "")
	require.NoError(t, err)

	_, err = f.orch.FulfillReservations(ctx, []string{list[0].ID, list[1].ID}, "")
	assert.ErrorIs(t, err, domain.ErrReservationClosed)
	assert.Equal(t, int64(100), f.onHand(t, "a"))

	got, err := f.res.Get(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationActive, got.Status)
}

func TestShrinkReservations_RemanenteConservaVencimiento(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 1000)
	f.material("b", "Vinilo", 1000)
	ctx := context.Background()

	list, err := f.orch.ReserveMaterials(ctx, []inventory.ReserveItem{
		{MaterialID: "a", Quantity: qty("100"), OrderID: "o-1"},
		{MaterialID: "b", Quantity: qty("100"), OrderID: "o-1", NoExpiry: true},
	}, "")
	require.NoError(t, err)
	f.clock.Advance(time.Hour)

	kept, err := f.orch.ShrinkReservations(ctx, inventory.ShrinkInput{
		OrderID:        "o-1",
		ReservationIDs: []string{list[0].ID, list[1].ID},
		Release:        map[string]int64{"a": 40, "b": 40},
	})
	require.NoError(t, err)
	require.Len(t, kept, 2)
	assert.Equal(t, int64(940), available(t, f, "a"))
	assert.Equal(t, int64(940), available(t, f, "b"))

	for _, id := range kept {
		r, err := f.res.Get(ctx, id)
		require.NoError(t, err)
		assert.Equal(t, int64(60), r.Quantity)
		switch r.MaterialID {
		case "a":
			require.NotNil(t, r.ExpiresAt)
			assert.True(t, t0.Add(24*time.Hour).Equal(*r.ExpiresAt), r.ExpiresAt)
		case "b":
			assert.Nil(t, r.ExpiresAt)
		}
	}
}

func TestShrinkReservations_IgnoraReservasVencidas(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 1000)
	ctx := context.Background()

	list, err := f.orch.ReserveMaterials(ctx, []inventory.ReserveItem{
		{MaterialID: "a", Quantity: qty("100"), OrderID: "o-1"},
	}, "")
	require.NoError(t, err)
	f.clock.Advance(25 * time.Hour)
	require.Equal(t, int64(1000), available(t, f, "a"))

	kept, err := f.orch.ShrinkReservations(ctx, inventory.ShrinkInput{
		OrderID:        "o-1",
		ReservationIDs: []string{list[0].ID},
		Release:        map[string]int64{"a": 40},
	})
	require.NoError(t, err)
	assert.Empty(t, kept)
	assert.Len(t, f.store.Reservations(), 1)
	assert.Equal(t, int64(1000), available(t, f, "a"))

	f.clock.Advance(365 * 24 * time.Hour)
	n, err := f.res.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, int64(1000), available(t, f, "a"))

	got, err := f.res.Get(ctx, list[0].ID)
	require.NoError(t, err)
	assert.Equal(t, entity.ReservationExpired, got.Status)
}

func TestExecute_OperacionNula(t *testing.T) {
	f := newFixture(t)
	f.material("a", "Bond", 100)
	ctx := context.Background()

	assert.NotPanics(t, func() {
		_, err := f.orch.Execute(ctx, nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
	assert.NotPanics(t, func() {
		_, err := f.orch.Execute(ctx, (*inventory.SpendOp)(nil))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})
	assert.Equal(t, int64(100), f.onHand(t, "a"))
	assert.Empty(t, f.store.Movements())
}
