package postgres_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
	"github.com/jhoicas/printstock/internal/infrastructure/postgres"
	"github.com/jhoicas/printstock/internal/testutil"
)

type stack struct {
	pool  *pgxpool.Pool
	stock *inventory.TransactionEngine
	res   *inventory.ReservationEngine
	orch  *inventory.Orchestrator
	rep   *inventory.LedgerReport
}

func newStack(t *testing.T) *stack {
	t.Helper()
	pool := testutil.NewPostgresTestPool(t)
	require.NoError(t, postgres.Migrate(context.Background(), pool))
	// Segunda ejecución: no debe reaplicar nada.
	require.NoError(t, postgres.Migrate(context.Background(), pool))

	tx := postgres.NewTxRunner(pool)
	audit := postgres.NewAuditRepository(pool)
	stock := inventory.NewTransactionEngine(tx, nil)
	res := inventory.NewReservationEngine(tx, stock, nil)
	return &stack{
		pool:  pool,
		stock: stock,
		res:   res,
		orch:  inventory.NewOrchestrator(tx, stock, res, audit, nil),
		rep:   inventory.NewLedgerReport(tx, audit),
	}
}

func (s *stack) material(t *testing.T, id string, qty int64) {
	t.Helper()
	now := time.Now()
	require.NoError(t, postgres.NewMaterialRepository(s.pool).Create(context.Background(), &entity.Material{
		ID: id, Name: "Material " + id, Unit: "hoja", Quantity: qty, CreatedAt: now, UpdatedAt: now,
	}))
}

func (s *stack) onHand(t *testing.T, id string) int64 {
	t.Helper()
	m, err := postgres.NewMaterialRepository(s.pool).GetByID(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, m)
	return m.Quantity
}

func TestPostgres_Escenarios(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.material(t, "paper", 1000)

	out, err := s.stock.Spend(ctx, inventory.SpendInput{MaterialID: "paper", Quantity: decimal.NewFromInt(50), Reason: "x"})
	require.NoError(t, err)
	assert.Equal(t, int64(950), out.NewQuantity)

	_, err = s.stock.Spend(ctx, inventory.SpendInput{MaterialID: "paper", Quantity: decimal.NewFromInt(10000)})
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)
	assert.Equal(t, int64(950), s.onHand(t, "paper"))

	r, err := s.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "paper", OrderID: "o-1", Quantity: decimal.NewFromInt(300)})
	require.NoError(t, err)
	avail, err := s.res.AvailableQuantity(ctx, "paper")
	require.NoError(t, err)
	assert.Equal(t, int64(650), avail)
	check, err := s.stock.CheckAvailability(ctx, "paper", decimal.NewFromInt(700))
	require.NoError(t, err)
	assert.False(t, check.Available)

	_, err = s.res.Cancel(ctx, r.ID, "", "")
	require.NoError(t, err)

	adj, err := s.stock.Adjust(ctx, inventory.AdjustInput{MaterialID: "paper", NewQuantity: decimal.NewFromInt(1500)})
	require.NoError(t, err)
	assert.Equal(t, int64(550), adj.Delta)

	movs, err := s.rep.Movements(ctx, repository.MovementFilter{MaterialID: "paper"})
	require.NoError(t, err)
	require.Len(t, movs, 2)
	assert.Equal(t, entity.MovementAdjustIncrease, movs[0].Kind)
	assert.True(t, decimal.NewFromInt(50).Equal(movs[1].RequestedQuantity))
}

func TestPostgres_FulfillYVencimiento(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.material(t, "ink", 100)

	r, err := s.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "ink", OrderID: "o-1", Quantity: decimal.RequireFromString("9.2")})
	require.NoError(t, err)
	out, err := s.res.Fulfill(ctx, r.ID, "u-1")
	require.NoError(t, err)
	assert.Equal(t, int64(90), out.Spend.NewQuantity)

	_, err = s.res.Fulfill(ctx, r.ID, "u-1")
	assert.ErrorIs(t, err, domain.ErrReservationClosed)

	soon := time.Now().Add(50 * time.Millisecond)
	_, err = s.res.Create(ctx, inventory.CreateReservationInput{MaterialID: "ink", Quantity: decimal.NewFromInt(5), ExpiresAt: &soon})
	require.NoError(t, err)
	time.Sleep(100 * time.Millisecond)

	n, err := s.res.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	n, err = s.res.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	hist, err := s.rep.ReservationHistory(ctx, r.ID)
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, entity.ActionFulfilled, hist[1].Action)
}

func TestPostgres_SpendsConcurrentesNoDejanNegativo(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.material(t, "paper", 100)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok := 0
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.stock.Spend(ctx, inventory.SpendInput{MaterialID: "paper", Quantity: decimal.NewFromInt(7)})
			if err == nil {
				mu.Lock()
				ok++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 14, ok)
	assert.Equal(t, int64(2), s.onHand(t, "paper"))
}

func TestPostgres_BulkAtomicoYAuditoria(t *testing.T) {
	s := newStack(t)
	ctx := context.Background()
	s.material(t, "a", 10)
	s.material(t, "b", 1)

	_, err := s.orch.ReserveMaterials(ctx, []inventory.ReserveItem{
		{MaterialID: "a", Quantity: decimal.NewFromInt(5), OrderID: "o-7"},
		{MaterialID: "b", Quantity: decimal.NewFromInt(2), OrderID: "o-7"},
	}, "u-1")
	assert.ErrorIs(t, err, domain.ErrInsufficientStock)

	list, err := s.res.ListByOrder(ctx, "o-7")
	require.NoError(t, err)
	assert.Empty(t, list)

	recs, err := s.rep.Audit(ctx, repository.AuditFilter{Operation: "reserve"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].Success)
	assert.EqualValues(t, 2, recs[0].Metadata["items"])
}
