package inventory_test

import (
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/infrastructure/memory"
)

var t0 = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type fixture struct {
	store  *memory.Store
	clock  *fakeClock
	stock  *inventory.TransactionEngine
	res    *inventory.ReservationEngine
	orch   *inventory.Orchestrator
	report *inventory.LedgerReport
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := memory.NewStore()
	clock := &fakeClock{now: t0}
	opts := []inventory.Option{inventory.WithClock(clock.Now)}

	stock := inventory.NewTransactionEngine(store, nil, opts...)
	res := inventory.NewReservationEngine(store, stock, nil, opts...)
	return &fixture{
		store:  store,
		clock:  clock,
		stock:  stock,
		res:    res,
		orch:   inventory.NewOrchestrator(store, stock, res, store.Audit(), nil, opts...),
		report: inventory.NewLedgerReport(store, store.Audit(), opts...),
	}
}

func (f *fixture) material(id, name string, qty int64) {
	f.store.PutMaterial(entity.Material{ID: id, Name: name, Unit: "hoja", Quantity: qty, CreatedAt: t0})
}

func (f *fixture) materialWithMin(id, name string, qty, min int64) {
	f.store.PutMaterial(entity.Material{ID: id, Name: name, Unit: "hoja", Quantity: qty, MinQuantity: &min, CreatedAt: t0})
}

func (f *fixture) onHand(t *testing.T, id string) int64 {
	t.Helper()
	m, ok := f.store.Material(id)
	if !ok {
		t.Fatalf("material %s no existe", id)
	}
	return m.Quantity
}

func qty(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}
