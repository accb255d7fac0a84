package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
)

const (
	defaultPageSize = 50
	maxPageSize     = 500
)

// LedgerReport consultas de sólo lectura sobre el libro de movimientos, reservas y auditoría.
type LedgerReport struct {
	txRunner TxRunner
	audit    repository.AuditRepository
	opts     options
}

func NewLedgerReport(txRunner TxRunner, audit repository.AuditRepository, opts ...Option) *LedgerReport {
	return &LedgerReport{txRunner: txRunner, audit: audit, opts: buildOptions(opts)}
}

// Movements lista movimientos, más recientes primero.
func (l *LedgerReport) Movements(ctx context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, domain.Invalid("tipo de movimiento desconocido %q", f.Kind)
	}
	if f.From != nil && f.To != nil && f.To.Before(*f.From) {
		return nil, domain.Invalid("rango de fechas invertido")
	}
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	var out []*entity.Movement
	err := l.txRunner.Run(ctx, func(r Repos) error {
		var err error
		out, err = r.Movements.List(ctx, f)
		return err
	})
	return out, err
}

// MaterialSummary totales de un material entre from y to.
func (l *LedgerReport) MaterialSummary(ctx context.Context, materialID string, from, to time.Time) (repository.MovementSummary, error) {
	if materialID == "" {
		return repository.MovementSummary{}, domain.Invalid("material_id requerido")
	}
	if to.Before(from) {
		return repository.MovementSummary{}, domain.Invalid("rango de fechas invertido")
	}
	var out repository.MovementSummary
	err := l.txRunner.Run(ctx, func(r Repos) error {
		m, err := r.Materials.GetByID(ctx, materialID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.NewMaterialNotFound(materialID)
		}
		out, err = r.Movements.Summarize(ctx, materialID, from, to)
		return err
	})
	return out, err
}

// DailyMovements entradas y salidas por día. materialID vacío agrega todos los materiales.
func (l *LedgerReport) DailyMovements(ctx context.Context, materialID string, from, to time.Time) ([]repository.DailyMovement, error) {
	if to.Before(from) {
		return nil, domain.Invalid("rango de fechas invertido")
	}
	var out []repository.DailyMovement
	err := l.txRunner.Run(ctx, func(r Repos) error {
		var err error
		out, err = r.Movements.Daily(ctx, materialID, from, to)
		return err
	})
	return out, err
}

// LowStock materiales cuyo disponible está por debajo del mínimo.
func (l *LedgerReport) LowStock(ctx context.Context) ([]repository.LowStockItem, error) {
	var out []repository.LowStockItem
	err := l.txRunner.Run(ctx, func(r Repos) error {
		var err error
		out, err = r.Materials.ListBelowMinimum(ctx, l.opts.now())
		return err
	})
	return out, err
}

// ReservationHistory transiciones de una reserva en orden cronológico.
func (l *LedgerReport) ReservationHistory(ctx context.Context, reservationID string) ([]*entity.ReservationHistory, error) {
	if reservationID == "" {
		return nil, domain.Invalid("reservation_id requerido")
	}
	var out []*entity.ReservationHistory
	err := l.txRunner.Run(ctx, func(r Repos) error {
		res, err := r.Reservations.GetByID(ctx, reservationID)
		if err != nil {
			return err
		}
		if res == nil {
			return domain.NewReservationNotFound(reservationID)
		}
		out, err = r.Reservations.History(ctx, reservationID)
		return err
	})
	return out, err
}

// Audit consulta la traza de orquestación.
func (l *LedgerReport) Audit(ctx context.Context, f repository.AuditFilter) ([]*entity.AuditRecord, error) {
	if l.audit == nil {
		return nil, nil
	}
	f.Limit, f.Offset = page(f.Limit, f.Offset)
	return l.audit.List(ctx, f)
}

func page(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
