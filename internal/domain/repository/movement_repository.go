package repository

import (
	"context"
	"time"

	"github.com/jhoicas/printstock/internal/domain/entity"
)

// MovementFilter criterios para consultar el libro de movimientos. Campos vacíos no filtran.
type MovementFilter struct {
	MaterialID string
	OrderID    string
	ActorID    string
	Kind       entity.MovementKind
	From       *time.Time
	To         *time.Time
	Limit      int
	Offset     int
}

// MovementSummary totales de un material en un periodo.
type MovementSummary struct {
	MaterialID     string
	Spent          int64
	Added          int64
	AdjustedUp     int64
	AdjustedDown   int64
	Net            int64
	MovementsCount int64
}

// DailyMovement agregado diario de entradas y salidas.
type DailyMovement struct {
	Date     time.Time
	Inbound  int64
	Outbound int64
}

// MovementRepository puerto del libro de movimientos (sólo inserción).
type MovementRepository interface {
	Create(ctx context.Context, m *entity.Movement) error
	List(ctx context.Context, f MovementFilter) ([]*entity.Movement, error)
	Summarize(ctx context.Context, materialID string, from, to time.Time) (MovementSummary, error)
	// Daily agrega por día; materialID vacío considera todos los materiales.
	Daily(ctx context.Context, materialID string, from, to time.Time) ([]DailyMovement, error)
}
