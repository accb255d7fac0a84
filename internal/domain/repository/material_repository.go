package repository

import (
	"context"
	"time"

	"github.com/jhoicas/printstock/internal/domain/entity"
)

// LowStockItem material cuyo disponible quedó por debajo del mínimo configurado.
type LowStockItem struct {
	MaterialID   string
	MaterialName string
	Unit         string
	Quantity     int64
	Reserved     int64
	Available    int64
	MinQuantity  int64
}

// MaterialRepository puerto del almacén de existencias. GetByID y GetForUpdate devuelven
// (nil, nil) si el material no existe.
type MaterialRepository interface {
	Create(ctx context.Context, m *entity.Material) error
	GetByID(ctx context.Context, id string) (*entity.Material, error)
	// GetForUpdate bloquea la fila del material hasta el fin de la transacción (SELECT FOR UPDATE).
	GetForUpdate(ctx context.Context, id string) (*entity.Material, error)
	UpdateQuantity(ctx context.Context, id string, quantity int64, at time.Time) error
	List(ctx context.Context, limit, offset int) ([]*entity.Material, error)

	// ListBelowMinimum devuelve los materiales con disponible (existencia menos reservas activas
	// no vencidas en now) inferior a su mínimo, mayor déficit primero.
	ListBelowMinimum(ctx context.Context, now time.Time) ([]LowStockItem, error)
}
