package repository

import (
	"context"
	"time"

	"github.com/jhoicas/printstock/internal/domain/entity"
)

// AuditFilter criterios de consulta de la traza de orquestación.
type AuditFilter struct {
	Operation  string
	MaterialID string
	OrderID    string
	From       *time.Time
	Limit      int
	Offset     int
}

// AuditRepository puerto de la traza secundaria (sólo inserción).
type AuditRepository interface {
	Create(ctx context.Context, rec *entity.AuditRecord) error
	List(ctx context.Context, f AuditFilter) ([]*entity.AuditRecord, error)
}
