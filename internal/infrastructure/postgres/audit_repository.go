package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
)

var _ repository.AuditRepository = (*AuditRepo)(nil)

// AuditRepo traza de orquestación. Se usa con el pool, fuera de la transacción de negocio.
type AuditRepo struct {
	q Querier
}

// NewAuditRepository construye el adaptador.
func NewAuditRepository(q Querier) *AuditRepo {
	return &AuditRepo{q: q}
}

func (r *AuditRepo) Create(ctx context.Context, rec *entity.AuditRecord) error {
	meta := rec.Metadata
	if meta == nil {
		meta = map[string]any{}
	}
	raw, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("marshal audit metadata: %w", err)
	}
	_, err = r.q.Exec(ctx, `
		INSERT INTO inventory_audit_log (id, operation, material_id, order_id, reservation_id,
			quantity_before, quantity_after, quantity, reason, actor_id, success, error, metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`,
		rec.ID, rec.Operation, nullString(rec.MaterialID), nullString(rec.OrderID), nullString(rec.ReservationID),
		rec.QuantityBefore, rec.QuantityAfter, rec.Quantity, rec.Reason, nullString(rec.ActorID),
		rec.Success, rec.Error, raw, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create audit record: %w", err)
	}
	return nil
}

func (r *AuditRepo) List(ctx context.Context, f repository.AuditFilter) ([]*entity.AuditRecord, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.Operation != "" {
		add("operation = $%d", f.Operation)
	}
	if f.MaterialID != "" {
		add("material_id = $%d", f.MaterialID)
	}
	if f.OrderID != "" {
		add("order_id = $%d", f.OrderID)
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	query := `SELECT id, operation, material_id, order_id, reservation_id, quantity_before, quantity_after,
		quantity, reason, actor_id, success, error, metadata, created_at FROM inventory_audit_log`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list audit records: %w", err)
	}
	defer rows.Close()
	var out []*entity.AuditRecord
	for rows.Next() {
		var rec entity.AuditRecord
		var materialID, orderID, reservationID, actorID *string
		var raw []byte
		if err := rows.Scan(&rec.ID, &rec.Operation, &materialID, &orderID, &reservationID,
			&rec.QuantityBefore, &rec.QuantityAfter, &rec.Quantity, &rec.Reason, &actorID,
			&rec.Success, &rec.Error, &raw, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan audit record: %w", err)
		}
		rec.MaterialID = fromNull(materialID)
		rec.OrderID = fromNull(orderID)
		rec.ReservationID = fromNull(reservationID)
		rec.ActorID = fromNull(actorID)
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &rec.Metadata); err != nil {
				return nil, fmt.Errorf("decode audit metadata: %w", err)
			}
		}
		out = append(out, &rec)
	}
	return out, rows.Err()
}
