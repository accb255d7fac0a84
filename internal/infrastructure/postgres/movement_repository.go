package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
)

var _ repository.MovementRepository = (*MovementRepo)(nil)

// MovementRepo libro de movimientos sobre PostgreSQL. Sólo inserta; nunca actualiza filas.
type MovementRepo struct {
	q Querier
}

// NewMovementRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMovementRepository(q Querier) *MovementRepo {
	return &MovementRepo{q: q}
}

const movementColumns = `id, material_id, delta, quantity, requested_quantity, kind, reason, order_id, actor_id,
	delivery_number, invoice_number, delivery_date, supplier_notes, created_at`

// Create persiste un movimiento.
func (r *MovementRepo) Create(ctx context.Context, m *entity.Movement) error {
	var deliveryNumber, invoiceNumber, notes *string
	var deliveryDate *time.Time
	if s := m.Supplier; s != nil {
		deliveryNumber = nullString(s.DeliveryNumber)
		invoiceNumber = nullString(s.InvoiceNumber)
		notes = nullString(s.Notes)
		deliveryDate = s.DeliveryDate
	}
	query := `
		INSERT INTO material_movements (` + movementColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.MaterialID, m.Delta, m.Quantity, m.RequestedQuantity, string(m.Kind), m.Reason,
		nullString(m.OrderID), nullString(m.ActorID),
		deliveryNumber, invoiceNumber, deliveryDate, notes, m.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create movement: %w", err)
	}
	return nil
}

// List filtra dinámicamente y ordena por fecha descendente.
func (r *MovementRepo) List(ctx context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	var where []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}
	if f.MaterialID != "" {
		add("material_id = $%d", f.MaterialID)
	}
	if f.OrderID != "" {
		add("order_id = $%d", f.OrderID)
	}
	if f.ActorID != "" {
		add("actor_id = $%d", f.ActorID)
	}
	if f.Kind != "" {
		add("kind = $%d", string(f.Kind))
	}
	if f.From != nil {
		add("created_at >= $%d", *f.From)
	}
	if f.To != nil {
		add("created_at < $%d", *f.To)
	}

	query := `SELECT ` + movementColumns + ` FROM material_movements`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	args = append(args, f.Limit, f.Offset)
	query += fmt.Sprintf(" ORDER BY created_at DESC, id LIMIT $%d OFFSET $%d", len(args)-1, len(args))

	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list movements: %w", err)
	}
	defer rows.Close()
	var list []*entity.Movement
	for rows.Next() {
		m, err := scanMovement(rows)
		if err != nil {
			return nil, fmt.Errorf("scan movement: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// Summarize totales por tipo de un material en [from, to).
func (r *MovementRepo) Summarize(ctx context.Context, materialID string, from, to time.Time) (repository.MovementSummary, error) {
	query := `
		SELECT
			COALESCE(SUM(quantity) FILTER (WHERE kind = 'spend'), 0)::bigint,
			COALESCE(SUM(quantity) FILTER (WHERE kind = 'add'), 0)::bigint,
			COALESCE(SUM(quantity) FILTER (WHERE kind = 'adjust_increase'), 0)::bigint,
			COALESCE(SUM(quantity) FILTER (WHERE kind = 'adjust_decrease'), 0)::bigint,
			COALESCE(SUM(delta), 0)::bigint,
			COUNT(*)
		FROM material_movements
		WHERE material_id = $1 AND created_at >= $2 AND created_at < $3`
	s := repository.MovementSummary{MaterialID: materialID}
	err := r.q.QueryRow(ctx, query, materialID, from, to).Scan(
		&s.Spent, &s.Added, &s.AdjustedUp, &s.AdjustedDown, &s.Net, &s.MovementsCount,
	)
	if err != nil {
		return repository.MovementSummary{}, fmt.Errorf("summarize movements: %w", err)
	}
	return s, nil
}

// Daily entradas y salidas por día calendario (UTC).
func (r *MovementRepo) Daily(ctx context.Context, materialID string, from, to time.Time) ([]repository.DailyMovement, error) {
	query := `
		SELECT
			date_trunc('day', created_at AT TIME ZONE 'UTC') AS day,
			COALESCE(SUM(delta) FILTER (WHERE delta > 0), 0)::bigint AS inbound,
			COALESCE(-SUM(delta) FILTER (WHERE delta < 0), 0)::bigint AS outbound
		FROM material_movements
		WHERE created_at >= $1 AND created_at < $2
		  AND ($3 = '' OR material_id = $3)
		GROUP BY day
		ORDER BY day`
	rows, err := r.q.Query(ctx, query, from, to, materialID)
	if err != nil {
		return nil, fmt.Errorf("daily movements: %w", err)
	}
	defer rows.Close()
	var out []repository.DailyMovement
	for rows.Next() {
		var d repository.DailyMovement
		if err := rows.Scan(&d.Date, &d.Inbound, &d.Outbound); err != nil {
			return nil, fmt.Errorf("scan daily movement: %w", err)
		}
		d.Date = time.Date(d.Date.Year(), d.Date.Month(), d.Date.Day(), 0, 0, 0, 0, time.UTC)
		out = append(out, d)
	}
	return out, rows.Err()
}

func scanMovement(row pgx.Row) (*entity.Movement, error) {
	var m entity.Movement
	var kind string
	var orderID, actorID, deliveryNumber, invoiceNumber, notes *string
	var deliveryDate *time.Time
	if err := row.Scan(
		&m.ID, &m.MaterialID, &m.Delta, &m.Quantity, &m.RequestedQuantity, &kind, &m.Reason,
		&orderID, &actorID, &deliveryNumber, &invoiceNumber, &deliveryDate, &notes, &m.CreatedAt,
	); err != nil {
		return nil, err
	}
	m.Kind = entity.MovementKind(kind)
	m.OrderID = fromNull(orderID)
	m.ActorID = fromNull(actorID)
	if deliveryNumber != nil || invoiceNumber != nil || deliveryDate != nil || notes != nil {
		m.Supplier = &entity.SupplierMeta{
			DeliveryNumber: fromNull(deliveryNumber),
			InvoiceNumber:  fromNull(invoiceNumber),
			DeliveryDate:   deliveryDate,
			Notes:          fromNull(notes),
		}
	}
	return &m, nil
}
