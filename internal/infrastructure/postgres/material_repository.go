package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
)

var _ repository.MaterialRepository = (*MaterialRepo)(nil)

// MaterialRepo implementación de MaterialRepository sobre PostgreSQL (usable con pool o tx).
type MaterialRepo struct {
	q Querier
}

// NewMaterialRepository construye el adaptador. Pasar pool o tx (Querier).
func NewMaterialRepository(q Querier) *MaterialRepo {
	return &MaterialRepo{q: q}
}

const materialColumns = `id, name, unit, quantity, min_quantity, max_quantity, created_at, updated_at`

// Create inserta un material; un id repetido es ErrConflict.
func (r *MaterialRepo) Create(ctx context.Context, m *entity.Material) error {
	query := `
		INSERT INTO materials (` + materialColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
	_, err := r.q.Exec(ctx, query,
		m.ID, m.Name, m.Unit, m.Quantity, m.MinQuantity, m.MaxQuantity, m.CreatedAt, m.UpdatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("material %s: %w", m.ID, domain.ErrConflict)
		}
		return fmt.Errorf("create material: %w", err)
	}
	return nil
}

// GetByID devuelve (nil, nil) si no existe.
func (r *MaterialRepo) GetByID(ctx context.Context, id string) (*entity.Material, error) {
	return r.get(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1`, id)
}

// GetForUpdate obtiene el material y bloquea la fila (SELECT FOR UPDATE).
func (r *MaterialRepo) GetForUpdate(ctx context.Context, id string) (*entity.Material, error) {
	return r.get(ctx, `SELECT `+materialColumns+` FROM materials WHERE id = $1 FOR UPDATE`, id)
}

func (r *MaterialRepo) get(ctx context.Context, query, id string) (*entity.Material, error) {
	m, err := scanMaterial(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get material: %w", err)
	}
	return m, nil
}

// UpdateQuantity fija la existencia. El CHECK (quantity >= 0) respalda la regla del motor.
func (r *MaterialRepo) UpdateQuantity(ctx context.Context, id string, quantity int64, at time.Time) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE materials SET quantity = $2, updated_at = $3 WHERE id = $1`, id, quantity, at)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == codeCheckViolation {
			return fmt.Errorf("material %s: existencia negativa %d: %w", id, quantity, err)
		}
		return fmt.Errorf("update material quantity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewMaterialNotFound(id)
	}
	return nil
}

// List ordena por nombre.
func (r *MaterialRepo) List(ctx context.Context, limit, offset int) ([]*entity.Material, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.q.Query(ctx,
		`SELECT `+materialColumns+` FROM materials ORDER BY name, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list materials: %w", err)
	}
	defer rows.Close()
	var list []*entity.Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		list = append(list, m)
	}
	return list, rows.Err()
}

// ListBelowMinimum calcula el disponible en SQL con la misma regla que SumActive.
func (r *MaterialRepo) ListBelowMinimum(ctx context.Context, now time.Time) ([]repository.LowStockItem, error) {
	query := `
		SELECT m.id, m.name, m.unit, m.quantity, COALESCE(res.reserved, 0), m.min_quantity
		FROM materials m
		LEFT JOIN (
			SELECT material_id, SUM(quantity)::bigint AS reserved
			FROM material_reservations
			WHERE status = 'active' AND (expires_at IS NULL OR expires_at > $1)
			GROUP BY material_id
		) res ON res.material_id = m.id
		WHERE m.min_quantity IS NOT NULL
		  AND GREATEST(m.quantity - COALESCE(res.reserved, 0), 0) < m.min_quantity
		ORDER BY m.min_quantity - GREATEST(m.quantity - COALESCE(res.reserved, 0), 0) DESC, m.name`
	rows, err := r.q.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()
	var out []repository.LowStockItem
	for rows.Next() {
		var it repository.LowStockItem
		if err := rows.Scan(&it.MaterialID, &it.MaterialName, &it.Unit, &it.Quantity, &it.Reserved, &it.MinQuantity); err != nil {
			return nil, fmt.Errorf("scan low stock: %w", err)
		}
		it.Available = it.Quantity - it.Reserved
		if it.Available < 0 {
			it.Available = 0
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func scanMaterial(row pgx.Row) (*entity.Material, error) {
	var m entity.Material
	if err := row.Scan(&m.ID, &m.Name, &m.Unit, &m.Quantity, &m.MinQuantity, &m.MaxQuantity, &m.CreatedAt, &m.UpdatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
