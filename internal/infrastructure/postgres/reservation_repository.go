package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
)

var _ repository.ReservationRepository = (*ReservationRepo)(nil)

// ReservationRepo reservas e historial sobre PostgreSQL (usable con pool o tx).
type ReservationRepo struct {
	q Querier
}

// NewReservationRepository construye el adaptador. Pasar pool o tx (Querier).
func NewReservationRepository(q Querier) *ReservationRepo {
	return &ReservationRepo{q: q}
}

const reservationColumns = `id, material_id, order_id, quantity, status, expires_at, actor_id, notes, created_at, updated_at`

func (r *ReservationRepo) Create(ctx context.Context, res *entity.Reservation) error {
	query := `
		INSERT INTO material_reservations (` + reservationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.q.Exec(ctx, query,
		res.ID, res.MaterialID, nullString(res.OrderID), res.Quantity, string(res.Status), res.ExpiresAt,
		nullString(res.ActorID), res.Notes, res.CreatedAt, res.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepo) GetByID(ctx context.Context, id string) (*entity.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM material_reservations WHERE id = $1`, id)
}

// GetForUpdate bloquea la fila de la reserva hasta el fin de la transacción.
func (r *ReservationRepo) GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error) {
	return r.get(ctx, `SELECT `+reservationColumns+` FROM material_reservations WHERE id = $1 FOR UPDATE`, id)
}

func (r *ReservationRepo) get(ctx context.Context, query, id string) (*entity.Reservation, error) {
	res, err := scanReservation(r.q.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// Transition cambia el estado sólo si sigue en from; false si otra transacción ganó.
func (r *ReservationRepo) Transition(ctx context.Context, id string, from, to entity.ReservationStatus, at time.Time) (bool, error) {
	tag, err := r.q.Exec(ctx,
		`UPDATE material_reservations SET status = $3, updated_at = $4 WHERE id = $1 AND status = $2`,
		id, string(from), string(to), at)
	if err != nil {
		return false, fmt.Errorf("transition reservation: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReservationRepo) SumActive(ctx context.Context, materialID string, now time.Time) (int64, error) {
	var total int64
	err := r.q.QueryRow(ctx, `
		SELECT COALESCE(SUM(quantity), 0)::bigint
		FROM material_reservations
		WHERE material_id = $1 AND status = 'active' AND (expires_at IS NULL OR expires_at > $2)`,
		materialID, now,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum active reservations: %w", err)
	}
	return total, nil
}

// ListActiveByOrder materialIDs vacío incluye todos los materiales.
func (r *ReservationRepo) ListActiveByOrder(ctx context.Context, orderID string, materialIDs []string) ([]*entity.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM material_reservations
		WHERE order_id = $1 AND status = 'active'`
	args := []any{orderID}
	if len(materialIDs) > 0 {
		query += ` AND material_id = ANY($2)`
		args = append(args, materialIDs)
	}
	query += ` ORDER BY created_at, id`
	return r.list(ctx, query, args...)
}

func (r *ReservationRepo) ListByOrder(ctx context.Context, orderID string) ([]*entity.Reservation, error) {
	return r.list(ctx, `SELECT `+reservationColumns+` FROM material_reservations
		WHERE order_id = $1 ORDER BY created_at, id`, orderID)
}

// ExpireDue vence en una sola sentencia; dos barridos concurrentes no vencen la misma fila.
func (r *ReservationRepo) ExpireDue(ctx context.Context, now time.Time) ([]*entity.Reservation, error) {
	return r.list(ctx, `
		UPDATE material_reservations
		SET status = 'expired', updated_at = $1
		WHERE status = 'active' AND expires_at IS NOT NULL AND expires_at < $1
		RETURNING `+reservationColumns, now)
}

func (r *ReservationRepo) AddHistory(ctx context.Context, h *entity.ReservationHistory) error {
	_, err := r.q.Exec(ctx, `
		INSERT INTO material_reservation_history (id, reservation_id, action, quantity, reason, actor_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		h.ID, h.ReservationID, string(h.Action), h.Quantity, h.Reason, nullString(h.ActorID), h.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("add reservation history: %w", err)
	}
	return nil
}

func (r *ReservationRepo) History(ctx context.Context, reservationID string) ([]*entity.ReservationHistory, error) {
	rows, err := r.q.Query(ctx, `
		SELECT id, reservation_id, action, quantity, reason, actor_id, created_at
		FROM material_reservation_history
		WHERE reservation_id = $1
		ORDER BY created_at, id`, reservationID)
	if err != nil {
		return nil, fmt.Errorf("reservation history: %w", err)
	}
	defer rows.Close()
	var out []*entity.ReservationHistory
	for rows.Next() {
		var h entity.ReservationHistory
		var action string
		var actorID *string
		if err := rows.Scan(&h.ID, &h.ReservationID, &action, &h.Quantity, &h.Reason, &actorID, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan reservation history: %w", err)
		}
		h.Action = entity.ReservationAction(action)
		h.ActorID = fromNull(actorID)
		out = append(out, &h)
	}
	return out, rows.Err()
}

func (r *ReservationRepo) list(ctx context.Context, query string, args ...any) ([]*entity.Reservation, error) {
	rows, err := r.q.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()
	var out []*entity.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	return out, rows.Err()
}

func scanReservation(row pgx.Row) (*entity.Reservation, error) {
	var res entity.Reservation
	var status string
	var orderID, actorID *string
	if err := row.Scan(&res.ID, &res.MaterialID, &orderID, &res.Quantity, &status, &res.ExpiresAt,
		&actorID, &res.Notes, &res.CreatedAt, &res.UpdatedAt); err != nil {
		return nil, err
	}
	res.Status = entity.ReservationStatus(status)
	res.OrderID = fromNull(orderID)
	res.ActorID = fromNull(actorID)
	return &res, nil
}
