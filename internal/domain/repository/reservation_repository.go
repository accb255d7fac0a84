package repository

import (
	"context"
	"time"

	"github.com/jhoicas/printstock/internal/domain/entity"
)

// ReservationRepository puerto del almacén de reservas. GetByID y GetForUpdate devuelven
// (nil, nil) si la reserva no existe.
type ReservationRepository interface {
	Create(ctx context.Context, r *entity.Reservation) error
	GetByID(ctx context.Context, id string) (*entity.Reservation, error)
	GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error)

	// Transition cambia el estado sólo si el actual es from; devuelve false si otra
	// transacción ya lo cambió.
	Transition(ctx context.Context, id string, from, to entity.ReservationStatus, at time.Time) (bool, error)

	// SumActive suma las reservas activas del material que no han vencido en now.
	SumActive(ctx context.Context, materialID string, now time.Time) (int64, error)

	// ListActiveByOrder reservas activas del pedido; materialIDs vacío no filtra por material.
	ListActiveByOrder(ctx context.Context, orderID string, materialIDs []string) ([]*entity.Reservation, error)
	ListByOrder(ctx context.Context, orderID string) ([]*entity.Reservation, error)

	// ExpireDue pasa a expired todas las reservas activas con expires_at < now y las devuelve.
	ExpireDue(ctx context.Context, now time.Time) ([]*entity.Reservation, error)

	AddHistory(ctx context.Context, h *entity.ReservationHistory) error
	History(ctx context.Context, reservationID string) ([]*entity.ReservationHistory, error)
}
