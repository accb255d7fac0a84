package entity

import "time"

// ReservationStatus estado de una reserva.
type ReservationStatus string

// Estados posibles. active es el único no terminal.
const (
	ReservationActive    ReservationStatus = "active"
	ReservationFulfilled ReservationStatus = "fulfilled"
	ReservationCancelled ReservationStatus = "cancelled"
	ReservationExpired   ReservationStatus = "expired"
)

// Terminal indica que la reserva ya no puede cambiar de estado.
func (s ReservationStatus) Terminal() bool {
	return s != ReservationActive
}

// Reservation es una retención blanda de stock a favor de un pedido.
type Reservation struct {
	ID         string
	MaterialID string
	OrderID    string
	Quantity   int64
	Status     ReservationStatus
	ExpiresAt  *time.Time
	ActorID    string
	Notes      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Holds indica si la reserva descuenta disponibilidad en el instante now.
func (r *Reservation) Holds(now time.Time) bool {
	if r.Status != ReservationActive {
		return false
	}
	return r.ExpiresAt == nil || r.ExpiresAt.After(now)
}

// ReservationAction acción registrada en el historial de una reserva.
type ReservationAction string

// Acciones del historial.
const (
	ActionCreated   ReservationAction = "created"
	ActionCancelled ReservationAction = "cancelled"
	ActionFulfilled ReservationAction = "fulfilled"
	ActionExpired   ReservationAction = "expired"
)

// ReservationHistory entrada del historial de una reserva.
type ReservationHistory struct {
	ID            string
	ReservationID string
	Action        ReservationAction
	Quantity      int64
	Reason        string
	ActorID       string
	CreatedAt     time.Time
}
