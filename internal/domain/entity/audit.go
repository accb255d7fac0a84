package entity

import "time"

// AuditRecord traza secundaria de la capa de orquestación: intención de la operación y resultado.
// Es independiente del libro de movimientos.
type AuditRecord struct {
	ID             string
	Operation      string
	MaterialID     string
	OrderID        string
	ReservationID  string
	QuantityBefore *int64
	QuantityAfter  *int64
	Quantity       int64
	Reason         string
	ActorID        string
	Success        bool
	Error          string
	Metadata       map[string]any
	CreatedAt      time.Time
}
