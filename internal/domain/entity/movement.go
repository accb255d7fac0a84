package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// MovementKind tipo de movimiento del libro de existencias.
type MovementKind string

// Tipos de movimiento.
const (
	MovementSpend          MovementKind = "spend"
	MovementAdd            MovementKind = "add"
	MovementAdjustIncrease MovementKind = "adjust_increase"
	MovementAdjustDecrease MovementKind = "adjust_decrease"
)

// Valid informa si el tipo es uno de los conocidos.
func (k MovementKind) Valid() bool {
	switch k {
	case MovementSpend, MovementAdd, MovementAdjustIncrease, MovementAdjustDecrease:
		return true
	}
	return false
}

// SupplierMeta datos de la entrega del proveedor para entradas de material.
type SupplierMeta struct {
	DeliveryNumber string
	InvoiceNumber  string
	DeliveryDate   *time.Time
	Notes          string
}

// Movement es un hecho inmutable: un cambio de cantidad sobre un material.
// Delta es negativo para consumo; Quantity es siempre |Delta|.
type Movement struct {
	ID                string
	MaterialID        string
	Delta             int64
	Quantity          int64
	RequestedQuantity decimal.Decimal // cantidad recibida antes del redondeo hacia arriba
	Kind              MovementKind
	Reason            string
	OrderID           string
	ActorID           string
	Supplier          *SupplierMeta
	CreatedAt         time.Time
}
