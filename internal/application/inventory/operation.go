package inventory

import (
	"time"

	"github.com/shopspring/decimal"
)

// OperationType nombre de la operación orquestada tal como queda en la traza de auditoría.
type OperationType string

// Operaciones orquestadas.
const (
	OpSpend           OperationType = "spend"
	OpAdd             OperationType = "add"
	OpReturn          OperationType = "return"
	OpAdjust          OperationType = "adjust"
	OpReserve         OperationType = "reserve"
	OpUnreserve       OperationType = "unreserve"
	OpReserveAndSpend OperationType = "reserve_and_spend"
	OpFulfill         OperationType = "fulfill"
)

// Operation es una variante cerrada: sólo los tipos de este paquete la implementan.
type Operation interface {
	Type() OperationType
	sealed()
}

// SpendOp consumo directo.
type SpendOp struct {
	MaterialID        string
	Quantity          decimal.Decimal
	Reason            string
	OrderID           string
	ActorID           string
	CheckMinThreshold bool
}

// AddOp ingreso directo.
type AddOp struct {
	MaterialID string
	Quantity   decimal.Decimal
	Reason     string
	ActorID    string
}

// AdjustOp ajuste a un valor absoluto.
type AdjustOp struct {
	MaterialID  string
	NewQuantity decimal.Decimal
	Reason      string
	ActorID     string
}

// ReserveOp reserva sin descuento.
type ReserveOp struct {
	MaterialID string
	Quantity   decimal.Decimal
	OrderID    string
	Reason     string
	ExpiresAt  *time.Time
	ActorID    string
}

// UnreserveOp cancela las reservas activas de un pedido sobre esos materiales.
type UnreserveOp struct {
	MaterialIDs []string
	OrderID     string
	ActorID     string
}

func (SpendOp) Type() OperationType     { return OpSpend }
func (AddOp) Type() OperationType       { return OpAdd }
func (AdjustOp) Type() OperationType    { return OpAdjust }
func (ReserveOp) Type() OperationType   { return OpReserve }
func (UnreserveOp) Type() OperationType { return OpUnreserve }

func (SpendOp) sealed()     {}
func (AddOp) sealed()       {}
func (AdjustOp) sealed()    {}
func (ReserveOp) sealed()   {}
func (UnreserveOp) sealed() {}
