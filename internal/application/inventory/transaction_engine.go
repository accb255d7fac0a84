package inventory

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	invrules "github.com/jhoicas/printstock/internal/domain/inventory"
	"github.com/jhoicas/printstock/pkg/logger"
	"github.com/jhoicas/printstock/pkg/validator"
)

// DefaultReturnReason motivo de una devolución cuando el llamador no indica uno.
const DefaultReturnReason = "devolución de material"

// TransactionEngine es el único componente que modifica la existencia de un material y el libro
// de movimientos, siempre juntos y dentro de una transacción. Bloquea la fila del material
// (SELECT FOR UPDATE) antes de leer su cantidad.
type TransactionEngine struct {
	txRunner TxRunner
	log      *logger.Logger
	opts     options
}

// NewTransactionEngine construye el motor.
func NewTransactionEngine(txRunner TxRunner, log *logger.Logger, opts ...Option) *TransactionEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &TransactionEngine{
		txRunner: txRunner,
		log:      log.Component("transaction_engine"),
		opts:     buildOptions(opts),
	}
}

// SpendInput consumo de material. Quantity se redondea hacia arriba.
type SpendInput struct {
	MaterialID        string          `validate:"required"`
	Quantity          decimal.Decimal `validate:"gt=0"`
	Reason            string          `validate:"max=500"`
	OrderID           string
	ActorID           string
	CheckMinThreshold bool
}

// AddInput entrada de material (sin tope superior).
type AddInput struct {
	MaterialID string          `validate:"required"`
	Quantity   decimal.Decimal `validate:"gt=0"`
	Reason     string          `validate:"max=500"`
	OrderID    string
	ActorID    string
	Supplier   *entity.SupplierMeta
}

// ReturnInput devolución de un consumo previo (p. ej. línea de pedido eliminada).
type ReturnInput struct {
	MaterialID string          `validate:"required"`
	Quantity   decimal.Decimal `validate:"gt=0"`
	Reason     string          `validate:"max=500"`
	OrderID    string
	ActorID    string
}

// AdjustInput fija la existencia a un valor absoluto (conteo físico).
type AdjustInput struct {
	MaterialID  string          `validate:"required"`
	NewQuantity decimal.Decimal `validate:"gte=0"`
	Reason      string          `validate:"max=500"`
	ActorID     string
}

// BulkItem elemento de una operación masiva.
type BulkItem struct {
	MaterialID string
	Quantity   decimal.Decimal
	Reason     string
}

// StockChange resultado de spend/add/return.
type StockChange struct {
	MaterialID   string
	MaterialName string
	OldQuantity  int64
	NewQuantity  int64
	MovementID   string
	// BelowMinimum se marca sólo cuando se pidió CheckMinThreshold.
	BelowMinimum bool
}

// Adjustment resultado de adjust. MovementID vacío si Delta es cero.
type Adjustment struct {
	MaterialID  string
	OldQuantity int64
	NewQuantity int64
	Delta       int64
	MovementID  string
}

// Availability resultado de CheckAvailability.
type Availability struct {
	MaterialID        string
	MaterialName      string
	Available         bool
	RequiredQuantity  int64
	CurrentQuantity   int64
	ReservedQuantity  int64
	AvailableQuantity int64
}

// Spend descuenta material. Falla con ErrNotFound o *domain.InsufficientStockError.
func (e *TransactionEngine) Spend(ctx context.Context, in SpendInput) (StockChange, error) {
	var out StockChange
	err := observe(e.opts.obs, "spend", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			var err error
			out, err = e.SpendInTx(ctx, r, in)
			return err
		})
	})
	if err != nil {
		return StockChange{}, err
	}
	e.warnBelowMinimum(out)
	return out, nil
}

// SpendInTx ejecuta un consumo usando los repositorios de la transacción del llamador.
func (e *TransactionEngine) SpendInTx(ctx context.Context, r Repos, in SpendInput) (StockChange, error) {
	if err := validator.Struct(in); err != nil {
		return StockChange{}, err
	}
	qty, err := invrules.NormalizeQuantity("quantity", in.Quantity)
	if err != nil {
		return StockChange{}, err
	}

	m, err := lockMaterial(ctx, r, in.MaterialID)
	if err != nil {
		return StockChange{}, err
	}
	newQty := m.Quantity - qty
	if newQty < 0 {
		return StockChange{}, &domain.InsufficientStockError{
			MaterialID:   m.ID,
			MaterialName: m.Name,
			Available:    m.Quantity,
			Requested:    qty,
		}
	}

	mov, err := e.apply(ctx, r, m, newQty, &entity.Movement{
		Delta:             -qty,
		Quantity:          qty,
		RequestedQuantity: in.Quantity,
		Kind:              entity.MovementSpend,
		Reason:            in.Reason,
		OrderID:           in.OrderID,
		ActorID:           in.ActorID,
	})
	if err != nil {
		return StockChange{}, err
	}
	return StockChange{
		MaterialID:   m.ID,
		MaterialName: m.Name,
		OldQuantity:  m.Quantity,
		NewQuantity:  newQty,
		MovementID:   mov.ID,
		BelowMinimum: in.CheckMinThreshold && m.BelowMinimum(newQty),
	}, nil
}

// Add ingresa material; puede llevar los datos de la entrega del proveedor.
func (e *TransactionEngine) Add(ctx context.Context, in AddInput) (StockChange, error) {
	var out StockChange
	err := observe(e.opts.obs, "add", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			var err error
			out, err = e.AddInTx(ctx, r, in)
			return err
		})
	})
	return out, err
}

// AddInTx ejecuta un ingreso usando los repositorios de la transacción del llamador.
func (e *TransactionEngine) AddInTx(ctx context.Context, r Repos, in AddInput) (StockChange, error) {
	if err := validator.Struct(in); err != nil {
		return StockChange{}, err
	}
	qty, err := invrules.NormalizeQuantity("quantity", in.Quantity)
	if err != nil {
		return StockChange{}, err
	}

	m, err := lockMaterial(ctx, r, in.MaterialID)
	if err != nil {
		return StockChange{}, err
	}
	if m.Quantity > math.MaxInt64-qty {
		return StockChange{}, domain.Invalid("la existencia de %s excedería el máximo representable", m.ID)
	}
	newQty := m.Quantity + qty

	mov, err := e.apply(ctx, r, m, newQty, &entity.Movement{
		Delta:             qty,
		Quantity:          qty,
		RequestedQuantity: in.Quantity,
		Kind:              entity.MovementAdd,
		Reason:            in.Reason,
		OrderID:           in.OrderID,
		ActorID:           in.ActorID,
		Supplier:          in.Supplier,
	})
	if err != nil {
		return StockChange{}, err
	}
	return StockChange{
		MaterialID:   m.ID,
		MaterialName: m.Name,
		OldQuantity:  m.Quantity,
		NewQuantity:  newQty,
		MovementID:   mov.ID,
	}, nil
}

// Return revierte un consumo: es un Add con motivo de devolución por defecto.
func (e *TransactionEngine) Return(ctx context.Context, in ReturnInput) (StockChange, error) {
	var out StockChange
	err := observe(e.opts.obs, "return", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			var err error
			out, err = e.ReturnInTx(ctx, r, in)
			return err
		})
	})
	return out, err
}

// ReturnInTx devolución dentro de la transacción del llamador.
func (e *TransactionEngine) ReturnInTx(ctx context.Context, r Repos, in ReturnInput) (StockChange, error) {
	reason := in.Reason
	if reason == "" {
		reason = DefaultReturnReason
	}
	return e.AddInTx(ctx, r, AddInput{
		MaterialID: in.MaterialID,
		Quantity:   in.Quantity,
		Reason:     reason,
		OrderID:    in.OrderID,
		ActorID:    in.ActorID,
	})
}

// Adjust fija la existencia a NewQuantity (redondeado hacia arriba) y registra
// adjust_increase o adjust_decrease con Quantity = |delta|. Un delta cero no genera movimiento.
func (e *TransactionEngine) Adjust(ctx context.Context, in AdjustInput) (Adjustment, error) {
	var out Adjustment
	err := observe(e.opts.obs, "adjust", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			var err error
			out, err = e.AdjustInTx(ctx, r, in)
			return err
		})
	})
	return out, err
}

// AdjustInTx ajuste dentro de la transacción del llamador.
func (e *TransactionEngine) AdjustInTx(ctx context.Context, r Repos, in AdjustInput) (Adjustment, error) {
	if err := validator.Struct(in); err != nil {
		return Adjustment{}, err
	}
	target, err := invrules.NormalizeQuantity("new_quantity", in.NewQuantity)
	if err != nil {
		return Adjustment{}, err
	}

	m, err := lockMaterial(ctx, r, in.MaterialID)
	if err != nil {
		return Adjustment{}, err
	}
	out := Adjustment{
		MaterialID:  m.ID,
		OldQuantity: m.Quantity,
		NewQuantity: target,
		Delta:       target - m.Quantity,
	}
	if out.Delta == 0 {
		return out, nil
	}

	kind := entity.MovementAdjustIncrease
	moved := out.Delta
	if out.Delta < 0 {
		kind = entity.MovementAdjustDecrease
		moved = -out.Delta
	}
	mov, err := e.apply(ctx, r, m, target, &entity.Movement{
		Delta:             out.Delta,
		Quantity:          moved,
		RequestedQuantity: in.NewQuantity,
		Kind:              kind,
		Reason:            in.Reason,
		ActorID:           in.ActorID,
	})
	if err != nil {
		return Adjustment{}, err
	}
	out.MovementID = mov.ID
	return out, nil
}

// CheckAvailability compara lo requerido (redondeado hacia arriba) con existencia menos
// reservas activas no vencidas. Sólo lectura.
func (e *TransactionEngine) CheckAvailability(ctx context.Context, materialID string, required decimal.Decimal) (Availability, error) {
	var out Availability
	err := e.txRunner.Run(ctx, func(r Repos) error {
		var err error
		out, err = e.CheckAvailabilityInTx(ctx, r, materialID, required)
		return err
	})
	return out, err
}

// CheckAvailabilityInTx igual que CheckAvailability con los repositorios del llamador.
func (e *TransactionEngine) CheckAvailabilityInTx(ctx context.Context, r Repos, materialID string, required decimal.Decimal) (Availability, error) {
	if materialID == "" {
		return Availability{}, domain.Invalid("material_id requerido")
	}
	qty, err := invrules.NormalizeQuantity("required", required)
	if err != nil {
		return Availability{}, err
	}
	m, err := r.Materials.GetByID(ctx, materialID)
	if err != nil {
		return Availability{}, err
	}
	if m == nil {
		return Availability{}, domain.NewMaterialNotFound(materialID)
	}
	reserved, err := r.Reservations.SumActive(ctx, materialID, e.opts.now())
	if err != nil {
		return Availability{}, err
	}
	available := invrules.AvailableQuantity(m.Quantity, reserved)
	return Availability{
		MaterialID:        m.ID,
		MaterialName:      m.Name,
		Available:         qty <= available,
		RequiredQuantity:  qty,
		CurrentQuantity:   m.Quantity,
		ReservedQuantity:  reserved,
		AvailableQuantity: available,
	}, nil
}

// BulkSpend descuenta todos los ítems en orden dentro de una sola transacción. Si uno falla
// se revierte el lote completo y se devuelve ese error sin modificar.
func (e *TransactionEngine) BulkSpend(ctx context.Context, items []BulkItem, orderID, actorID string) ([]StockChange, error) {
	if len(items) == 0 {
		return nil, domain.Invalid("lote vacío")
	}
	var out []StockChange
	err := observe(e.opts.obs, "bulk_spend", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			out = make([]StockChange, 0, len(items))
			for _, it := range items {
				res, err := e.SpendInTx(ctx, r, SpendInput{
					MaterialID: it.MaterialID,
					Quantity:   it.Quantity,
					Reason:     it.Reason,
					OrderID:    orderID,
					ActorID:    actorID,
				})
				if err != nil {
					return err
				}
				out = append(out, res)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// BulkAdd ingresa todos los ítems en orden dentro de una sola transacción (todo o nada).
func (e *TransactionEngine) BulkAdd(ctx context.Context, items []BulkItem, actorID string) ([]StockChange, error) {
	if len(items) == 0 {
		return nil, domain.Invalid("lote vacío")
	}
	var out []StockChange
	err := observe(e.opts.obs, "bulk_add", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			out = make([]StockChange, 0, len(items))
			for _, it := range items {
				res, err := e.AddInTx(ctx, r, AddInput{
					MaterialID: it.MaterialID,
					Quantity:   it.Quantity,
					Reason:     it.Reason,
					ActorID:    actorID,
				})
				if err != nil {
					return err
				}
				out = append(out, res)
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// apply persiste la nueva existencia y el movimiento en la misma transacción.
func (e *TransactionEngine) apply(ctx context.Context, r Repos, m *entity.Material, newQty int64, mov *entity.Movement) (*entity.Movement, error) {
	now := e.opts.now()
	if err := r.Materials.UpdateQuantity(ctx, m.ID, newQty, now); err != nil {
		return nil, fmt.Errorf("update material %s: %w", m.ID, err)
	}
	mov.ID = uuid.New().String()
	mov.MaterialID = m.ID
	mov.CreatedAt = now
	if err := r.Movements.Create(ctx, mov); err != nil {
		return nil, fmt.Errorf("append movement for %s: %w", m.ID, err)
	}
	return mov, nil
}

func (e *TransactionEngine) warnBelowMinimum(c StockChange) {
	if !c.BelowMinimum {
		return
	}
	e.log.Warn().
		Str("material_id", c.MaterialID).
		Str("material", c.MaterialName).
		Int64("quantity", c.NewQuantity).
		Msg("existencia por debajo del mínimo")
}

// lockMaterial bloquea la fila del material; ErrNotFound si no existe.
func lockMaterial(ctx context.Context, r Repos, id string) (*entity.Material, error) {
	m, err := r.Materials.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock material %s: %w", id, err)
	}
	if m == nil {
		return nil, domain.NewMaterialNotFound(id)
	}
	return m, nil
}
