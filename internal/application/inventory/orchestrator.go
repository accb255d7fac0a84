package inventory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
	"github.com/jhoicas/printstock/pkg/logger"
)

// Orchestrator compone los motores de existencias y de reservas en flujos que el llamador
// ve como atómicos, y deja una traza secundaria por cada operación.
// La traza se escribe después de confirmar y nunca altera el resultado de la operación.
type Orchestrator struct {
	txRunner TxRunner
	stock    *TransactionEngine
	res      *ReservationEngine
	audit    repository.AuditRepository
	log      *logger.Logger
	opts     options
}

// NewOrchestrator construye la capa de orquestación. audit puede ser nil.
func NewOrchestrator(
	txRunner TxRunner,
	stock *TransactionEngine,
	res *ReservationEngine,
	audit repository.AuditRepository,
	log *logger.Logger,
	opts ...Option,
) *Orchestrator {
	if log == nil {
		log = logger.Nop()
	}
	return &Orchestrator{
		txRunner: txRunner,
		stock:    stock,
		res:      res,
		audit:    audit,
		log:      log.Component("orchestrator"),
		opts:     buildOptions(opts),
	}
}

// ReserveItem reserva de un material para un pedido. Sin ExpiresAt ni NoExpiry se aplica la
// vigencia de línea de pedido (24h por defecto).
type ReserveItem struct {
	MaterialID string
	Quantity   decimal.Decimal
	OrderID    string
	Reason     string
	ExpiresAt  *time.Time
	NoExpiry   bool
}

// Requirement requerimiento de material para CheckAvailability.
type Requirement struct {
	MaterialID string
	Quantity   decimal.Decimal
}

// AvailabilityReport detalle por requerimiento y todos los faltantes.
type AvailabilityReport struct {
	Items      []Availability
	Shortfalls []Availability
}

// OK indica que no hay faltantes.
func (r AvailabilityReport) OK() bool { return len(r.Shortfalls) == 0 }

// ReserveAndSpendInput reserva y consumo inmediato en una sola unidad de trabajo.
type ReserveAndSpendInput struct {
	MaterialID string
	Quantity   decimal.Decimal
	OrderID    string
	Reason     string
	ActorID    string
}

// ShrinkInput libera cantidades de las reservas de una línea de pedido.
// Release: material -> unidades a liberar.
type ShrinkInput struct {
	OrderID        string
	ReservationIDs []string
	Release        map[string]int64
	ActorID        string
}

// Outcome resultado de Execute; sólo se llenan los campos de la operación ejecutada.
type Outcome struct {
	Operation    OperationType
	Change       *StockChange
	Adjustment   *Adjustment
	Reservations []*entity.Reservation
	Cancelled    int
}

// ReserveMaterials crea una reserva por ítem, sin descontar existencia, como un lote atómico:
// si un ítem no tiene disponibilidad no queda ninguna reserva de la llamada.
func (o *Orchestrator) ReserveMaterials(ctx context.Context, items []ReserveItem, actorID string) ([]*entity.Reservation, error) {
	if len(items) == 0 {
		return nil, domain.Invalid("lote vacío")
	}
	var out []*entity.Reservation
	err := observe(o.opts.obs, "reserve_materials", func() error {
		return o.txRunner.Run(ctx, func(r Repos) error {
			out = make([]*entity.Reservation, 0, len(items))
			for _, it := range items {
				res, err := o.res.CreateInTx(ctx, r, CreateReservationInput{
					MaterialID:  it.MaterialID,
					OrderID:     it.OrderID,
					Quantity:    it.Quantity,
					ExpiresAt:   it.ExpiresAt,
					DefaultHold: it.ExpiresAt == nil && !it.NoExpiry,
					ActorID:     actorID,
					Notes:       it.Reason,
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
		first := items[0]
		o.record(ctx, entity.AuditRecord{
			Operation:  string(OpReserve),
			MaterialID: first.MaterialID,
			OrderID:    first.OrderID,
			Reason:     first.Reason,
			ActorID:    actorID,
			Error:      err.Error(),
			Metadata:   map[string]any{"items": len(items)},
		})
		return nil, err
	}
	for i, res := range out {
		meta := map[string]any{"batch_index": i}
		if res.ExpiresAt != nil {
			meta["expires_at"] = res.ExpiresAt.UTC().Format(time.RFC3339)
		}
		o.record(ctx, entity.AuditRecord{
			Operation:     string(OpReserve),
			MaterialID:    res.MaterialID,
			OrderID:       res.OrderID,
			ReservationID: res.ID,
			Quantity:      res.Quantity,
			Reason:        items[i].Reason,
			ActorID:       actorID,
			Success:       true,
			Metadata:      meta,
		})
	}
	return out, nil
}

// UnreserveMaterials cancela las reservas activas del pedido sobre esos materiales
// (todos si materialIDs está vacío). Devuelve cuántas se cancelaron.
func (o *Orchestrator) UnreserveMaterials(ctx context.Context, materialIDs []string, orderID, actorID string) (int, error) {
	if orderID == "" {
		return 0, domain.Invalid("order_id requerido")
	}
	var cancelled []*entity.Reservation
	err := observe(o.opts.obs, "unreserve_materials", func() error {
		return o.txRunner.Run(ctx, func(r Repos) error {
			active, err := r.Reservations.ListActiveByOrder(ctx, orderID, materialIDs)
			if err != nil {
				return fmt.Errorf("list reservations of order %s: %w", orderID, err)
			}
			cancelled = cancelled[:0]
			for _, res := range active {
				out, err := o.res.CancelInTx(ctx, r, res.ID, "liberación de pedido", actorID)
				if err != nil {
					return err
				}
				if out.Changed {
					cancelled = append(cancelled, out.Reservation)
				}
			}
			return nil
		})
	})
	if err != nil {
		o.record(ctx, entity.AuditRecord{
			Operation: string(OpUnreserve),
			OrderID:   orderID,
			ActorID:   actorID,
			Error:     err.Error(),
			Metadata:  map[string]any{"material_ids": materialIDs},
		})
		return 0, err
	}
	for _, res := range cancelled {
		o.record(ctx, entity.AuditRecord{
			Operation:     string(OpUnreserve),
			MaterialID:    res.MaterialID,
			OrderID:       orderID,
			ReservationID: res.ID,
			Quantity:      res.Quantity,
			ActorID:       actorID,
			Success:       true,
		})
	}
	return len(cancelled), nil
}

// CancelReservations cancela reservas por id en una sola transacción. Las ya cerradas se
// ignoran; devuelve cuántas cambiaron de estado.
func (o *Orchestrator) CancelReservations(ctx context.Context, ids []string, reason, actorID string) (int, error) {
	var cancelled []*entity.Reservation
	err := o.txRunner.Run(ctx, func(r Repos) error {
		cancelled = cancelled[:0]
		for _, id := range ids {
			out, err := o.res.CancelInTx(ctx, r, id, reason, actorID)
			if err != nil {
				return err
			}
			if out.Changed {
				cancelled = append(cancelled, out.Reservation)
			}
		}
		return nil
	})
	if err != nil {
		o.record(ctx, entity.AuditRecord{
			Operation: string(OpUnreserve),
			Reason:    reason,
			ActorID:   actorID,
			Error:     err.Error(),
			Metadata:  map[string]any{"reservation_ids": ids},
		})
		return 0, err
	}
	for _, res := range cancelled {
		o.record(ctx, entity.AuditRecord{
			Operation:     string(OpUnreserve),
			MaterialID:    res.MaterialID,
			OrderID:       res.OrderID,
			ReservationID: res.ID,
			Quantity:      res.Quantity,
			Reason:        reason,
			ActorID:       actorID,
			Success:       true,
		})
	}
	return len(cancelled), nil
}

// FulfillReservations cumple todas las reservas en una sola transacción (todo o nada).
func (o *Orchestrator) FulfillReservations(ctx context.Context, ids []string, actorID string) ([]FulfillResult, error) {
	if len(ids) == 0 {
		return nil, domain.Invalid("sin reservas para cumplir")
	}
	var out []FulfillResult
	err := o.txRunner.Run(ctx, func(r Repos) error {
		out = make([]FulfillResult, 0, len(ids))
		for _, id := range ids {
			res, err := o.res.FulfillInTx(ctx, r, id, actorID)
			if err != nil {
				return err
			}
			out = append(out, res)
		}
		return nil
	})
	if err != nil {
		o.record(ctx, entity.AuditRecord{
			Operation: string(OpFulfill),
			ActorID:   actorID,
			Error:     err.Error(),
			Metadata:  map[string]any{"reservation_ids": ids},
		})
		return nil, err
	}
	for _, f := range out {
		o.recordChange(ctx, OpFulfill, f.Spend, f.Reservation.OrderID, f.Reservation.ID, f.Reservation.Quantity, "", actorID)
	}
	return out, nil
}

// ReturnMaterials devuelve varios materiales en una sola transacción (todo o nada).
func (o *Orchestrator) ReturnMaterials(ctx context.Context, items []BulkItem, orderID, actorID string) ([]StockChange, error) {
	if len(items) == 0 {
		return nil, domain.Invalid("lote vacío")
	}
	var out []StockChange
	err := o.txRunner.Run(ctx, func(r Repos) error {
		out = make([]StockChange, 0, len(items))
		for _, it := range items {
			c, err := o.stock.ReturnInTx(ctx, r, ReturnInput{
				MaterialID: it.MaterialID,
				Quantity:   it.Quantity,
				Reason:     it.Reason,
				OrderID:    orderID,
				ActorID:    actorID,
			})
			if err != nil {
				return err
			}
			out = append(out, c)
		}
		return nil
	})
	if err != nil {
		o.record(ctx, entity.AuditRecord{
			Operation: string(OpReturn),
			OrderID:   orderID,
			ActorID:   actorID,
			Error:     err.Error(),
			Metadata:  map[string]any{"items": len(items)},
		})
		return nil, err
	}
	for i, c := range out {
		o.recordChange(ctx, OpReturn, c, orderID, "", c.NewQuantity-c.OldQuantity, items[i].Reason, actorID)
	}
	return out, nil
}

// ReserveAndSpend reserva y consume la misma cantidad en una sola unidad de trabajo; la
// reserva queda fulfilled y el consumo deja su movimiento en el libro.
func (o *Orchestrator) ReserveAndSpend(ctx context.Context, in ReserveAndSpendInput) (FulfillResult, error) {
	var out FulfillResult
	err := observe(o.opts.obs, "reserve_and_spend", func() error {
		return o.txRunner.Run(ctx, func(r Repos) error {
			res, err := o.res.CreateInTx(ctx, r, CreateReservationInput{
				MaterialID: in.MaterialID,
				OrderID:    in.OrderID,
				Quantity:   in.Quantity,
				ActorID:    in.ActorID,
				Notes:      in.Reason,
			})
			if err != nil {
				return err
			}
			out, err = o.res.FulfillInTx(ctx, r, res.ID, in.ActorID)
			return err
		})
	})
	if err != nil {
		o.record(ctx, entity.AuditRecord{
			Operation:  string(OpReserveAndSpend),
			MaterialID: in.MaterialID,
			OrderID:    in.OrderID,
			Reason:     in.Reason,
			ActorID:    in.ActorID,
			Error:      err.Error(),
			Metadata:   map[string]any{"requested": in.Quantity.String()},
		})
		return FulfillResult{}, err
	}
	o.recordChange(ctx, OpReserveAndSpend, out.Spend, in.OrderID, out.Reservation.ID, out.Reservation.Quantity, in.Reason, in.ActorID)
	return out, nil
}

// CheckAvailability evalúa cada requerimiento contra existencia menos reservas activas y
// devuelve todos los faltantes, no sólo el primero.
func (o *Orchestrator) CheckAvailability(ctx context.Context, reqs []Requirement) (AvailabilityReport, error) {
	var report AvailabilityReport
	err := o.txRunner.Run(ctx, func(r Repos) error {
		report = AvailabilityReport{Items: make([]Availability, 0, len(reqs))}
		for _, req := range reqs {
			a, err := o.stock.CheckAvailabilityInTx(ctx, r, req.MaterialID, req.Quantity)
			if err != nil {
				return err
			}
			report.Items = append(report.Items, a)
			if !a.Available {
				report.Shortfalls = append(report.Shortfalls, a)
			}
		}
		return nil
	})
	if err != nil {
		return AvailabilityReport{}, err
	}
	return report, nil
}

// ShrinkReservations libera unidades de las reservas de una línea de pedido, de la más nueva
// a la más antigua. Las reservas se cancelan enteras; si se libera de más, el remanente se
// vuelve a reservar. Devuelve los ids de reserva vigentes de la línea.
func (o *Orchestrator) ShrinkReservations(ctx context.Context, in ShrinkInput) ([]string, error) {
	var kept []string
	err := o.txRunner.Run(ctx, func(r Repos) error {
		now := o.opts.now()
		byMaterial := make(map[string][]*entity.Reservation)
		kept = kept[:0]
		for _, id := range in.ReservationIDs {
			res, err := lockReservation(ctx, r, id)
			if err != nil {
				return err
			}
			// Una reserva vencida y aún no barrida ya no descuenta disponibilidad: no libera nada
			// y queda para CleanupExpired.
			if !res.Holds(now) {
				continue
			}
			if _, ok := in.Release[res.MaterialID]; !ok {
				kept = append(kept, res.ID)
				continue
			}
			byMaterial[res.MaterialID] = append(byMaterial[res.MaterialID], res)
		}

		materials := make([]string, 0, len(byMaterial))
		for id := range byMaterial {
			materials = append(materials, id)
		}
		sort.Strings(materials)

		for _, materialID := range materials {
			list := byMaterial[materialID]
			sort.SliceStable(list, func(i, j int) bool { return list[i].CreatedAt.After(list[j].CreatedAt) })
			remaining := in.Release[materialID]
			var template *entity.Reservation
			for _, res := range list {
				if remaining <= 0 {
					kept = append(kept, res.ID)
					continue
				}
				if _, err := o.res.CancelInTx(ctx, r, res.ID, "reducción de línea de pedido", in.ActorID); err != nil {
					return err
				}
				remaining -= res.Quantity
				template = res
			}
			if remaining < 0 && template != nil {
				again, err := o.res.CreateInTx(ctx, r, CreateReservationInput{
					MaterialID:  materialID,
					OrderID:     template.OrderID,
					Quantity:    decimal.NewFromInt(-remaining),
					ExpiresAt:   futureOrNil(template.ExpiresAt, now),
					DefaultHold: template.ExpiresAt != nil,
					ActorID:     in.ActorID,
					Notes:       template.Notes,
				})
				if err != nil {
					return err
				}
				kept = append(kept, again.ID)
			}
		}
		return nil
	})
	if err != nil {
		o.record(ctx, entity.AuditRecord{
			Operation: string(OpUnreserve),
			OrderID:   in.OrderID,
			ActorID:   in.ActorID,
			Error:     err.Error(),
			Metadata:  map[string]any{"reservation_ids": in.ReservationIDs},
		})
		return nil, err
	}
	for materialID, qty := range in.Release {
		o.record(ctx, entity.AuditRecord{
			Operation:  string(OpUnreserve),
			MaterialID: materialID,
			OrderID:    in.OrderID,
			Quantity:   qty,
			ActorID:    in.ActorID,
			Success:    true,
			Metadata:   map[string]any{"partial": true},
		})
	}
	return kept, nil
}

// Execute despacha una operación de la variante cerrada Operation.
func (o *Orchestrator) Execute(ctx context.Context, op Operation) (Outcome, error) {
	if op == nil {
		return Outcome{}, domain.Invalid("operación requerida")
	}
	var out Outcome
	switch v := op.(type) {
	case SpendOp:
		c, err := o.stock.Spend(ctx, SpendInput{
			MaterialID:        v.MaterialID,
			Quantity:          v.Quantity,
			Reason:            v.Reason,
			OrderID:           v.OrderID,
			ActorID:           v.ActorID,
			CheckMinThreshold: v.CheckMinThreshold,
		})
		o.recordResult(ctx, OpSpend, v.MaterialID, v.OrderID, v.Quantity, v.Reason, v.ActorID, c, err)
		if err != nil {
			return Outcome{}, err
		}
		out.Change = &c
	case AddOp:
		c, err := o.stock.Add(ctx, AddInput{
			MaterialID: v.MaterialID,
			Quantity:   v.Quantity,
			Reason:     v.Reason,
			ActorID:    v.ActorID,
		})
		o.recordResult(ctx, OpAdd, v.MaterialID, "", v.Quantity, v.Reason, v.ActorID, c, err)
		if err != nil {
			return Outcome{}, err
		}
		out.Change = &c
	case AdjustOp:
		a, err := o.stock.Adjust(ctx, AdjustInput{
			MaterialID:  v.MaterialID,
			NewQuantity: v.NewQuantity,
			Reason:      v.Reason,
			ActorID:     v.ActorID,
		})
		rec := entity.AuditRecord{
			Operation:  string(OpAdjust),
			MaterialID: v.MaterialID,
			Reason:     v.Reason,
			ActorID:    v.ActorID,
			Metadata:   map[string]any{"target": v.NewQuantity.String()},
		}
		if err != nil {
			rec.Error = err.Error()
			o.record(ctx, rec)
			return Outcome{}, err
		}
		rec.Success = true
		rec.QuantityBefore = &a.OldQuantity
		rec.QuantityAfter = &a.NewQuantity
		rec.Quantity = a.Delta
		o.record(ctx, rec)
		out.Adjustment = &a
	case ReserveOp:
		list, err := o.ReserveMaterials(ctx, []ReserveItem{{
			MaterialID: v.MaterialID,
			Quantity:   v.Quantity,
			OrderID:    v.OrderID,
			Reason:     v.Reason,
			ExpiresAt:  v.ExpiresAt,
		}}, v.ActorID)
		if err != nil {
			return Outcome{}, err
		}
		out.Reservations = list
	case UnreserveOp:
		n, err := o.UnreserveMaterials(ctx, v.MaterialIDs, v.OrderID, v.ActorID)
		if err != nil {
			return Outcome{}, err
		}
		out.Cancelled = n
	default:
		// Operation es sellada; sólo se llega aquí con un puntero a una variante.
		return Outcome{}, domain.Invalid("operación desconocida %T", op)
	}
	out.Operation = op.Type()
	return out, nil
}

func (o *Orchestrator) recordResult(ctx context.Context, op OperationType, materialID, orderID string, requested decimal.Decimal, reason, actorID string, c StockChange, err error) {
	if err != nil {
		o.record(ctx, entity.AuditRecord{
			Operation:  string(op),
			MaterialID: materialID,
			OrderID:    orderID,
			Reason:     reason,
			ActorID:    actorID,
			Error:      err.Error(),
			Metadata:   map[string]any{"requested": requested.String()},
		})
		return
	}
	moved := c.NewQuantity - c.OldQuantity
	if moved < 0 {
		moved = -moved
	}
	o.recordChange(ctx, op, c, orderID, "", moved, reason, actorID)
}

func (o *Orchestrator) recordChange(ctx context.Context, op OperationType, c StockChange, orderID, reservationID string, qty int64, reason, actorID string) {
	before, after := c.OldQuantity, c.NewQuantity
	o.record(ctx, entity.AuditRecord{
		Operation:      string(op),
		MaterialID:     c.MaterialID,
		OrderID:        orderID,
		ReservationID:  reservationID,
		QuantityBefore: &before,
		QuantityAfter:  &after,
		Quantity:       qty,
		Reason:         reason,
		ActorID:        actorID,
		Success:        true,
		Metadata:       map[string]any{"movement_id": c.MovementID},
	})
}

// record escribe la traza fuera de la transacción de negocio; un fallo sólo se registra en el log.
func (o *Orchestrator) record(ctx context.Context, rec entity.AuditRecord) {
	if o.audit == nil {
		return
	}
	rec.ID = uuid.New().String()
	rec.CreatedAt = o.opts.now()
	if err := o.audit.Create(context.WithoutCancel(ctx), &rec); err != nil {
		o.log.Error().
			Err(err).
			Str("operation", rec.Operation).
			Str("material_id", rec.MaterialID).
			Str("order_id", rec.OrderID).
			Msg("no se pudo escribir la auditoría")
	}
}

func futureOrNil(t *time.Time, now time.Time) *time.Time {
	if t == nil || !t.After(now) {
		return nil
	}
	return t
}
