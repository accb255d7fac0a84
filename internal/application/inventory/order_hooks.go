package inventory

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/jhoicas/printstock/internal/domain"
	invrules "github.com/jhoicas/printstock/internal/domain/inventory"
	"github.com/jhoicas/printstock/pkg/logger"
)

// BOMComponent consumo de un material por unidad de producto.
type BOMComponent struct {
	MaterialID string
	PerUnit    decimal.Decimal
}

// BillOfMaterials resuelve la lista de materiales de un producto. La implementa el catálogo.
type BillOfMaterials interface {
	Components(ctx context.Context, productID string) ([]BOMComponent, error)
}

// LineItem línea de un pedido en construcción.
type LineItem struct {
	OrderID   string
	ProductID string
	Quantity  int64
}

// OrderHooks traduce los eventos de líneas de pedido a reservas y movimientos.
type OrderHooks struct {
	orch *Orchestrator
	bom  BillOfMaterials
	log  *logger.Logger
}

// NewOrderHooks construye los hooks del flujo de pedidos.
func NewOrderHooks(orch *Orchestrator, bom BillOfMaterials, log *logger.Logger) *OrderHooks {
	if log == nil {
		log = logger.Nop()
	}
	return &OrderHooks{orch: orch, bom: bom, log: log.Component("order_hooks")}
}

// LineItemAdded reserva ceil(por unidad × cantidad) de cada componente con la vigencia por
// defecto y devuelve los ids de reserva que la línea debe guardar.
func (h *OrderHooks) LineItemAdded(ctx context.Context, item LineItem, actorID string) ([]string, error) {
	if item.Quantity <= 0 {
		return nil, domain.Invalid("cantidad de línea inválida: %d", item.Quantity)
	}
	req, err := h.requirements(ctx, item.ProductID, item.Quantity)
	if err != nil {
		return nil, err
	}
	return h.reserve(ctx, item, req, actorID)
}

// LineItemRemoved libera lo que la línea tenía. Sin ids de reserva (líneas anteriores a las
// reservas) devuelve el material al almacén.
func (h *OrderHooks) LineItemRemoved(ctx context.Context, item LineItem, reservationIDs []string, actorID string) error {
	if len(reservationIDs) > 0 {
		_, err := h.orch.CancelReservations(ctx, reservationIDs, "línea de pedido eliminada", actorID)
		return err
	}
	req, err := h.requirements(ctx, item.ProductID, item.Quantity)
	if err != nil {
		return err
	}
	items := toBulk(req, "línea de pedido eliminada")
	if len(items) == 0 {
		return nil
	}
	h.log.Info().
		Str("order_id", item.OrderID).
		Str("product_id", item.ProductID).
		Msg("línea sin reservas, se devuelve material")
	_, err = h.orch.ReturnMaterials(ctx, items, item.OrderID, actorID)
	return err
}

// LineItemQuantityChanged reserva el incremento o libera la diferencia. item.Quantity es la
// cantidad nueva. Devuelve los ids de reserva vigentes de la línea.
func (h *OrderHooks) LineItemQuantityChanged(ctx context.Context, item LineItem, oldQty int64, reservationIDs []string, actorID string) ([]string, error) {
	if item.Quantity < 0 || oldQty < 0 {
		return nil, domain.Invalid("cantidad de línea inválida")
	}
	if item.Quantity == oldQty {
		return reservationIDs, nil
	}
	comps, err := h.components(ctx, item.ProductID)
	if err != nil {
		return nil, err
	}

	diff := make([]materialQty, 0, len(comps))
	for _, c := range comps {
		next, err := invrules.LineRequirement(c.PerUnit, item.Quantity)
		if err != nil {
			return nil, err
		}
		prev, err := invrules.LineRequirement(c.PerUnit, oldQty)
		if err != nil {
			return nil, err
		}
		if d := next - prev; d != 0 {
			diff = append(diff, materialQty{materialID: c.MaterialID, qty: d})
		}
	}

	if item.Quantity > oldQty {
		added, err := h.reserve(ctx, item, diff, actorID)
		if err != nil {
			return nil, err
		}
		return append(append([]string{}, reservationIDs...), added...), nil
	}

	release := make(map[string]int64, len(diff))
	for _, d := range diff {
		release[d.materialID] += -d.qty
	}
	if len(reservationIDs) == 0 {
		items := make([]BulkItem, 0, len(release))
		for _, d := range diff {
			items = append(items, BulkItem{MaterialID: d.materialID, Quantity: decimal.NewFromInt(-d.qty), Reason: "reducción de línea de pedido"})
		}
		if len(items) > 0 {
			if _, err := h.orch.ReturnMaterials(ctx, items, item.OrderID, actorID); err != nil {
				return nil, err
			}
		}
		return nil, nil
	}
	return h.orch.ShrinkReservations(ctx, ShrinkInput{
		OrderID:        item.OrderID,
		ReservationIDs: reservationIDs,
		Release:        release,
		ActorID:        actorID,
	})
}

// OrderConfirmed cumple todas las reservas del pedido en una sola transacción.
func (h *OrderHooks) OrderConfirmed(ctx context.Context, reservationIDs []string, actorID string) ([]FulfillResult, error) {
	return h.orch.FulfillReservations(ctx, reservationIDs, actorID)
}

type materialQty struct {
	materialID string
	qty        int64
}

func (h *OrderHooks) components(ctx context.Context, productID string) ([]BOMComponent, error) {
	if productID == "" {
		return nil, domain.Invalid("product_id requerido")
	}
	comps, err := h.bom.Components(ctx, productID)
	if err != nil {
		return nil, fmt.Errorf("bill of materials %s: %w", productID, err)
	}
	return comps, nil
}

func (h *OrderHooks) requirements(ctx context.Context, productID string, qty int64) ([]materialQty, error) {
	comps, err := h.components(ctx, productID)
	if err != nil {
		return nil, err
	}
	out := make([]materialQty, 0, len(comps))
	for _, c := range comps {
		n, err := invrules.LineRequirement(c.PerUnit, qty)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			out = append(out, materialQty{materialID: c.MaterialID, qty: n})
		}
	}
	return out, nil
}

func (h *OrderHooks) reserve(ctx context.Context, item LineItem, req []materialQty, actorID string) ([]string, error) {
	if len(req) == 0 {
		return nil, nil
	}
	items := make([]ReserveItem, 0, len(req))
	for _, q := range req {
		items = append(items, ReserveItem{
			MaterialID: q.materialID,
			Quantity:   decimal.NewFromInt(q.qty),
			OrderID:    item.OrderID,
			Reason:     "producto " + item.ProductID,
		})
	}
	list, err := h.orch.ReserveMaterials(ctx, items, actorID)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(list))
	for _, r := range list {
		ids = append(ids, r.ID)
	}
	return ids, nil
}

func toBulk(req []materialQty, reason string) []BulkItem {
	out := make([]BulkItem, 0, len(req))
	for _, q := range req {
		out = append(out, BulkItem{MaterialID: q.materialID, Quantity: decimal.NewFromInt(q.qty), Reason: reason})
	}
	return out
}
