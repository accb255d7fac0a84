package inventory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	invrules "github.com/jhoicas/printstock/internal/domain/inventory"
	"github.com/jhoicas/printstock/pkg/logger"
	"github.com/jhoicas/printstock/pkg/validator"
)

// ReservationEngine administra el ciclo de vida de las reservas:
// active -> fulfilled | cancelled | expired. Ningún estado terminal vuelve a cambiar.
type ReservationEngine struct {
	txRunner TxRunner
	stock    *TransactionEngine
	log      *logger.Logger
	opts     options
}

// NewReservationEngine construye el motor. El cumplimiento descuenta siempre a través de stock.
func NewReservationEngine(txRunner TxRunner, stock *TransactionEngine, log *logger.Logger, opts ...Option) *ReservationEngine {
	if log == nil {
		log = logger.Nop()
	}
	return &ReservationEngine{
		txRunner: txRunner,
		stock:    stock,
		log:      log.Component("reservation_engine"),
		opts:     buildOptions(opts),
	}
}

// CreateReservationInput datos de una reserva nueva.
// Vencimiento: ExpiresAt si viene; si no, DefaultHold aplica la vigencia configurada (24h);
// si ninguno, la reserva no vence sola.
type CreateReservationInput struct {
	MaterialID  string          `validate:"required"`
	OrderID     string
	Quantity    decimal.Decimal `validate:"gt=0"`
	ExpiresAt   *time.Time
	DefaultHold bool
	ActorID     string
	Notes       string `validate:"max=1000"`
}

// CancelResult Changed=false cuando la reserva ya estaba en un estado terminal.
type CancelResult struct {
	Reservation *entity.Reservation
	Changed     bool
}

// FulfillResult reserva cumplida y el consumo que generó.
type FulfillResult struct {
	Reservation *entity.Reservation
	Spend       StockChange
}

// Create verifica disponibilidad (existencia menos reservas activas no vencidas) con la fila
// del material bloqueada y crea la reserva en estado active.
func (e *ReservationEngine) Create(ctx context.Context, in CreateReservationInput) (*entity.Reservation, error) {
	var out *entity.Reservation
	err := observe(e.opts.obs, "reserve", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			var err error
			out, err = e.CreateInTx(ctx, r, in)
			return err
		})
	})
	return out, err
}

// CreateInTx crea la reserva dentro de la transacción del llamador.
func (e *ReservationEngine) CreateInTx(ctx context.Context, r Repos, in CreateReservationInput) (*entity.Reservation, error) {
	if err := validator.Struct(in); err != nil {
		return nil, err
	}
	now := e.opts.now()
	if in.ExpiresAt != nil && !in.ExpiresAt.After(now) {
		return nil, domain.Invalid("el vencimiento %s ya pasó", in.ExpiresAt.Format(time.RFC3339))
	}
	qty, err := invrules.NormalizeQuantity("quantity", in.Quantity)
	if err != nil {
		return nil, err
	}

	// El bloqueo del material serializa reservas y consumos concurrentes sobre el mismo insumo.
	m, err := lockMaterial(ctx, r, in.MaterialID)
	if err != nil {
		return nil, err
	}
	reserved, err := r.Reservations.SumActive(ctx, m.ID, now)
	if err != nil {
		return nil, fmt.Errorf("sum reservations %s: %w", m.ID, err)
	}
	available := invrules.AvailableQuantity(m.Quantity, reserved)
	if qty > available {
		return nil, &domain.InsufficientStockError{
			MaterialID:   m.ID,
			MaterialName: m.Name,
			Available:    available,
			Requested:    qty,
		}
	}

	expiresAt := in.ExpiresAt
	if expiresAt == nil && in.DefaultHold {
		t := now.Add(e.opts.holdTTL)
		expiresAt = &t
	}
	res := &entity.Reservation{
		ID:         uuid.New().String(),
		MaterialID: m.ID,
		OrderID:    in.OrderID,
		Quantity:   qty,
		Status:     entity.ReservationActive,
		ExpiresAt:  expiresAt,
		ActorID:    in.ActorID,
		Notes:      in.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := r.Reservations.Create(ctx, res); err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}
	if err := e.history(ctx, r, res, entity.ActionCreated, in.Notes, in.ActorID, now); err != nil {
		return nil, err
	}
	return res, nil
}

// Cancel libera la reserva sin efecto sobre la existencia. Cancelar una reserva ya terminal
// es un no-op lógico: devuelve Changed=false y deja un warning.
func (e *ReservationEngine) Cancel(ctx context.Context, id, reason, actorID string) (CancelResult, error) {
	var out CancelResult
	err := observe(e.opts.obs, "cancel", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			var err error
			out, err = e.CancelInTx(ctx, r, id, reason, actorID)
			return err
		})
	})
	if err != nil {
		return CancelResult{}, err
	}
	if !out.Changed {
		e.log.Warn().
			Str("reservation_id", id).
			Str("status", string(out.Reservation.Status)).
			Msg("cancelación de una reserva ya cerrada")
	}
	return out, nil
}

// CancelInTx cancela dentro de la transacción del llamador.
func (e *ReservationEngine) CancelInTx(ctx context.Context, r Repos, id, reason, actorID string) (CancelResult, error) {
	res, err := lockReservation(ctx, r, id)
	if err != nil {
		return CancelResult{}, err
	}
	if res.Status.Terminal() {
		return CancelResult{Reservation: res, Changed: false}, nil
	}
	now := e.opts.now()
	ok, err := r.Reservations.Transition(ctx, id, entity.ReservationActive, entity.ReservationCancelled, now)
	if err != nil {
		return CancelResult{}, fmt.Errorf("cancel reservation %s: %w", id, err)
	}
	if !ok {
		return CancelResult{Reservation: res, Changed: false}, nil
	}
	res.Status = entity.ReservationCancelled
	res.UpdatedAt = now
	if err := e.history(ctx, r, res, entity.ActionCancelled, reason, actorID, now); err != nil {
		return CancelResult{}, err
	}
	return CancelResult{Reservation: res, Changed: true}, nil
}

// Fulfill convierte la reserva en un consumo definitivo mediante TransactionEngine.SpendInTx,
// de modo que siempre queda un movimiento en el libro.
func (e *ReservationEngine) Fulfill(ctx context.Context, id, actorID string) (FulfillResult, error) {
	var out FulfillResult
	err := observe(e.opts.obs, "fulfill", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			var err error
			out, err = e.FulfillInTx(ctx, r, id, actorID)
			return err
		})
	})
	return out, err
}

// FulfillInTx cumple la reserva dentro de la transacción del llamador.
func (e *ReservationEngine) FulfillInTx(ctx context.Context, r Repos, id, actorID string) (FulfillResult, error) {
	res, err := lockReservation(ctx, r, id)
	if err != nil {
		return FulfillResult{}, err
	}
	if res.Status.Terminal() {
		return FulfillResult{}, fmt.Errorf("reserva %s (%s): %w", id, res.Status, domain.ErrReservationClosed)
	}
	now := e.opts.now()
	ok, err := r.Reservations.Transition(ctx, id, entity.ReservationActive, entity.ReservationFulfilled, now)
	if err != nil {
		return FulfillResult{}, fmt.Errorf("fulfill reservation %s: %w", id, err)
	}
	if !ok {
		return FulfillResult{}, fmt.Errorf("reserva %s: %w", id, domain.ErrReservationClosed)
	}

	spend, err := e.stock.SpendInTx(ctx, r, SpendInput{
		MaterialID: res.MaterialID,
		Quantity:   decimal.NewFromInt(res.Quantity),
		Reason:     "cumplimiento de reserva " + res.ID,
		OrderID:    res.OrderID,
		ActorID:    actorID,
	})
	if err != nil {
		return FulfillResult{}, err
	}

	res.Status = entity.ReservationFulfilled
	res.UpdatedAt = now
	if err := e.history(ctx, r, res, entity.ActionFulfilled, "", actorID, now); err != nil {
		return FulfillResult{}, err
	}
	return FulfillResult{Reservation: res, Spend: spend}, nil
}

// CleanupExpired pasa a expired todas las reservas activas con vencimiento anterior a ahora.
// Es idempotente: una segunda ejecución no encuentra nada.
func (e *ReservationEngine) CleanupExpired(ctx context.Context) (int, error) {
	var n int
	err := observe(e.opts.obs, "expire", func() error {
		return e.txRunner.Run(ctx, func(r Repos) error {
			now := e.opts.now()
			expired, err := r.Reservations.ExpireDue(ctx, now)
			if err != nil {
				return fmt.Errorf("expire reservations: %w", err)
			}
			for _, res := range expired {
				if err := e.history(ctx, r, res, entity.ActionExpired, "vencimiento automático", "", now); err != nil {
					return err
				}
			}
			n = len(expired)
			return nil
		})
	})
	if err != nil {
		return 0, err
	}
	e.opts.obs.RecordExpired(n)
	if n > 0 {
		e.log.Info().Int("count", n).Msg("reservas vencidas")
	}
	return n, nil
}

// AvailableQuantity max(0, existencia - reservas activas no vencidas).
func (e *ReservationEngine) AvailableQuantity(ctx context.Context, materialID string) (int64, error) {
	var out int64
	err := e.txRunner.Run(ctx, func(r Repos) error {
		m, err := r.Materials.GetByID(ctx, materialID)
		if err != nil {
			return err
		}
		if m == nil {
			return domain.NewMaterialNotFound(materialID)
		}
		reserved, err := r.Reservations.SumActive(ctx, materialID, e.opts.now())
		if err != nil {
			return err
		}
		out = invrules.AvailableQuantity(m.Quantity, reserved)
		return nil
	})
	return out, err
}

// Get devuelve una reserva; ErrNotFound si no existe.
func (e *ReservationEngine) Get(ctx context.Context, id string) (*entity.Reservation, error) {
	var out *entity.Reservation
	err := e.txRunner.Run(ctx, func(r Repos) error {
		res, err := r.Reservations.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if res == nil {
			return domain.NewReservationNotFound(id)
		}
		out = res
		return nil
	})
	return out, err
}

// ListByOrder todas las reservas de un pedido, en cualquier estado.
func (e *ReservationEngine) ListByOrder(ctx context.Context, orderID string) ([]*entity.Reservation, error) {
	if orderID == "" {
		return nil, domain.Invalid("order_id requerido")
	}
	var out []*entity.Reservation
	err := e.txRunner.Run(ctx, func(r Repos) error {
		var err error
		out, err = r.Reservations.ListByOrder(ctx, orderID)
		return err
	})
	return out, err
}

func (e *ReservationEngine) history(ctx context.Context, r Repos, res *entity.Reservation, action entity.ReservationAction, reason, actorID string, at time.Time) error {
	h := &entity.ReservationHistory{
		ID:            uuid.New().String(),
		ReservationID: res.ID,
		Action:        action,
		Quantity:      res.Quantity,
		Reason:        reason,
		ActorID:       actorID,
		CreatedAt:     at,
	}
	if err := r.Reservations.AddHistory(ctx, h); err != nil {
		return fmt.Errorf("reservation history %s: %w", res.ID, err)
	}
	return nil
}

// lockReservation bloquea la fila de la reserva; ErrNotFound si no existe.
func lockReservation(ctx context.Context, r Repos, id string) (*entity.Reservation, error) {
	if id == "" {
		return nil, domain.Invalid("reservation_id requerido")
	}
	res, err := r.Reservations.GetForUpdate(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("lock reservation %s: %w", id, err)
	}
	if res == nil {
		return nil, domain.NewReservationNotFound(id)
	}
	return res, nil
}
