package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jhoicas/printstock/internal/domain/entity"
	invrules "github.com/jhoicas/printstock/internal/domain/inventory"
	"github.com/jhoicas/printstock/internal/domain/repository"
)

var (
	_ repository.MaterialRepository    = (*materialRepo)(nil)
	_ repository.MovementRepository    = (*movementRepo)(nil)
	_ repository.ReservationRepository = (*reservationRepo)(nil)
	_ repository.AuditRepository       = (*auditRepo)(nil)
)

type materialRepo struct{ st *state }

func (r *materialRepo) Create(_ context.Context, m *entity.Material) error {
	if _, ok := r.st.materials[m.ID]; ok {
		return fmt.Errorf("material %s ya existe", m.ID)
	}
	r.st.materials[m.ID] = *m
	return nil
}

func (r *materialRepo) GetByID(_ context.Context, id string) (*entity.Material, error) {
	m, ok := r.st.materials[id]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

// GetForUpdate equivale a GetByID: el mutex del Store ya serializa las transacciones.
func (r *materialRepo) GetForUpdate(ctx context.Context, id string) (*entity.Material, error) {
	return r.GetByID(ctx, id)
}

func (r *materialRepo) UpdateQuantity(_ context.Context, id string, quantity int64, at time.Time) error {
	m, ok := r.st.materials[id]
	if !ok {
		return fmt.Errorf("material %s no existe", id)
	}
	if quantity < 0 {
		return fmt.Errorf("material %s: existencia negativa %d", id, quantity)
	}
	m.Quantity = quantity
	m.UpdatedAt = at
	r.st.materials[id] = m
	return nil
}

func (r *materialRepo) List(_ context.Context, limit, offset int) ([]*entity.Material, error) {
	all := make([]*entity.Material, 0, len(r.st.materials))
	for _, m := range r.st.materials {
		m := m
		all = append(all, &m)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].Name < all[j].Name })
	from, to := window(len(all), limit, offset)
	return all[from:to], nil
}

func (r *materialRepo) ListBelowMinimum(_ context.Context, now time.Time) ([]repository.LowStockItem, error) {
	var out []repository.LowStockItem
	for _, m := range r.st.materials {
		if m.MinQuantity == nil {
			continue
		}
		reserved := r.st.reserved(m.ID, now)
		available := invrules.AvailableQuantity(m.Quantity, reserved)
		if !m.BelowMinimum(available) {
			continue
		}
		out = append(out, repository.LowStockItem{
			MaterialID:   m.ID,
			MaterialName: m.Name,
			Unit:         m.Unit,
			Quantity:     m.Quantity,
			Reserved:     reserved,
			Available:    available,
			MinQuantity:  *m.MinQuantity,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		di, dj := out[i].MinQuantity-out[i].Available, out[j].MinQuantity-out[j].Available
		if di != dj {
			return di > dj
		}
		return out[i].MaterialName < out[j].MaterialName
	})
	return out, nil
}

type movementRepo struct{ st *state }

func (r *movementRepo) Create(_ context.Context, m *entity.Movement) error {
	if !m.Kind.Valid() {
		return fmt.Errorf("tipo de movimiento inválido %q", m.Kind)
	}
	r.st.movements = append(r.st.movements, *m)
	return nil
}

func (r *movementRepo) List(_ context.Context, f repository.MovementFilter) ([]*entity.Movement, error) {
	var all []*entity.Movement
	for i := len(r.st.movements) - 1; i >= 0; i-- {
		m := r.st.movements[i]
		if f.MaterialID != "" && m.MaterialID != f.MaterialID {
			continue
		}
		if f.OrderID != "" && m.OrderID != f.OrderID {
			continue
		}
		if f.ActorID != "" && m.ActorID != f.ActorID {
			continue
		}
		if f.Kind != "" && m.Kind != f.Kind {
			continue
		}
		if !inRange(m.CreatedAt, f.From, f.To) {
			continue
		}
		all = append(all, &m)
	}
	sort.SliceStable(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	from, to := window(len(all), f.Limit, f.Offset)
	return all[from:to], nil
}

func (r *movementRepo) Summarize(_ context.Context, materialID string, from, to time.Time) (repository.MovementSummary, error) {
	s := repository.MovementSummary{MaterialID: materialID}
	for _, m := range r.st.movements {
		if m.MaterialID != materialID || !inRange(m.CreatedAt, &from, &to) {
			continue
		}
		switch m.Kind {
		case entity.MovementSpend:
			s.Spent += m.Quantity
		case entity.MovementAdd:
			s.Added += m.Quantity
		case entity.MovementAdjustIncrease:
			s.AdjustedUp += m.Quantity
		case entity.MovementAdjustDecrease:
			s.AdjustedDown += m.Quantity
		}
		s.Net += m.Delta
		s.MovementsCount++
	}
	return s, nil
}

func (r *movementRepo) Daily(_ context.Context, materialID string, from, to time.Time) ([]repository.DailyMovement, error) {
	byDay := make(map[time.Time]*repository.DailyMovement)
	for _, m := range r.st.movements {
		if materialID != "" && m.MaterialID != materialID {
			continue
		}
		if !inRange(m.CreatedAt, &from, &to) {
			continue
		}
		t := m.CreatedAt.UTC()
		day := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
		d, ok := byDay[day]
		if !ok {
			d = &repository.DailyMovement{Date: day}
			byDay[day] = d
		}
		if m.Delta > 0 {
			d.Inbound += m.Delta
		} else {
			d.Outbound += -m.Delta
		}
	}
	out := make([]repository.DailyMovement, 0, len(byDay))
	for _, d := range byDay {
		out = append(out, *d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.Before(out[j].Date) })
	return out, nil
}

type reservationRepo struct{ st *state }

func (r *reservationRepo) Create(_ context.Context, res *entity.Reservation) error {
	if _, ok := r.st.reservations[res.ID]; ok {
		return fmt.Errorf("reserva %s ya existe", res.ID)
	}
	if _, ok := r.st.materials[res.MaterialID]; !ok {
		return fmt.Errorf("reserva %s: material %s no existe", res.ID, res.MaterialID)
	}
	r.st.reservations[res.ID] = *res
	r.st.resSeq[res.ID] = len(r.st.resSeq) + 1
	return nil
}

func (r *reservationRepo) GetByID(_ context.Context, id string) (*entity.Reservation, error) {
	res, ok := r.st.reservations[id]
	if !ok {
		return nil, nil
	}
	return &res, nil
}

func (r *reservationRepo) GetForUpdate(ctx context.Context, id string) (*entity.Reservation, error) {
	return r.GetByID(ctx, id)
}

func (r *reservationRepo) Transition(_ context.Context, id string, from, to entity.ReservationStatus, at time.Time) (bool, error) {
	res, ok := r.st.reservations[id]
	if !ok || res.Status != from {
		return false, nil
	}
	res.Status = to
	res.UpdatedAt = at
	r.st.reservations[id] = res
	return true, nil
}

func (r *reservationRepo) SumActive(_ context.Context, materialID string, now time.Time) (int64, error) {
	return r.st.reserved(materialID, now), nil
}

func (r *reservationRepo) ListActiveByOrder(_ context.Context, orderID string, materialIDs []string) ([]*entity.Reservation, error) {
	wanted := make(map[string]bool, len(materialIDs))
	for _, id := range materialIDs {
		wanted[id] = true
	}
	return r.st.sortedReservations(func(res entity.Reservation) bool {
		if res.Status != entity.ReservationActive || res.OrderID != orderID {
			return false
		}
		return len(wanted) == 0 || wanted[res.MaterialID]
	}), nil
}

func (r *reservationRepo) ListByOrder(_ context.Context, orderID string) ([]*entity.Reservation, error) {
	return r.st.sortedReservations(func(res entity.Reservation) bool { return res.OrderID == orderID }), nil
}

func (r *reservationRepo) ExpireDue(_ context.Context, now time.Time) ([]*entity.Reservation, error) {
	due := r.st.sortedReservations(func(res entity.Reservation) bool {
		return res.Status == entity.ReservationActive && res.ExpiresAt != nil && res.ExpiresAt.Before(now)
	})
	for _, res := range due {
		res.Status = entity.ReservationExpired
		res.UpdatedAt = now
		r.st.reservations[res.ID] = *res
	}
	return due, nil
}

func (r *reservationRepo) AddHistory(_ context.Context, h *entity.ReservationHistory) error {
	if _, ok := r.st.reservations[h.ReservationID]; !ok {
		return fmt.Errorf("historial: reserva %s no existe", h.ReservationID)
	}
	r.st.history = append(r.st.history, *h)
	return nil
}

func (r *reservationRepo) History(_ context.Context, reservationID string) ([]*entity.ReservationHistory, error) {
	var out []*entity.ReservationHistory
	for _, h := range r.st.history {
		if h.ReservationID == reservationID {
			h := h
			out = append(out, &h)
		}
	}
	return out, nil
}

func (s *state) reserved(materialID string, now time.Time) int64 {
	var list []*entity.Reservation
	for _, res := range s.reservations {
		if res.MaterialID == materialID {
			res := res
			list = append(list, &res)
		}
	}
	return invrules.ReservedQuantity(list, now)
}

func (s *state) sortedReservations(keep func(entity.Reservation) bool) []*entity.Reservation {
	var out []*entity.Reservation
	for _, res := range s.reservations {
		if keep(res) {
			res := res
			out = append(out, &res)
		}
	}
	sort.Slice(out, func(i, j int) bool { return s.resSeq[out[i].ID] < s.resSeq[out[j].ID] })
	return out
}

// Audit repositorio de auditoría fuera de transacción, como el pool en PostgreSQL.
func (s *Store) Audit() repository.AuditRepository {
	return &auditRepo{s: s}
}

type auditRepo struct{ s *Store }

func (r *auditRepo) Create(_ context.Context, rec *entity.AuditRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failAudit != nil {
		return r.s.failAudit
	}
	r.s.audit = append(r.s.audit, *rec)
	return nil
}

func (r *auditRepo) List(_ context.Context, f repository.AuditFilter) ([]*entity.AuditRecord, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var all []*entity.AuditRecord
	for i := len(r.s.audit) - 1; i >= 0; i-- {
		rec := r.s.audit[i]
		if f.Operation != "" && rec.Operation != f.Operation {
			continue
		}
		if f.MaterialID != "" && rec.MaterialID != f.MaterialID {
			continue
		}
		if f.OrderID != "" && rec.OrderID != f.OrderID {
			continue
		}
		if !inRange(rec.CreatedAt, f.From, nil) {
			continue
		}
		all = append(all, &rec)
	}
	from, to := window(len(all), f.Limit, f.Offset)
	return all[from:to], nil
}
