// Package memory implementa los puertos de inventario en memoria, con la misma semántica
// transaccional que el adaptador PostgreSQL: cada Run trabaja sobre una copia del estado y sólo
// la publica si fn termina sin error. Lo usan los tests de los motores.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
)

var _ inventory.TxRunner = (*Store)(nil)

type state struct {
	materials    map[string]entity.Material
	movements    []entity.Movement
	reservations map[string]entity.Reservation
	resSeq       map[string]int
	history      []entity.ReservationHistory
}

func newState() *state {
	return &state{
		materials:    make(map[string]entity.Material),
		reservations: make(map[string]entity.Reservation),
		resSeq:       make(map[string]int),
	}
}

func (s *state) clone() *state {
	c := &state{
		materials:    make(map[string]entity.Material, len(s.materials)),
		movements:    append([]entity.Movement(nil), s.movements...),
		reservations: make(map[string]entity.Reservation, len(s.reservations)),
		resSeq:       make(map[string]int, len(s.resSeq)),
		history:      append([]entity.ReservationHistory(nil), s.history...),
	}
	for k, v := range s.materials {
		c.materials[k] = v
	}
	for k, v := range s.reservations {
		c.reservations[k] = v
	}
	for k, v := range s.resSeq {
		c.resSeq[k] = v
	}
	return c
}

// Store estado completo protegido por un mutex; las transacciones se serializan.
type Store struct {
	mu         sync.Mutex
	st         *state
	audit      []entity.AuditRecord
	failCommit error
	failAudit  error
}

// NewStore crea un almacén vacío.
func NewStore() *Store {
	return &Store{st: newState()}
}

// Run ejecuta fn sobre una copia del estado. Un error de fn descarta la copia completa.
func (s *Store) Run(ctx context.Context, fn func(r inventory.Repos) error) error {
	if err := ctx.Err(); err != nil {
		return domain.NewTransactionError("begin", err, false)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	if err := fn(work.repos()); err != nil {
		return err
	}
	if s.failCommit != nil {
		return domain.NewTransactionError("commit", s.failCommit, false)
	}
	s.st = work
	return nil
}

// FailCommits hace fallar los commits siguientes con err (nil restablece).
func (s *Store) FailCommits(err error) {
	s.mu.Lock()
	s.failCommit = err
	s.mu.Unlock()
}

// FailAudit hace fallar la escritura de auditoría con err (nil restablece).
func (s *Store) FailAudit(err error) {
	s.mu.Lock()
	s.failAudit = err
	s.mu.Unlock()
}

// PutMaterial da de alta o reemplaza un material fuera de cualquier transacción.
func (s *Store) PutMaterial(m entity.Material) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now()
	}
	if m.UpdatedAt.IsZero() {
		m.UpdatedAt = m.CreatedAt
	}
	s.st.materials[m.ID] = m
}

// Material devuelve el estado confirmado de un material.
func (s *Store) Material(id string) (entity.Material, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.st.materials[id]
	return m, ok
}

// Movements devuelve una copia del libro confirmado en orden de inserción.
func (s *Store) Movements() []entity.Movement {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.Movement(nil), s.st.movements...)
}

// Reservations devuelve las reservas confirmadas en orden de creación.
func (s *Store) Reservations() []entity.Reservation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]entity.Reservation, 0, len(s.st.reservations))
	for _, r := range s.st.reservations {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return s.st.resSeq[out[i].ID] < s.st.resSeq[out[j].ID] })
	return out
}

// AuditRecords copia de la traza de orquestación.
func (s *Store) AuditRecords() []entity.AuditRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]entity.AuditRecord(nil), s.audit...)
}

func (s *state) repos() inventory.Repos {
	return inventory.Repos{
		Materials:    &materialRepo{st: s},
		Movements:    &movementRepo{st: s},
		Reservations: &reservationRepo{st: s},
	}
}

// inRange from <= t < to; límites nil no restringen.
func inRange(t time.Time, from, to *time.Time) bool {
	if from != nil && t.Before(*from) {
		return false
	}
	if to != nil && !t.Before(*to) {
		return false
	}
	return true
}

func window(items, limit, offset int) (int, int) {
	if offset > items {
		offset = items
	}
	end := items
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return offset, end
}
