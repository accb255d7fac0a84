package inventory

import (
	"context"
	"time"

	"github.com/jhoicas/printstock/internal/domain/repository"
)

// Repos repositorios atados a una misma transacción.
type Repos struct {
	Materials    repository.MaterialRepository
	Movements    repository.MovementRepository
	Reservations repository.ReservationRepository
}

// TxRunner ejecuta una función dentro de una transacción de BD, pasando repositorios atados a esa tx.
// Si fn devuelve error no persiste nada; garantiza atomicidad para los motores de inventario.
type TxRunner interface {
	Run(ctx context.Context, fn func(r Repos) error) error
}

// Observer recibe telemetría de las operaciones (ver infrastructure/metrics).
type Observer interface {
	RecordOperation(op string, d time.Duration, err error)
	RecordExpired(n int)
}

type nopObserver struct{}

func (nopObserver) RecordOperation(string, time.Duration, error) {}
func (nopObserver) RecordExpired(int)                           {}

// Option configura los motores.
type Option func(*options)

type options struct {
	now     func() time.Time
	obs     Observer
	holdTTL time.Duration
}

func defaultOptions() options {
	return options{now: time.Now, obs: nopObserver{}, holdTTL: 24 * time.Hour}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

// WithClock reemplaza time.Now (tests).
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		if now != nil {
			o.now = now
		}
	}
}

// WithObserver registra métricas de cada operación.
func WithObserver(obs Observer) Option {
	return func(o *options) {
		if obs != nil {
			o.obs = obs
		}
	}
}

// WithDefaultHold vigencia de las reservas de línea de pedido (por defecto 24h).
func WithDefaultHold(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.holdTTL = ttl
		}
	}
}

func observe(obs Observer, op string, fn func() error) error {
	start := time.Now()
	err := fn()
	obs.RecordOperation(op, time.Since(start), err)
	return err
}
