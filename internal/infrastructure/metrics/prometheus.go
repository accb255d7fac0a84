package metrics

import (
	"errors"
	"fmt"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
)

var _ inventory.Observer = (*PrometheusObserver)(nil)

// PrometheusObserver exporta latencia y fallos de las operaciones de inventario.
type PrometheusObserver struct {
	duration *promclient.HistogramVec
	failures *promclient.CounterVec
	expired  promclient.Counter
}

// NewPrometheusObserver registra las métricas; si ya existen en reg las reutiliza.
func NewPrometheusObserver(namespace string, reg promclient.Registerer) (*PrometheusObserver, error) {
	if namespace == "" {
		namespace = "printstock"
	}
	if reg == nil {
		reg = promclient.DefaultRegisterer
	}

	duration, err := register(reg, promclient.NewHistogramVec(promclient.HistogramOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "operation_duration_seconds",
		Help:      "Latency of inventory operations, including the database transaction.",
		Buckets:   promclient.DefBuckets,
	}, []string{"operation"}))
	if err != nil {
		return nil, fmt.Errorf("register duration histogram: %w", err)
	}
	failures, err := register(reg, promclient.NewCounterVec(promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "operation_failures_total",
		Help:      "Failed inventory operations by error kind.",
	}, []string{"operation", "reason"}))
	if err != nil {
		return nil, fmt.Errorf("register failures counter: %w", err)
	}
	expired, err := register(reg, promclient.NewCounter(promclient.CounterOpts{
		Namespace: namespace,
		Subsystem: "inventory",
		Name:      "reservations_expired_total",
		Help:      "Reservations moved to expired by the sweep.",
	}))
	if err != nil {
		return nil, fmt.Errorf("register expired counter: %w", err)
	}
	return &PrometheusObserver{duration: duration, failures: failures, expired: expired}, nil
}

func (o *PrometheusObserver) RecordOperation(op string, d time.Duration, err error) {
	if o == nil {
		return
	}
	o.duration.WithLabelValues(op).Observe(d.Seconds())
	if err != nil {
		o.failures.WithLabelValues(op, Reason(err)).Inc()
	}
}

func (o *PrometheusObserver) RecordExpired(n int) {
	if o == nil || n <= 0 {
		return
	}
	o.expired.Add(float64(n))
}

// Reason etiqueta acotada para un error de dominio.
func Reason(err error) string {
	switch {
	case errors.Is(err, domain.ErrInsufficientStock):
		return "insufficient_stock"
	case errors.Is(err, domain.ErrNotFound):
		return "not_found"
	case errors.Is(err, domain.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, domain.ErrConflict):
		return "conflict"
	case errors.Is(err, domain.ErrTransactionFailure):
		return "transaction"
	default:
		return "other"
	}
}

func register[T promclient.Collector](reg promclient.Registerer, c T) (T, error) {
	if err := reg.Register(c); err != nil {
		var are promclient.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}
