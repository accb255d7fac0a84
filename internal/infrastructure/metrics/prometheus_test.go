package metrics_test

import (
	"errors"
	"fmt"
	"testing"
	"time"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/infrastructure/metrics"
)

func TestPrometheusObserver(t *testing.T) {
	reg := promclient.NewRegistry()
	obs, err := metrics.NewPrometheusObserver("test", reg)
	require.NoError(t, err)

	obs.RecordOperation("spend", 10*time.Millisecond, nil)
	obs.RecordOperation("spend", 5*time.Millisecond, &domain.InsufficientStockError{MaterialName: "Bond", Available: 1, Requested: 2})
	obs.RecordOperation("reserve", time.Millisecond, domain.NewMaterialNotFound("x"))
	obs.RecordExpired(3)
	obs.RecordExpired(0)

	assert.Equal(t, 2, testutil.CollectAndCount(reg, "test_inventory_operation_duration_seconds"))
	assert.Equal(t, 2, testutil.CollectAndCount(reg, "test_inventory_operation_failures_total"))

	again, err := metrics.NewPrometheusObserver("test", reg)
	require.NoError(t, err)
	again.RecordExpired(2)

	mfs, err := reg.Gather()
	require.NoError(t, err)
	for _, mf := range mfs {
		if mf.GetName() == "test_inventory_reservations_expired_total" {
			assert.Equal(t, float64(5), mf.GetMetric()[0].GetCounter().GetValue())
		}
	}
}

func TestReason(t *testing.T) {
	cases := map[string]error{
		"insufficient_stock": fmt.Errorf("bulk: %w", &domain.InsufficientStockError{}),
		"not_found":          domain.NewReservationNotFound("r"),
		"invalid_input":      domain.Invalid("x"),
		"conflict":           domain.ErrReservationClosed,
		"transaction":        domain.NewTransactionError("commit", errors.New("boom"), false),
		"other":              errors.New("boom"),
	}
	for want, err := range cases {
		assert.Equal(t, want, metrics.Reason(err), want)
	}
}

func TestNilObserver(t *testing.T) {
	var obs *metrics.PrometheusObserver
	assert.NotPanics(t, func() {
		obs.RecordOperation("spend", time.Second, nil)
		obs.RecordExpired(1)
	})
}
