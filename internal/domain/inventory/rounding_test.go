package inventory_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/inventory"
)

func TestCeilQuantity(t *testing.T) {
	cases := []struct {
		in   string
		want int64
	}{
		{"10.3", 11},
		{"10", 10},
		{"0.0001", 1},
		{"999.999", 1000},
		{"-0.5", 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, inventory.CeilQuantity(decimal.RequireFromString(c.in)), c.in)
	}
}

func TestLineRequirement_RedondeaElTotalNoElUnitario(t *testing.T) {
	// 0.25 hojas por unidad * 10 unidades = 2.5 -> 3 (no 10 * ceil(0.25) = 10)
	n, err := inventory.LineRequirement(decimal.RequireFromString("0.25"), 10)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	n, err = inventory.LineRequirement(decimal.NewFromInt(2), 2)
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = inventory.LineRequirement(decimal.RequireFromString("1000000"), 1000000)
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestNormalizeQuantity(t *testing.T) {
	valid := []struct {
		in   string
		want int64
	}{
		{"0", 0},
		{"10.3", 11},
		{"0.000001", 1},
		{"1.5000000", 2},
		{"999999999999", 999999999999},
		{"999999999998.5", 999999999999},
	}
	for _, c := range valid {
		got, err := inventory.NormalizeQuantity("quantity", decimal.RequireFromString(c.in))
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got, c.in)
	}

	for _, in := range []string{
		"-1",
		"1000000000000",
		"18446744073709546616",
		"99999999999999999999999",
		"0.1234567",
	} {
		got, err := inventory.NormalizeQuantity("quantity", decimal.RequireFromString(in))
		assert.ErrorIs(t, err, domain.ErrInvalidInput, in)
		assert.Zero(t, got, in)
	}
}

func TestReservedQuantity_IgnoraVencidasYTerminales(t *testing.T) {
	now := time.Date(2026, 1, 10, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Hour)

	list := []*entity.Reservation{
		{Quantity: 100, Status: entity.ReservationActive},
		{Quantity: 50, Status: entity.ReservationActive, ExpiresAt: &future},
		{Quantity: 30, Status: entity.ReservationActive, ExpiresAt: &past},
		{Quantity: 20, Status: entity.ReservationCancelled},
		{Quantity: 10, Status: entity.ReservationFulfilled},
	}
	assert.Equal(t, int64(150), inventory.ReservedQuantity(list, now))
}

func TestAvailableQuantity_NuncaNegativa(t *testing.T) {
	assert.Equal(t, int64(650), inventory.AvailableQuantity(950, 300))
	assert.Equal(t, int64(0), inventory.AvailableQuantity(100, 300))
}
