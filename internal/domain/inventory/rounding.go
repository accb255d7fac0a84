package inventory

import (
	"github.com/shopspring/decimal"

	"github.com/jhoicas/printstock/internal/domain"
)

// Límites de una cantidad de entrada; coinciden con requested_quantity NUMERIC(18,6).
const (
	MaxQuantityDigits = 12
	MaxQuantityScale  = 6
)

var quantityLimit = decimal.New(1, MaxQuantityDigits)

// CeilQuantity redondea hacia arriba al entero siguiente (servicio de dominio).
// Un requerimiento fraccionario siempre consume al menos una unidad completa: 10.3 -> 11.
// Sólo es exacto para cantidades ya validadas con NormalizeQuantity.
func CeilQuantity(q decimal.Decimal) int64 {
	return q.Ceil().IntPart()
}

// NormalizeQuantity valida el rango de q (0 <= q < 10^12, hasta 6 decimales) y la redondea
// hacia arriba. field identifica la entrada en el error.
func NormalizeQuantity(field string, q decimal.Decimal) (int64, error) {
	if q.IsNegative() {
		return 0, domain.Invalid("%s negativa: %s", field, q)
	}
	if q.GreaterThanOrEqual(quantityLimit) {
		return 0, domain.Invalid("%s fuera de rango: %s (máximo %d dígitos enteros)", field, q, MaxQuantityDigits)
	}
	if !q.Equal(q.Truncate(MaxQuantityScale)) {
		return 0, domain.Invalid("%s con más de %d decimales: %s", field, MaxQuantityScale, q)
	}
	return CeilQuantity(q), nil
}

// LineRequirement calcula la cantidad a reservar para una línea de pedido:
// ceil(requerimiento por unidad * cantidad de la línea).
func LineRequirement(perUnit decimal.Decimal, lineQty int64) (int64, error) {
	total := perUnit.Mul(decimal.NewFromInt(lineQty))
	if total.IsNegative() || total.GreaterThanOrEqual(quantityLimit) {
		return 0, domain.Invalid("requerimiento de línea fuera de rango: %s", total)
	}
	return CeilQuantity(total), nil
}
