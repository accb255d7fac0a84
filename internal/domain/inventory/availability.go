package inventory

import (
	"time"

	"github.com/jhoicas/printstock/internal/domain/entity"
)

// ReservedQuantity suma las reservas activas y no vencidas en now.
func ReservedQuantity(reservations []*entity.Reservation, now time.Time) int64 {
	var total int64
	for _, r := range reservations {
		if r.Holds(now) {
			total += r.Quantity
		}
	}
	return total
}

// AvailableQuantity = existencia - reservado, nunca negativa.
func AvailableQuantity(onHand, reserved int64) int64 {
	if onHand <= reserved {
		return 0
	}
	return onHand - reserved
}
