package entity

import "time"

// Material representa un insumo con existencia física (papel, sustratos, consumibles).
// Quantity nunca es negativa; sólo el motor de transacciones la modifica.
type Material struct {
	ID          string
	Name        string
	Unit        string
	Quantity    int64
	MinQuantity *int64 // umbral de stock bajo (opcional)
	MaxQuantity *int64
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// BelowMinimum indica si qty queda por debajo del mínimo configurado.
func (m *Material) BelowMinimum(qty int64) bool {
	return m.MinQuantity != nil && qty < *m.MinQuantity
}
