package postgres

import (
	"context"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
)

var _ inventory.TxRunner = (*TxRunner)(nil)

// TxRunner ejecuta callbacks dentro de una transacción PostgreSQL.
type TxRunner struct {
	pool TxBeginner
}

// NewTxRunner construye el runner con el pool.
func NewTxRunner(pool TxBeginner) *TxRunner {
	return &TxRunner{pool: pool}
}

// Run inicia una transacción, ejecuta fn con repos atados a la tx y hace Commit o Rollback.
// Los fallos del servidor (begin, commit o una sentencia dentro de fn) salen como
// *domain.TransactionError con la causa pgx original; los errores de dominio de fn pasan sin cambios.
func (r *TxRunner) Run(ctx context.Context, fn func(repos inventory.Repos) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return domain.NewTransactionError("begin", err, isRetryable(err))
	}
	defer func() { _ = tx.Rollback(ctx) }()

	repos := inventory.Repos{
		Materials:    NewMaterialRepository(tx),
		Movements:    NewMovementRepository(tx),
		Reservations: NewReservationRepository(tx),
	}
	if err := fn(repos); err != nil {
		if isStoreError(err) {
			return domain.NewTransactionError("exec", err, isRetryable(err))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.NewTransactionError("commit", err, isRetryable(err))
	}
	return nil
}
