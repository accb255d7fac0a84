package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/infrastructure/metrics"
	"github.com/jhoicas/printstock/internal/infrastructure/postgres"
	"github.com/jhoicas/printstock/pkg/config"
	"github.com/jhoicas/printstock/pkg/logger"
)

// app dependencias armadas una vez por invocación.
type app struct {
	cfg    *config.Config
	log    *logger.Logger
	pool   *pgxpool.Pool
	stock  *inventory.TransactionEngine
	res    *inventory.ReservationEngine
	orch   *inventory.Orchestrator
	report *inventory.LedgerReport
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("cargar configuración: %w", err)
	}
	log := logger.New(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level, Out: os.Stderr})

	pool, err := postgres.NewPool(ctx, cfg.DB)
	if err != nil {
		return nil, fmt.Errorf("conexión a PostgreSQL: %w", err)
	}

	obs, err := metrics.NewPrometheusObserver(cfg.Metrics.Namespace, nil)
	if err != nil {
		pool.Close()
		return nil, err
	}
	opts := []inventory.Option{
		inventory.WithObserver(obs),
		inventory.WithDefaultHold(cfg.Inventory.DefaultHoldTTL),
	}

	txRunner := postgres.NewTxRunner(pool)
	auditRepo := postgres.NewAuditRepository(pool)
	stock := inventory.NewTransactionEngine(txRunner, log, opts...)
	res := inventory.NewReservationEngine(txRunner, stock, log, opts...)
	return &app{
		cfg:    cfg,
		log:    log,
		pool:   pool,
		stock:  stock,
		res:    res,
		orch:   inventory.NewOrchestrator(txRunner, stock, res, auditRepo, log, opts...),
		report: inventory.NewLedgerReport(txRunner, auditRepo, opts...),
	}, nil
}

func (a *app) Close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

type appKey struct{}

func appFrom(cmd *cobra.Command) *app {
	return cmd.Context().Value(appKey{}).(*app)
}

func newRootCmd() *cobra.Command {
	var actor string
	root := &cobra.Command{
		Use:           "stockctl",
		Short:         "Administración del inventario de materiales de impresión",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context())
			if err != nil {
				return err
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey{}, a))
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if a, ok := cmd.Context().Value(appKey{}).(*app); ok {
				a.Close()
			}
		},
	}
	root.PersistentFlags().StringVar(&actor, "actor", os.Getenv("USER"), "usuario responsable del movimiento")

	root.AddCommand(
		newSpendCmd(&actor),
		newAddCmd(&actor),
		newReturnCmd(&actor),
		newAdjustCmd(&actor),
		newCheckCmd(),
		newReserveCmd(&actor),
		newCancelCmd(&actor),
		newFulfillCmd(&actor),
		newUnreserveCmd(&actor),
		newSweepCmd(),
		newMovementsCmd(),
		newSummaryCmd(),
		newLowStockCmd(),
		newHistoryCmd(),
		newAuditCmd(),
		newMigrateCmd(),
		newServeCmd(),
	)
	return root
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(exitCode(err))
	}
}

// exitCode distingue errores del usuario (2) de fallos de infraestructura (1).
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidInput),
		errors.Is(err, domain.ErrNotFound),
		errors.Is(err, domain.ErrInsufficientStock),
		errors.Is(err, domain.ErrConflict):
		return 2
	default:
		return 1
	}
}
