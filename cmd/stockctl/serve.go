package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Proceso de fondo: vence reservas periódicamente y expone /metrics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			g, ctx := errgroup.WithContext(cmd.Context())

			g.Go(func() error { return a.sweepLoop(ctx) })

			if addr := a.cfg.Metrics.Addr; addr != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

				g.Go(func() error {
					a.log.Info().Str("addr", addr).Msg("métricas expuestas en /metrics")
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						return err
					}
					return nil
				})
				g.Go(func() error {
					<-ctx.Done()
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
					defer cancel()
					return srv.Shutdown(shutdownCtx)
				})
			}

			err := g.Wait()
			a.log.Info().Msg("proceso detenido")
			return err
		},
	}
}

// sweepLoop ejecuta CleanupExpired cada SweepInterval hasta que ctx termine.
// Un fallo del barrido se registra y se reintenta en el siguiente tick.
func (a *app) sweepLoop(ctx context.Context) error {
	log := a.log.Component("sweep")
	ticker := time.NewTicker(a.cfg.Inventory.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			n, err := a.res.CleanupExpired(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("barrido de reservas vencidas")
				continue
			}
			if n > 0 {
				log.Info().Int("expired", n).Msg("reservas vencidas")
			}
		}
	}
}
