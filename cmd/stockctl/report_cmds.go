package main

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
	"github.com/jhoicas/printstock/internal/domain/repository"
	"github.com/jhoicas/printstock/internal/infrastructure/postgres"
)

func newTable(cmd *cobra.Command) *tabwriter.Writer {
	return tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
}

// parseDay acepta AAAA-MM-DD en hora local.
func parseDay(s string) (time.Time, error) {
	t, err := time.ParseInLocation(time.DateOnly, s, time.Local)
	if err != nil {
		return time.Time{}, domain.Invalid("fecha inválida %q (AAAA-MM-DD)", s)
	}
	return t, nil
}

// dayRange convierte from/to inclusivos en el intervalo [from, to+1d).
func dayRange(from, to string) (time.Time, time.Time, error) {
	end := time.Now()
	if to != "" {
		t, err := parseDay(to)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		end = t.AddDate(0, 0, 1)
	}
	start := end.AddDate(0, 0, -30)
	if from != "" {
		t, err := parseDay(from)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = t
	}
	return start, end, nil
}

func newMovementsCmd() *cobra.Command {
	var f repository.MovementFilter
	var kind string
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "movements",
		Short: "Lista el libro de movimientos",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f.Kind = entity.MovementKind(kind)
			if since > 0 {
				from := time.Now().Add(-since)
				f.From = &from
			}
			list, err := appFrom(cmd).report.Movements(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintln(w, "FECHA\tMATERIAL\tTIPO\tDELTA\tSOLICITADO\tPEDIDO\tMOTIVO")
			for _, m := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%+d\t%s\t%s\t%s\n", m.CreatedAt.Local().Format(time.DateTime),
					m.MaterialID, m.Kind, m.Delta, m.RequestedQuantity, m.OrderID, m.Reason)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&f.MaterialID, "material", "", "material")
	cmd.Flags().StringVar(&f.OrderID, "order", "", "pedido")
	cmd.Flags().StringVar(&f.ActorID, "by", "", "usuario")
	cmd.Flags().StringVar(&kind, "kind", "", "spend, add, adjust_increase o adjust_decrease")
	cmd.Flags().DurationVar(&since, "since", 0, "sólo movimientos de este período (ej. 72h)")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "máximo de filas")
	cmd.Flags().IntVar(&f.Offset, "offset", 0, "desplazamiento")
	return cmd
}

func newSummaryCmd() *cobra.Command {
	var from, to string
	var daily bool
	cmd := &cobra.Command{
		Use:   "summary <material>",
		Short: "Totales de entradas y salidas de un material",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			start, end, err := dayRange(from, to)
			if err != nil {
				return err
			}
			a := appFrom(cmd)
			s, err := a.report.MaterialSummary(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintf(w, "consumido\t%d\n", s.Spent)
			fmt.Fprintf(w, "ingresado\t%d\n", s.Added)
			fmt.Fprintf(w, "ajuste +\t%d\n", s.AdjustedUp)
			fmt.Fprintf(w, "ajuste -\t%d\n", s.AdjustedDown)
			fmt.Fprintf(w, "neto\t%+d\n", s.Net)
			fmt.Fprintf(w, "movimientos\t%d\n", s.MovementsCount)
			if err := w.Flush(); err != nil {
				return err
			}
			if !daily {
				return nil
			}

			days, err := a.report.DailyMovements(cmd.Context(), args[0], start, end)
			if err != nil {
				return err
			}
			w = newTable(cmd)
			fmt.Fprintln(w, "\nDÍA\tENTRADAS\tSALIDAS")
			for _, d := range days {
				fmt.Fprintf(w, "%s\t%d\t%d\n", d.Date.Format(time.DateOnly), d.Inbound, d.Outbound)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&from, "from", "", "desde (AAAA-MM-DD, por defecto 30 días atrás)")
	cmd.Flags().StringVar(&to, "to", "", "hasta, inclusive (AAAA-MM-DD)")
	cmd.Flags().BoolVar(&daily, "daily", false, "incluir desglose por día")
	return cmd
}

func newLowStockCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "low-stock",
		Short: "Materiales con disponibilidad por debajo del mínimo",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			list, err := appFrom(cmd).report.LowStock(cmd.Context())
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintln(w, "MATERIAL\tUNIDAD\tEXISTENCIA\tRESERVADO\tDISPONIBLE\tMÍNIMO")
			for _, it := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%d\t%d\n", it.MaterialName, it.Unit, it.Quantity, it.Reserved, it.Available, it.MinQuantity)
			}
			return w.Flush()
		},
	}
}

func newHistoryCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "history <reserva>",
		Short: "Historial de una reserva",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := appFrom(cmd).report.ReservationHistory(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintln(w, "FECHA\tACCIÓN\tCANTIDAD\tUSUARIO\tMOTIVO")
			for _, h := range list {
				fmt.Fprintf(w, "%s\t%s\t%d\t%s\t%s\n", h.CreatedAt.Local().Format(time.DateTime), h.Action, h.Quantity, h.ActorID, h.Reason)
			}
			return w.Flush()
		},
	}
}

func newAuditCmd() *cobra.Command {
	var f repository.AuditFilter
	var since time.Duration
	cmd := &cobra.Command{
		Use:   "audit",
		Short: "Consulta la bitácora de operaciones",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if since > 0 {
				from := time.Now().Add(-since)
				f.From = &from
			}
			list, err := appFrom(cmd).report.Audit(cmd.Context(), f)
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintln(w, "FECHA\tOPERACIÓN\tMATERIAL\tPEDIDO\tCANTIDAD\tOK\tERROR")
			for _, r := range list {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%t\t%s\n", r.CreatedAt.Local().Format(time.DateTime),
					r.Operation, r.MaterialID, r.OrderID, r.Quantity, r.Success, r.Error)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&f.Operation, "op", "", "operación")
	cmd.Flags().StringVar(&f.MaterialID, "material", "", "material")
	cmd.Flags().StringVar(&f.OrderID, "order", "", "pedido")
	cmd.Flags().DurationVar(&since, "since", 0, "sólo registros de este período")
	cmd.Flags().IntVar(&f.Limit, "limit", 50, "máximo de filas")
	return cmd
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Aplica las migraciones pendientes del esquema",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a := appFrom(cmd)
			if err := postgres.Migrate(cmd.Context(), a.pool); err != nil {
				return err
			}
			a.log.Info().Msg("esquema al día")
			return nil
		},
	}
}
