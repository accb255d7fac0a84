package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain/entity"
)

func newReserveCmd(actor *string) *cobra.Command {
	var order, reason string
	var ttl time.Duration
	var noExpiry, andSpend bool
	cmd := &cobra.Command{
		Use:   "reserve <material> <cantidad>",
		Short: "Reserva material para un pedido",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQty(args[1])
			if err != nil {
				return err
			}
			a := appFrom(cmd)
			if andSpend {
				out, err := a.orch.ReserveAndSpend(cmd.Context(), inventory.ReserveAndSpendInput{
					MaterialID: args[0],
					Quantity:   q,
					OrderID:    order,
					Reason:     reason,
					ActorID:    *actor,
				})
				if err != nil {
					return err
				}
				printReservations(cmd, []*entity.Reservation{out.Reservation})
				printChange(cmd, out.Spend)
				return nil
			}

			item := inventory.ReserveItem{MaterialID: args[0], Quantity: q, OrderID: order, Reason: reason, NoExpiry: noExpiry}
			if ttl > 0 && !noExpiry {
				exp := time.Now().Add(ttl)
				item.ExpiresAt = &exp
			}
			list, err := a.orch.ReserveMaterials(cmd.Context(), []inventory.ReserveItem{item}, *actor)
			if err != nil {
				return err
			}
			printReservations(cmd, list)
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "pedido al que se asigna la reserva")
	cmd.Flags().StringVar(&reason, "reason", "", "notas")
	cmd.Flags().DurationVar(&ttl, "ttl", 0, "vigencia de la reserva (por defecto la configurada)")
	cmd.Flags().BoolVar(&noExpiry, "no-expiry", false, "reserva sin vencimiento")
	cmd.Flags().BoolVar(&andSpend, "and-spend", false, "reservar y consumir en la misma transacción")
	return cmd
}

func newCancelCmd(actor *string) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "cancel <reserva>...",
		Short: "Cancela reservas activas",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := appFrom(cmd).orch.CancelReservations(cmd.Context(), args, reason, *actor)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reserva(s) cancelada(s)\n", n)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "motivo")
	return cmd
}

func newFulfillCmd(actor *string) *cobra.Command {
	return &cobra.Command{
		Use:   "fulfill <reserva>...",
		Short: "Convierte reservas en consumo (todas o ninguna)",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			out, err := appFrom(cmd).orch.FulfillReservations(cmd.Context(), args, *actor)
			if err != nil {
				return err
			}
			for _, r := range out {
				printChange(cmd, r.Spend)
			}
			return nil
		},
	}
}

func newUnreserveCmd(actor *string) *cobra.Command {
	var order string
	var materials []string
	cmd := &cobra.Command{
		Use:   "unreserve",
		Short: "Libera las reservas activas de un pedido",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := appFrom(cmd).orch.Execute(cmd.Context(), inventory.UnreserveOp{
				MaterialIDs: materials,
				OrderID:     order,
				ActorID:     *actor,
			})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reserva(s) liberada(s)\n", n.Cancelled)
			return nil
		},
	}
	cmd.Flags().StringVar(&order, "order", "", "pedido")
	cmd.Flags().StringSliceVar(&materials, "material", nil, "limitar a estos materiales")
	_ = cmd.MarkFlagRequired("order")
	return cmd
}

func newSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Marca como vencidas las reservas cuya vigencia terminó",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			n, err := appFrom(cmd).res.CleanupExpired(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d reserva(s) vencida(s)\n", n)
			return nil
		},
	}
}

func printReservations(cmd *cobra.Command, list []*entity.Reservation) {
	w := newTable(cmd)
	fmt.Fprintln(w, "ID\tMATERIAL\tPEDIDO\tCANTIDAD\tESTADO\tVENCE")
	for _, r := range list {
		exp := "-"
		if r.ExpiresAt != nil {
			exp = r.ExpiresAt.Local().Format(time.DateTime)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%s\t%s\n", r.ID, r.MaterialID, r.OrderID, r.Quantity, r.Status, exp)
	}
	_ = w.Flush()
}
