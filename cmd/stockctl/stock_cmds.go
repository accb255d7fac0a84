package main

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/jhoicas/printstock/internal/application/inventory"
	"github.com/jhoicas/printstock/internal/domain"
	"github.com/jhoicas/printstock/internal/domain/entity"
)

func parseQty(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, domain.Invalid("cantidad inválida %q", s)
	}
	return d, nil
}

func printChange(cmd *cobra.Command, c inventory.StockChange) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s (%s): %d -> %d  movimiento %s\n",
		c.MaterialName, c.MaterialID, c.OldQuantity, c.NewQuantity, c.MovementID)
	if c.BelowMinimum {
		fmt.Fprintln(cmd.OutOrStdout(), "atención: existencia por debajo del mínimo")
	}
}

func newSpendCmd(actor *string) *cobra.Command {
	var reason, order string
	var checkMin bool
	cmd := &cobra.Command{
		Use:   "spend <material> <cantidad>",
		Short: "Descuenta material (redondea hacia arriba)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQty(args[1])
			if err != nil {
				return err
			}
			out, err := appFrom(cmd).orch.Execute(cmd.Context(), inventory.SpendOp{
				MaterialID:        args[0],
				Quantity:          q,
				Reason:            reason,
				OrderID:           order,
				ActorID:           *actor,
				CheckMinThreshold: checkMin,
			})
			if err != nil {
				return err
			}
			printChange(cmd, *out.Change)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "motivo")
	cmd.Flags().StringVar(&order, "order", "", "pedido relacionado")
	cmd.Flags().BoolVar(&checkMin, "check-min", false, "avisar si queda por debajo del mínimo")
	return cmd
}

func newAddCmd(actor *string) *cobra.Command {
	var reason, order, delivery, invoice, deliveryDate, notes string
	cmd := &cobra.Command{
		Use:   "add <material> <cantidad>",
		Short: "Ingresa material, opcionalmente con datos de la entrega",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQty(args[1])
			if err != nil {
				return err
			}
			in := inventory.AddInput{MaterialID: args[0], Quantity: q, Reason: reason, OrderID: order, ActorID: *actor}
			if delivery != "" || invoice != "" || deliveryDate != "" || notes != "" {
				meta := &entity.SupplierMeta{DeliveryNumber: delivery, InvoiceNumber: invoice, Notes: notes}
				if deliveryDate != "" {
					d, err := time.Parse(time.DateOnly, deliveryDate)
					if err != nil {
						return domain.Invalid("fecha de entrega inválida %q", deliveryDate)
					}
					meta.DeliveryDate = &d
				}
				in.Supplier = meta
			}
			out, err := appFrom(cmd).stock.Add(cmd.Context(), in)
			if err != nil {
				return err
			}
			printChange(cmd, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "motivo")
	cmd.Flags().StringVar(&order, "order", "", "pedido relacionado")
	cmd.Flags().StringVar(&delivery, "delivery", "", "número de remisión")
	cmd.Flags().StringVar(&invoice, "invoice", "", "número de factura del proveedor")
	cmd.Flags().StringVar(&deliveryDate, "delivery-date", "", "fecha de entrega (AAAA-MM-DD)")
	cmd.Flags().StringVar(&notes, "notes", "", "notas de la entrega")
	return cmd
}

func newReturnCmd(actor *string) *cobra.Command {
	var reason, order string
	cmd := &cobra.Command{
		Use:   "return <material> <cantidad>",
		Short: "Devuelve material consumido",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQty(args[1])
			if err != nil {
				return err
			}
			out, err := appFrom(cmd).orch.ReturnMaterials(cmd.Context(), []inventory.BulkItem{
				{MaterialID: args[0], Quantity: q, Reason: reason},
			}, order, *actor)
			if err != nil {
				return err
			}
			printChange(cmd, out[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "motivo (por defecto: devolución de material)")
	cmd.Flags().StringVar(&order, "order", "", "pedido relacionado")
	return cmd
}

func newAdjustCmd(actor *string) *cobra.Command {
	var reason string
	cmd := &cobra.Command{
		Use:   "adjust <material> <nueva-cantidad>",
		Short: "Fija la existencia a un valor absoluto (conteo físico)",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := parseQty(args[1])
			if err != nil {
				return err
			}
			out, err := appFrom(cmd).orch.Execute(cmd.Context(), inventory.AdjustOp{
				MaterialID:  args[0],
				NewQuantity: q,
				Reason:      reason,
				ActorID:     *actor,
			})
			if err != nil {
				return err
			}
			a := out.Adjustment
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d -> %d (delta %+d)\n", a.MaterialID, a.OldQuantity, a.NewQuantity, a.Delta)
			return nil
		},
	}
	cmd.Flags().StringVar(&reason, "reason", "", "motivo")
	return cmd
}

func newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check <material> <cantidad> [<material> <cantidad>...]",
		Short: "Verifica disponibilidad (existencia menos reservas activas)",
		Args: func(_ *cobra.Command, args []string) error {
			if len(args) == 0 || len(args)%2 != 0 {
				return domain.Invalid("se esperan pares material cantidad")
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			reqs := make([]inventory.Requirement, 0, len(args)/2)
			for i := 0; i < len(args); i += 2 {
				q, err := parseQty(args[i+1])
				if err != nil {
					return err
				}
				reqs = append(reqs, inventory.Requirement{MaterialID: args[i], Quantity: q})
			}
			report, err := appFrom(cmd).orch.CheckAvailability(cmd.Context(), reqs)
			if err != nil {
				return err
			}
			w := newTable(cmd)
			fmt.Fprintln(w, "MATERIAL\tREQUERIDO\tEXISTENCIA\tRESERVADO\tDISPONIBLE\tOK")
			for _, it := range report.Items {
				fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%t\n", it.MaterialName, it.RequiredQuantity,
					it.CurrentQuantity, it.ReservedQuantity, it.AvailableQuantity, it.Available)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if !report.OK() {
				return fmt.Errorf("%d material(es) sin disponibilidad suficiente: %w", len(report.Shortfalls), domain.ErrInsufficientStock)
			}
			return nil
		},
	}
}
