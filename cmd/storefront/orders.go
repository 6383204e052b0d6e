package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/revolutionai/storefront/internal/bootstrap"
	"github.com/revolutionai/storefront/internal/order"
	orderdomain "github.com/revolutionai/storefront/internal/order/domain"
	"github.com/revolutionai/storefront/internal/providers/pdf"
	"github.com/revolutionai/storefront/pkg/db/pagination"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func ordersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "orders",
		Short: "Inspect orders",
	}
	cmd.AddCommand(ordersListCmd())
	return cmd
}

func ordersListCmd() *cobra.Command {
	var (
		status string
		method string
		email  string
		limit  int
		token  string
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders, newest first",
		Example: `  storefront orders list --status pending
  storefront orders list --method crypto --limit 50`,
		RunE: func(cmd *cobra.Command, args []string) error {
			var orders orderdomain.Service
			app := fx.New(
				fx.NopLogger,
				bootstrap.Infrastructure,
				order.Module,
				fx.Populate(&orders),
			)
			return runOnce(cmd.Context(), app, func(ctx context.Context) error {
				resp, err := orders.List(ctx, orderdomain.ListRequest{
					Status:        status,
					PaymentMethod: method,
					Email:         email,
					Pagination:    pagination.Pagination{PageSize: limit, PageToken: token},
				})
				if err != nil {
					return err
				}

				table := tablewriter.NewWriter(cmd.OutOrStdout())
				table.Header("ID", "Created", "Status", "Method", "Product", "Amount", "Customer", "Reference")
				for _, o := range resp.Orders {
					row := []string{
						o.ID.String(),
						o.CreatedAt.UTC().Format("2006-01-02 15:04"),
						statusLabel(o),
						o.PaymentMethod,
						o.ProductName,
						pdf.FormatAmount(o.AmountCents, o.Currency),
						o.CustomerEmail,
						o.Reference(),
					}
					if err := table.Append(row); err != nil {
						return err
					}
				}
				if err := table.Render(); err != nil {
					return err
				}
				if resp.HasMore {
					fmt.Fprintf(cmd.OutOrStdout(), "next page: --page-token %s\n", resp.NextPageToken)
				}
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().StringVar(&method, "method", "", "filter by payment method (card, crypto)")
	cmd.Flags().StringVar(&email, "email", "", "filter by customer email")
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "page size")
	cmd.Flags().StringVar(&token, "page-token", "", "continue from a previous page")
	return cmd
}

func statusLabel(o orderdomain.Order) string {
	if o.StatusReason == "" {
		return string(o.Status)
	}
	return fmt.Sprintf("%s (%s)", o.Status, strings.ReplaceAll(o.StatusReason, "_", " "))
}
