package main

import (
	"fmt"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/revolutionai/storefront/internal/catalog"
	"github.com/revolutionai/storefront/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func catalogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "catalog",
		Short: "Work with the product catalog",
	}
	cmd.AddCommand(catalogCheckCmd())
	return cmd
}

func catalogCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check [file]",
		Short: "Validate a catalog file, or the built-in catalog, and print it",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var cfg config.Config
			if len(args) == 1 {
				cfg.CatalogFile = strings.TrimSpace(args[0])
			}

			products, err := catalog.New(cfg, zap.NewNop())
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.Header("ID", "Name", "Category", "Price", "Cents")
			for _, p := range products.List() {
				cents, err := p.AmountCents()
				if err != nil {
					return fmt.Errorf("product %s: %w", p.ID, err)
				}
				if err := table.Append([]string{p.ID, p.Name, p.Category, p.Price, fmt.Sprint(cents)}); err != nil {
					return err
				}
			}
			if err := table.Render(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d products in %d categories\n", len(products.List()), len(products.Categories()))
			return nil
		},
	}
}
