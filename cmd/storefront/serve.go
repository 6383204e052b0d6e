package main

import (
	"github.com/revolutionai/storefront/internal/bootstrap"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func serveCmd() *cobra.Command {
	var withoutSweeper bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API, and the sweeper unless disabled",
		RunE: func(cmd *cobra.Command, args []string) error {
			modules := bootstrap.Monolith
			if withoutSweeper {
				modules = bootstrap.API
			}
			app := fx.New(modules)
			if err := app.Err(); err != nil {
				return err
			}
			app.Run()
			return nil
		},
	}

	cmd.Flags().BoolVar(&withoutSweeper, "without-sweeper", false, "do not expire abandoned orders from this process")
	return cmd
}
