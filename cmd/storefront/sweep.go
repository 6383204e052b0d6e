package main

import (
	"context"
	"fmt"
	"time"

	"github.com/revolutionai/storefront/internal/bootstrap"
	"github.com/revolutionai/storefront/internal/lock"
	"github.com/revolutionai/storefront/internal/order"
	"github.com/revolutionai/storefront/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

func sweepCmd() *cobra.Command {
	var (
		olderThan time.Duration
		batchSize int
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Expire abandoned pending orders once and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			var sched *scheduler.Scheduler
			app := fx.New(
				fx.NopLogger,
				bootstrap.Infrastructure,
				order.Module,
				lock.Module,
				fx.Provide(scheduler.ProvideConfig, scheduler.New),
				fx.Decorate(func(cfg scheduler.Config) scheduler.Config {
					if olderThan > 0 {
						cfg.PendingTTL = olderThan
					}
					if batchSize > 0 {
						cfg.BatchSize = batchSize
					}
					return cfg
				}),
				fx.Populate(&sched),
			)
			return runOnce(cmd.Context(), app, func(ctx context.Context) error {
				if err := sched.RunOnce(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "sweep finished")
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&olderThan, "older-than", 0, "expire pending orders older than this (default SWEEPER_PENDING_TTL)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "orders per batch (default SWEEPER_BATCH_SIZE)")
	return cmd
}

// runOnce starts app, runs fn and stops app again.
func runOnce(ctx context.Context, app *fx.App, fn func(context.Context) error) error {
	if err := app.Err(); err != nil {
		return err
	}
	if ctx == nil {
		ctx = context.Background()
	}

	startCtx, cancel := context.WithTimeout(ctx, fx.DefaultTimeout)
	defer cancel()
	if err := app.Start(startCtx); err != nil {
		return err
	}

	runErr := fn(ctx)

	stopCtx, cancelStop := context.WithTimeout(context.WithoutCancel(ctx), fx.DefaultTimeout)
	defer cancelStop()
	if err := app.Stop(stopCtx); err != nil && runErr == nil {
		return err
	}
	return runErr
}
