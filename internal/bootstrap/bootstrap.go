// Package bootstrap groups the fx modules each binary assembles.
package bootstrap

import (
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/revolutionai/storefront/internal/catalog"
	"github.com/revolutionai/storefront/internal/checkout"
	"github.com/revolutionai/storefront/internal/clock"
	"github.com/revolutionai/storefront/internal/config"
	"github.com/revolutionai/storefront/internal/contact"
	"github.com/revolutionai/storefront/internal/lock"
	"github.com/revolutionai/storefront/internal/migration"
	"github.com/revolutionai/storefront/internal/notification"
	"github.com/revolutionai/storefront/internal/observability"
	"github.com/revolutionai/storefront/internal/order"
	"github.com/revolutionai/storefront/internal/payment"
	"github.com/revolutionai/storefront/internal/providers"
	"github.com/revolutionai/storefront/internal/scheduler"
	"github.com/revolutionai/storefront/internal/server"
	"github.com/revolutionai/storefront/pkg/db"
	"go.uber.org/fx"
)

// Infrastructure is config, logging, telemetry, the database and ids.
var Infrastructure = fx.Options(
	config.Module,
	observability.Module,
	fx.Provide(RegisterSnowflake),
	db.Module,
	clock.Module,
)

// Storefront is everything behind the HTTP surface.
var Storefront = fx.Options(
	catalog.Module,
	order.Module,
	payment.Module,
	checkout.Module,
	contact.Module,
	providers.Module,
	notification.Module,
)

// API serves HTTP and migrates the schema on start.
var API = fx.Options(
	Infrastructure,
	migration.Module,
	Storefront,
	server.Module,
)

// Sweeper runs the background jobs only.
var Sweeper = fx.Options(
	Infrastructure,
	order.Module,
	lock.Module,
	scheduler.Module,
)

// Monolith is API plus the sweeper in one process.
var Monolith = fx.Options(
	API,
	lock.Module,
	scheduler.Module,
)

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	node, err := snowflake.NewNode(cfg.SnowflakeNode)
	if err != nil {
		return nil, fmt.Errorf("snowflake node %d: %w", cfg.SnowflakeNode, err)
	}
	return node, nil
}
