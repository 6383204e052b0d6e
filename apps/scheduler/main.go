package main

import (
	"github.com/revolutionai/storefront/internal/bootstrap"
	"go.uber.org/fx"
)

// The sweeper runs apart from the API so it can be scaled to one replica.
// Replicas still coordinate through the Redis lock when REDIS_ADDR is set.
func main() {
	app := fx.New(
		bootstrap.Sweeper,
	)
	app.Run()
}
