package main

import (
	"github.com/revolutionai/storefront/internal/bootstrap"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		bootstrap.API,
	)
	app.Run()
}
