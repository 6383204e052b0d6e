package contact

import (
	"github.com/revolutionai/storefront/internal/contact/repository"
	"github.com/revolutionai/storefront/internal/contact/service"
	"go.uber.org/fx"
)

var Module = fx.Module("contact.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
