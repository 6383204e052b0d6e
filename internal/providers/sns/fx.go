package sns

import (
	"context"

	"github.com/revolutionai/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.sns",
	fx.Provide(func(cfg config.Config, log *zap.Logger) (*Publisher, error) {
		return NewFromConfig(context.Background(), cfg, log)
	}),
)
