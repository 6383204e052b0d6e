package migration

import (
	"github.com/revolutionai/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if !cfg.MigrateOnStart {
			log.Info("schema migrations skipped on start")
			return nil
		}
		return Run(conn, cfg.DBType, cfg.MigrationsTable)
	}),
)
