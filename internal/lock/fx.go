package lock

import (
	"context"

	redis "github.com/redis/go-redis/v9"
	"github.com/revolutionai/storefront/internal/clock"
	"github.com/revolutionai/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(NewFromConfig),
)

type Params struct {
	fx.In

	Lc    fx.Lifecycle
	Cfg   config.Config
	Log   *zap.Logger
	Clock clock.Clock `optional:"true"`
}

// NewFromConfig uses Redis when REDIS_ADDR is set and an in-process lock otherwise.
func NewFromConfig(p Params) Locker {
	if p.Cfg.Redis.Addr == "" {
		p.Log.Info("redis not configured, using in-process locks")
		return NewLocal(p.Clock)
	}

	client := redis.NewClient(&redis.Options{
		Addr:     p.Cfg.Redis.Addr,
		Password: p.Cfg.Redis.Password,
		DB:       p.Cfg.Redis.DB,
	})
	p.Lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				p.Log.Warn("redis ping failed", zap.String("addr", p.Cfg.Redis.Addr), zap.Error(err))
			}
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return client.Close()
		},
	})
	return NewRedis(client)
}
