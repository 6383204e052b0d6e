package notification

import (
	"context"

	"github.com/revolutionai/storefront/internal/config"
	contactdomain "github.com/revolutionai/storefront/internal/contact/domain"
	obsmetrics "github.com/revolutionai/storefront/internal/observability/metrics"
	"github.com/revolutionai/storefront/internal/payment/webhook"
	"github.com/revolutionai/storefront/internal/providers/email"
	"github.com/revolutionai/storefront/internal/providers/sns"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("notification",
	fx.Provide(New),
	fx.Provide(
		func(d *Dispatcher) webhook.Notifier { return d },
		func(d *Dispatcher) contactdomain.Notifier { return d },
	),
)

type Params struct {
	fx.In

	Lc        fx.Lifecycle
	Log       *zap.Logger
	Cfg       config.Config
	Email     email.Provider
	Publisher *sns.Publisher      `optional:"true"`
	Metrics   *obsmetrics.Metrics `optional:"true"`
}

func New(p Params) *Dispatcher {
	var publisher Publisher
	if p.Publisher != nil {
		publisher = p.Publisher
	}
	d := NewDispatcher(p.Log, p.Email, publisher, p.Metrics, Options{
		AdminEmail: p.Cfg.Email.AdminEmail,
		SiteName:   p.Cfg.Email.FromName,
		Timeout:    p.Cfg.Notify.Timeout,
	})
	p.Lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			if err := d.Drain(ctx); err != nil {
				d.log.Warn("notifications still in flight at shutdown", zap.Error(err))
			}
			return nil
		},
	})
	return d
}
