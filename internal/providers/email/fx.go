package email

import (
	"github.com/revolutionai/storefront/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("providers.email",
	fx.Provide(NewFromConfig),
)

// NewFromConfig returns an SMTP provider, or a no-op one when SMTP_HOST is unset.
func NewFromConfig(cfg config.Config, log *zap.Logger) Provider {
	if cfg.Email.Host == "" {
		log.Warn("smtp not configured, emails are disabled")
		return &NoOpProvider{}
	}
	return NewSMTP(Config{
		Host:      cfg.Email.Host,
		Port:      cfg.Email.Port,
		Username:  cfg.Email.Username,
		Password:  cfg.Email.Password,
		FromEmail: cfg.Email.FromEmail,
		FromName:  cfg.Email.FromName,
		Timeout:   cfg.Notify.Timeout,
	})
}
