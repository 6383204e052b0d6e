package payment

import (
	"github.com/revolutionai/storefront/internal/config"
	"github.com/revolutionai/storefront/internal/payment/adapters"
	"github.com/revolutionai/storefront/internal/payment/adapters/cryptomus"
	"github.com/revolutionai/storefront/internal/payment/adapters/stripe"
	"github.com/revolutionai/storefront/internal/payment/repository"
	"github.com/revolutionai/storefront/internal/payment/webhook"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("payment.service",
	fx.Provide(repository.Provide),
	fx.Provide(NewRegistry),
	fx.Provide(webhook.NewService),
)

// NewRegistry builds both gateways from configuration. Gateways without
// credentials are still registered so callers get a configuration error
// instead of an unknown method.
func NewRegistry(cfg config.Config, log *zap.Logger) *adapters.Registry {
	card := stripe.New(stripe.ConfigFrom(cfg), log)
	crypto := cryptomus.New(cryptomus.ConfigFrom(cfg), log)

	for _, gateway := range []interface {
		Provider() string
		Configured() bool
	}{card, crypto} {
		if !gateway.Configured() {
			log.Warn("payment gateway not configured", zap.String("provider", gateway.Provider()))
		}
	}

	return adapters.NewRegistry(card, crypto)
}
