package adapters

import (
	"strings"

	"github.com/revolutionai/storefront/internal/payment/domain"
)

// Registry resolves gateways by payment method or backend name.
type Registry struct {
	gateways map[string]domain.Gateway
	ordered  []domain.Gateway
}

func NewRegistry(gateways ...domain.Gateway) *Registry {
	registry := &Registry{gateways: map[string]domain.Gateway{}}
	for _, gateway := range gateways {
		if gateway == nil {
			continue
		}
		method := strings.ToLower(strings.TrimSpace(string(gateway.Method())))
		provider := strings.ToLower(strings.TrimSpace(gateway.Provider()))
		if method == "" {
			continue
		}
		registry.gateways[method] = gateway
		if provider != "" {
			registry.gateways[provider] = gateway
		}
		registry.ordered = append(registry.ordered, gateway)
	}
	return registry
}

// Lookup accepts "card", "crypto" or the backend names "stripe", "cryptomus".
func (r *Registry) Lookup(name string) (domain.Gateway, error) {
	if r == nil {
		return nil, domain.ErrProviderNotFound
	}
	gateway, ok := r.gateways[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, domain.ErrProviderNotFound
	}
	return gateway, nil
}

func (r *Registry) Exists(name string) bool {
	_, err := r.Lookup(name)
	return err == nil
}

// Gateways returns every registered gateway once, in registration order.
func (r *Registry) Gateways() []domain.Gateway {
	if r == nil {
		return nil
	}
	return append([]domain.Gateway(nil), r.ordered...)
}
