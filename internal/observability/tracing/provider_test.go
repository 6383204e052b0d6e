package tracing

import (
	"errors"
	"strings"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsCustomerData(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/payments/create"),
		attribute.String("customer.email", "jane@example.com"),
	)
	if len(attrs) != 1 || attrs[0].Key != "http.route" {
		t.Fatalf("unexpected attributes %v", attrs)
	}
}

func TestSafeErrorTruncates(t *testing.T) {
	if SafeError(nil) != nil {
		t.Fatalf("expected nil for nil error")
	}
	long := errors.New(strings.Repeat("x", 400))
	if got := SafeError(long).Error(); len(got) != 256 {
		t.Fatalf("expected truncated message, got %d chars", len(got))
	}
}

func TestNewProviderDisabled(t *testing.T) {
	provider, err := NewProvider(nil, Config{ServiceName: "storefront"}, nil)
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}
	if provider == nil {
		t.Fatalf("expected provider")
	}
}
