package context

import (
	"context"
	"testing"
)

func TestContextRoundTrip(t *testing.T) {
	ctx := context.Background()
	if got := RequestIDFromContext(ctx); got != "" {
		t.Fatalf("expected empty request id, got %q", got)
	}

	ctx = WithRequestID(ctx, "req-1")
	ctx = WithOrderID(ctx, "42")
	ctx = WithProvider(ctx, "stripe")

	if got := RequestIDFromContext(ctx); got != "req-1" {
		t.Fatalf("expected req-1, got %q", got)
	}
	if got := OrderIDFromContext(ctx); got != "42" {
		t.Fatalf("expected 42, got %q", got)
	}
	if got := ProviderFromContext(ctx); got != "stripe" {
		t.Fatalf("expected stripe, got %q", got)
	}
}
