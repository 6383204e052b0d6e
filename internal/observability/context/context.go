package context

import "context"

type ctxKey int

const (
	requestIDKey ctxKey = iota
	orderIDKey
	providerKey
)

// WithRequestID stores the inbound request id.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// RequestIDFromContext returns the request id or an empty string.
func RequestIDFromContext(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// WithOrderID tags the context with the order being worked on.
func WithOrderID(ctx context.Context, orderID string) context.Context {
	return context.WithValue(ctx, orderIDKey, orderID)
}

func OrderIDFromContext(ctx context.Context) string {
	return stringValue(ctx, orderIDKey)
}

// WithProvider tags the context with the payment backend handling the request.
func WithProvider(ctx context.Context, provider string) context.Context {
	return context.WithValue(ctx, providerKey, provider)
}

func ProviderFromContext(ctx context.Context) string {
	return stringValue(ctx, providerKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	if v, ok := ctx.Value(key).(string); ok {
		return v
	}
	return ""
}
