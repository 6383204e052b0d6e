package tracing

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	obscontext "github.com/revolutionai/storefront/internal/observability/context"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// Gin context keys handlers set so the request span can be tagged after the
// handler ran.
const (
	OrderIDKey       = "order_id"
	PaymentMethodKey = "payment_method"
)

// GinMiddleware opens one server span per request, named after the route
// template so order ids never end up in span names.
func GinMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("storefront/http")
	return func(c *gin.Context) {
		ctx := ExtractContext(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, "HTTP "+c.Request.Method, trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		status := c.Writer.Status()
		span.SetName("HTTP " + c.Request.Method + " " + route)

		attrs := []attribute.KeyValue{
			attribute.String("http.method", c.Request.Method),
			attribute.String("http.route", route),
			attribute.Int("http.status_code", status),
			attribute.Int64("http.server_duration_ms", time.Since(start).Milliseconds()),
		}
		if requestID := requestID(c); requestID != "" {
			attrs = append(attrs, attribute.String("request_id", requestID))
		}
		if orderID := strings.TrimSpace(c.GetString(OrderIDKey)); orderID != "" {
			attrs = append(attrs, attribute.String("order_id", orderID))
		}
		if method := strings.TrimSpace(c.GetString(PaymentMethodKey)); method != "" {
			attrs = append(attrs, attribute.String("payment.method", method))
		}
		if strings.Contains(route, "/webhooks/") {
			outcome := "accepted"
			if status >= http.StatusBadRequest {
				outcome = "rejected"
			}
			attrs = append(attrs, attribute.String("webhook.outcome", outcome))
		}
		span.SetAttributes(SafeAttributes(attrs...)...)

		if status >= http.StatusInternalServerError {
			if lastErr := c.Errors.Last(); lastErr != nil {
				if safeErr := SafeError(lastErr.Err); safeErr != nil {
					span.RecordError(safeErr)
				}
			}
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

func requestID(c *gin.Context) string {
	if id := strings.TrimSpace(c.GetString("request_id")); id != "" {
		return id
	}
	return obscontext.RequestIDFromContext(c.Request.Context())
}
