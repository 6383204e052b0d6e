package tracing

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordSpans(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	recorder := tracetest.NewSpanRecorder()
	provider := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	previous := otel.GetTracerProvider()
	otel.SetTracerProvider(provider)
	t.Cleanup(func() {
		otel.SetTracerProvider(previous)
		_ = provider.Shutdown(context.Background())
	})
	return recorder
}

func spanAttributes(span sdktrace.ReadOnlySpan) map[attribute.Key]string {
	out := map[attribute.Key]string{}
	for _, attr := range span.Attributes() {
		out[attr.Key] = attr.Value.Emit()
	}
	return out
}

func TestGinMiddlewareTagsOrderAndMethod(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/payments/create", func(c *gin.Context) {
		c.Set(OrderIDKey, "1234")
		c.Set(PaymentMethodKey, "crypto")
		c.Set("customer_email", "ada@example.com")
		c.Status(http.StatusCreated)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/payments/create", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	if spans[0].Name() != "HTTP POST /payments/create" {
		t.Fatalf("unexpected span name %q", spans[0].Name())
	}
	attrs := spanAttributes(spans[0])
	if attrs["order_id"] != "1234" || attrs["payment.method"] != "crypto" {
		t.Fatalf("expected order and method attributes, got %v", attrs)
	}
	if attrs["http.status_code"] != "201" {
		t.Fatalf("unexpected status attribute %v", attrs)
	}
	if _, ok := attrs["webhook.outcome"]; ok {
		t.Fatalf("webhook outcome only applies to webhook routes")
	}
}

func TestGinMiddlewareMarksRejectedWebhooks(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := recordSpans(t)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/webhooks/:method", func(c *gin.Context) {
		c.Set(PaymentMethodKey, c.Param("method"))
		_ = c.Error(http.ErrBodyNotAllowed)
		c.Status(http.StatusBadGateway)
	})
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/card", nil))

	spans := recorder.Ended()
	if len(spans) != 1 {
		t.Fatalf("expected one span, got %d", len(spans))
	}
	attrs := spanAttributes(spans[0])
	if attrs["webhook.outcome"] != "rejected" || attrs["payment.method"] != "card" {
		t.Fatalf("unexpected webhook attributes %v", attrs)
	}
	if spans[0].Status().Code != codes.Error {
		t.Fatalf("expected error status, got %v", spans[0].Status())
	}
	if len(spans[0].Events()) == 0 {
		t.Fatalf("expected the error to be recorded on the span")
	}
}
