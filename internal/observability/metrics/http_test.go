package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
)

func TestGinMiddlewareRecordsRouteTemplate(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := newHTTPMetrics(registry, Config{ServiceName: "storefront"})
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/products/:id", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	for _, path := range []string{"/products/a", "/products/b"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
	}

	got := testutil.ToFloat64(m.requests.WithLabelValues("/products/:id", http.MethodGet, "204"))
	if got != 2 {
		t.Fatalf("expected 2 requests on route template, got %v", got)
	}
}

func TestGinMiddlewareObservesLatency(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m, err := newHTTPMetrics(registry, Config{})
	if err != nil {
		t.Fatalf("new http metrics: %v", err)
	}

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.POST("/webhooks/card", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/webhooks/card", nil))

	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	var histogram *dto.Histogram
	for _, family := range families {
		if family.GetName() != "storefront_http_request_duration_seconds" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "service" && label.GetValue() != "storefront" {
					t.Fatalf("expected default service label, got %q", label.GetValue())
				}
			}
			histogram = metric.GetHistogram()
		}
	}
	if histogram == nil || histogram.GetSampleCount() != 1 {
		t.Fatalf("expected one latency sample, got %v", histogram)
	}
}
