package observability

import (
	"github.com/revolutionai/storefront/internal/observability/logger"
	"github.com/revolutionai/storefront/internal/observability/metrics"
	"github.com/revolutionai/storefront/internal/observability/tracing"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/fx"
)

// Module wires logging, tracing and both metric pipelines. The OTel meter backs
// the order, webhook and notification counters; Prometheus backs HTTP and the
// sweeper.
var Module = fx.Module("observability",
	fx.Provide(
		LoadConfig,
		Config.Logger,
		Config.Tracing,
		Config.Metrics,
	),
	fx.Provide(logger.New),
	fx.Provide(tracing.NewProvider),
	fx.Provide(
		metrics.NewProvider,
		metrics.New,
		metrics.NewHTTPMetrics,
	),
	fx.Invoke(func(*sdktrace.TracerProvider) {}),
	fx.Invoke(func(cfg metrics.Config) { metrics.SchedulerWithConfig(cfg) }),
)
