package observability

import (
	"github.com/WordpressDesigne/mpesaprompt/internal/config"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/logger"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/metrics"
	"github.com/WordpressDesigne/mpesaprompt/internal/observability/tracing"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/fx"
)

var Module = fx.Module("observability",
	logger.Module,
	fx.Provide(tracing.ConfigFrom),
	fx.Provide(metrics.ConfigFrom),
	fx.Provide(func() metric.MeterProvider { return otel.GetMeterProvider() }),
	fx.Provide(metrics.NewHTTPMetrics),
	fx.Provide(func(cfg config.Config, mcfg metrics.Config) *metrics.PaymentMetrics {
		if !cfg.Observability.MetricsEnabled {
			return nil
		}
		return metrics.PaymentWithConfig(mcfg)
	}),
	fx.Invoke(tracing.NewProvider),
)
