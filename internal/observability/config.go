package observability

import (
	"strings"

	"github.com/revolutionai/storefront/internal/config"
	"github.com/revolutionai/storefront/internal/observability/logger"
	"github.com/revolutionai/storefront/internal/observability/metrics"
	"github.com/revolutionai/storefront/internal/observability/tracing"
)

// Config is the observability slice of the storefront configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled       bool
	OtelEndpoint      string
	OtelProtocol      string
	OtelSamplingRatio float64
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "storefront"
	}
	obs := cfg.Observability
	ratio := obs.OTelSamplingRatio
	if ratio < 0 || ratio > 1 {
		ratio = 1
	}
	return Config{
		ServiceName:       serviceName,
		Environment:       strings.TrimSpace(cfg.Environment),
		Version:           strings.TrimSpace(cfg.AppVersion),
		LogLevel:          obs.LogLevel,
		LogFormat:         obs.LogFormat,
		OtelEnabled:       obs.OTelEnabled,
		OtelEndpoint:      strings.TrimSpace(cfg.OTLPEndpoint),
		OtelProtocol:      obs.OTelProtocol,
		OtelSamplingRatio: ratio,
	}
}

// Debug is on for debug logging and for non-production environments.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	}
	return false
}

func (c Config) Logger() logger.Config {
	return logger.Config{
		ServiceName:         c.ServiceName,
		Environment:         c.Environment,
		Version:             c.Version,
		Level:               c.LogLevel,
		Format:              c.LogFormat,
		Debug:               c.Debug(),
		IncludeCaller:       true,
		IncludeStackOnError: c.Debug(),
	}
}

func (c Config) Tracing() tracing.Config {
	return tracing.Config{
		Enabled:          c.OtelEnabled,
		ServiceName:      c.ServiceName,
		ServiceVersion:   c.Version,
		Environment:      c.Environment,
		ExporterEndpoint: c.OtelEndpoint,
		ExporterProtocol: c.OtelProtocol,
		SamplingRatio:    c.OtelSamplingRatio,
	}
}

func (c Config) Metrics() metrics.Config {
	return metrics.Config{
		Enabled:          c.OtelEnabled,
		ExporterEndpoint: c.OtelEndpoint,
		ExporterProtocol: c.OtelProtocol,
		ServiceName:      c.ServiceName,
		Environment:      c.Environment,
	}
}
