package observability

import (
	"strings"

	"github.com/smallbiznis/vetbilling/internal/config"
)

// Config is the slice of application config the logger, tracer and meter
// providers are built from.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64

	development bool
}

func LoadConfig(cfg config.Config) Config {
	serviceName := strings.TrimSpace(cfg.AppName)
	if serviceName == "" {
		serviceName = "vetbilling"
	}
	logFormat := cfg.Telemetry.LogFormat
	if logFormat != "console" {
		logFormat = "json"
	}

	return Config{
		ServiceName:          serviceName,
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             cfg.Telemetry.LogLevel,
		LogFormat:            logFormat,
		OtelEnabled:          cfg.Telemetry.OtelEnabled && cfg.Telemetry.OTLPEndpoint != "",
		OtelExporterEndpoint: cfg.Telemetry.OTLPEndpoint,
		OtelExporterProtocol: cfg.Telemetry.OTLPProtocol,
		OtelSamplingRatio:    cfg.Telemetry.SamplingRatio,
		development:          cfg.IsDevelopment(),
	}
}

// Debug enables verbose request logging and stack traces.
func (c Config) Debug() bool {
	return c.LogLevel == "debug" || c.development
}
