package observability

import (
	"context"
	"fmt"
	"net/http"

	promclient "github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// MetricsConfig configures the metrics pipeline.
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled" yaml:"enabled"`
}

// MetricsProvider owns the OpenTelemetry meter provider and the Prometheus
// registry it exports into.
type MetricsProvider struct {
	provider *sdkmetric.MeterProvider
	meter    metric.Meter
	registry *promclient.Registry
}

// NewMetricsProvider builds a meter provider backed by a private Prometheus
// registry. When disabled it hands out a no-op meter.
func NewMetricsProvider(config MetricsConfig) (*MetricsProvider, error) {
	if !config.Enabled {
		return &MetricsProvider{meter: noop.NewMeterProvider().Meter("conduit")}, nil
	}

	registry := promclient.NewRegistry()
	exporter, err := prometheus.New(prometheus.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter))
	return &MetricsProvider{
		provider: provider,
		meter:    provider.Meter("conduit"),
		registry: registry,
	}, nil
}

// Meter returns the meter instruments should be created from.
func (m *MetricsProvider) Meter() metric.Meter {
	return m.meter
}

// Handler serves the Prometheus exposition format. Disabled providers
// answer 404.
func (m *MetricsProvider) Handler() http.Handler {
	if m.registry == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Shutdown flushes and stops the meter provider.
func (m *MetricsProvider) Shutdown(ctx context.Context) error {
	if m.provider != nil {
		return m.provider.Shutdown(ctx)
	}
	return nil
}
