package observe

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "github.com/jacktea/xavatar"

// Provider owns a meter provider whose readings are served from a private
// Prometheus registry.
type Provider struct {
	registry *prometheus.Registry
	mp       *sdkmetric.MeterProvider
	metrics  Metrics
}

// NewPrometheus wires an OpenTelemetry meter provider to a Prometheus
// exporter. Go runtime and process collectors are registered alongside.
func NewPrometheus() (*Provider, error) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	exp, err := otelprom.New(otelprom.WithRegisterer(reg))
	if err != nil {
		return nil, fmt.Errorf("observe: prometheus exporter: %w", err)
	}
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(exp))
	m, err := NewMetrics(mp.Meter(meterName))
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, err
	}
	return &Provider{registry: reg, mp: mp, metrics: m}, nil
}

// Meter returns the provider's meter.
func (p *Provider) Meter() metric.Meter { return p.mp.Meter(meterName) }

// Metrics returns the engine instruments bound to the provider.
func (p *Provider) Metrics() Metrics { return p.metrics }

// Handler serves the registry in the Prometheus exposition format.
func (p *Provider) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

// Shutdown flushes and stops the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.mp.Shutdown(ctx)
}
