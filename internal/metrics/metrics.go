// Package metrics exposes the Prometheus instruments for the ledger
// service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds all papertrade metrics behind one Prometheus
// registry so tests can build isolated instances.
type Registry struct {
	registry *prometheus.Registry

	// Orders by kind (buy/sell) and outcome (committed/rejected).
	OrdersTotal *prometheus.CounterVec
	// End-to-end order latency including the storage round trip.
	OrderDuration *prometheus.HistogramVec
	// HTTP requests by route and status code.
	RequestsTotal *prometheus.CounterVec
}

func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
		OrdersTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papertrade_orders_total",
				Help: "Orders processed by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		OrderDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "papertrade_order_duration_seconds",
				Help:    "Order processing duration in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
			},
			[]string{"kind"},
		),
		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "papertrade_http_requests_total",
				Help: "HTTP requests by route and status code",
			},
			[]string{"route", "code"},
		),
	}
	r.registry.MustRegister(
		r.OrdersTotal,
		r.OrderDuration,
		r.RequestsTotal,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Handler serves the registry in Prometheus exposition format.
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}
