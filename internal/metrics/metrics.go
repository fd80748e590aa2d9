// Package metrics holds the Prometheus collectors of the advisor.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Metrics struct {
	registry *prometheus.Registry

	SubsetsEnumerated prometheus.Counter
	SearchTruncated   prometheus.Counter
	Recommendations   prometheus.Counter
	Attributions      *prometheus.CounterVec
	HTTPRequests      *prometheus.CounterVec
}

// New creates the collectors on a dedicated registry so that tests can build
// as many instances as they need.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		SubsetsEnumerated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_optimizer_subsets_total",
			Help: "Category subsets evaluated by the cashback optimizer.",
		}),
		SearchTruncated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_optimizer_truncated_total",
			Help: "Per-bank searches stopped at the subset limit.",
		}),
		Recommendations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "advisor_recommendations_total",
			Help: "Recommendations computed.",
		}),
		Attributions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_attributed_transactions_total",
			Help: "Transactions attributed against confirmed choices.",
		}, []string{"optimal"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "advisor_http_requests_total",
			Help: "HTTP requests by route and status code.",
		}, []string{"route", "status"}),
	}
	m.registry.MustRegister(
		m.SubsetsEnumerated,
		m.SearchTruncated,
		m.Recommendations,
		m.Attributions,
		m.HTTPRequests,
		collectors.NewGoCollector(),
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
