// Package metrics holds the proxy's Prometheus counters.
//
// Registers:
//
//	optionsproxy_upstream_requests_total{provider,outcome}
//	optionsproxy_session_acquisitions_total{result}
//	optionsproxy_session_invalidations_total
//	optionsproxy_cache_lookups_total{result}
//	go_* and process_* system metrics
//
// All methods are safe on a nil *Metrics, which records nothing.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Upstream outcomes.
const (
	OutcomeOK        = "ok"
	OutcomeHTTPError = "http_error"
	OutcomeAuthError = "auth_error"
	OutcomeTransport = "transport_error"
)

type Metrics struct {
	reg *prometheus.Registry

	UpstreamRequests     *prometheus.CounterVec
	SessionAcquisitions  *prometheus.CounterVec
	SessionInvalidations prometheus.Counter
	CacheLookups         *prometheus.CounterVec
}

// New builds the counters on a private registry.
func New() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		UpstreamRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionsproxy_upstream_requests_total",
				Help: "Upstream options-chain fetches by provider and outcome",
			},
			[]string{"provider", "outcome"},
		),
		SessionAcquisitions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionsproxy_session_acquisitions_total",
				Help: "Cookie/crumb acquisitions by result",
			},
			[]string{"result"},
		),
		SessionInvalidations: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "optionsproxy_session_invalidations_total",
			Help: "Sessions dropped after an authentication-class upstream status",
		}),
		CacheLookups: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "optionsproxy_cache_lookups_total",
				Help: "Response cache lookups by result",
			},
			[]string{"result"},
		),
	}
	m.reg.MustRegister(
		m.UpstreamRequests,
		m.SessionAcquisitions,
		m.SessionInvalidations,
		m.CacheLookups,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the private registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func (m *Metrics) Upstream(provider, outcome string) {
	if m != nil {
		m.UpstreamRequests.WithLabelValues(provider, outcome).Inc()
	}
}

func (m *Metrics) Acquisition(ok bool) {
	if m == nil {
		return
	}
	result := "ok"
	if !ok {
		result = "error"
	}
	m.SessionAcquisitions.WithLabelValues(result).Inc()
}

func (m *Metrics) Invalidation() {
	if m != nil {
		m.SessionInvalidations.Inc()
	}
}

func (m *Metrics) CacheLookup(hit bool) {
	if m == nil {
		return
	}
	result := "hit"
	if !hit {
		result = "miss"
	}
	m.CacheLookups.WithLabelValues(result).Inc()
}
