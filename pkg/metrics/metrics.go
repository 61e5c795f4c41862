// Package metrics exposes pipeline counters over a Prometheus endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the pipeline's counters on a private registry so test
// runs never collide.
type Metrics struct {
	registry *prometheus.Registry

	records *prometheus.CounterVec
	errors  *prometheus.CounterVec
	runs    *prometheus.CounterVec
}

// New builds and registers the metric set.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datapulse",
			Name:      "records_total",
			Help:      "Records processed, by domain and pipeline stage.",
		}, []string{"domain", "stage"}),
		errors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datapulse",
			Name:      "errors_total",
			Help:      "Errors recorded, by domain.",
		}, []string{"domain"}),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "datapulse",
			Name:      "runs_total",
			Help:      "Pipeline runs, by terminal status.",
		}, []string{"status"}),
	}
	m.registry.MustRegister(m.records, m.errors, m.runs)
	return m
}

// AddRecords counts records through one stage (extracted, transformed,
// loaded) of one domain.
func (m *Metrics) AddRecords(domain, stage string, n int) {
	if n > 0 {
		m.records.WithLabelValues(domain, stage).Add(float64(n))
	}
}

// AddErrors counts errors for a domain.
func (m *Metrics) AddErrors(domain string, n int) {
	if n > 0 {
		m.errors.WithLabelValues(domain).Add(float64(n))
	}
}

// RunFinished counts a completed run by status.
func (m *Metrics) RunFinished(status string) {
	m.runs.WithLabelValues(status).Inc()
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr in the background. Intended for long
// runs; errors from the listener are returned on the channel.
func (m *Metrics) Serve(addr string) <-chan error {
	errc := make(chan error, 1)
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	go func() {
		errc <- http.ListenAndServe(addr, mux)
	}()
	return errc
}
