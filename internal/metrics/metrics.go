// Package metrics provides Prometheus metrics for the generation
// pipeline. All Record helpers tolerate a nil receiver so callers can
// run without metrics wired.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	GenerationsTotal  *prometheus.CounterVec
	GenerationSeconds *prometheus.HistogramVec
	LLMRequestsTotal  *prometheus.CounterVec
	RunsInflight      prometheus.Gauge
	RetrievalTotal    *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers all metrics on a private registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		GenerationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laddergen_generations_total",
				Help: "Routine generations by routine type and outcome.",
			},
			[]string{"routine_type", "status"},
		),
		GenerationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "laddergen_generation_seconds",
				Help:    "Routine generation duration by provider.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"provider"},
		),
		LLMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laddergen_llm_requests_total",
				Help: "LLM calls by provider and outcome.",
			},
			[]string{"provider", "outcome"},
		),
		RunsInflight: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "laddergen_runs_inflight",
				Help: "Pipeline runs currently executing.",
			},
		),
		RetrievalTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "laddergen_retrieval_total",
				Help: "Example retrievals by outcome.",
			},
			[]string{"outcome"},
		),
		registry: reg,
	}

	reg.MustRegister(m.GenerationsTotal)
	reg.MustRegister(m.GenerationSeconds)
	reg.MustRegister(m.LLMRequestsTotal)
	reg.MustRegister(m.RunsInflight)
	reg.MustRegister(m.RetrievalTotal)

	return m
}

// Handler returns an http.Handler for the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordGeneration increments the generation counter.
func (m *Metrics) RecordGeneration(routineType, status string) {
	if m == nil {
		return
	}
	m.GenerationsTotal.WithLabelValues(routineType, status).Inc()
}

// ObserveGeneration records one routine generation's duration.
func (m *Metrics) ObserveGeneration(provider string, seconds float64) {
	if m == nil {
		return
	}
	m.GenerationSeconds.WithLabelValues(provider).Observe(seconds)
}

// RecordLLMRequest increments the LLM call counter.
func (m *Metrics) RecordLLMRequest(provider, outcome string) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, outcome).Inc()
}

// RunStarted and RunFinished track the in-flight run gauge.
func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.RunsInflight.Inc()
}

func (m *Metrics) RunFinished() {
	if m == nil {
		return
	}
	m.RunsInflight.Dec()
}

// RecordRetrieval increments the retrieval counter.
func (m *Metrics) RecordRetrieval(outcome string) {
	if m == nil {
		return
	}
	m.RetrievalTotal.WithLabelValues(outcome).Inc()
}
