// Package metrics exposes Prometheus counters for the engine's hot
// paths: action execution, state transactions and LLM calls.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Status label values for action and LLM counters.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"
	StatusError   = "error"
)

// Outcome label values for the transaction counter.
const (
	OutcomeCommitted  = "committed"
	OutcomeRolledBack = "rolled_back"
)

// Metrics holds the counters recorded by handlers, the worker and the
// LLM services. A nil *Metrics is valid and records nothing, which is
// how binaries run with metrics disabled.
type Metrics struct {
	registry *prometheus.Registry

	ActionsTotal      *prometheus.CounterVec
	TransactionsTotal *prometheus.CounterVec
	LLMRequestsTotal  *prometheus.CounterVec
}

// New creates the metrics set on a private registry with the standard
// Go and process collectors attached.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	m := &Metrics{
		registry: registry,
		ActionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adventure_actions_total",
				Help: "Total number of executed actions by type and status",
			},
			[]string{"type", "status"},
		),
		TransactionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adventure_transactions_total",
				Help: "Total number of state transactions by outcome",
			},
			[]string{"outcome"},
		),
		LLMRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "adventure_llm_requests_total",
				Help: "Total number of LLM requests by provider and status",
			},
			[]string{"provider", "status"},
		),
	}

	registry.MustRegister(m.ActionsTotal)
	registry.MustRegister(m.TransactionsTotal)
	registry.MustRegister(m.LLMRequestsTotal)

	return m
}

// Handler serves the metrics endpoint for this registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordAction counts one executed action.
func (m *Metrics) RecordAction(actionType, status string) {
	if m == nil {
		return
	}
	m.ActionsTotal.WithLabelValues(actionType, status).Inc()
}

// RecordTransaction counts one terminal transaction.
func (m *Metrics) RecordTransaction(outcome string) {
	if m == nil {
		return
	}
	m.TransactionsTotal.WithLabelValues(outcome).Inc()
}

// RecordLLMRequest counts one LLM round trip.
func (m *Metrics) RecordLLMRequest(provider, status string) {
	if m == nil {
		return
	}
	m.LLMRequestsTotal.WithLabelValues(provider, status).Inc()
}
