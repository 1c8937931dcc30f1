package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	registry *prometheus.Registry

	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Tool catalog metrics
	ToolFetchAttemptsTotal prometheus.Counter
	ToolFetchFailuresTotal prometheus.Counter
	ToolsCached            prometheus.Gauge

	// LLM metrics
	LLMCallsTotal        *prometheus.CounterVec
	ToolInvocationsTotal *prometheus.CounterVec
}

// New creates and registers all metrics
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		RequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"path", "status"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentgate_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"path"},
		),

		ToolFetchAttemptsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentgate_tool_fetch_attempts_total",
				Help: "Total number of MCP tool list fetch attempts",
			},
		),
		ToolFetchFailuresTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "agentgate_tool_fetch_failures_total",
				Help: "Total number of failed MCP tool list fetch attempts",
			},
		),
		ToolsCached: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentgate_tools_cached",
				Help: "Number of tool descriptors currently cached",
			},
		),

		LLMCallsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_llm_calls_total",
				Help: "Total number of LLM completion calls",
			},
			[]string{"provider", "status"},
		),
		ToolInvocationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentgate_tool_invocations_total",
				Help: "Total number of tool invocations requested by the model",
			},
			[]string{"tool", "status"},
		),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDuration,
		m.ToolFetchAttemptsTotal,
		m.ToolFetchFailuresTotal,
		m.ToolsCached,
		m.LLMCallsTotal,
		m.ToolInvocationsTotal,
	)

	return m
}

// Handler returns an HTTP handler serving the metrics registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
