// Package metrics provides Prometheus-based metrics recording for LLM calls,
// tool executions, orchestrator passes and retrieval queries.
package metrics

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/prometheus/common/expfmt"
)

// Metrics records counters and histograms on its own registry, so tests can
// construct as many instances as they like without duplicate-registration
// panics and the HTTP handler serves only these series.
type Metrics struct {
	registry *prometheus.Registry

	llmRequestsTotal  *prometheus.CounterVec
	llmTokensTotal    *prometheus.CounterVec
	llmDuration       *prometheus.HistogramVec
	toolTotal         *prometheus.CounterVec
	toolDuration      *prometheus.HistogramVec
	passesTotal       *prometheus.CounterVec
	taskRunsTotal     *prometheus.CounterVec
	retrievalTotal    *prometheus.CounterVec
	retrievalDuration *prometheus.HistogramVec
}

// New creates a Metrics instance with all instruments registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	factory := promauto.With(registry)

	return &Metrics{
		registry: registry,
		llmRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM requests by model and status",
			},
			[]string{"model", "status"},
		),
		llmTokensTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "llm_tokens_total",
				Help: "Total number of tokens used in LLM requests",
			},
			[]string{"model", "type"},
		),
		llmDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "Duration of LLM requests in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		toolTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tool_executions_total",
				Help: "Total number of tool executions by tool and status",
			},
			[]string{"tool", "status"},
		),
		toolDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"tool"},
		),
		passesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "orchestrator_passes_total",
				Help: "Total number of orchestrator state-handler passes by state and outcome",
			},
			[]string{"state", "outcome"},
		),
		taskRunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "task_runs_total",
				Help: "Total number of task runs by final status",
			},
			[]string{"status"},
		),
		retrievalTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "retrieval_queries_total",
				Help: "Total number of retrieval queries by kind",
			},
			[]string{"kind"},
		),
		retrievalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "retrieval_query_duration_seconds",
				Help:    "Duration of retrieval queries in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"kind"},
		),
	}
}

// RecordLLMRequest records one completed (or failed) LLM request.
func (m *Metrics) RecordLLMRequest(model string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.llmRequestsTotal.WithLabelValues(model, status).Inc()
	m.llmDuration.WithLabelValues(model).Observe(duration.Seconds())
}

// RecordLLMTokens records token usage for a successful request.
func (m *Metrics) RecordLLMTokens(model string, promptTokens, completionTokens int) {
	m.llmTokensTotal.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	m.llmTokensTotal.WithLabelValues(model, "completion").Add(float64(completionTokens))
}

// RecordToolExecution records one tool call.
func (m *Metrics) RecordToolExecution(tool string, success bool, duration time.Duration) {
	status := "success"
	if !success {
		status = "error"
	}
	m.toolTotal.WithLabelValues(tool, status).Inc()
	m.toolDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// RecordOrchestratorPass records one state-handler pass.
func (m *Metrics) RecordOrchestratorPass(state, outcome string) {
	m.passesTotal.WithLabelValues(state, outcome).Inc()
}

// RecordTaskRun records the final status of a task run.
func (m *Metrics) RecordTaskRun(status string) {
	m.taskRunsTotal.WithLabelValues(status).Inc()
}

// RecordRetrievalQuery records one retrieval query of the given kind
// (keyword, vector, hybrid).
func (m *Metrics) RecordRetrievalQuery(kind string, duration time.Duration) {
	m.retrievalTotal.WithLabelValues(kind).Inc()
	m.retrievalDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// Handler serves this registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Snapshot renders every non-empty series as exposition text, for the
// end-of-run summary.
func (m *Metrics) Snapshot() (string, error) {
	families, err := m.registry.Gather()
	if err != nil {
		return "", fmt.Errorf("failed to gather metrics: %w", err)
	}

	var buf bytes.Buffer
	enc := expfmt.NewEncoder(&buf, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, family := range families {
		if err := enc.Encode(family); err != nil {
			return "", fmt.Errorf("failed to encode metric family %s: %w", family.GetName(), err)
		}
	}
	return buf.String(), nil
}
