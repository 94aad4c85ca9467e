package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"codeagents/pkg/errors"
)

var (
	// Completion metrics
	Completions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_completions_total",
			Help: "Total number of completion calls by outcome",
		},
		[]string{"model", "status"}, // status: success|<error kind>
	)

	CompletionLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeagents_completion_latency_seconds",
			Help:    "Completion latency including retries and rate-limit waits",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"model"},
	)

	CompletionRetries = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_completion_retries_total",
			Help: "Total number of retried completion attempts",
		},
		[]string{"model"},
	)

	RateLimitRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_rate_limit_rejections_total",
			Help: "Requests rejected because no slot freed within the wait budget",
		},
		[]string{"model"},
	)

	CompletionTokens = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_completion_tokens_total",
			Help: "Total tokens reported by the provider",
		},
		[]string{"model", "type"}, // type: prompt|completion
	)

	// Agent metrics
	AgentExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_agent_executions_total",
			Help: "Total number of agent executions by result source",
		},
		[]string{"agent", "source", "status"}, // source: model|fallback|deterministic
	)

	AgentLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeagents_agent_latency_seconds",
			Help:    "Agent execution latency in seconds",
			Buckets: []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"agent"},
	)

	AgentFallbacks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_agent_fallbacks_total",
			Help: "Model-path failures answered by the deterministic path",
		},
		[]string{"agent", "reason"}, // reason: error kind
	)

	Findings = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_findings_total",
			Help: "Findings reported by analysis",
		},
		[]string{"agent", "severity"},
	)

	// Worker metrics
	WorkerExecutions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_worker_executions_total",
			Help: "Total number of worker executions",
		},
		[]string{"worker", "status"}, // status: success|error
	)

	WorkerDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "codeagents_worker_duration_seconds",
			Help:    "Worker execution duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"worker"},
	)

	// System metrics
	EventsPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "codeagents_events_published_total",
			Help: "Analysis events published to Kafka",
		},
		[]string{"topic", "status"},
	)
)

var registerOnce sync.Once

// Init registers all metrics with Prometheus
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			Completions,
			CompletionLatency,
			CompletionRetries,
			RateLimitRejections,
			CompletionTokens,
			AgentExecutions,
			AgentLatency,
			AgentFallbacks,
			Findings,
			WorkerExecutions,
			WorkerDuration,
			EventsPublished,
		)
	})
}

// Handler returns Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

func status(err error) string {
	if err == nil {
		return "success"
	}
	return errors.KindOf(err).String()
}

// RecordCompletion records the outcome of a GetCompletion call
func RecordCompletion(model string, latency time.Duration, promptTokens, completionTokens int64, err error) {
	Completions.WithLabelValues(model, status(err)).Inc()
	CompletionLatency.WithLabelValues(model).Observe(latency.Seconds())

	if promptTokens > 0 {
		CompletionTokens.WithLabelValues(model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		CompletionTokens.WithLabelValues(model, "completion").Add(float64(completionTokens))
	}
}

// RecordRetry records a retried completion attempt
func RecordRetry(model string) {
	CompletionRetries.WithLabelValues(model).Inc()
}

// RecordRateLimited records a rate-limit rejection
func RecordRateLimited(model string) {
	RateLimitRejections.WithLabelValues(model).Inc()
}

// RecordAgentExecution records an agent execution
func RecordAgentExecution(agent, source string, latency time.Duration, err error) {
	AgentExecutions.WithLabelValues(agent, source, status(err)).Inc()
	AgentLatency.WithLabelValues(agent).Observe(latency.Seconds())
}

// RecordFallback records a degraded execution and the failure that caused it
func RecordFallback(agent string, cause error) {
	AgentFallbacks.WithLabelValues(agent, errors.KindOf(cause).String()).Inc()
}

// RecordFindings adds findings of one severity
func RecordFindings(agent, severity string, count int) {
	if count > 0 {
		Findings.WithLabelValues(agent, severity).Add(float64(count))
	}
}

// RecordWorkerExecution records a worker execution
func RecordWorkerExecution(worker string, duration time.Duration, err error) {
	s := "success"
	if err != nil {
		s = "error"
	}

	WorkerExecutions.WithLabelValues(worker, s).Inc()
	WorkerDuration.WithLabelValues(worker).Observe(duration.Seconds())
}

// RecordEventPublished records a Kafka publish attempt
func RecordEventPublished(topic string, err error) {
	s := "success"
	if err != nil {
		s = "error"
	}
	EventsPublished.WithLabelValues(topic, s).Inc()
}
