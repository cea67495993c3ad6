// Package metrics holds the Prometheus collectors shared by the database,
// chat and HTTP layers.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	questionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_questions_total",
			Help: "Total number of questions dispatched to the agent, by outcome.",
		},
		[]string{"outcome"},
	)

	agentDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "sqlchat_agent_duration_seconds",
			Help:    "Wall time of one agent invocation.",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
	)

	agentToolCallsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_agent_tool_calls_total",
			Help: "Total number of SQL tool invocations made by the agent.",
		},
		[]string{"tool"},
	)

	handleConstructionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_handle_constructions_total",
			Help: "Total number of database handles opened, by connection mode.",
		},
		[]string{"mode"},
	)

	handleCacheHitsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sqlchat_handle_cache_hits_total",
			Help: "Total number of handle requests served from the cache.",
		},
	)

	activeSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sqlchat_active_sessions",
			Help: "Number of live chat sessions.",
		},
	)

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sqlchat_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "sqlchat_http_request_duration_seconds",
			Help:    "HTTP request latency by route.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

func init() {
	prometheus.MustRegister(
		questionsTotal,
		agentDurationSeconds,
		agentToolCallsTotal,
		handleConstructionsTotal,
		handleCacheHitsTotal,
		activeSessions,
		httpRequestsTotal,
		httpRequestDurationSeconds,
	)
}

// ObserveQuestion records one dispatched question. outcome is "ok" or an error kind.
func ObserveQuestion(outcome string, elapsed time.Duration) {
	if outcome == "" {
		outcome = "error"
	}
	questionsTotal.WithLabelValues(outcome).Inc()
	agentDurationSeconds.Observe(elapsed.Seconds())
}

func IncrementToolCall(tool string) {
	agentToolCallsTotal.WithLabelValues(tool).Inc()
}

func IncrementHandleConstruction(mode string) {
	handleConstructionsTotal.WithLabelValues(mode).Inc()
}

func IncrementHandleCacheHit() {
	handleCacheHitsTotal.Inc()
}

func SetActiveSessions(n int) {
	if n < 0 {
		n = 0
	}
	activeSessions.Set(float64(n))
}
