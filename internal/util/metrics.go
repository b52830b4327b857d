package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ChatRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_requests_total",
		Help: "Total number of chat requests handled",
	})

	ChatFallbacksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "chat_fallbacks_total",
		Help: "Total number of chat requests answered with the fallback message",
	}, []string{"reason"})

	ChatRateLimitedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "chat_rate_limited_total",
		Help: "Total number of chat requests rejected by the rate limiter",
	})

	ToolCallsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_calls_total",
		Help: "Total number of tool calls executed",
	}, []string{"tool"})

	ToolErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "tool_errors_total",
		Help: "Total number of tool calls that returned a failed result",
	}, []string{"tool"})

	ToolRoundsPerRequest = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "tool_rounds_per_request",
		Help:    "Tool-calling rounds used per chat request",
		Buckets: []float64{0, 1, 2, 3, 4, 5},
	})

	LLMRequestLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "llm_request_latency_seconds",
		Help:    "Latency of model completion calls",
		Buckets: prometheus.DefBuckets,
	})

	LLMTokensUsedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "llm_tokens_used_total",
		Help: "Total model tokens consumed",
	})

	LoggingFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "logging_failures_total",
		Help: "Total number of best-effort usage/audit writes that failed",
	}, []string{"kind"})

	PurchasesRecordedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_recorded_total",
		Help: "Total number of simulated purchases recorded",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_failed_total",
		Help: "Total number of failed purchase attempts",
	}, []string{"reason"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
