// Package metrics defines the Prometheus instrumentation for dict-engine.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "dict_engine"

// HTTP metrics (incremented by the api middleware).
var (
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "Total HTTP requests processed.",
	}, []string{"method", "path_pattern", "status_code"})

	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request duration in seconds.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "path_pattern"})
)

// Transformation pipeline counters (incremented by the orchestrator/executor).
var (
	RunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transformation_runs_total",
		Help:      "Transformation runs reaching a terminal state, by status.",
	}, []string{"status"})

	StepsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transformation_steps_total",
		Help:      "Executed transformation steps, by type and status.",
	}, []string{"type", "status"})

	CompletionRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "completion_requests_total",
		Help:      "LLM completion calls, by provider and outcome.",
	}, []string{"provider", "outcome"})
)

// Transcription counters (incremented by the transcribe worker pool).
var (
	TranscriptionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "transcriptions_total",
		Help:      "Transcription jobs reaching a terminal state, by provider and status.",
	}, []string{"provider", "status"})

	TranscriptionDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "transcription_duration_seconds",
		Help:      "Wall-clock duration of transcription jobs.",
		Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms → ~51s
	}, []string{"provider"})
)

func init() {
	prometheus.MustRegister(
		HTTPRequestsTotal,
		HTTPRequestDuration,
		RunsTotal,
		StepsTotal,
		CompletionRequestsTotal,
		TranscriptionsTotal,
		TranscriptionDuration,
	)
}
