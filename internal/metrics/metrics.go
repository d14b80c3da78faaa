// Package metrics exposes Prometheus counters for recordings, transcriptions
// and tool calls. A nil *Metrics is valid and records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "dictation"

type Metrics struct {
	registry         *prometheus.Registry
	recordings       *prometheus.CounterVec
	transcriptions   *prometheus.CounterVec
	transcribeTime   prometheus.Histogram
	steps            *prometheus.CounterVec
	toolCalls        *prometheus.CounterVec
	modelDownloads   *prometheus.CounterVec
	apiRequestTiming *prometheus.HistogramVec
}

// New registers all collectors on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		recordings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recording_events_total",
			Help:      "Recording lifecycle events by kind.",
		}, []string{"event"}),
		transcriptions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "transcriptions_total",
			Help:      "Speech engine invocations by result.",
		}, []string{"result"}),
		transcribeTime: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "transcription_seconds",
			Help:      "Wall time of speech engine invocations.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
		}),
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "post_transcription_steps_total",
			Help:      "Outcome of persist, inject and cleanup steps.",
		}, []string{"step", "outcome"}),
		toolCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations over the stdio protocol.",
		}, []string{"tool", "result"}),
		modelDownloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_downloads_total",
			Help:      "Model download attempts by result.",
		}, []string{"result"}),
		apiRequestTiming: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_seconds",
			Help:      "HTTP API latency by route and status.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.recordings,
		m.transcriptions,
		m.transcribeTime,
		m.steps,
		m.toolCalls,
		m.modelDownloads,
		m.apiRequestTiming,
	)
	return m
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// RecordingEvent counts started, stopped, empty, timeout and stale events.
func (m *Metrics) RecordingEvent(event string) {
	if m == nil {
		return
	}
	m.recordings.WithLabelValues(event).Inc()
}

// ObserveTranscription records one engine call.
func (m *Metrics) ObserveTranscription(d time.Duration, err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.transcriptions.WithLabelValues(result).Inc()
	m.transcribeTime.Observe(d.Seconds())
}

// StepOutcome counts one post-transcription step.
func (m *Metrics) StepOutcome(step, outcome string) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(step, outcome).Inc()
}

func (m *Metrics) ToolCall(tool string, isError bool) {
	if m == nil {
		return
	}
	result := "ok"
	if isError {
		result = "error"
	}
	m.toolCalls.WithLabelValues(tool, result).Inc()
}

func (m *Metrics) ModelDownload(err error) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "failed"
	}
	m.modelDownloads.WithLabelValues(result).Inc()
}

// ObserveAPIRequest records one HTTP request against its route pattern.
func (m *Metrics) ObserveAPIRequest(method, route string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.apiRequestTiming.WithLabelValues(method, route, http.StatusText(status)).Observe(d.Seconds())
}
