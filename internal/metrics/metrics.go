// Package metrics bundles the Prometheus collectors of the logging pipeline.
// All methods are safe to call on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Drop reasons.
const (
	DropNoGroup    = "no_group"
	DropFiltered   = "filtered"
	DropEmpty      = "empty"
	DropBotMessage = "bot_disabled"
)

// Metrics bundles Prometheus collectors for the pipeline and the gateway.
type Metrics struct {
	registry       *prometheus.Registry
	eventsObserved *prometheus.CounterVec
	dropped        *prometheus.CounterVec
	recordsWritten *prometheus.CounterVec
	writeErrors    *prometheus.CounterVec
	writeDuration  prometheus.Histogram
	inflightWrites prometheus.Gauge
}

// New registers a fresh set of collectors on a private registry.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	m := &Metrics{
		registry: registry,
		eventsObserved: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatlogger",
			Name:      "events_observed_total",
			Help:      "Chat events handed to the pipeline",
		}, []string{"kind"}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatlogger",
			Name:      "messages_dropped_total",
			Help:      "Messages not persisted, by reason",
		}, []string{"reason"}),
		recordsWritten: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatlogger",
			Name:      "records_written_total",
			Help:      "Chat records committed to storage",
		}, []string{"kind"}),
		writeErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatlogger",
			Name:      "record_write_errors_total",
			Help:      "Chat records that failed to persist, by error code",
		}, []string{"code"}),
		writeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatlogger",
			Name:      "record_write_duration_seconds",
			Help:      "Histogram of chat record write durations",
			Buckets:   prometheus.DefBuckets,
		}),
		inflightWrites: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "chatlogger",
			Name:      "inflight_writes",
			Help:      "Writes currently holding a storage unit of work",
		}),
	}

	registry.MustRegister(
		m.eventsObserved,
		m.dropped,
		m.recordsWritten,
		m.writeErrors,
		m.writeDuration,
		m.inflightWrites,
	)
	return m
}

// Handler returns an HTTP handler exposing the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// IncObserved counts an event entering the pipeline.
func (m *Metrics) IncObserved(isBot bool) {
	if m == nil {
		return
	}
	m.eventsObserved.WithLabelValues(kind(isBot)).Inc()
}

// IncDropped counts a message dropped before storage.
func (m *Metrics) IncDropped(reason string) {
	if m == nil {
		return
	}
	m.dropped.WithLabelValues(reason).Inc()
}

// ObserveWrite records a committed write and its duration.
func (m *Metrics) ObserveWrite(isBot bool, dur time.Duration) {
	if m == nil {
		return
	}
	m.recordsWritten.WithLabelValues(kind(isBot)).Inc()
	m.writeDuration.Observe(dur.Seconds())
}

// IncWriteErrors counts a failed write.
func (m *Metrics) IncWriteErrors(code string) {
	if m == nil {
		return
	}
	m.writeErrors.WithLabelValues(code).Inc()
}

// AddInflight adjusts the in-flight write gauge by delta.
func (m *Metrics) AddInflight(delta float64) {
	if m == nil {
		return
	}
	m.inflightWrites.Add(delta)
}

func kind(isBot bool) string {
	if isBot {
		return "bot"
	}
	return "user"
}
