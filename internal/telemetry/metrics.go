/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/friendsincode/slotplanner/internal/slots"
)

const namespace = "slotplanner"

// Metrics holds the application's Prometheus collectors.
type Metrics struct {
	registry *prometheus.Registry

	SlotMutationsTotal     *prometheus.CounterVec
	SlotCollectionSize     prometheus.Histogram
	TemplateOperations     *prometheus.CounterVec
	TemplateDecodeFailures prometheus.Counter
	EventSavesTotal        *prometheus.CounterVec

	APIRequestDuration   *prometheus.HistogramVec
	APIRequestsTotal     *prometheus.CounterVec
	APIActiveConnections prometheus.Gauge

	DatabaseQueryDuration     *prometheus.HistogramVec
	DatabaseErrorsTotal       *prometheus.CounterVec
	DatabaseConnectionsActive prometheus.Gauge
}

// NewMetrics registers all collectors on a fresh registry along with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		SlotMutationsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slot_mutations_total",
			Help:      "Slot collection mutations by operation.",
		}, []string{"op"}),
		SlotCollectionSize: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "slot_collection_size",
			Help:      "Number of slots in a collection after a mutation.",
			Buckets:   []float64{0, 1, 2, 4, 8, 16, 32, 64},
		}),
		TemplateOperations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_operations_total",
			Help:      "Template store operations by operation and result.",
		}, []string{"op", "result"}),
		TemplateDecodeFailures: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "template_decode_failures_total",
			Help:      "Stored template lists that could not be decoded.",
		}),
		EventSavesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "event_slot_saves_total",
			Help:      "Slot collection saves to the event store by result.",
		}, []string{"result"}),
		APIRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "api_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "endpoint", "status"}),
		APIRequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "api_requests_total",
			Help:      "HTTP requests served.",
		}, []string{"method", "endpoint", "status"}),
		APIActiveConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "api_active_connections",
			Help:      "In-flight HTTP requests.",
		}),
		DatabaseQueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "database_query_duration_seconds",
			Help:      "Database operation latency by operation and table.",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}, []string{"operation", "table"}),
		DatabaseErrorsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "database_errors_total",
			Help:      "Failed database operations.",
		}, []string{"operation"}),
		DatabaseConnectionsActive: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "database_connections_open",
			Help:      "Open database connections.",
		}),
	}
}

// Registry exposes the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler exposes metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// SlotListener counts mutations and records collection size.
func (m *Metrics) SlotListener() slots.Listener {
	return slots.ListenerFunc(func(snap slots.Snapshot) {
		m.SlotMutationsTotal.WithLabelValues(string(snap.Op)).Inc()
		m.SlotCollectionSize.Observe(float64(len(snap.Slots)))
	})
}

// ObserveTemplate records the outcome of a template store operation.
func (m *Metrics) ObserveTemplate(op string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.TemplateOperations.WithLabelValues(op, result).Inc()
}

// TemplateCorrupt is suitable for templates.Store.OnCorrupt.
func (m *Metrics) TemplateCorrupt(error) {
	m.TemplateDecodeFailures.Inc()
}

// ObserveSave records the outcome of an event slot save.
func (m *Metrics) ObserveSave(err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.EventSavesTotal.WithLabelValues(result).Inc()
}
