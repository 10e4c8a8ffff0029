// Package metrics holds the prometheus collectors of the server.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups every collector. Each instance registers on its own
// registry so tests can build as many as they like.
type Metrics struct {
	registry *prometheus.Registry

	RequestsTotal    *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	InFlightRequests prometheus.Gauge

	SyncBatches  *prometheus.CounterVec
	SyncItems    *prometheus.CounterVec
	SyncDuration prometheus.Histogram
	LoadsTotal   *prometheus.CounterVec
	LoadDuration prometheus.Histogram
	LoadRows     prometheus.Gauge
	FeedClients  prometheus.Gauge
	FeedMessages *prometheus.CounterVec
}

// New creates the collectors on a fresh registry that also carries the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		RequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		RequestDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Duration of HTTP requests in seconds",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.3, 1, 3},
			},
			[]string{"method", "route"},
		),
		InFlightRequests: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "http_in_flight_requests",
				Help: "Current number of in-flight HTTP requests",
			},
		),

		SyncBatches: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gantt_sync_batches_total",
				Help: "Sync batches by outcome",
			},
			[]string{"outcome"},
		),
		SyncItems: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gantt_sync_items_total",
				Help: "Sync batch items by kind and outcome",
			},
			[]string{"kind", "outcome"},
		),
		SyncDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gantt_sync_duration_seconds",
				Help:    "Time to apply one sync batch",
				Buckets: prometheus.DefBuckets,
			},
		),
		LoadsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gantt_loads_total",
				Help: "Full task loads by outcome",
			},
			[]string{"outcome"},
		),
		LoadDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gantt_load_duration_seconds",
				Help:    "Time to build one full task load",
				Buckets: prometheus.DefBuckets,
			},
		),
		LoadRows: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "gantt_load_rows",
				Help: "Rows returned by the most recent load",
			},
		),
		FeedClients: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "gantt_feed_clients",
				Help: "Connected change feed clients",
			},
		),
		FeedMessages: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gantt_feed_messages_total",
				Help: "Change feed messages by type and outcome",
			},
			[]string{"type", "outcome"},
		),
	}
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveBatch implements sync.Observer.
func (m *Metrics) ObserveBatch(outcome string, d time.Duration) {
	m.SyncBatches.WithLabelValues(outcome).Inc()
	m.SyncDuration.Observe(d.Seconds())
}

// ObserveItem implements sync.Observer.
func (m *Metrics) ObserveItem(kind, outcome string) {
	m.SyncItems.WithLabelValues(kind, outcome).Inc()
}

// ObserveLoad implements sync.Observer.
func (m *Metrics) ObserveLoad(outcome string, rows int, d time.Duration) {
	m.LoadsTotal.WithLabelValues(outcome).Inc()
	m.LoadDuration.Observe(d.Seconds())
	if outcome == "success" {
		m.LoadRows.Set(float64(rows))
	}
}

// ObserveFeedClients implements feed.Observer.
func (m *Metrics) ObserveFeedClients(n int) {
	m.FeedClients.Set(float64(n))
}

// ObserveFeedMessage implements feed.Observer.
func (m *Metrics) ObserveFeedMessage(typ, outcome string) {
	m.FeedMessages.WithLabelValues(typ, outcome).Inc()
}
