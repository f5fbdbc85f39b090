package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	registry *prometheus.Registry

	// Inbound metrics
	MessagesReceivedTotal  prometheus.Counter
	DeliveriesDedupedTotal prometheus.Counter
	CommandsTotal          *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// Handling metrics
	HandleDuration prometheus.Histogram

	// Outbound metrics
	MessagesSentTotal prometheus.Counter
	SendErrorsTotal   prometheus.Counter

	// Retention metrics
	DeliveriesPrunedTotal prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Inbound metrics
		MessagesReceivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "messages_received_total",
				Help: "Total number of inbound messages accepted from the webhook",
			},
		),
		DeliveriesDedupedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deliveries_deduped_total",
				Help: "Total number of inbound deliveries dropped as duplicates",
			},
		),
		CommandsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "commands_total",
				Help: "Total number of inbound messages by command classification",
			},
			[]string{"kind"},
		),

		// Run metrics
		RunsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "runs_total",
				Help: "Total number of conversation runs by terminal outcome",
			},
			[]string{"outcome"},
		),
		RunDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "run_duration_seconds",
				Help:    "Duration of conversation runs from start to terminal outcome",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Handling metrics
		HandleDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "handle_duration_seconds",
				Help:    "End-to-end duration of inbound message handling",
				Buckets: prometheus.DefBuckets,
			},
		),

		// Outbound metrics
		MessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "messages_sent_total",
				Help: "Total number of outbound messages sent",
			},
		),
		SendErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "send_errors_total",
				Help: "Total number of outbound send failures",
			},
		),

		// Retention metrics
		DeliveriesPrunedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "deliveries_pruned_total",
				Help: "Total number of delivery records removed by retention",
			},
		),
	}

	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.MessagesReceivedTotal)
	m.registry.MustRegister(m.DeliveriesDedupedTotal)
	m.registry.MustRegister(m.CommandsTotal)

	m.registry.MustRegister(m.RunsTotal)
	m.registry.MustRegister(m.RunDuration)

	m.registry.MustRegister(m.HandleDuration)

	m.registry.MustRegister(m.MessagesSentTotal)
	m.registry.MustRegister(m.SendErrorsTotal)

	m.registry.MustRegister(m.DeliveriesPrunedTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}
