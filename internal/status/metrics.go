package status

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus instruments updated by the pipeline.
type Metrics struct {
	Registry *prometheus.Registry

	RunsTotal        *prometheus.CounterVec
	EventsFetched    prometheus.Counter
	RecordsDelivered prometheus.Counter
	DispatchAttempts prometheus.Counter
	AddressChanges   prometheus.Counter
	LastRunUnix      prometheus.Gauge
	LastRunSuccess   prometheus.Gauge
}

// NewMetrics creates and registers the gatesync metric set on a fresh
// registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		RunsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "gatesync_runs_total",
			Help: "Sync runs by final status.",
		}, []string{"status"}),
		EventsFetched: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatesync_events_fetched_total",
			Help: "Raw attendance events fetched from the terminal.",
		}),
		RecordsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatesync_records_delivered_total",
			Help: "Aggregated attendance records delivered to the cloud.",
		}),
		DispatchAttempts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatesync_dispatch_attempts_total",
			Help: "HTTP delivery attempts, including retries.",
		}),
		AddressChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "gatesync_terminal_address_changes_total",
			Help: "Times discovery relocated the terminal to a new address.",
		}),
		LastRunUnix: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatesync_last_run_timestamp_seconds",
			Help: "Unix time the last sync run finished.",
		}),
		LastRunSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "gatesync_last_run_success",
			Help: "1 if the last sync run completed, 0 otherwise.",
		}),
	}

	m.Registry.MustRegister(
		m.RunsTotal,
		m.EventsFetched,
		m.RecordsDelivered,
		m.DispatchAttempts,
		m.AddressChanges,
		m.LastRunUnix,
		m.LastRunSuccess,
	)
	return m
}
