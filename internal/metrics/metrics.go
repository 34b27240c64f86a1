package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters.
type Metrics struct {
	addressesFetched  prometheus.Counter
	puzzlesUpdated    prometheus.Counter
	fetchErrors       prometheus.Counter
	notificationsSent prometheus.Counter
}

var (
	once    sync.Once
	metrics *Metrics
)

// Init initializes global metrics (idempotent).
func Init() *Metrics {
	once.Do(func() {
		metrics = &Metrics{
			addressesFetched: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fundtrace_addresses_fetched_total",
				Help: "Total number of addresses fetched from explorers",
			}),
			puzzlesUpdated: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fundtrace_puzzles_updated_total",
				Help: "Total number of puzzles whose event history changed",
			}),
			fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fundtrace_fetch_errors_total",
				Help: "Total number of per-address fetch failures",
			}),
			notificationsSent: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "fundtrace_notifications_sent_total",
				Help: "Total number of terminal-event notifications sent",
			}),
		}
		prometheus.MustRegister(
			metrics.addressesFetched,
			metrics.puzzlesUpdated,
			metrics.fetchErrors,
			metrics.notificationsSent,
		)
	})
	return metrics
}

// AddressFetched increments the fetched-addresses counter.
func (m *Metrics) AddressFetched() {
	if m != nil {
		m.addressesFetched.Inc()
	}
}

// PuzzleUpdated increments the updated-puzzles counter.
func (m *Metrics) PuzzleUpdated() {
	if m != nil {
		m.puzzlesUpdated.Inc()
	}
}

// FetchError increments the fetch-errors counter.
func (m *Metrics) FetchError() {
	if m != nil {
		m.fetchErrors.Inc()
	}
}

// NotificationSent increments the notifications counter.
func (m *Metrics) NotificationSent() {
	if m != nil {
		m.notificationsSent.Inc()
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
