package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds Prometheus metrics for the dashboard.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	// FetchesTotal counts dashboard loads by resource and outcome.
	FetchesTotal *prometheus.CounterVec

	// FinishTotal counts finish-reservation attempts by outcome.
	FinishTotal *prometheus.CounterVec

	// APIRequestDuration is the latency of reservations API calls.
	APIRequestDuration *prometheus.HistogramVec

	// APICacheTotal counts API cache lookups by result (hit, miss).
	APICacheTotal *prometheus.CounterVec

	// HTTPRequestsTotal counts dashboard web requests by route.
	HTTPRequestsTotal *prometheus.CounterVec

	// JournalEntriesTotal counts host actions written to the journal.
	JournalEntriesTotal prometheus.Counter
}

// New creates metrics registered on reg. A nil reg uses the default registerer.
func New(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dashboard_fetches_total",
				Help:      "Dashboard loads by resource and outcome",
			},
			[]string{"resource", "outcome"},
		),

		FinishTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "finish_reservation_total",
				Help:      "Finish-reservation attempts by outcome",
			},
			[]string{"outcome"},
		),

		APIRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "api_request_duration_seconds",
				Help:      "Time spent calling the reservations API",
				Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"endpoint", "status"},
		),

		APICacheTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "api_cache_total",
				Help:      "Reservations API cache lookups by result",
			},
			[]string{"result"},
		),

		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Dashboard web requests by route",
			},
			[]string{"route"},
		),

		JournalEntriesTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "journal_entries_total",
				Help:      "Host actions written to the journal",
			},
		),
	}
}

// IncFetch records the outcome of a dashboard load.
func (m *Metrics) IncFetch(resource, outcome string) {
	if m == nil {
		return
	}
	m.FetchesTotal.WithLabelValues(resource, outcome).Inc()
}

// IncFinish records the outcome of a finish attempt.
func (m *Metrics) IncFinish(outcome string) {
	if m == nil {
		return
	}
	m.FinishTotal.WithLabelValues(outcome).Inc()
}

// ObserveAPI records the duration of an API call.
func (m *Metrics) ObserveAPI(endpoint, status string, seconds float64) {
	if m == nil {
		return
	}
	m.APIRequestDuration.WithLabelValues(endpoint, status).Observe(seconds)
}

// IncCache records a cache hit or miss.
func (m *Metrics) IncCache(result string) {
	if m == nil {
		return
	}
	m.APICacheTotal.WithLabelValues(result).Inc()
}

// IncHTTP records a web request.
func (m *Metrics) IncHTTP(route string) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(route).Inc()
}

// IncJournal records a journal write.
func (m *Metrics) IncJournal() {
	if m == nil {
		return
	}
	m.JournalEntriesTotal.Inc()
}
