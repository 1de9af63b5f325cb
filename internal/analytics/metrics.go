// Package analytics turns sequencer transitions into view records and
// engagement metrics.
package analytics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gvarikaa/new-DapDip-sub001/internal/media"
)

// Collector receives engagement measurements. Components depend on this
// interface; Metrics implements it for Prometheus and Nop discards.
type Collector interface {
	ViewStarted(kind media.Kind)
	ViewFinished(kind media.Kind, watchedSeconds, completionPercent float64)
	Transition(kind string)
	DeliveryFailed(op string)
	PaginationFetch(feed, outcome string)
	ResponseSubmitted(outcome string)
}

// Metrics is the Prometheus Collector.
type Metrics struct {
	viewsStarted   *prometheus.CounterVec
	watchedSeconds *prometheus.HistogramVec
	completion     *prometheus.HistogramVec
	transitions    *prometheus.CounterVec
	deliveryFail   *prometheus.CounterVec
	pagination     *prometheus.CounterVec
	responses      *prometheus.CounterVec
}

// NewMetrics creates the metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		viewsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seq_views_started_total",
			Help: "Item activations that opened a view.",
		}, []string{"kind"}),
		watchedSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seq_view_watched_seconds",
			Help:    "Watched duration of finalized views.",
			Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13, 21, 34, 60},
		}, []string{"kind"}),
		completion: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "seq_view_completion_percent",
			Help:    "Completion percent of finalized views.",
			Buckets: []float64{10, 25, 50, 75, 90, 100},
		}, []string{"kind"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seq_transitions_total",
			Help: "Sequencer transitions by kind.",
		}, []string{"kind"}),
		deliveryFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seq_delivery_failures_total",
			Help: "Collaborator calls that failed after retries.",
		}, []string{"op"}),
		pagination: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seq_pagination_fetches_total",
			Help: "Pagination fetches by feed and outcome.",
		}, []string{"feed", "outcome"}),
		responses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "seq_responses_total",
			Help: "Interactive response submissions by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.viewsStarted,
		m.watchedSeconds,
		m.completion,
		m.transitions,
		m.deliveryFail,
		m.pagination,
		m.responses,
	)
	return m
}

func (m *Metrics) ViewStarted(kind media.Kind) {
	m.viewsStarted.WithLabelValues(string(kind)).Inc()
}

func (m *Metrics) ViewFinished(kind media.Kind, watchedSeconds, completionPercent float64) {
	m.watchedSeconds.WithLabelValues(string(kind)).Observe(watchedSeconds)
	m.completion.WithLabelValues(string(kind)).Observe(completionPercent)
}

func (m *Metrics) Transition(kind string) {
	m.transitions.WithLabelValues(kind).Inc()
}

func (m *Metrics) DeliveryFailed(op string) {
	m.deliveryFail.WithLabelValues(op).Inc()
}

func (m *Metrics) PaginationFetch(feed, outcome string) {
	m.pagination.WithLabelValues(feed, outcome).Inc()
}

func (m *Metrics) ResponseSubmitted(outcome string) {
	m.responses.WithLabelValues(outcome).Inc()
}

// Handler serves the registry for Prometheus scraping.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) ViewStarted(media.Kind)                    {}
func (Nop) ViewFinished(media.Kind, float64, float64) {}
func (Nop) Transition(string)                         {}
func (Nop) DeliveryFailed(string)                     {}
func (Nop) PaginationFetch(string, string)            {}
func (Nop) ResponseSubmitted(string)                  {}

var (
	_ Collector = (*Metrics)(nil)
	_ Collector = Nop{}
)
