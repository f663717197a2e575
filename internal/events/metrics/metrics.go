package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Publish attempt outcomes.
const (
	OutcomeSuccess   = "success"
	OutcomeRetryable = "retryable"
	OutcomeFatal     = "fatal"
)

// Metrics holds the Prometheus collectors for the publication pipeline.
// All methods are safe on a nil receiver so components can run without metrics.
type Metrics struct {
	PublishAttempts       *prometheus.CounterVec
	EventsPublished       *prometheus.CounterVec
	RecordsSkipped        prometheus.Counter
	RecordsDeadLettered   *prometheus.CounterVec
	DeadLetterSendFailure prometheus.Counter
	PublishDuration       prometheus.Histogram
}

// New creates and registers the pipeline metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the pipeline metrics on reg.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PublishAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "krtbank_event_publish_attempts_total",
			Help: "Publish attempts by event type and outcome",
		}, []string{"event_type", "outcome"}),
		EventsPublished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "krtbank_events_published_total",
			Help: "Events delivered to the bus",
		}, []string{"event_type"}),
		RecordsSkipped: factory.NewCounter(prometheus.CounterOpts{
			Name: "krtbank_change_records_skipped_total",
			Help: "Change records with an unrecognized operation",
		}),
		RecordsDeadLettered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "krtbank_change_records_dead_lettered_total",
			Help: "Change records captured into the dead-letter queue",
		}, []string{"operation"}),
		DeadLetterSendFailure: factory.NewCounter(prometheus.CounterOpts{
			Name: "krtbank_dead_letter_send_failures_total",
			Help: "Dead-letter records that could not be sent",
		}),
		PublishDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "krtbank_event_publish_duration_ms",
			Help:    "Latency of a single publish attempt in milliseconds",
			Buckets: []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		}),
	}
}

func (m *Metrics) IncAttempt(eventType, outcome string) {
	if m == nil {
		return
	}
	m.PublishAttempts.WithLabelValues(eventType, outcome).Inc()
}

func (m *Metrics) IncPublished(eventType string) {
	if m == nil {
		return
	}
	m.EventsPublished.WithLabelValues(eventType).Inc()
}

func (m *Metrics) IncSkipped() {
	if m == nil {
		return
	}
	m.RecordsSkipped.Inc()
}

func (m *Metrics) IncDeadLettered(operation string) {
	if m == nil {
		return
	}
	m.RecordsDeadLettered.WithLabelValues(operation).Inc()
}

func (m *Metrics) IncDeadLetterSendFailure() {
	if m == nil {
		return
	}
	m.DeadLetterSendFailure.Inc()
}

func (m *Metrics) ObservePublishDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.PublishDuration.Observe(float64(d.Microseconds()) / 1000.0)
}
