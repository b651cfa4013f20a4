// Package metrics provides Prometheus metrics for the adjudication paths.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "storewatch"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Concealment path
	EventsIngested     prometheus.Counter
	AlertsTriggered    *prometheus.CounterVec // voice_used
	AlertsSuppressed   *prometheus.CounterVec // reason
	PipelineDuration   prometheus.Histogram
	TracksActive       prometheus.Gauge
	IncidentLogErrors  prometheus.Counter

	// Multi-agent path
	ConversationsTotal   prometheus.Counter
	ConclusionsByVerdict *prometheus.CounterVec // verdict
	DiscussionTurns      prometheus.Histogram
	AdjudicationDuration prometheus.Histogram

	// Reasoning calls
	ReasonCalls  *prometheus.CounterVec // operation, outcome
	ReasonErrors *prometheus.CounterVec // operation

	// Publisher
	PublishTotal  *prometheus.CounterVec // topic
	PublishErrors *prometheus.CounterVec // topic
}

// Default is the process-wide metrics instance.
var Default = New()

// New creates and registers all metrics.
func New() *Metrics {
	return &Metrics{
		EventsIngested: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_ingested_total",
			Help:      "Total incident events accepted for adjudication",
		}),
		AlertsTriggered: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_triggered_total",
			Help:      "Total alerts fired, by voice backend",
		}, []string{"voice_used"}),
		AlertsSuppressed: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_suppressed_total",
			Help:      "Total alerts suppressed, by reason",
		}, []string{"reason"}),
		PipelineDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "pipeline_duration_seconds",
			Help:      "Duration of one concealment-path run",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 5, 15, 30},
		}),
		TracksActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "tracks_active",
			Help:      "Number of currently active person tracks",
		}),
		IncidentLogErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "incident_log_errors_total",
			Help:      "Total incident-log write failures",
		}),
		ConversationsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversations_total",
			Help:      "Total multi-agent conversations started",
		}),
		ConclusionsByVerdict: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conclusions_total",
			Help:      "Total conclusions, by final verdict",
		}, []string{"verdict"}),
		DiscussionTurns: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "discussion_turns",
			Help:      "Discussion turns per conversation",
			Buckets:   []float64{0, 1, 2, 3, 4},
		}),
		AdjudicationDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "adjudication_duration_seconds",
			Help:      "Wall-clock duration of one multi-agent adjudication",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 5, 15, 30, 60, 120},
		}),
		ReasonCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reason_calls_total",
			Help:      "Total external reasoning calls, by operation and outcome",
		}, []string{"operation", "outcome"}),
		ReasonErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reason_errors_total",
			Help:      "Total external reasoning failures, by operation",
		}, []string{"operation"}),
		PublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_total",
			Help:      "Total conclusion events published, by topic",
		}, []string{"topic"}),
		PublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publish_errors_total",
			Help:      "Total conclusion publish failures, by topic",
		}, []string{"topic"}),
	}
}

// RecordPipeline records one concealment-path outcome.
func (m *Metrics) RecordPipeline(status, reason, voiceUsed string, seconds float64) {
	m.PipelineDuration.Observe(seconds)
	switch status {
	case "alerted", "fallback_used":
		m.AlertsTriggered.WithLabelValues(voiceUsed).Inc()
	case "suppressed", "logged_only":
		if reason == "" {
			reason = status
		}
		m.AlertsSuppressed.WithLabelValues(reason).Inc()
	}
}

// RecordConclusion records one multi-agent outcome.
func (m *Metrics) RecordConclusion(verdict string, turns int, seconds float64) {
	m.ConclusionsByVerdict.WithLabelValues(verdict).Inc()
	m.DiscussionTurns.Observe(float64(turns))
	m.AdjudicationDuration.Observe(seconds)
}

// RecordPublish records one publish attempt.
func (m *Metrics) RecordPublish(topic string, err error) {
	m.PublishTotal.WithLabelValues(topic).Inc()
	if err != nil {
		m.PublishErrors.WithLabelValues(topic).Inc()
	}
}
