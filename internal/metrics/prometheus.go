package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Manager owns the recognition metrics. A nil *Manager is valid and
// records nothing.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	samplesObserved *prometheus.CounterVec
	samplesDropped  prometheus.Counter

	episodesStarted      prometheus.Counter
	candidatesEliminated *prometheus.CounterVec
	recognitions         *prometheus.CounterVec
	candidatesRemaining  prometheus.Gauge

	dtwEvaluations prometheus.Counter
	dtwLatency     prometheus.Histogram

	actionsExecuted *prometheus.CounterVec
}

// NewManager creates a metrics manager. Without WithPrometheusRegistry the
// metrics are registered on a fresh private registry.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "natya",
		subsystem:        "recognition",
		histogramBuckets: []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1},
	}
	for _, opt := range opts {
		opt(m)
	}
	if m.registry == nil {
		m.registry = prometheus.NewRegistry()
	}

	f := promauto.With(m.registry)

	m.samplesObserved = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_observed_total",
		Help:      "Motion samples accepted per channel.",
	}, []string{"channel"})
	m.samplesDropped = f.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "samples_dropped_total",
		Help:      "Motion samples dropped because they were out of order.",
	})
	m.episodesStarted = f.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "episodes_started_total",
		Help:      "Recognition episodes started.",
	})
	m.candidatesEliminated = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_eliminated_total",
		Help:      "Candidate gestures eliminated, by metric.",
	}, []string{"metric"})
	m.recognitions = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "episodes_resolved_total",
		Help:      "Resolved episodes by outcome and failure reason.",
	}, []string{"outcome", "reason"})
	m.candidatesRemaining = f.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "candidates_remaining",
		Help:      "Candidates still alive in the active episode.",
	})
	m.dtwEvaluations = f.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dtw_evaluations_total",
		Help:      "DTW cost evaluations.",
	})
	m.dtwLatency = f.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "dtw_duration_seconds",
		Help:      "Time spent computing one DTW cost.",
		Buckets:   m.histogramBuckets,
	})
	m.actionsExecuted = f.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "actions",
		Name:      "executed_total",
		Help:      "Plugin actions executed for recognized gestures.",
	}, []string{"plugin", "status"})

	return m
}

// Handler returns an HTTP handler exposing the registry, when it is a Gatherer.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	if g, ok := m.registry.(prometheus.Gatherer); ok {
		return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
	}
	return promhttp.Handler()
}

// SampleObserved counts an accepted sample.
func (m *Manager) SampleObserved(channel string) {
	if m == nil {
		return
	}
	m.samplesObserved.WithLabelValues(channel).Inc()
}

// SampleDropped counts a rejected sample.
func (m *Manager) SampleDropped() {
	if m == nil {
		return
	}
	m.samplesDropped.Inc()
}

// EpisodeStarted counts a started episode and sets the candidate gauge.
func (m *Manager) EpisodeStarted(candidates int) {
	if m == nil {
		return
	}
	m.episodesStarted.Inc()
	m.candidatesRemaining.Set(float64(candidates))
}

// CandidateEliminated counts an elimination under metric.
func (m *Manager) CandidateEliminated(metric string, remaining int) {
	if m == nil {
		return
	}
	m.candidatesEliminated.WithLabelValues(metric).Inc()
	m.candidatesRemaining.Set(float64(remaining))
}

// EpisodeResolved counts a resolution. An empty reason is recorded as "none".
func (m *Manager) EpisodeResolved(outcome, reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "none"
	}
	m.recognitions.WithLabelValues(outcome, reason).Inc()
	m.candidatesRemaining.Set(0)
}

// DTWEvaluated records one DTW evaluation.
func (m *Manager) DTWEvaluated(d time.Duration) {
	if m == nil {
		return
	}
	m.dtwEvaluations.Inc()
	m.dtwLatency.Observe(d.Seconds())
}

// ActionExecuted counts a plugin execution by status (ok, failed, error, missing).
func (m *Manager) ActionExecuted(plugin, status string) {
	if m == nil {
		return
	}
	m.actionsExecuted.WithLabelValues(plugin, status).Inc()
}
