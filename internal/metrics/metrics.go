// Package metrics exposes Prometheus instrumentation for refresh runs.
//
// All Manager methods are safe to call on a nil *Manager, which records nothing.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Request outcomes recorded by ObserveRequest.
const (
	OutcomeOK          = "ok"
	OutcomeRateLimited = "rate_limited"
	OutcomeError       = "error"
)

// Insert outcomes recorded by ObserveInsert.
const (
	InsertAdded    = "added"
	InsertExisting = "existing"
	InsertError    = "error"
)

// Manager owns the refresh metrics and the registry they live in.
type Manager struct {
	namespace string
	registry  *prometheus.Registry

	requests     *prometheus.CounterVec
	itemsFetched *prometheus.CounterVec
	rejections   *prometheus.CounterVec
	inserts      *prometheus.CounterVec
	rounds       prometheus.Counter
	runs         *prometheus.CounterVec
	runDuration  prometheus.Histogram
	lastNew      prometheus.Gauge
	lastRun      prometheus.Gauge
}

// Option configures a Manager.
type Option func(*Manager)

// WithNamespace sets the namespace for all metrics.
func WithNamespace(namespace string) Option {
	return func(m *Manager) {
		if namespace != "" {
			m.namespace = namespace
		}
	}
}

// WithRegistry registers the metrics on registry instead of a fresh one.
func WithRegistry(registry *prometheus.Registry) Option {
	return func(m *Manager) {
		if registry != nil {
			m.registry = registry
		}
	}
}

// NewManager creates and registers the refresh metrics.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "bookfeed",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}

	auto := promauto.With(m.registry)

	m.requests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "source",
		Name:      "requests_total",
		Help:      "Catalog API requests by source and outcome",
	}, []string{"source", "outcome"})

	m.itemsFetched = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "source",
		Name:      "items_fetched_total",
		Help:      "Raw items returned by each source before validation",
	}, []string{"source"})

	m.rejections = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "normalize",
		Name:      "rejections_total",
		Help:      "Raw items that failed validation, by source",
	}, []string{"source"})

	m.inserts = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "store",
		Name:      "inserts_total",
		Help:      "Insert attempts by store and outcome",
	}, []string{"store", "outcome"})

	m.rounds = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "rounds_total",
		Help:      "Fetch rounds executed across all runs",
	})

	m.runs = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "runs_total",
		Help:      "Completed refresh runs by status",
	}, []string{"status"})

	m.runDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "run_duration_seconds",
		Help:      "Wall time of refresh runs",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	})

	m.lastNew = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "last_new_records",
		Help:      "New records committed by the most recent run",
	})

	m.lastRun = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: "refresh",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the most recent run finished",
	})

	return m
}

// Registry returns the registry holding the metrics.
func (m *Manager) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format.
func (m *Manager) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveRequest counts one catalog API request.
func (m *Manager) ObserveRequest(source, outcome string) {
	if m == nil {
		return
	}
	m.requests.WithLabelValues(source, outcome).Inc()
}

// AddFetched counts raw items returned by a source.
func (m *Manager) AddFetched(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.itemsFetched.WithLabelValues(source).Add(float64(n))
}

// ObserveRejection counts one item that failed validation.
func (m *Manager) ObserveRejection(source string) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(source).Inc()
}

// ObserveInsert counts one insert attempt.
func (m *Manager) ObserveInsert(store, outcome string) {
	if m == nil {
		return
	}
	m.inserts.WithLabelValues(store, outcome).Inc()
}

// ObserveRound counts one fetch round.
func (m *Manager) ObserveRound() {
	if m == nil {
		return
	}
	m.rounds.Inc()
}

// ObserveRun records a finished run.
func (m *Manager) ObserveRun(status string, newRecords int, duration time.Duration) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(status).Inc()
	m.runDuration.Observe(duration.Seconds())
	m.lastNew.Set(float64(newRecords))
	m.lastRun.SetToCurrentTime()
}
