// Package metrics exposes Prometheus instruments for batch resolution.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "watershed"

// Outcome labels.
const (
	OutcomeOK     = "ok"
	OutcomeFailed = "failed"
)

// Metrics holds the batch instruments on a private registry. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	DamsProcessed  *prometheus.CounterVec
	StageOutcomes  *prometheus.CounterVec
	StageDuration  *prometheus.HistogramVec
	UpstreamSize   prometheus.Histogram
	Displacement   prometheus.Histogram
	BatchDuration  prometheus.Histogram
	ActiveWorkers  prometheus.Gauge
	BoundingLevels *prometheus.CounterVec

	registry *prometheus.Registry
}

// New creates and registers the batch instruments.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.DamsProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "dams_processed_total",
			Help:      "Dams processed by outcome",
		},
		[]string{"method", "outcome"},
	)
	m.StageOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "stage_outcomes_total",
			Help:      "Per-dam stage results",
		},
		[]string{"stage", "outcome", "kind"},
	)
	m.StageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Time spent per dam in each stage",
			Buckets:   []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		},
		[]string{"stage"},
	)
	m.UpstreamSize = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_basins",
			Help:      "Level-12 basins in each resolved upstream set",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 10),
		},
	)
	m.Displacement = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "snap_displacement_metres",
			Help:      "Distance between raw and snapped dam points",
			Buckets:   []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000},
		},
	)
	m.BatchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_duration_seconds",
			Help:      "Wall time of a batch run",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300, 900},
		},
	)
	m.ActiveWorkers = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "workers_active",
			Help:      "Dams currently being resolved",
		},
	)
	m.BoundingLevels = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "bounding_level_total",
			Help:      "Bounding levels chosen per dam",
		},
		[]string{"level"},
	)

	m.registry.MustRegister(
		m.DamsProcessed,
		m.StageOutcomes,
		m.StageDuration,
		m.UpstreamSize,
		m.Displacement,
		m.BatchDuration,
		m.ActiveWorkers,
		m.BoundingLevels,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry the instruments live on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RecordStage records one stage result for a dam. kind is the error kind
// for failures and empty for successes.
func (m *Metrics) RecordStage(stage string, d time.Duration, kind string) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if kind != "" {
		outcome = OutcomeFailed
	}
	m.StageOutcomes.WithLabelValues(stage, outcome, kind).Inc()
	m.StageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

// RecordDam counts a dam that finished every stage or failed in one.
func (m *Metrics) RecordDam(method string, ok bool) {
	if m == nil {
		return
	}
	outcome := OutcomeOK
	if !ok {
		outcome = OutcomeFailed
	}
	m.DamsProcessed.WithLabelValues(method, outcome).Inc()
}

// RecordSnap records a snapping displacement.
func (m *Metrics) RecordSnap(displacementM float64) {
	if m == nil {
		return
	}
	m.Displacement.Observe(displacementM)
}

// RecordBound records the chosen bounding level.
func (m *Metrics) RecordBound(level int) {
	if m == nil {
		return
	}
	m.BoundingLevels.WithLabelValues(strconv.Itoa(level)).Inc()
}

// RecordUpstream records the size of a resolved upstream set.
func (m *Metrics) RecordUpstream(n int) {
	if m == nil {
		return
	}
	m.UpstreamSize.Observe(float64(n))
}

// RecordBatch records a batch wall time.
func (m *Metrics) RecordBatch(d time.Duration) {
	if m == nil {
		return
	}
	m.BatchDuration.Observe(d.Seconds())
}

// WorkerStarted marks a dam as in flight.
func (m *Metrics) WorkerStarted() {
	if m != nil {
		m.ActiveWorkers.Inc()
	}
}

// WorkerDone marks an in-flight dam as finished.
func (m *Metrics) WorkerDone() {
	if m != nil {
		m.ActiveWorkers.Dec()
	}
}

