// Package telemetry exposes Prometheus collectors for optimization runs.
package telemetry

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	namespace = "drivernet"
	subsystem = "optimizer"
)

// Metrics groups the run collectors. A nil *Metrics records nothing.
type Metrics struct {
	generations        prometheus.Counter
	generationDuration prometheus.Histogram
	bestFitness        prometheus.Gauge
	activeRuns         prometheus.Gauge
	finishedRuns       *prometheus.CounterVec
}

// NewMetrics registers the run collectors on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		generations: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generations_total",
			Help:      "Total generations evolved across all runs",
		}),
		generationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "generation_duration_seconds",
			Help:      "Time to build one generation in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}),
		bestFitness: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "best_fitness",
			Help:      "Best fitness of the most recently evolved generation",
		}),
		activeRuns: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "active_runs",
			Help:      "Number of runs currently evolving",
		}),
		finishedRuns: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "runs_finished_total",
			Help:      "Total finished runs by final status",
		}, []string{"status"}),
	}
}

var (
	defaultOnce    sync.Once
	defaultMetrics *Metrics
)

// Default returns collectors registered on the process-wide Prometheus registry.
func Default() *Metrics {
	defaultOnce.Do(func() {
		defaultMetrics = NewMetrics(prometheus.DefaultRegisterer)
	})
	return defaultMetrics
}

func (m *Metrics) RunStarted() {
	if m == nil {
		return
	}
	m.activeRuns.Inc()
}

// RunFinished counts a run under its final status and releases its active slot.
func (m *Metrics) RunFinished(status string) {
	if m == nil {
		return
	}
	m.activeRuns.Dec()
	m.finishedRuns.WithLabelValues(status).Inc()
}

// ObserveGeneration records one evolved generation.
func (m *Metrics) ObserveGeneration(elapsed time.Duration, bestFitness float64) {
	if m == nil {
		return
	}
	m.generations.Inc()
	m.generationDuration.Observe(elapsed.Seconds())
	m.bestFitness.Set(bestFitness)
}
