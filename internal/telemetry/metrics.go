// Package telemetry holds the prometheus collectors shared by the engine,
// the host loop and the status server.
package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is safe for concurrent use. A nil *Metrics records nothing.
type Metrics struct {
	registry *prometheus.Registry

	evaluations        *prometheus.CounterVec
	evaluationDuration *prometheus.HistogramVec
	candidates         *prometheus.CounterVec
	pruned             *prometheus.CounterVec
	promoted           *prometheus.CounterVec
	bestScore          *prometheus.GaugeVec
	families           *prometheus.GaugeVec
	phase              *prometheus.GaugeVec
	generation         prometheus.Gauge
	generationDuration prometheus.Histogram
	snapshots          *prometheus.CounterVec
}

// New registers the collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		registry: reg,
		evaluations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridforge_evaluations_total",
			Help: "Oracle evaluations by population and outcome",
		}, []string{"population", "outcome"}),
		evaluationDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "gridforge_evaluation_duration_seconds",
			Help:    "Duration of a single oracle evaluation",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}, []string{"population"}),
		candidates: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridforge_candidates_total",
			Help: "Candidate grids produced by origin",
		}, []string{"population", "origin"}),
		pruned: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridforge_families_pruned_total",
			Help: "Families removed by truncation or staleness",
		}, []string{"population"}),
		promoted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridforge_promotions_total",
			Help: "Members promoted into a population",
		}, []string{"population"}),
		bestScore: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridforge_best_score",
			Help: "Best member score per population",
		}, []string{"population"}),
		families: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridforge_families",
			Help: "Families per population after pruning",
		}, []string{"population"}),
		phase: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "gridforge_phase",
			Help: "Active phase index per population",
		}, []string{"population"}),
		generation: factory.NewGauge(prometheus.GaugeOpts{
			Name: "gridforge_generation",
			Help: "Completed generations",
		}),
		generationDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "gridforge_generation_duration_seconds",
			Help:    "Wall time of a full generation",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 10),
		}),
		snapshots: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gridforge_snapshots_total",
			Help: "Snapshot writes by outcome",
		}, []string{"outcome"}),
	}
}

// Handler serves the registry in the prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.HandlerFor(prometheus.NewRegistry(), promhttp.HandlerOpts{})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) ObserveEvaluation(population string, elapsed time.Duration, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.evaluations.WithLabelValues(population, outcome).Inc()
	m.evaluationDuration.WithLabelValues(population).Observe(elapsed.Seconds())
}

func (m *Metrics) AddCandidates(population, origin string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.candidates.WithLabelValues(population, origin).Add(float64(n))
}

func (m *Metrics) AddPruned(population string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.pruned.WithLabelValues(population).Add(float64(n))
}

func (m *Metrics) AddPromoted(population string, n int) {
	if m == nil || n == 0 {
		return
	}
	m.promoted.WithLabelValues(population).Add(float64(n))
}

// SetPopulation records the post-generation shape of a population.
func (m *Metrics) SetPopulation(population string, phase, families int, best float64, hasBest bool) {
	if m == nil {
		return
	}
	m.phase.WithLabelValues(population).Set(float64(phase))
	m.families.WithLabelValues(population).Set(float64(families))
	if hasBest {
		m.bestScore.WithLabelValues(population).Set(best)
	}
}

func (m *Metrics) GenerationDone(generation int, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.generation.Set(float64(generation))
	m.generationDuration.Observe(elapsed.Seconds())
}

func (m *Metrics) SnapshotSaved(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.snapshots.WithLabelValues("error").Inc()
		return
	}
	m.snapshots.WithLabelValues("ok").Inc()
}
