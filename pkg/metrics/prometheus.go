package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"FactorLab/internal/domain/models"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	calculations *prometheus.HistogramVec
	diagnostics  *prometheus.CounterVec
	entities     *prometheus.CounterVec
	signals      *prometheus.CounterVec
	errorsTotal  *prometheus.CounterVec
	latency      *prometheus.HistogramVec
}

// New registers the recorder on the default registry. Call it once per process.
func New() *Recorder {
	return NewWithRegisterer(prometheus.DefaultRegisterer)
}

// NewWithRegisterer registers the recorder on reg.
func NewWithRegisterer(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		calculations: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factorlab_calculator_duration_seconds",
				Help:    "Duration of single calculator runs in seconds",
				Buckets: []float64{.0001, .0005, .001, .005, .01, .05, .1, .5},
			},
			[]string{"calculator"},
		),
		diagnostics: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_diagnostics_total",
				Help: "Warnings and errors recorded during computation",
			},
			[]string{"source", "level"},
		),
		entities: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_entities_computed_total",
				Help: "Entities computed, by outcome",
			},
			[]string{"status"},
		),
		signals: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_signals_total",
				Help: "Signals emitted by strategies",
			},
			[]string{"strategy", "signal_type"},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "factorlab_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "factorlab_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
	}
}

func (r *Recorder) RecordCalculation(calculator string, seconds float64) {
	r.calculations.WithLabelValues(calculator).Observe(seconds)
}

func (r *Recorder) RecordDiagnostic(source string, level models.Level) {
	r.diagnostics.WithLabelValues(source, string(level)).Inc()
}

// RecordEntity counts one entity outcome: ok, partial or failed.
func (r *Recorder) RecordEntity(status string) {
	r.entities.WithLabelValues(status).Inc()
}

func (r *Recorder) RecordSignal(strategyID, signalType string) {
	r.signals.WithLabelValues(strategyID, signalType).Inc()
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}
