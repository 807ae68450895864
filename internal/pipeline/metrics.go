package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/joseph-ayodele/docintake/constants"
)

// Metrics are the pipeline's Prometheus collectors. A nil *Metrics records nothing.
type Metrics struct {
	runs            *prometheus.CounterVec
	stageDuration   *prometheus.HistogramVec
	quality         prometheus.Histogram
	modelErrors     *prometheus.CounterVec
	classifications *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg. A nil reg creates them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		runs: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docintake_runs_total",
			Help: "Pipeline runs by terminal status.",
		}, []string{"status"}),
		stageDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "docintake_stage_duration_seconds",
			Help:    "Duration of each pipeline stage.",
			Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 180},
		}, []string{"stage"}),
		quality: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "docintake_extraction_quality",
			Help:    "Fraction of segments that produced real text.",
			Buckets: prometheus.LinearBuckets(0, 0.1, 11),
		}),
		modelErrors: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docintake_model_errors_total",
			Help: "Extraction backend and response decoding errors by kind.",
		}, []string{"kind"}),
		classifications: f.NewCounterVec(prometheus.CounterOpts{
			Name: "docintake_classifications_total",
			Help: "Classified documents by type.",
		}, []string{"type"}),
	}
}

func (m *Metrics) observeRun(status constants.RunStatus) {
	if m == nil {
		return
	}
	m.runs.WithLabelValues(string(status)).Inc()
}

func (m *Metrics) observeStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Metrics) observeQuality(q float64) {
	if m == nil {
		return
	}
	m.quality.Observe(q)
}

func (m *Metrics) observeModelError(kind string) {
	if m == nil || kind == "" {
		return
	}
	m.modelErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeClassification(dt constants.DocumentType) {
	if m == nil {
		return
	}
	m.classifications.WithLabelValues(string(dt)).Inc()
}
