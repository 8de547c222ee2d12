package metrics

import (
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/finance-gate/generic"
)

// Outcome label values.
const (
	OutcomeAccepted = "accepted"
	OutcomeRejected = "rejected"
	OutcomeConflict = "conflict"
	OutcomeError    = "error"
)

// Metrics provides observability for the write gate.
type Metrics struct {
	registry *prometheus.Registry

	// Verdicts by collection, outcome and rejection kind
	Validations *prometheus.CounterVec

	// Pipeline latency by collection
	ValidationLatency *prometheus.HistogramVec

	// Commit results after an accepted validation
	Commits *prometheus.CounterVec
}

// New registers the gate metrics, plus Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		Validations: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finance_gate_validations_total",
			Help: "Write attempts validated, by collection, outcome and rejection kind",
		}, []string{"collection", "outcome", "kind"}), // kind is empty when accepted

		ValidationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "finance_gate_validation_duration_seconds",
			Help:    "Duration of one pipeline run including store reads",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}, []string{"collection"}),

		Commits: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "finance_gate_commits_total",
			Help: "Commits of accepted writes, by collection and outcome",
		}, []string{"collection", "outcome"}),
	}
}

// ObserveValidation implements generic.Observer.
func (m *Metrics) ObserveValidation(collection string, err error, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.ValidationLatency.WithLabelValues(collection).Observe(elapsed.Seconds())

	switch {
	case err == nil:
		m.Validations.WithLabelValues(collection, OutcomeAccepted, "").Inc()
	case generic.IsRejection(err):
		m.Validations.WithLabelValues(collection, OutcomeRejected, string(generic.KindOf(err))).Inc()
	default:
		m.Validations.WithLabelValues(collection, OutcomeError, "").Inc()
	}
}

// ObserveCommit records what happened to a write after validation.
func (m *Metrics) ObserveCommit(collection string, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeAccepted
	switch {
	case err == nil:
	case errors.Is(err, generic.ErrVersionConflict):
		outcome = OutcomeConflict
	case generic.IsRejection(err):
		outcome = OutcomeRejected
	default:
		outcome = OutcomeError
	}
	m.Commits.WithLabelValues(collection, outcome).Inc()
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
