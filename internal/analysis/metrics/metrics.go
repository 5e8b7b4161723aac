package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks workflow progress and the cost of document updates.
type Metrics struct {
	AnalysesCreated   prometheus.Counter
	StepAdvances      *prometheus.CounterVec
	ActionDecisions   *prometheus.CounterVec
	AnalysesFinalized prometheus.Counter
	EfficacyChecks    *prometheus.CounterVec
	UpdateLatency     *prometheus.HistogramVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		AnalysesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rcaflow_analyses_created_total",
			Help: "Total number of RCA analyses started",
		}),
		StepAdvances: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_analysis_step_advances_total",
			Help: "Total number of successful step advances by target step",
		}, []string{"step"}),
		ActionDecisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_action_decisions_total",
			Help: "Total number of planned action validations by decision",
		}, []string{"decision"}),
		AnalysesFinalized: f.NewCounter(prometheus.CounterOpts{
			Name: "rcaflow_analyses_finalized_total",
			Help: "Total number of analyses finalized",
		}),
		EfficacyChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_efficacy_checks_total",
			Help: "Total number of efficacy verifications by outcome",
		}, []string{"outcome"}),
		UpdateLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "rcaflow_analysis_update_duration_seconds",
			Help:    "Duration of analysis document updates by operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated() {
	m.AnalysesCreated.Inc()
}

func (m *Metrics) IncrementAdvance(step int) {
	m.StepAdvances.WithLabelValues(stepLabel(step)).Inc()
}

func (m *Metrics) IncrementDecision(decision string) {
	m.ActionDecisions.WithLabelValues(decision).Inc()
}

func (m *Metrics) IncrementFinalized() {
	m.AnalysesFinalized.Inc()
}

func (m *Metrics) IncrementEfficacy(effective bool) {
	outcome := "not_effective"
	if effective {
		outcome = "effective"
	}
	m.EfficacyChecks.WithLabelValues(outcome).Inc()
}

// ObserveUpdate records the duration of one document update.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveUpdate(operation string, start time.Time) {
	m.UpdateLatency.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}

func stepLabel(step int) string {
	return strconv.Itoa(step)
}
