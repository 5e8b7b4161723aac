package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"rcaflow/internal/events/models"
)

type Metrics struct {
	EventsReported    *prometheus.CounterVec
	StatusTransitions *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		EventsReported: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_events_reported_total",
			Help: "Total number of reported events by priority",
		}, []string{"priority"}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_event_status_transitions_total",
			Help: "Total number of event status changes by target status",
		}, []string{"to"}),
	}
}

func (m *Metrics) IncrementReported(p models.Priority) {
	m.EventsReported.WithLabelValues(string(p)).Inc()
}

func (m *Metrics) IncrementTransition(to models.Status) {
	m.StatusTransitions.WithLabelValues(string(to)).Inc()
}
