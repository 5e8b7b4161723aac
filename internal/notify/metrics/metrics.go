package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Sent    *prometheus.CounterVec
	Failed  *prometheus.CounterVec
	Dropped prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Sent: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_emails_sent_total",
			Help: "Total number of emails delivered by notification kind",
		}, []string{"kind"}),
		Failed: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_emails_failed_total",
			Help: "Total number of emails that could not be delivered by notification kind",
		}, []string{"kind"}),
		Dropped: f.NewCounter(prometheus.CounterOpts{
			Name: "rcaflow_email_jobs_dropped_total",
			Help: "Total number of notifications dropped because the queue was full",
		}),
	}
}

func (m *Metrics) IncrementSent(kind string) {
	m.Sent.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementFailed(kind string) {
	m.Failed.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncrementDropped() {
	m.Dropped.Inc()
}
