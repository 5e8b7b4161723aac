package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Rejected *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Rejected: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_rate_limited_requests_total",
			Help: "Total number of requests rejected by rate limit policy",
		}, []string{"policy"}),
	}
}

func (m *Metrics) IncrementRejected(policy string) {
	m.Rejected.WithLabelValues(policy).Inc()
}
