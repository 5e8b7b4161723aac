package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Logins              *prometheus.CounterVec
	Logouts             prometheus.Counter
	RevocationCheckTime prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_logins_total",
			Help: "Login attempts by outcome",
		}, []string{"outcome"}),
		Logouts: f.NewCounter(prometheus.CounterOpts{
			Name: "rcaflow_logouts_total",
			Help: "Tokens revoked by logout",
		}),
		RevocationCheckTime: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcaflow_token_revocation_check_duration_seconds",
			Help:    "Latency of token revocation checks",
			Buckets: []float64{0.0001, 0.00025, 0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025},
		}),
	}
}

func (m *Metrics) IncrementLogin(outcome string) {
	m.Logins.WithLabelValues(outcome).Inc()
}

func (m *Metrics) IncrementLogout() {
	m.Logouts.Inc()
}

// ObserveRevocationCheck records a revocation lookup started at start.
func (m *Metrics) ObserveRevocationCheck(start time.Time) {
	m.RevocationCheckTime.Observe(time.Since(start).Seconds())
}
