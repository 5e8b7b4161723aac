package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks tenancy writes and the profile lookup that every
// authenticated request performs.
type Metrics struct {
	CompaniesCreated   prometheus.Counter
	UsersCreated       prometheus.Counter
	ResolveUserLatency prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CompaniesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rcaflow_companies_created_total",
			Help: "Total number of companies created",
		}),
		UsersCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "rcaflow_users_created_total",
			Help: "Total number of user profiles created",
		}),
		ResolveUserLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcaflow_resolve_user_duration_seconds",
			Help:    "Duration of profile reloads on the authentication path",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),
	}
}

func (m *Metrics) IncrementCompanyCreated() {
	m.CompaniesCreated.Inc()
}

func (m *Metrics) IncrementUserCreated() {
	m.UsersCreated.Inc()
}

// ObserveResolveUser records the duration of a profile reload.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveResolveUser(start time.Time) {
	m.ResolveUserLatency.Observe(time.Since(start).Seconds())
}
