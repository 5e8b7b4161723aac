package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	Uploads        *prometheus.CounterVec
	UploadedBytes  prometheus.Histogram
	RejectedUpload *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Uploads: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_evidence_uploads_total",
			Help: "Total number of evidence files stored by content type",
		}, []string{"content_type"}),
		UploadedBytes: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "rcaflow_evidence_upload_bytes",
			Help:    "Size of stored evidence files",
			Buckets: prometheus.ExponentialBuckets(16<<10, 4, 8),
		}),
		RejectedUpload: f.NewCounterVec(prometheus.CounterOpts{
			Name: "rcaflow_evidence_rejected_total",
			Help: "Total number of rejected uploads by reason",
		}, []string{"reason"}),
	}
}

func (m *Metrics) IncrementUpload(contentType string, size int64) {
	m.Uploads.WithLabelValues(contentType).Inc()
	m.UploadedBytes.Observe(float64(size))
}

func (m *Metrics) IncrementRejected(reason string) {
	m.RejectedUpload.WithLabelValues(reason).Inc()
}
