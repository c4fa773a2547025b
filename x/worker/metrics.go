package worker

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/sib-network/prover-service/metrics"
)

// Metrics holds worker-pool metrics.
type Metrics struct {
	JobsTotal       *prometheus.CounterVec
	ProvingDuration prometheus.Histogram
	ReturnsLength   prometheus.Histogram
	ActiveJobs      prometheus.Gauge
}

func NewMetrics() *Metrics {
	reg := metrics.NewComponentRegistry("worker", "")

	return &Metrics{
		JobsTotal: reg.NewCounterVec(prometheus.CounterOpts{
			Name: "jobs_total",
			Help: "Total proof jobs processed",
		}, []string{"outcome"}),

		ProvingDuration: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "proving_duration_seconds",
			Help:    "Wall-clock proof job duration",
			Buckets: metrics.DurationBuckets,
		}),

		ReturnsLength: reg.NewHistogram(prometheus.HistogramOpts{
			Name:    "returns_length",
			Help:    "Number of daily returns per proof job",
			Buckets: metrics.CountBuckets,
		}),

		ActiveJobs: reg.NewGauge(prometheus.GaugeOpts{
			Name: "active_jobs",
			Help: "Jobs currently executing",
		}),
	}
}
