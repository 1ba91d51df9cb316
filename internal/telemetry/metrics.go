// Package telemetry exposes Prometheus metrics of the job engine.
package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/specs-feup/weaver/internal/parallel"
)

const namespace = "weaver"

// Metrics satisfies weave.JobObserver. A nil *Metrics records nothing, so
// callers do not need to check whether metrics are enabled.
type Metrics struct {
	jobs        *prometheus.CounterVec
	duration    prometheus.Histogram
	poolSlots   prometheus.Gauge
	poolBusy    prometheus.Gauge
	poolWaiting prometheus.Gauge
	swept       prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		jobs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_total",
			Help:      "Finished jobs by outcome.",
		}, []string{"outcome"}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "job_duration_seconds",
			Help:      "Time spent executing a job, excluding the wait for a pool slot.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		poolSlots: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_slots",
			Help:      "Number of execution slots.",
		}),
		poolBusy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_busy",
			Help:      "Slots currently running a job.",
		}),
		poolWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "pool_waiting",
			Help:      "Jobs waiting for a free slot.",
		}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_swept_total",
			Help:      "Stale session directories removed by the janitor.",
		}),
	}
	reg.MustRegister(m.jobs, m.duration, m.poolSlots, m.poolBusy, m.poolWaiting, m.swept)
	return m
}

func (m *Metrics) ObserveJob(outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.jobs.WithLabelValues(outcome).Inc()
	m.duration.Observe(took.Seconds())
}

func (m *Metrics) ObservePool(s parallel.Stats) {
	if m == nil {
		return
	}
	m.poolSlots.Set(float64(s.Size))
	m.poolBusy.Set(float64(s.Busy))
	m.poolWaiting.Set(float64(s.Waiting))
}

func (m *Metrics) ObserveSwept(n int) {
	if m == nil {
		return
	}
	m.swept.Add(float64(n))
}
