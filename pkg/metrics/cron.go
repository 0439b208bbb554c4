package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const cronNamespace = "shopfront_cron"

// CronJobMetrics tracks background job runs and the rows they touch.
type CronJobMetrics struct {
	runs     *prometheus.CounterVec
	duration *prometheus.HistogramVec
	affected *prometheus.CounterVec
}

// NewCronJobMetrics registers the job collectors on reg. A nil registerer
// yields a recorder that drops every observation.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	m := &CronJobMetrics{
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cronNamespace,
			Name:      "job_runs_total",
			Help:      "Job runs partitioned by job and outcome.",
		}, []string{"job", "outcome"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: cronNamespace,
			Name:      "job_duration_seconds",
			Help:      "Wall time of a single job run.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 15, 60, 300},
		}, []string{"job"}),
		affected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: cronNamespace,
			Name:      "job_rows_affected_total",
			Help:      "Rows removed or updated by a job.",
		}, []string{"job"}),
	}
	reg.MustRegister(m.runs, m.duration, m.affected)
	return m
}

// ObserveRun records one finished run of job.
func (c *CronJobMetrics) ObserveRun(job string, took time.Duration, err error) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.duration.WithLabelValues(job).Observe(took.Seconds())
	c.runs.WithLabelValues(job, outcomeOf(err)).Inc()
}

// AddAffected adds n rows to the job's running total. Non-positive n is ignored.
func (c *CronJobMetrics) AddAffected(job string, n int64) {
	if c == nil || c.affected == nil || n <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(job)).Add(float64(n))
}

func outcomeOf(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

func normalizeLabel(value string) string {
	if value == "" {
		return "unknown"
	}
	return value
}
