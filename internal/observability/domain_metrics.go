package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	querySubmissionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstats_query_submissions_total",
			Help: "Total number of queries submitted by backend.",
		},
		[]string{"backend"},
	)
	queryPollsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clipstats_query_polls_total",
			Help: "Total number of execution status polls.",
		},
	)
	queryExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstats_query_executions_total",
			Help: "Total number of awaited query executions by final state.",
		},
		[]string{"state"},
	)
	queryAwaitSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "clipstats_query_await_seconds",
			Help:    "Time spent waiting for a query to reach a final state.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
		},
	)
	schemaMismatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clipstats_schema_mismatches_total",
			Help: "Total number of column type mismatches found by schema validation.",
		},
	)
	objectUploadBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "clipstats_object_upload_bytes_total",
			Help: "Total bytes uploaded to the object store.",
		},
	)
	jobRunsStartedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "clipstats_job_runs_started_total",
			Help: "Total number of orchestration job runs started by job name.",
		},
		[]string{"job"},
	)
)

func init() {
	prometheus.MustRegister(
		querySubmissionsTotal,
		queryPollsTotal,
		queryExecutionsTotal,
		queryAwaitSeconds,
		schemaMismatchesTotal,
		objectUploadBytesTotal,
		jobRunsStartedTotal,
	)
}

func ObserveQuerySubmitted(backend string) {
	if backend == "" {
		backend = "unknown"
	}
	querySubmissionsTotal.WithLabelValues(backend).Inc()
}

func ObservePollAttempt() {
	queryPollsTotal.Inc()
}

func ObserveExecutionFinished(state string, elapsed time.Duration) {
	queryExecutionsTotal.WithLabelValues(state).Inc()
	queryAwaitSeconds.Observe(elapsed.Seconds())
}

func AddSchemaMismatches(count int) {
	if count > 0 {
		schemaMismatchesTotal.Add(float64(count))
	}
}

func ObserveObjectUpload(size int64) {
	if size > 0 {
		objectUploadBytesTotal.Add(float64(size))
	}
}

func IncrementJobRunsStarted(job string) {
	jobRunsStartedTotal.WithLabelValues(job).Inc()
}
