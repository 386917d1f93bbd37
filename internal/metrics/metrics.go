// Package metrics exposes the Prometheus collectors the worker loop, job
// repository and prune engine record against. Collectors are created once
// and registered against the default registry on first use, mirroring the
// ingestion-subsystem metrics package of the wider pack.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

type ingestionMetrics struct {
	once sync.Once

	jobsEnqueued  *prometheus.CounterVec
	jobsCompleted *prometheus.CounterVec
	jobsFailed    *prometheus.CounterVec
	jobsCanceled  *prometheus.CounterVec
	jobsReclaimed *prometheus.CounterVec

	itemsScanned  prometheus.Counter
	itemsFiltered prometheus.Counter
	itemsIndexed  prometheus.Counter
	itemsChunked  prometheus.Counter

	pruneDeleted prometheus.Counter
	pruneErrors  prometheus.Counter

	adapterErrors *prometheus.CounterVec

	jobDuration *prometheus.HistogramVec
}

var m ingestionMetrics

func (im *ingestionMetrics) init() {
	im.once.Do(func() {
		im.jobsEnqueued = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestcore_jobs_enqueued_total",
			Help: "Jobs enqueued, by queue and type.",
		}, []string{"queue", "type"})
		im.jobsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestcore_jobs_completed_total",
			Help: "Jobs completed, by queue and type.",
		}, []string{"queue", "type"})
		im.jobsFailed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestcore_jobs_failed_total",
			Help: "Jobs failed, by queue and type.",
		}, []string{"queue", "type"})
		im.jobsCanceled = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestcore_jobs_canceled_total",
			Help: "Jobs canceled, by queue and type.",
		}, []string{"queue", "type"})
		im.jobsReclaimed = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestcore_jobs_reclaimed_total",
			Help: "Jobs reclaimed from a dead lease by the reaper, by queue.",
		}, []string{"queue"})

		im.itemsScanned = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestcore_items_scanned_total",
			Help: "Items observed by the indexer across all runs.",
		})
		im.itemsFiltered = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestcore_items_filtered_total",
			Help: "Items skipped because their checksum was unchanged.",
		})
		im.itemsIndexed = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestcore_items_indexed_total",
			Help: "Items embedded and upserted into the vector store.",
		})
		im.itemsChunked = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestcore_items_chunked_total",
			Help: "Chunks produced by the chunking stage.",
		})

		im.pruneDeleted = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestcore_prune_deleted_total",
			Help: "Vector rows deleted by the prune engine.",
		})
		im.pruneErrors = prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ingestcore_prune_errors_total",
			Help: "Prune batches that failed to delete.",
		})

		im.adapterErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ingestcore_adapter_errors_total",
			Help: "Source adapter stream errors, by source type.",
		}, []string{"source_type"})

		buckets := []float64{0.1, 0.5, 1, 5, 15, 30, 60, 300, 900, 3600}
		im.jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "ingestcore_job_duration_seconds",
			Help:    "Wall-clock duration of a job from claim to terminal state.",
			Buckets: buckets,
		}, []string{"queue", "type"})

		prometheus.MustRegister(
			im.jobsEnqueued, im.jobsCompleted, im.jobsFailed, im.jobsCanceled, im.jobsReclaimed,
			im.itemsScanned, im.itemsFiltered, im.itemsIndexed, im.itemsChunked,
			im.pruneDeleted, im.pruneErrors,
			im.adapterErrors,
			im.jobDuration,
		)
	})
}

func JobEnqueued(queue, jobType string) {
	m.init()
	m.jobsEnqueued.WithLabelValues(queue, jobType).Inc()
}

func JobCompleted(queue, jobType string, seconds float64) {
	m.init()
	m.jobsCompleted.WithLabelValues(queue, jobType).Inc()
	m.jobDuration.WithLabelValues(queue, jobType).Observe(seconds)
}

func JobFailed(queue, jobType string, seconds float64) {
	m.init()
	m.jobsFailed.WithLabelValues(queue, jobType).Inc()
	m.jobDuration.WithLabelValues(queue, jobType).Observe(seconds)
}

func JobCanceled(queue, jobType string) {
	m.init()
	m.jobsCanceled.WithLabelValues(queue, jobType).Inc()
}

func JobReclaimed(queue string) {
	m.init()
	m.jobsReclaimed.WithLabelValues(queue).Inc()
}

func ItemsScanned(n int) {
	m.init()
	m.itemsScanned.Add(float64(n))
}

func ItemsFiltered(n int) {
	m.init()
	m.itemsFiltered.Add(float64(n))
}

func ItemsIndexed(n int) {
	m.init()
	m.itemsIndexed.Add(float64(n))
}

func ItemsChunked(n int) {
	m.init()
	m.itemsChunked.Add(float64(n))
}

func PruneDeleted(n int) {
	m.init()
	m.pruneDeleted.Add(float64(n))
}

func PruneErrors() {
	m.init()
	m.pruneErrors.Inc()
}

func AdapterError(sourceType string) {
	m.init()
	m.adapterErrors.WithLabelValues(sourceType).Inc()
}
