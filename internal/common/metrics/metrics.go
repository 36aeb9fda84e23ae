// internal/common/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WorkerJobsCompleted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_completed_total",
			Help: "Total number of jobs completed by worker",
		},
		[]string{"task_type"},
	)

	WorkerJobsFailed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_jobs_failed_total",
			Help: "Total number of jobs failed by worker",
		},
		[]string{"task_type", "error_code"},
	)

	WorkerJobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "worker_job_duration_seconds",
			Help: "Duration of job processing in seconds",
		},
		[]string{"task_type"},
	)

	CacheRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by tier and result (hit, miss, error)",
		},
		[]string{"tier", "result"},
	)

	SourceScrapes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_scrapes_total",
			Help: "Catalog scrapes by source and outcome (matched, no_match, unavailable)",
		},
		[]string{"source", "outcome"},
	)

	SourceExtractionStrategy = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_extraction_strategy_total",
			Help: "Which extraction strategy produced the bibliographic record",
		},
		[]string{"source", "strategy"},
	)

	RateLimitDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ratelimit_decisions_total",
			Help: "Rate limiter decisions (allowed, rejected, fail_open)",
		},
		[]string{"decision"},
	)

	ScrapeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "scrape_duration_seconds",
			Help:    "Duration of one source scrape including retries",
			Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 40},
		},
		[]string{"source"},
	)
)
