package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

func (r *Registry) initUpstreamMetrics() {
	r.UpstreamRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "processsync_upstream_requests_total",
			Help: "Total number of requests sent to upstream systems",
		},
		[]string{"system", "status"},
	)

	r.UpstreamRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processsync_upstream_request_duration_seconds",
			Help:    "Upstream request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"system"},
	)

	r.UpstreamRetriesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "processsync_upstream_retries_total",
			Help: "Total number of retried upstream requests",
		},
		[]string{"system"},
	)
}

func (r *Registry) initSyncMetrics() {
	r.BuildNodesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "processsync_build_nodes_total",
			Help: "Process nodes visited while building trees, by outcome",
		},
		[]string{"outcome"},
	)

	r.SyncNodesTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "processsync_sync_nodes_total",
			Help: "Process nodes handled while synchronizing, by outcome",
		},
		[]string{"outcome"},
	)

	r.TreeCacheTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "processsync_tree_cache_total",
			Help: "Tree cache lookups by result (hit, miss)",
		},
		[]string{"result"},
	)
}

func (r *Registry) initRunMetrics() {
	r.RunsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "processsync_runs_total",
			Help: "Synchronization runs by job and final status",
		},
		[]string{"job", "status"},
	)

	r.RunDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processsync_run_duration_seconds",
			Help:    "Duration of synchronization runs",
			Buckets: []float64{1, 10, 60, 300, 900, 1800, 3600, 10800},
		},
		[]string{"job"},
	)

	r.LastRunTimestamp = promauto.With(r.registry).NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "processsync_last_run_timestamp_seconds",
			Help: "Unix timestamp of the last finished run per job",
		},
		[]string{"job"},
	)

	r.RunsInFlight = promauto.With(r.registry).NewGauge(
		prometheus.GaugeOpts{
			Name: "processsync_runs_in_flight",
			Help: "Number of synchronization runs currently executing",
		},
	)
}

func (r *Registry) initHTTPMetrics() {
	r.HTTPRequestsTotal = promauto.With(r.registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "processsync_http_requests_total",
			Help: "Total number of status API requests",
		},
		[]string{"method", "path", "status"},
	)

	r.HTTPRequestDuration = promauto.With(r.registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "processsync_http_request_duration_seconds",
			Help:    "Status API request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)
}
