package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// DefaultRegistry returns the global metrics registry
func DefaultRegistry() *Registry {
	once.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}

// NewRegistry creates a new metrics registry with all metrics initialized
func NewRegistry() *Registry {
	r := &Registry{
		registry: prometheus.NewRegistry(),
	}

	r.initUpstreamMetrics()
	r.initSyncMetrics()
	r.initRunMetrics()
	r.initHTTPMetrics()

	return r
}

// GetPrometheusRegistry returns the underlying Prometheus registry
func (r *Registry) GetPrometheusRegistry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Registry) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// RecordUpstream records one upstream round trip. status is the HTTP status
// code, or 0 when the request never got a response.
func (r *Registry) RecordUpstream(system string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	r.UpstreamRequestsTotal.WithLabelValues(system, label).Inc()
	r.UpstreamRequestDuration.WithLabelValues(system).Observe(duration.Seconds())
}

// RecordRetry counts a retried upstream request
func (r *Registry) RecordRetry(system string) {
	r.UpstreamRetriesTotal.WithLabelValues(system).Inc()
}

// RecordBuildNode counts a node visited by the tree builder
func (r *Registry) RecordBuildNode(outcome string) {
	r.BuildNodesTotal.WithLabelValues(outcome).Inc()
}

// RecordSyncNode counts a node handled by the synchronizer
func (r *Registry) RecordSyncNode(outcome string) {
	r.SyncNodesTotal.WithLabelValues(outcome).Inc()
}

// RecordTreeCache counts a tree cache lookup
func (r *Registry) RecordTreeCache(hit bool) {
	if hit {
		r.TreeCacheTotal.WithLabelValues("hit").Inc()
		return
	}
	r.TreeCacheTotal.WithLabelValues("miss").Inc()
}

// RecordRun records a finished run
func (r *Registry) RecordRun(job, status string, duration time.Duration) {
	r.RunsTotal.WithLabelValues(job, status).Inc()
	r.RunDuration.WithLabelValues(job).Observe(duration.Seconds())
	r.LastRunTimestamp.WithLabelValues(job).Set(float64(time.Now().Unix()))
}

// RecordHTTPRequest records a status API request with its duration
func (r *Registry) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	r.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	r.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
