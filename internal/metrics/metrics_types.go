package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds all metrics for the process sync
type Registry struct {
	// Upstream (process modeler, EA repository, directory)
	UpstreamRequestsTotal   *prometheus.CounterVec
	UpstreamRequestDuration *prometheus.HistogramVec
	UpstreamRetriesTotal    *prometheus.CounterVec

	// Tree building and synchronization
	BuildNodesTotal *prometheus.CounterVec
	SyncNodesTotal  *prometheus.CounterVec
	TreeCacheTotal  *prometheus.CounterVec

	// Runs
	RunsTotal        *prometheus.CounterVec
	RunDuration      *prometheus.HistogramVec
	LastRunTimestamp *prometheus.GaugeVec
	RunsInFlight     prometheus.Gauge

	// Status API
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	registry *prometheus.Registry
}

var (
	// Global registry instance
	defaultRegistry *Registry
	once            sync.Once
)
