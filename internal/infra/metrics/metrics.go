// Package metrics provides Prometheus metrics for dfcache: registry
// occupancy, reaper activity, dispatcher latency, and health status.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ─── Registry (C2) ──────────────────────────────────────────────────

// RegistryEntries tracks the current number of stored datasets.
var RegistryEntries = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "dfcache",
	Name:      "registry_entries",
	Help:      "Current number of datasets held in the registry.",
})

// RegistryBytesUsed tracks current registry memory occupancy.
var RegistryBytesUsed = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "dfcache",
	Name:      "registry_bytes_used",
	Help:      "Current registry memory occupancy in bytes.",
})

// RegistryEvictionsTotal tracks LRU/cap evictions by reason.
var RegistryEvictionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dfcache",
	Name:      "registry_evictions_total",
	Help:      "Total dataset evictions from the registry.",
}, []string{"reason"})

// ─── Reaper (C3) ────────────────────────────────────────────────────

// ReaperSweepsTotal tracks background reaper sweep cycles.
var ReaperSweepsTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dfcache",
	Name:      "reaper_sweeps_total",
	Help:      "Total background reaper sweep cycles executed.",
})

// ReaperExpiredTotal tracks entries removed by the reaper.
var ReaperExpiredTotal = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "dfcache",
	Name:      "reaper_expired_total",
	Help:      "Total datasets removed by the background reaper.",
})

// ─── Dispatcher (C5) ────────────────────────────────────────────────

// DispatcherOperationLatency tracks dispatch execution time by
// operation name.
var DispatcherOperationLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Namespace: "dfcache",
	Name:      "dispatcher_operation_latency_seconds",
	Help:      "Query dispatch execution time in seconds, by operation.",
	Buckets:   prometheus.DefBuckets,
}, []string{"operation"})

// DispatcherOperationsTotal tracks dispatch outcomes by operation and
// result (ok/error).
var DispatcherOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "dfcache",
	Name:      "dispatcher_operations_total",
	Help:      "Total query dispatches, by operation and result.",
}, []string{"operation", "result"})

// ─── Health ─────────────────────────────────────────────────────────

// HealthCheckStatus tracks health check results (1=healthy, 0=unhealthy).
var HealthCheckStatus = promauto.NewGaugeVec(prometheus.GaugeOpts{
	Namespace: "dfcache",
	Name:      "health_check_status",
	Help:      "Health check result per component (1=healthy, 0=unhealthy).",
}, []string{"check"})
