package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func gatherNames(t *testing.T) map[string]bool {
	t.Helper()
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather() error: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	return names
}

func TestRegistryGaugesObserveWithoutPanicking(t *testing.T) {
	RegistryEntries.Set(3)
	RegistryBytesUsed.Set(1024)
	RegistryEvictionsTotal.WithLabelValues("capacity").Inc()

	names := gatherNames(t)
	for _, want := range []string{"dfcache_registry_entries", "dfcache_registry_bytes_used", "dfcache_registry_evictions_total"} {
		if !names[want] {
			t.Errorf("%s not found in gathered metrics", want)
		}
	}
}

func TestReaperCountersObserveWithoutPanicking(t *testing.T) {
	ReaperSweepsTotal.Inc()
	ReaperExpiredTotal.Add(2)

	names := gatherNames(t)
	for _, want := range []string{"dfcache_reaper_sweeps_total", "dfcache_reaper_expired_total"} {
		if !names[want] {
			t.Errorf("%s not found in gathered metrics", want)
		}
	}
}

func TestDispatcherMetricsObserveWithoutPanicking(t *testing.T) {
	DispatcherOperationLatency.WithLabelValues("head").Observe(0.01)
	DispatcherOperationsTotal.WithLabelValues("head", "ok").Inc()

	names := gatherNames(t)
	for _, want := range []string{"dfcache_dispatcher_operation_latency_seconds", "dfcache_dispatcher_operations_total"} {
		if !names[want] {
			t.Errorf("%s not found in gathered metrics", want)
		}
	}
}

func TestHealthCheckStatusObservesWithoutPanicking(t *testing.T) {
	HealthCheckStatus.WithLabelValues("registry").Set(1)

	names := gatherNames(t)
	if !names["dfcache_health_check_status"] {
		t.Error("dfcache_health_check_status not found in gathered metrics")
	}
}

func TestAllMetricsCarryDfcacheNamespace(t *testing.T) {
	names := gatherNames(t)
	count := 0
	for name := range names {
		if len(name) > len("dfcache_") && name[:len("dfcache_")] == "dfcache_" {
			count++
		}
	}
	if count < 8 {
		t.Errorf("expected at least 8 dfcache_ metric families, got %d", count)
	}
}
