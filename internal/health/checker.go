// Package health provides automated health checks for dfcache.
package health

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/metrics"
)

// memoryPressureThreshold is the registry usage percentage above which
// the memory_pressure check reports unhealthy.
const memoryPressureThreshold = 90.0

// Check defines a single health check with optional recovery action.
type Check struct {
	Name      string
	CheckFn   func(ctx context.Context) error
	RecoverFn func(ctx context.Context) error
}

// Status represents the result of a health check.
type Status struct {
	Name      string    `json:"name"`
	Healthy   bool      `json:"healthy"`
	Error     string    `json:"error,omitempty"`
	CheckedAt time.Time `json:"checked_at"`
}

// Checker runs periodic health checks.
type Checker struct {
	mu       sync.RWMutex
	checks   []Check
	statuses []Status
	interval time.Duration
}

// StatsSource is the narrow registry-stats capability the checker
// needs; satisfied by *manager.Manager (its RegistryStats method).
type StatsSource interface {
	RegistryStats() domain.RegistryStats
}

// SnapshotPinger is the narrow snapshot-store capability the checker
// needs to confirm the database connection is alive.
type SnapshotPinger interface {
	List() ([]domain.DatasetMetadata, error)
}

// NewChecker creates a health checker with the standard dfcache checks:
// registry reachability, memory pressure, and snapshot store
// reachability. snapshots may be nil if the snapshot store is disabled.
func NewChecker(stats StatsSource, snapshots SnapshotPinger) *Checker {
	checks := []Check{
		{
			Name: "registry",
			CheckFn: func(ctx context.Context) error {
				_ = stats.RegistryStats()
				return nil
			},
		},
		{
			Name: "memory_pressure",
			CheckFn: func(ctx context.Context) error {
				s := stats.RegistryStats()
				if s.UsagePercentage > memoryPressureThreshold {
					return fmt.Errorf("registry at %.1f%% of max_memory_bytes", s.UsagePercentage)
				}
				return nil
			},
		},
	}
	if snapshots != nil {
		checks = append(checks, Check{
			Name: "snapshot_store",
			CheckFn: func(ctx context.Context) error {
				_, err := snapshots.List()
				return err
			},
		})
	}
	return &Checker{interval: 30 * time.Second, checks: checks}
}

// Run starts the health check loop. Call in a goroutine.
func (c *Checker) Run(ctx context.Context) {
	c.runAll(ctx)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.runAll(ctx)
		}
	}
}

func (c *Checker) runAll(ctx context.Context) {
	statuses := make([]Status, len(c.checks))
	for i, check := range c.checks {
		s := Status{Name: check.Name, CheckedAt: time.Now()}
		if err := check.CheckFn(ctx); err != nil {
			s.Healthy = false
			s.Error = err.Error()
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(0)
			if check.RecoverFn != nil {
				_ = check.RecoverFn(ctx)
			}
		} else {
			s.Healthy = true
			metrics.HealthCheckStatus.WithLabelValues(check.Name).Set(1)
		}
		statuses[i] = s
	}

	c.mu.Lock()
	c.statuses = statuses
	c.mu.Unlock()
}

// Statuses returns the latest health check results.
func (c *Checker) Statuses() []Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	result := make([]Status, len(c.statuses))
	copy(result, c.statuses)
	return result
}

// IsHealthy returns true if all checks pass.
func (c *Checker) IsHealthy() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, s := range c.statuses {
		if !s.Healthy {
			return false
		}
	}
	return true
}
