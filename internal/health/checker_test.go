package health

import (
	"context"
	"errors"
	"testing"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

type fakeStats struct {
	stats domain.RegistryStats
}

func (f fakeStats) RegistryStats() domain.RegistryStats { return f.stats }

type fakeSnapshots struct {
	err error
}

func (f fakeSnapshots) List() ([]domain.DatasetMetadata, error) {
	if f.err != nil {
		return nil, f.err
	}
	return []domain.DatasetMetadata{{ID: "dataframe-aaaaaaaa"}}, nil
}

func TestNewCheckerWithoutSnapshotsHasTwoChecks(t *testing.T) {
	c := NewChecker(fakeStats{}, nil)
	if len(c.checks) != 2 {
		t.Fatalf("checks = %d, want 2", len(c.checks))
	}
}

func TestNewCheckerWithSnapshotsHasThreeChecks(t *testing.T) {
	c := NewChecker(fakeStats{}, fakeSnapshots{})
	if len(c.checks) != 3 {
		t.Fatalf("checks = %d, want 3", len(c.checks))
	}
}

func TestRunAllHealthy(t *testing.T) {
	c := NewChecker(fakeStats{stats: domain.RegistryStats{UsagePercentage: 10}}, fakeSnapshots{})
	c.runAll(context.Background())

	if !c.IsHealthy() {
		for _, s := range c.Statuses() {
			if !s.Healthy {
				t.Errorf("check %q unexpectedly unhealthy: %s", s.Name, s.Error)
			}
		}
	}
}

func TestMemoryPressureCheckFailsAboveThreshold(t *testing.T) {
	c := NewChecker(fakeStats{stats: domain.RegistryStats{UsagePercentage: 95}}, nil)
	c.runAll(context.Background())

	for _, s := range c.Statuses() {
		if s.Name == "memory_pressure" && s.Healthy {
			t.Error("memory_pressure should be unhealthy above threshold")
		}
	}
	if c.IsHealthy() {
		t.Error("IsHealthy() should be false when a check fails")
	}
}

func TestSnapshotStoreCheckFailsOnError(t *testing.T) {
	c := NewChecker(fakeStats{}, fakeSnapshots{err: errors.New("db closed")})
	c.runAll(context.Background())

	for _, s := range c.Statuses() {
		if s.Name == "snapshot_store" && s.Healthy {
			t.Error("snapshot_store should be unhealthy when List() errors")
		}
	}
}

func TestIsHealthyVacuouslyTrueBeforeFirstRun(t *testing.T) {
	c := NewChecker(fakeStats{}, nil)
	if !c.IsHealthy() {
		t.Error("IsHealthy() should be true before any run")
	}
}

func TestStatusesReturnsACopy(t *testing.T) {
	c := NewChecker(fakeStats{}, nil)
	c.runAll(context.Background())

	s1 := c.Statuses()
	s2 := c.Statuses()
	if len(s1) == 0 {
		t.Fatal("expected at least one status")
	}
	s1[0].Healthy = !s1[0].Healthy
	if s1[0].Healthy == s2[0].Healthy {
		t.Error("Statuses() should return an independent copy")
	}
}
