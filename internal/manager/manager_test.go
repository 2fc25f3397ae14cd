package manager

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/tabular"
)

func fixtureRows(n int) domain.Table {
	vals := make([]float64, n)
	valid := make([]bool, n)
	for i := range vals {
		vals[i], valid[i] = float64(i), true
	}
	return tabular.NewMemTable([]string{"x"}, map[string]tabular.Column{
		"x": &tabular.Float64Column{Values: vals, Valid: valid},
	})
}

func newTestManager() *Manager {
	return NewDefault(Config{MaxMemoryBytes: 1 << 20, MaxDatasets: 10, CleanupInterval: time.Hour})
}

func TestStoreAssignsIDMatchingFormat(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	meta, err := m.Store(context.Background(), fixtureRows(5), nil, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	if len(meta.ID) != len("dataframe-")+8 {
		t.Fatalf("unexpected id format: %q", meta.ID)
	}
}

func TestQueryOnMissingDatasetReturnsNotFound(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	_, err := m.Query(context.Background(), "dataframe-ffffffff", "head", map[string]any{"n": 1})
	if !domain.IsNotFound(err) {
		t.Fatalf("expected NotFound, got %v", err)
	}
}

func TestLargeResultIsShapedToPreview(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	meta, err := m.Store(context.Background(), fixtureRows(200), nil, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	res, err := m.Query(context.Background(), meta.ID, "head", map[string]any{"n": 150})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Data) != previewRows {
		t.Fatalf("expected %d preview rows, got %d", previewRows, len(res.Data))
	}
	if res.ResultShape.Rows != 150 {
		t.Fatalf("expected full result_shape preserved at 150, got %d", res.ResultShape.Rows)
	}
	if res.Provenance["truncated"] != true {
		t.Fatal("expected provenance.truncated == true")
	}
}

func TestSmallResultIsNotShaped(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	meta, _ := m.Store(context.Background(), fixtureRows(10), nil, nil)
	res, err := m.Query(context.Background(), meta.ID, "head", map[string]any{"n": 5})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(res.Data) != 5 {
		t.Fatalf("expected 5 rows untouched, got %d", len(res.Data))
	}
	if _, ok := res.Provenance["truncated"]; ok {
		t.Fatal("did not expect truncated marker on small result")
	}
}

func TestDeleteThenGetReturnsNotFound(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	meta, _ := m.Store(context.Background(), fixtureRows(3), nil, nil)
	ok, err := m.Delete(context.Background(), meta.ID)
	if err != nil || !ok {
		t.Fatalf("delete: ok=%v err=%v", ok, err)
	}
	if _, err := m.Get(context.Background(), meta.ID); !domain.IsNotFound(err) {
		t.Fatalf("expected NotFound after delete, got %v", err)
	}
}

type fakeSnapshotRecorder struct {
	mu        sync.Mutex
	recorded  []string
	forgotten []string
}

func (f *fakeSnapshotRecorder) Record(meta domain.DatasetMetadata) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.recorded = append(f.recorded, meta.ID)
	return nil
}

func (f *fakeSnapshotRecorder) Forget(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.forgotten = append(f.forgotten, id)
	return nil
}

func TestSnapshotRecorderRecordsOnStoreAndForgetsOnDelete(t *testing.T) {
	m := newTestManager()
	defer m.Shutdown()
	snap := &fakeSnapshotRecorder{}
	m.SetSnapshotRecorder(snap)

	meta, _ := m.Store(context.Background(), fixtureRows(3), nil, nil)
	if _, err := m.Delete(context.Background(), meta.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}

	snap.mu.Lock()
	defer snap.mu.Unlock()
	if len(snap.recorded) != 1 || snap.recorded[0] != meta.ID {
		t.Fatalf("recorded = %v, want [%s]", snap.recorded, meta.ID)
	}
	if len(snap.forgotten) != 1 || snap.forgotten[0] != meta.ID {
		t.Fatalf("forgotten = %v, want [%s]", snap.forgotten, meta.ID)
	}
}

func TestSnapshotRecorderForgetsOnTTLExpiry(t *testing.T) {
	m := NewDefault(Config{MaxMemoryBytes: 1 << 20, MaxDatasets: 10, CleanupInterval: time.Hour})
	defer m.Shutdown()
	snap := &fakeSnapshotRecorder{}
	m.SetSnapshotRecorder(snap)

	ttl := int64(1)
	meta, err := m.Store(context.Background(), fixtureRows(3), &ttl, nil)
	if err != nil {
		t.Fatalf("store: %v", err)
	}

	time.Sleep(1100 * time.Millisecond)
	if _, err := m.CleanupExpired(context.Background()); err != nil {
		t.Fatalf("cleanup expired: %v", err)
	}

	snap.mu.Lock()
	defer snap.mu.Unlock()
	if len(snap.forgotten) != 1 || snap.forgotten[0] != meta.ID {
		t.Fatalf("forgotten = %v, want [%s]", snap.forgotten, meta.ID)
	}
}

func TestDefaultSingletonReturnsSameInstance(t *testing.T) {
	ResetDefault()
	defer ResetDefault()
	a := Default(Config{MaxMemoryBytes: 1 << 20, MaxDatasets: 5, CleanupInterval: time.Hour})
	b := Default(Config{MaxMemoryBytes: 999, MaxDatasets: 999, CleanupInterval: time.Second})
	if a != b {
		t.Fatal("expected Default to return the same instance regardless of later cfg")
	}
}
