package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	s, err := Open(filepath.Join(dir, "snapshots.db"))
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleMeta(id string) domain.DatasetMetadata {
	ttl := int64(300)
	return domain.DatasetMetadata{
		ID:          id,
		CreatedAt:   time.Now().Truncate(time.Second),
		Shape:       domain.Shape{Rows: 10, Cols: 3},
		Dtypes:      map[string]string{"a": "int64", "b": "string", "c": "float64"},
		MemoryBytes: 2048,
		TTLSeconds:  &ttl,
		Tags:        domain.Tags{"source": "test"},
	}
}

func TestOpenCreatesDatabase(t *testing.T) {
	s := newTestStore(t)
	if err := s.db.Ping(); err != nil {
		t.Fatalf("Ping() error: %v", err)
	}
}

func TestRecordAndList(t *testing.T) {
	s := newTestStore(t)

	meta := sampleMeta("dataframe-aaaaaaaa")
	if err := s.Record(meta); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(got))
	}
	if got[0].ID != meta.ID {
		t.Errorf("ID = %q, want %q", got[0].ID, meta.ID)
	}
	if got[0].Shape != meta.Shape {
		t.Errorf("Shape = %+v, want %+v", got[0].Shape, meta.Shape)
	}
	if got[0].Dtypes["b"] != "string" {
		t.Errorf("Dtypes[b] = %q, want string", got[0].Dtypes["b"])
	}
	if got[0].TTLSeconds == nil || *got[0].TTLSeconds != 300 {
		t.Errorf("TTLSeconds = %v, want 300", got[0].TTLSeconds)
	}
	if got[0].Tags["source"] != "test" {
		t.Errorf("Tags[source] = %v, want test", got[0].Tags["source"])
	}
}

func TestRecordUpsertsOnSameID(t *testing.T) {
	s := newTestStore(t)

	meta := sampleMeta("dataframe-bbbbbbbb")
	if err := s.Record(meta); err != nil {
		t.Fatalf("first Record() error: %v", err)
	}

	meta.Shape = domain.Shape{Rows: 20, Cols: 5}
	if err := s.Record(meta); err != nil {
		t.Fatalf("second Record() error: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(List()) = %d, want 1 (upsert, not insert)", len(got))
	}
	if got[0].Shape.Rows != 20 {
		t.Errorf("Shape.Rows = %d, want 20", got[0].Shape.Rows)
	}
}

func TestForgetRemovesRow(t *testing.T) {
	s := newTestStore(t)

	meta := sampleMeta("dataframe-cccccccc")
	if err := s.Record(meta); err != nil {
		t.Fatalf("Record() error: %v", err)
	}
	if err := s.Forget(meta.ID); err != nil {
		t.Fatalf("Forget() error: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(List()) = %d, want 0 after Forget", len(got))
	}
}

func TestForgetNonexistentIDIsNotAnError(t *testing.T) {
	s := newTestStore(t)
	if err := s.Forget("dataframe-ghost0000"); err != nil {
		t.Errorf("Forget() on missing id error: %v", err)
	}
}

func TestListOrdersNewestFirst(t *testing.T) {
	s := newTestStore(t)

	older := sampleMeta("dataframe-older0000")
	older.CreatedAt = time.Now().Add(-time.Hour).Truncate(time.Second)
	newer := sampleMeta("dataframe-newer0000")
	newer.CreatedAt = time.Now().Truncate(time.Second)

	if err := s.Record(older); err != nil {
		t.Fatalf("Record(older) error: %v", err)
	}
	if err := s.Record(newer); err != nil {
		t.Fatalf("Record(newer) error: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 2 || got[0].ID != newer.ID {
		t.Fatalf("List() = %+v, want newer first", got)
	}
}

func TestClearAllRemovesEverything(t *testing.T) {
	s := newTestStore(t)

	for _, id := range []string{"dataframe-11111111", "dataframe-22222222"} {
		if err := s.Record(sampleMeta(id)); err != nil {
			t.Fatalf("Record(%s) error: %v", id, err)
		}
	}

	if err := s.ClearAll(); err != nil {
		t.Fatalf("ClearAll() error: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("len(List()) = %d, want 0 after ClearAll", len(got))
	}
}

func TestRecordWithoutTTLOrTags(t *testing.T) {
	s := newTestStore(t)

	meta := sampleMeta("dataframe-notags000")
	meta.TTLSeconds = nil
	meta.Tags = nil
	if err := s.Record(meta); err != nil {
		t.Fatalf("Record() error: %v", err)
	}

	got, err := s.List()
	if err != nil {
		t.Fatalf("List() error: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("len(List()) = %d, want 1", len(got))
	}
	if got[0].TTLSeconds != nil {
		t.Errorf("TTLSeconds = %v, want nil", got[0].TTLSeconds)
	}
	if got[0].Tags != nil {
		t.Errorf("Tags = %v, want nil", got[0].Tags)
	}
}
