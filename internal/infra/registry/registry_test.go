package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/tabular"
)

func oneRowTable(col string, val float64) domain.Table {
	return tabular.NewMemTable([]string{col}, map[string]tabular.Column{
		col: &tabular.Float64Column{Values: []float64{val}, Valid: []bool{true}},
	})
}

func ttl(seconds int64) *int64 { return &seconds }

func TestStoreAndRetrieveRoundTrip(t *testing.T) {
	r := New(1<<20, 10, time.Hour)
	tbl := oneRowTable("x", 42)

	if _, err := r.Store("dataframe-aaaaaaaa", tbl, nil, nil); err != nil {
		t.Fatalf("store: %v", err)
	}
	got, ok := r.Retrieve("dataframe-aaaaaaaa")
	if !ok {
		t.Fatal("expected retrieve to find entry")
	}
	if got.RowCount() != 1 || got.ColCount() != 1 {
		t.Fatalf("unexpected shape: %dx%d", got.RowCount(), got.ColCount())
	}
}

func TestDeleteIsIdempotent(t *testing.T) {
	r := New(1<<20, 10, time.Hour)
	r.Store("dataframe-bbbbbbbb", oneRowTable("x", 1), nil, nil)

	if !r.Delete("dataframe-bbbbbbbb") {
		t.Fatal("expected first delete to succeed")
	}
	if r.Delete("dataframe-bbbbbbbb") {
		t.Fatal("expected second delete to return false")
	}
	if _, ok := r.Retrieve("dataframe-bbbbbbbb"); ok {
		t.Fatal("expected retrieve after delete to miss")
	}
}

func TestTagFilterList(t *testing.T) {
	r := New(1<<20, 10, time.Hour)
	r.Store("dataframe-t1", oneRowTable("x", 1), nil, domain.Tags{"source": "upload", "type": "test"})
	r.Store("dataframe-t2", oneRowTable("x", 2), nil, domain.Tags{"source": "upload", "type": "prod"})

	upload := r.List(domain.Tags{"source": "upload"}, 0)
	if len(upload) != 2 {
		t.Fatalf("expected 2 entries tagged source=upload, got %d", len(upload))
	}
	test := r.List(domain.Tags{"type": "test"}, 0)
	if len(test) != 1 || test[0].ID != "dataframe-t1" {
		t.Fatalf("expected exactly dataframe-t1, got %+v", test)
	}
}

func TestLRUEvictionByCount(t *testing.T) {
	r := New(1<<20, 3, time.Hour)
	ids := []string{"A", "B", "C", "D", "E"}
	for _, id := range ids {
		if _, err := r.Store(id, oneRowTable("x", 1), nil, nil); err != nil {
			t.Fatalf("store %s: %v", id, err)
		}
	}
	list := r.List(nil, 0)
	if len(list) != 3 {
		t.Fatalf("expected 3 live entries, got %d", len(list))
	}
	if _, ok := r.Retrieve("A"); ok {
		t.Fatal("expected A to be evicted")
	}
	if _, ok := r.Retrieve("B"); ok {
		t.Fatal("expected B to be evicted")
	}
	for _, id := range []string{"C", "D", "E"} {
		if _, ok := r.Retrieve(id); !ok {
			t.Fatalf("expected %s to survive eviction", id)
		}
	}
}

func TestExpirationViaTTL(t *testing.T) {
	r := New(1<<20, 10, time.Hour)
	r.Store("dataframe-exp", oneRowTable("x", 1), ttl(1), nil)

	time.Sleep(1100 * time.Millisecond)

	if _, ok := r.Retrieve("dataframe-exp"); ok {
		t.Fatal("expected expired entry to be absent")
	}
	if _, ok := r.GetMetadata("dataframe-exp"); ok {
		t.Fatal("expected expired metadata to be absent")
	}
	if r.Delete("dataframe-exp") {
		t.Fatal("expected delete on already-expired entry to return false")
	}
}

func TestStoreEmptyDatasetFails(t *testing.T) {
	r := New(1<<20, 10, time.Hour)
	empty := tabular.NewMemTable([]string{"x"}, map[string]tabular.Column{
		"x": &tabular.Float64Column{},
	})
	_, err := r.Store("dataframe-empty", empty, nil, nil)
	if !domain.IsInvalidArgument(err) {
		t.Fatalf("expected InvalidArgument, got %v", err)
	}
}

func TestStoreOversizeDatasetFailsWithoutMutatingRegistry(t *testing.T) {
	r := New(8, 10, time.Hour) // tiny cap
	_, err := r.Store("dataframe-big", oneRowTable("x", 1), nil, nil)
	if !domain.IsOutOfCapacity(err) {
		t.Fatalf("expected OutOfCapacity, got %v", err)
	}
	if stats := r.Stats(); stats.Count != 0 {
		t.Fatalf("expected registry unchanged, got count=%d", stats.Count)
	}
}

func TestReaperSweepsExpiredEntriesInBackground(t *testing.T) {
	r := New(1<<20, 10, 200*time.Millisecond)
	r.Store("dataframe-bg", oneRowTable("x", 1), ttl(1), nil)
	r.Start()
	defer r.Shutdown()

	time.Sleep(1500 * time.Millisecond)

	if stats := r.Stats(); stats.Count != 0 {
		t.Fatalf("expected reaper to have swept expired entry, count=%d", stats.Count)
	}
}

func TestShutdownWithoutStartIsNoOp(t *testing.T) {
	r := New(1<<20, 10, time.Hour)
	r.Shutdown() // must not panic or block
}

func TestOnExpireFiresForEachExpiredID(t *testing.T) {
	r := New(1<<20, 10, time.Hour)
	r.Store("dataframe-a", oneRowTable("x", 1), ttl(1), nil)
	r.Store("dataframe-b", oneRowTable("x", 1), nil, nil)

	var mu sync.Mutex
	var expired []string
	r.OnExpire(func(id string) {
		mu.Lock()
		defer mu.Unlock()
		expired = append(expired, id)
	})

	time.Sleep(1100 * time.Millisecond)
	r.CleanupExpired()

	mu.Lock()
	defer mu.Unlock()
	if len(expired) != 1 || expired[0] != "dataframe-a" {
		t.Fatalf("expired = %v, want [dataframe-a]", expired)
	}
}
