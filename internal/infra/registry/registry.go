// Package registry implements the Dataset Registry (C2): a concurrent
// in-memory map from dataset ID to (table, metadata), with LRU
// eviction, byte/count caps, and TTL expiration.
//
// Grounded on the teacher's internal/infra/engine.Pool: a
// sync.Mutex-guarded map plus container/list.List for LRU ordering, and
// the same "evict from the back while over cap" admission loop.
package registry

import (
	"container/list"
	"sort"
	"sync"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/metrics"
)

type entry struct {
	id       string
	table    domain.Table
	metadata domain.DatasetMetadata
	element  *list.Element
}

// Registry is the concurrent dataset store described in SPEC_FULL.md
// §4.2. The zero value is not usable; construct with New.
type Registry struct {
	mu          sync.Mutex
	entries     map[string]*entry
	lru         *list.List // front = MRU, back = LRU
	usedBytes   int64
	maxBytes    int64
	maxDatasets int

	reaper   *reaper
	onExpire func(id string)
}

// New constructs a Registry bounded by maxMemoryBytes and maxDatasets,
// with a background reaper configured to sweep every cleanupInterval.
func New(maxMemoryBytes int64, maxDatasets int, cleanupInterval time.Duration) *Registry {
	r := &Registry{
		entries:     make(map[string]*entry),
		lru:         list.New(),
		maxBytes:    maxMemoryBytes,
		maxDatasets: maxDatasets,
	}
	r.reaper = newReaper(r, cleanupInterval)
	return r
}

var _ domain.Store = (*Registry)(nil)

// OnExpire registers fn to be called with the ID of every entry removed
// by an expiry sweep (the reaper, CleanupExpired, and List's implicit
// sweep). fn runs while the registry's lock is held, so it must not call
// back into the Registry. Entries dropped lazily by Retrieve or
// GetMetadata are not reported. Used by the manager facade to forget the
// corresponding snapshot row without the registry depending on the
// snapshot package.
func (r *Registry) OnExpire(fn func(id string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onExpire = fn
}

// Start launches the background reaper if it is not already running.
// Idempotent.
func (r *Registry) Start() { r.reaper.start() }

// Shutdown signals the reaper to stop and blocks until it has actually
// terminated. A no-op if Start was never called.
func (r *Registry) Shutdown() { r.reaper.stop() }

// Store inserts t under id, evicting LRU entries as needed to satisfy
// the byte and count caps. See SPEC_FULL.md §4.2 for the full algorithm.
func (r *Registry) Store(id string, t domain.Table, ttlSeconds *int64, tags domain.Tags) (domain.DatasetMetadata, error) {
	if t.Empty() {
		return domain.DatasetMetadata{}, domain.InvalidArgument("cannot store an empty dataset")
	}
	memBytes := t.DeepMemoryBytes()
	if memBytes > r.maxBytes {
		return domain.DatasetMetadata{}, domain.OutOfCapacity(
			"dataset requires %d bytes, exceeding max_memory_bytes=%d", memBytes, r.maxBytes)
	}

	dtypes := make(map[string]string, t.ColCount())
	for _, col := range t.Columns() {
		if dt, ok := t.Dtype(col); ok {
			dtypes[col] = dt
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if old, ok := r.entries[id]; ok {
		r.removeLocked(old.id)
	}

	for r.usedBytes+memBytes > r.maxBytes && r.lru.Len() > 0 {
		if !r.evictOneLocked() {
			break
		}
	}
	if r.usedBytes+memBytes > r.maxBytes {
		return domain.DatasetMetadata{}, domain.OutOfCapacity(
			"cannot fit dataset of %d bytes even after eviction", memBytes)
	}

	if len(r.entries) >= r.maxDatasets {
		r.evictOneLocked()
	}

	meta := domain.DatasetMetadata{
		ID:          id,
		CreatedAt:   time.Now(),
		Shape:       domain.Shape{Rows: t.RowCount(), Cols: t.ColCount()},
		Dtypes:      dtypes,
		MemoryBytes: memBytes,
		SizeBytes:   memBytes, // in-memory backend: size_bytes == memory_bytes
		TTLSeconds:  ttlSeconds,
		Tags:        cloneTags(tags),
	}

	e := &entry{id: id, table: t.Copy(), metadata: meta}
	e.element = r.lru.PushFront(e)
	r.entries[id] = e
	r.usedBytes += memBytes

	metrics.RegistryEntries.Set(float64(len(r.entries)))
	metrics.RegistryBytesUsed.Set(float64(r.usedBytes))

	return meta, nil
}

// Retrieve returns a deep copy of the stored table and moves id to the
// MRU end. Returns (nil, false) if absent or expired.
func (r *Registry) Retrieve(id string) (domain.Table, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return nil, false
	}
	if e.metadata.IsExpired(time.Now()) {
		r.removeLocked(id)
		return nil, false
	}
	r.lru.MoveToFront(e.element)
	return e.table.Copy(), true
}

// GetMetadata returns the metadata for id without touching LRU order.
// Returns (zero, false) if absent or expired.
func (r *Registry) GetMetadata(id string) (domain.DatasetMetadata, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.entries[id]
	if !ok {
		return domain.DatasetMetadata{}, false
	}
	if e.metadata.IsExpired(time.Now()) {
		r.removeLocked(id)
		return domain.DatasetMetadata{}, false
	}
	return cloneMetadata(e.metadata), true
}

// Delete removes id. Idempotent: returns true iff an entry was removed.
func (r *Registry) Delete(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.entries[id]; !ok {
		return false
	}
	r.removeLocked(id)
	return true
}

// List runs an implicit expiry sweep, applies the tag filter, and
// returns metadata newest-first, capped at limit (0 = unlimited).
func (r *Registry) List(filter domain.Tags, limit int) []domain.DatasetMetadata {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cleanupExpiredLocked()

	out := make([]domain.DatasetMetadata, 0, len(r.entries))
	for _, e := range r.entries {
		if e.metadata.Tags.Matches(filter) {
			out = append(out, cloneMetadata(e.metadata))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// CleanupExpired removes every currently expired entry and returns the
// count removed.
func (r *Registry) CleanupExpired() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.cleanupExpiredLocked()
}

// Stats reports the current entry count, byte usage, and configured
// limits.
func (r *Registry) Stats() domain.RegistryStats {
	r.mu.Lock()
	defer r.mu.Unlock()

	var usage float64
	if r.maxBytes > 0 {
		usage = float64(r.usedBytes) / float64(r.maxBytes) * 100
	}
	return domain.RegistryStats{
		Count:           len(r.entries),
		TotalBytes:      r.usedBytes,
		MaxBytes:        r.maxBytes,
		MaxDatasets:     r.maxDatasets,
		UsagePercentage: usage,
	}
}

// ClearAll removes every entry and returns the count removed.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.entries)
	r.entries = make(map[string]*entry)
	r.lru.Init()
	r.usedBytes = 0
	metrics.RegistryEntries.Set(0)
	metrics.RegistryBytesUsed.Set(0)
	return n
}

// ─── internal, mutex-held helpers ───────────────────────────────────

func (r *Registry) cleanupExpiredLocked() int {
	now := time.Now()
	var expired []string
	for id, e := range r.entries {
		if e.metadata.IsExpired(now) {
			expired = append(expired, id)
		}
	}
	for _, id := range expired {
		r.removeLocked(id)
	}
	if r.onExpire != nil {
		for _, id := range expired {
			r.onExpire(id)
		}
	}
	return len(expired)
}

// evictOneLocked removes the least-recently-used entry. Reports
// whether an entry was evicted.
func (r *Registry) evictOneLocked() bool {
	back := r.lru.Back()
	if back == nil {
		return false
	}
	e := back.Value.(*entry)
	r.removeLocked(e.id)
	metrics.RegistryEvictionsTotal.WithLabelValues("capacity").Inc()
	return true
}

func (r *Registry) removeLocked(id string) {
	e, ok := r.entries[id]
	if !ok {
		return
	}
	r.lru.Remove(e.element)
	delete(r.entries, id)
	r.usedBytes -= e.metadata.MemoryBytes
	metrics.RegistryEntries.Set(float64(len(r.entries)))
	metrics.RegistryBytesUsed.Set(float64(r.usedBytes))
}

func cloneTags(t domain.Tags) domain.Tags {
	if t == nil {
		return nil
	}
	out := make(domain.Tags, len(t))
	for k, v := range t {
		out[k] = v
	}
	return out
}

func cloneMetadata(m domain.DatasetMetadata) domain.DatasetMetadata {
	out := m
	out.Tags = cloneTags(m.Tags)
	if m.Dtypes != nil {
		out.Dtypes = make(map[string]string, len(m.Dtypes))
		for k, v := range m.Dtypes {
			out.Dtypes[k] = v
		}
	}
	return out
}
