// Package manager implements the Manager Facade (C6): the single
// composition object wiring the Dataset Registry, Query Dispatcher,
// and Summarizer behind one public API, plus dataset ID generation and
// the start-before-use invariant.
//
// Grounded on the teacher's top-level engine.Pool/daemon composition
// style (one object owning the long-lived subsystems, a start/stop
// pair guarding background work) and on
// original_source/utils/dataframe_manager/manager.py's facade surface
// (store/get/query/summarize/list/delete/stats).
package manager

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/dispatcher"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/registry"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/summarizer"
)

// largeResultRowThreshold is the row count above which Query cuts the
// inline records down to a head preview, per SPEC_FULL.md §4.5's
// large-result presentation rule (applied here, in the facade, never
// inside the dispatcher itself).
const largeResultRowThreshold = 100

// previewRows is the size of the head preview attached to a
// large-result summary.
const previewRows = 5

// Config bounds the Registry this Manager owns.
type Config struct {
	MaxMemoryBytes  int64
	MaxDatasets     int
	CleanupInterval time.Duration
}

// SnapshotRecorder is the narrow interface the Manager needs from the
// Snapshot Store (C11): record on successful store, forget on delete.
// Kept as an interface so the manager never depends on the concrete
// snapshot package, and so tests can omit it entirely.
type SnapshotRecorder interface {
	Record(meta domain.DatasetMetadata) error
	Forget(id string) error
}

// Manager is the single composition root for the cache's public
// surface: registry, dispatcher, and summarizer behind one facade.
type Manager struct {
	store      domain.Store
	dispatcher domain.Dispatcher
	summarizer domain.Summarizer
	snapshots  SnapshotRecorder

	mu      sync.Mutex
	started bool
}

// expiryNotifier is implemented by stores (the production Registry)
// that can report IDs removed by TTL expiry outside of an explicit
// Delete call. Optional: a store that doesn't implement it just never
// forgets snapshot rows on expiry, only on explicit delete.
type expiryNotifier interface {
	OnExpire(fn func(id string))
}

// SetSnapshotRecorder wires a crash-only snapshot recorder. Optional:
// a Manager with no recorder behaves identically, just without the
// crash-recovery audit trail. If the underlying store supports expiry
// notifications, also forgets the snapshot row when the reaper expires
// a dataset, so a TTL sweep doesn't leave a stale row behind the way an
// explicit Delete wouldn't.
func (m *Manager) SetSnapshotRecorder(r SnapshotRecorder) {
	m.snapshots = r
	if en, ok := m.store.(expiryNotifier); ok {
		en.OnExpire(func(id string) {
			if serr := r.Forget(id); serr != nil {
				log.Printf("[manager] snapshot forget failed for expired %s: %v", id, serr)
			}
		})
	}
}

// New wires a Manager from the given Store/Dispatcher/Summarizer,
// allowing callers (and tests) to substitute fakes. Production callers
// generally use NewDefault instead.
func New(store domain.Store, disp domain.Dispatcher, summ domain.Summarizer) *Manager {
	return &Manager{store: store, dispatcher: disp, summarizer: summ}
}

// NewDefault wires a Manager with the production Registry, Dispatcher,
// and Summarizer implementations, per cfg.
func NewDefault(cfg Config) *Manager {
	reg := registry.New(cfg.MaxMemoryBytes, cfg.MaxDatasets, cfg.CleanupInterval)
	return New(reg, dispatcher.New(), summarizer.New())
}

// Start launches the registry's background reaper if not already
// running. Idempotent, per the start-before-use invariant.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.started {
		return
	}
	m.store.Start()
	m.started = true
}

// Shutdown stops the background reaper and blocks until it exits.
func (m *Manager) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.started {
		return
	}
	m.store.Shutdown()
	m.started = false
}

func (m *Manager) ensureStarted() { m.Start() }

// newDatasetID mints an ID of the form "dataframe-" + 8 lowercase hex
// characters, matching the original's str(uuid4())[:8]: the first 8
// characters preceding a UUIDv4's initial hyphen are always hex.
func newDatasetID() string {
	return "dataframe-" + uuid.New().String()[:8]
}

// Store assigns a new dataset ID, inserts t into the registry, and
// returns the resulting metadata.
func (m *Manager) Store(ctx context.Context, t domain.Table, ttlSeconds *int64, tags domain.Tags) (domain.DatasetMetadata, error) {
	m.ensureStarted()
	if err := ctx.Err(); err != nil {
		return domain.DatasetMetadata{}, domain.Cancelled()
	}
	id := newDatasetID()
	meta, err := m.store.Store(id, t, ttlSeconds, tags)
	if err != nil {
		return domain.DatasetMetadata{}, err
	}
	if m.snapshots != nil {
		if serr := m.snapshots.Record(meta); serr != nil {
			log.Printf("[manager] snapshot record failed for %s: %v", meta.ID, serr)
		}
	}
	return meta, nil
}

// Get retrieves a copy of the dataset for id.
func (m *Manager) Get(ctx context.Context, id string) (domain.Table, error) {
	m.ensureStarted()
	if err := ctx.Err(); err != nil {
		return nil, domain.Cancelled()
	}
	t, ok := m.store.Retrieve(id)
	if !ok {
		return nil, domain.NotFound("dataset %q not found or expired", id)
	}
	return t, nil
}

// GetMetadata returns metadata for id without affecting LRU order.
func (m *Manager) GetMetadata(ctx context.Context, id string) (domain.DatasetMetadata, error) {
	m.ensureStarted()
	if err := ctx.Err(); err != nil {
		return domain.DatasetMetadata{}, domain.Cancelled()
	}
	meta, ok := m.store.GetMetadata(id)
	if !ok {
		return domain.DatasetMetadata{}, domain.NotFound("dataset %q not found or expired", id)
	}
	return meta, nil
}

// Query fetches the dataset for id and dispatches op against it. When
// the result exceeds largeResultRowThreshold rows, the inline records
// are cut to the first previewRows records; this reshaping happens
// here, not in the dispatcher.
func (m *Manager) Query(ctx context.Context, id, op string, params map[string]any) (domain.QueryResult, error) {
	m.ensureStarted()
	t, err := m.Get(ctx, id)
	if err != nil {
		return domain.QueryResult{}, err
	}
	result, err := m.dispatcher.Dispatch(ctx, t, op, params)
	if err != nil {
		return domain.QueryResult{}, err
	}
	if result.ResultShape.Rows > largeResultRowThreshold {
		result = m.shapeForLargeResult(result)
	}
	return result, nil
}

// shapeForLargeResult keeps only the first previewRows records in Data
// and adds truncated=true and full_row_count to the provenance. No
// rendered summary string is produced. ResultShape, Operation and
// Parameters still describe the full result.
func (m *Manager) shapeForLargeResult(result domain.QueryResult) domain.QueryResult {
	preview := result.Data
	if len(preview) > previewRows {
		preview = preview[:previewRows]
	}
	if result.Provenance == nil {
		result.Provenance = map[string]any{}
	}
	result.Provenance["truncated"] = true
	result.Provenance["full_row_count"] = len(result.Data)
	result.Data = preview
	return result
}

// Summarize builds a structured summary of the dataset for id,
// stamping the dataset's own ID into the returned record.
func (m *Manager) Summarize(ctx context.Context, id string, byteBudget int, includeSample bool) (domain.Summary, error) {
	m.ensureStarted()
	t, err := m.Get(ctx, id)
	if err != nil {
		return domain.Summary{}, err
	}
	summary, err := m.summarizer.Summarize(t, byteBudget, includeSample)
	if err != nil {
		return domain.Summary{}, domain.EngineFailure(err, "summarize failed")
	}
	summary.ID = id
	return summary, nil
}

// FormatForDisplay renders the dataset for id in the requested format
// within byteBudget.
func (m *Manager) FormatForDisplay(ctx context.Context, id string, byteBudget int, format string) (string, error) {
	m.ensureStarted()
	t, err := m.Get(ctx, id)
	if err != nil {
		return "", err
	}
	out, err := m.summarizer.FormatForDisplay(t, byteBudget, format)
	if err != nil {
		return "", domain.EngineFailure(err, "format_for_display failed")
	}
	return out, nil
}

// List returns metadata for stored datasets matching filter, newest
// first, capped at limit (0 = unlimited).
func (m *Manager) List(ctx context.Context, filter domain.Tags, limit int) ([]domain.DatasetMetadata, error) {
	m.ensureStarted()
	if err := ctx.Err(); err != nil {
		return nil, domain.Cancelled()
	}
	return m.store.List(filter, limit), nil
}

// Delete removes the dataset for id. Returns false if it did not
// exist (already absent or expired).
func (m *Manager) Delete(ctx context.Context, id string) (bool, error) {
	m.ensureStarted()
	if err := ctx.Err(); err != nil {
		return false, domain.Cancelled()
	}
	removed := m.store.Delete(id)
	if removed && m.snapshots != nil {
		if serr := m.snapshots.Forget(id); serr != nil {
			log.Printf("[manager] snapshot forget failed for %s: %v", id, serr)
		}
	}
	return removed, nil
}

// Stats reports current registry occupancy.
func (m *Manager) Stats(ctx context.Context) (domain.RegistryStats, error) {
	m.ensureStarted()
	if err := ctx.Err(); err != nil {
		return domain.RegistryStats{}, domain.Cancelled()
	}
	return m.store.Stats(), nil
}

// RegistryStats reports current registry occupancy without going
// through the cancellable Stats(ctx) wrapper. Intended for the health
// checker, which runs on its own ticker rather than per-request.
func (m *Manager) RegistryStats() domain.RegistryStats {
	m.ensureStarted()
	return m.store.Stats()
}

// CleanupExpired forces an immediate expiry sweep and returns the
// count removed.
func (m *Manager) CleanupExpired(ctx context.Context) (int, error) {
	m.ensureStarted()
	if err := ctx.Err(); err != nil {
		return 0, domain.Cancelled()
	}
	return m.store.CleanupExpired(), nil
}

// ─── process-wide singleton ─────────────────────────────────────────

var (
	defaultOnce sync.Once
	defaultMgr  *Manager
	defaultMu   sync.Mutex
)

// Default returns the process-wide Manager, constructing it from cfg
// on first call. Subsequent calls ignore cfg and return the existing
// instance.
func Default(cfg Config) *Manager {
	defaultOnce.Do(func() {
		defaultMu.Lock()
		defer defaultMu.Unlock()
		defaultMgr = NewDefault(cfg)
	})
	defaultMu.Lock()
	defer defaultMu.Unlock()
	return defaultMgr
}

// ResetDefault tears down and clears the process-wide Manager. Intended
// for tests; production code should call this at most once, at
// shutdown.
func ResetDefault() {
	defaultMu.Lock()
	mgr := defaultMgr
	defaultMgr = nil
	defaultMu.Unlock()

	if mgr != nil {
		mgr.Shutdown()
	}
	defaultOnce = sync.Once{}
}
