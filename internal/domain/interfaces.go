package domain

import "context"

// ─── Tabular Engine Contract ─────────────────────────────────────────────
// Table is the capability interface every tabular engine adapter must
// satisfy. The rest of the core depends only on this interface, never on
// a concrete engine.

// Table is a rectangular, column-typed, row-keyed collection of values.
// Implementations must treat a Table as immutable-for-the-cache: every
// operation returns a new Table rather than mutating the receiver.
type Table interface {
	RowCount() int
	ColCount() int
	Columns() []string
	Dtype(col string) (string, bool)
	DeepMemoryBytes() int64
	Empty() bool

	Head(n int) Table
	Tail(n int) Table
	Sample(n int, frac float64, seed int64) (Table, error)
	Describe(include []string) (Table, error)
	ValueCounts(col string, normalize, dropNull bool) (Table, error)
	FilterByConditions(conditions map[string]any) (Table, error)
	SelectColumns(cols []string) (Table, error)
	Slice(lo, hi int) Table
	ToRecords() []map[string]any
	Copy() Table
}

// ─── Service Interfaces ─────────────────────────────────────────────────
// Infrastructure implements these; the manager facade (C6) depends on
// them, never on concrete registry/dispatcher/summarizer types directly,
// so each can be swapped or mocked in tests.

// Store is the Dataset Registry contract (C2).
type Store interface {
	Store(id string, t Table, ttlSeconds *int64, tags Tags) (DatasetMetadata, error)
	Retrieve(id string) (Table, bool)
	GetMetadata(id string) (DatasetMetadata, bool)
	Delete(id string) bool
	List(filter Tags, limit int) []DatasetMetadata
	CleanupExpired() int
	Stats() RegistryStats
	ClearAll() int
	Start()
	Shutdown()
}

// Dispatcher is the Query Dispatcher contract (C5).
type Dispatcher interface {
	Dispatch(ctx context.Context, t Table, op string, params map[string]any) (QueryResult, error)
}

// Summarizer is the Summarizer contract (C4).
type Summarizer interface {
	Summarize(t Table, byteBudget int, includeSample bool) (Summary, error)
	FormatForDisplay(t Table, byteBudget int, format string) (string, error)
}
