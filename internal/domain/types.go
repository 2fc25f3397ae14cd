package domain

import "time"

// Shape is a (rows, cols) pair.
type Shape struct {
	Rows int `json:"rows"`
	Cols int `json:"cols"`
}

// Tags is a free-form set of caller-supplied key/value pairs attached to
// a stored dataset. Values are restricted to JSON-primitive Go types
// (bool, string, float64, int) by convention; the registry never
// interprets them beyond equality comparison for List's tag filter.
type Tags map[string]any

// Matches reports whether t contains every key/value pair in filter.
// An empty filter matches everything.
func (t Tags) Matches(filter Tags) bool {
	for k, v := range filter {
		tv, ok := t[k]
		if !ok || tv != v {
			return false
		}
	}
	return true
}

// DatasetMetadata is the immutable-after-insertion record describing a
// stored dataset. LRU position is tracked separately by the registry;
// it is not part of this value.
type DatasetMetadata struct {
	ID          string         `json:"df_id"`
	CreatedAt   time.Time      `json:"created_at"`
	Shape       Shape          `json:"shape"`
	Dtypes      map[string]string `json:"dtypes"`
	MemoryBytes int64          `json:"memory_usage"`
	SizeBytes   int64          `json:"size_bytes"`
	TTLSeconds  *int64         `json:"ttl_seconds,omitempty"`
	Tags        Tags           `json:"tags,omitempty"`
}

// ExpiresAt returns the wall-clock expiration time, or the zero Time if
// the entry carries no TTL (never expires).
func (m DatasetMetadata) ExpiresAt() time.Time {
	if m.TTLSeconds == nil {
		return time.Time{}
	}
	return m.CreatedAt.Add(time.Duration(*m.TTLSeconds) * time.Second)
}

// IsExpired reports whether now is past ExpiresAt. A metadata record
// with no TTL is never expired.
func (m DatasetMetadata) IsExpired(now time.Time) bool {
	if m.TTLSeconds == nil {
		return false
	}
	return now.After(m.ExpiresAt())
}

// QueryResult is the value returned by a successful dispatch. It shares
// no mutable state with the cache.
type QueryResult struct {
	Data             []map[string]any `json:"data"`
	Columns          []string         `json:"columns"`
	Operation        string           `json:"operation"`
	Parameters       map[string]any   `json:"parameters"`
	Provenance       map[string]any   `json:"metadata"`
	ResultShape      Shape            `json:"result_shape"`
	ExecutionTimeMs  float64          `json:"execution_time_ms"`
}

// RegistryStats is the record returned by the registry's stats()
// operation.
type RegistryStats struct {
	Count           int     `json:"count"`
	TotalBytes      int64   `json:"total_bytes"`
	MaxBytes        int64   `json:"max_bytes"`
	MaxDatasets     int     `json:"max_datasets"`
	UsagePercentage float64 `json:"usage_percentage"`
}

// Summary is the structured record produced by the summarizer.
type Summary struct {
	ID                string                    `json:"df_id"`
	Shape             Shape                     `json:"shape"`
	Columns           []string                  `json:"columns"`
	Dtypes            map[string]string         `json:"dtypes"`
	MemoryMB          float64                   `json:"memory_mb"`
	ColumnAnalysis    map[string]ColumnAnalysis `json:"column_analysis"`
	NumericStats      map[string]NumericStats   `json:"numeric_stats,omitempty"`
	CategoricalTopK   map[string][]ValueCount   `json:"categorical_top_k,omitempty"`
	ApproxBytes       int                       `json:"approx_bytes"`
	Sample            []map[string]any          `json:"sample,omitempty"`
	SamplingMethod    string                    `json:"sampling_method,omitempty"`
}

// ColumnAnalysis captures per-column descriptive metadata computed by
// the summarizer. Fields not applicable to a column's dtype are left
// at their zero value.
type ColumnAnalysis struct {
	Dtype           string  `json:"dtype"`
	NullCount       int     `json:"null_count"`
	NullPercentage  float64 `json:"null_percentage"`
	UniqueCount     int     `json:"unique_count"`
	UniquePercentage float64 `json:"unique_percentage"`
	Min             *float64 `json:"min,omitempty"`
	Max             *float64 `json:"max,omitempty"`
	Mean            *float64 `json:"mean,omitempty"`
	Std             *float64 `json:"std,omitempty"`
	MinTime         *time.Time `json:"min_time,omitempty"`
	MaxTime         *time.Time `json:"max_time,omitempty"`
	RangeDays       *float64   `json:"range_days,omitempty"`
	MeanLength      *float64   `json:"mean_length,omitempty"`
	MaxLength       *int       `json:"max_length,omitempty"`
	TopValues       []ValueCount `json:"top_values,omitempty"`
	Error           string     `json:"error,omitempty"`
}

// NumericStats carries min/max/mean/std for a numeric column.
type NumericStats struct {
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
	Mean float64 `json:"mean"`
	Std  float64 `json:"std"`
}

// ValueCount pairs a distinct column value with its occurrence count
// (or frequency, when normalized).
type ValueCount struct {
	Value any     `json:"value"`
	Count int     `json:"count,omitempty"`
	Freq  float64 `json:"frequency,omitempty"`
}
