// Package tabular provides the one concrete implementation of
// domain.Table shipped with this core: an in-memory columnar table.
// No third-party dataframe/columnar library exists anywhere in the
// reference corpus this module's dependency stack is drawn from (see
// DESIGN.md); this package is the deliberate, documented exception to
// "prefer a corpus library" for that reason alone.
package tabular

import "time"

// Column is the internal storage unit for one field of a MemTable. Each
// concrete column type owns a typed slice plus a validity bitmap so
// nulls can be represented without sentinel values.
type Column interface {
	Len() int
	Dtype() string
	At(i int) any
	IsNull(i int) bool
	Select(indices []int) Column
	Copy() Column
	MemoryBytes() int64
	AsFloat(i int) (float64, bool)
	AsString(i int) (string, bool)
}

// ─── Float64Column ────────────────────────────────────────────────────

type Float64Column struct {
	Values []float64
	Valid  []bool
}

func (c *Float64Column) Len() int      { return len(c.Values) }
func (c *Float64Column) Dtype() string { return "float64" }
func (c *Float64Column) At(i int) any {
	if !c.Valid[i] {
		return nil
	}
	return c.Values[i]
}
func (c *Float64Column) IsNull(i int) bool { return !c.Valid[i] }
func (c *Float64Column) Select(indices []int) Column {
	out := &Float64Column{Values: make([]float64, len(indices)), Valid: make([]bool, len(indices))}
	for j, i := range indices {
		out.Values[j] = c.Values[i]
		out.Valid[j] = c.Valid[i]
	}
	return out
}
func (c *Float64Column) Copy() Column {
	return c.Select(allIndices(len(c.Values)))
}
func (c *Float64Column) MemoryBytes() int64 { return int64(len(c.Values)) * 9 }
func (c *Float64Column) AsFloat(i int) (float64, bool) {
	if !c.Valid[i] {
		return 0, false
	}
	return c.Values[i], true
}
func (c *Float64Column) AsString(i int) (string, bool) {
	if !c.Valid[i] {
		return "", false
	}
	return formatFloat(c.Values[i]), true
}

// ─── Int64Column ──────────────────────────────────────────────────────

type Int64Column struct {
	Values []int64
	Valid  []bool
}

func (c *Int64Column) Len() int      { return len(c.Values) }
func (c *Int64Column) Dtype() string { return "int64" }
func (c *Int64Column) At(i int) any {
	if !c.Valid[i] {
		return nil
	}
	return c.Values[i]
}
func (c *Int64Column) IsNull(i int) bool { return !c.Valid[i] }
func (c *Int64Column) Select(indices []int) Column {
	out := &Int64Column{Values: make([]int64, len(indices)), Valid: make([]bool, len(indices))}
	for j, i := range indices {
		out.Values[j] = c.Values[i]
		out.Valid[j] = c.Valid[i]
	}
	return out
}
func (c *Int64Column) Copy() Column         { return c.Select(allIndices(len(c.Values))) }
func (c *Int64Column) MemoryBytes() int64   { return int64(len(c.Values)) * 9 }
func (c *Int64Column) AsFloat(i int) (float64, bool) {
	if !c.Valid[i] {
		return 0, false
	}
	return float64(c.Values[i]), true
}
func (c *Int64Column) AsString(i int) (string, bool) {
	if !c.Valid[i] {
		return "", false
	}
	return formatInt(c.Values[i]), true
}

// ─── StringColumn ─────────────────────────────────────────────────────

type StringColumn struct {
	Values []string
	Valid  []bool
}

func (c *StringColumn) Len() int      { return len(c.Values) }
func (c *StringColumn) Dtype() string { return "string" }
func (c *StringColumn) At(i int) any {
	if !c.Valid[i] {
		return nil
	}
	return c.Values[i]
}
func (c *StringColumn) IsNull(i int) bool { return !c.Valid[i] }
func (c *StringColumn) Select(indices []int) Column {
	out := &StringColumn{Values: make([]string, len(indices)), Valid: make([]bool, len(indices))}
	for j, i := range indices {
		out.Values[j] = c.Values[i]
		out.Valid[j] = c.Valid[i]
	}
	return out
}
func (c *StringColumn) Copy() Column       { return c.Select(allIndices(len(c.Values))) }
func (c *StringColumn) MemoryBytes() int64 {
	var n int64
	for _, s := range c.Values {
		n += int64(len(s)) + 16
	}
	return n
}
func (c *StringColumn) AsFloat(i int) (float64, bool) { return 0, false }
func (c *StringColumn) AsString(i int) (string, bool) {
	if !c.Valid[i] {
		return "", false
	}
	return c.Values[i], true
}

// ─── BoolColumn ───────────────────────────────────────────────────────

type BoolColumn struct {
	Values []bool
	Valid  []bool
}

func (c *BoolColumn) Len() int      { return len(c.Values) }
func (c *BoolColumn) Dtype() string { return "bool" }
func (c *BoolColumn) At(i int) any {
	if !c.Valid[i] {
		return nil
	}
	return c.Values[i]
}
func (c *BoolColumn) IsNull(i int) bool { return !c.Valid[i] }
func (c *BoolColumn) Select(indices []int) Column {
	out := &BoolColumn{Values: make([]bool, len(indices)), Valid: make([]bool, len(indices))}
	for j, i := range indices {
		out.Values[j] = c.Values[i]
		out.Valid[j] = c.Valid[i]
	}
	return out
}
func (c *BoolColumn) Copy() Column       { return c.Select(allIndices(len(c.Values))) }
func (c *BoolColumn) MemoryBytes() int64 { return int64(len(c.Values)) }
func (c *BoolColumn) AsFloat(i int) (float64, bool) {
	if !c.Valid[i] {
		return 0, false
	}
	if c.Values[i] {
		return 1, true
	}
	return 0, true
}
func (c *BoolColumn) AsString(i int) (string, bool) {
	if !c.Valid[i] {
		return "", false
	}
	if c.Values[i] {
		return "true", true
	}
	return "false", true
}

// ─── TimeColumn ───────────────────────────────────────────────────────

type TimeColumn struct {
	Values []time.Time
	Valid  []bool
}

func (c *TimeColumn) Len() int      { return len(c.Values) }
func (c *TimeColumn) Dtype() string { return "datetime" }
func (c *TimeColumn) At(i int) any {
	if !c.Valid[i] {
		return nil
	}
	return c.Values[i]
}
func (c *TimeColumn) IsNull(i int) bool { return !c.Valid[i] }
func (c *TimeColumn) Select(indices []int) Column {
	out := &TimeColumn{Values: make([]time.Time, len(indices)), Valid: make([]bool, len(indices))}
	for j, i := range indices {
		out.Values[j] = c.Values[i]
		out.Valid[j] = c.Valid[i]
	}
	return out
}
func (c *TimeColumn) Copy() Column       { return c.Select(allIndices(len(c.Values))) }
func (c *TimeColumn) MemoryBytes() int64 { return int64(len(c.Values)) * 24 }
func (c *TimeColumn) AsFloat(i int) (float64, bool) {
	if !c.Valid[i] {
		return 0, false
	}
	return float64(c.Values[i].Unix()), true
}
func (c *TimeColumn) AsString(i int) (string, bool) {
	if !c.Valid[i] {
		return "", false
	}
	return c.Values[i].Format(time.RFC3339), true
}

func allIndices(n int) []int {
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	return idx
}
