package tabular

import (
	"math"
	"math/rand"
	"sort"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

// MemTable is an in-memory columnar implementation of domain.Table.
// Columns are stored as typed slices keyed by name; columnOrder fixes
// their display order. MemTable satisfies domain.Table.
type MemTable struct {
	columnOrder []string
	columns     map[string]Column
	nrows       int
}

// NewMemTable builds a MemTable from an explicit column order and a map
// of name → Column. All columns must have equal length.
func NewMemTable(columnOrder []string, columns map[string]Column) *MemTable {
	nrows := 0
	for _, name := range columnOrder {
		if c, ok := columns[name]; ok {
			nrows = c.Len()
			break
		}
	}
	return &MemTable{columnOrder: columnOrder, columns: columns, nrows: nrows}
}

var _ domain.Table = (*MemTable)(nil)

func (t *MemTable) RowCount() int { return t.nrows }
func (t *MemTable) ColCount() int { return len(t.columnOrder) }
func (t *MemTable) Columns() []string {
	out := make([]string, len(t.columnOrder))
	copy(out, t.columnOrder)
	return out
}
func (t *MemTable) Dtype(col string) (string, bool) {
	c, ok := t.columns[col]
	if !ok {
		return "", false
	}
	return c.Dtype(), true
}
func (t *MemTable) DeepMemoryBytes() int64 {
	var n int64
	for _, c := range t.columns {
		n += c.MemoryBytes()
	}
	return n
}
func (t *MemTable) Empty() bool { return t.nrows == 0 || len(t.columnOrder) == 0 }

func (t *MemTable) Head(n int) domain.Table {
	if n < 0 {
		n = 0
	}
	if n > t.nrows {
		n = t.nrows
	}
	return t.sliceTable(0, n)
}

func (t *MemTable) Tail(n int) domain.Table {
	if n < 0 {
		n = 0
	}
	if n > t.nrows {
		n = t.nrows
	}
	return t.sliceTable(t.nrows-n, t.nrows)
}

func (t *MemTable) Slice(lo, hi int) domain.Table {
	if lo < 0 {
		lo = 0
	}
	if hi > t.nrows {
		hi = t.nrows
	}
	if hi < lo {
		hi = lo
	}
	return t.sliceTable(lo, hi)
}

func (t *MemTable) sliceTable(lo, hi int) *MemTable {
	indices := make([]int, 0, hi-lo)
	for i := lo; i < hi; i++ {
		indices = append(indices, i)
	}
	return t.selectRows(indices)
}

func (t *MemTable) selectRows(indices []int) *MemTable {
	cols := make(map[string]Column, len(t.columns))
	for name, c := range t.columns {
		cols[name] = c.Select(indices)
	}
	return NewMemTable(t.columnOrder, cols)
}

// Sample performs a uniform random sample without replacement. Exactly
// one of n, frac is expected to be the caller's effective request; the
// dispatcher resolves n vs frac before calling this method, so Sample
// itself just honors whichever resulted.
func (t *MemTable) Sample(n int, frac float64, seed int64) (domain.Table, error) {
	target := n
	if frac > 0 {
		target = int(math.Round(frac * float64(t.nrows)))
	}
	if target > t.nrows {
		target = t.nrows
	}
	if target < 0 {
		target = 0
	}
	r := rand.New(rand.NewSource(seed))
	perm := r.Perm(t.nrows)[:target]
	sort.Ints(perm)
	return t.selectRows(perm), nil
}

func (t *MemTable) SelectColumns(cols []string) (domain.Table, error) {
	selected := make(map[string]Column, len(cols))
	for _, name := range cols {
		c, ok := t.columns[name]
		if !ok {
			return nil, domain.InvalidArgument("unknown column %q", name)
		}
		selected[name] = c
	}
	order := make([]string, len(cols))
	copy(order, cols)
	return NewMemTable(order, selected), nil
}

func (t *MemTable) FilterByConditions(raw map[string]any) (domain.Table, error) {
	conds, err := ParseConditions(raw)
	if err != nil {
		return nil, err
	}
	cols := make([]Column, len(conds))
	for i, c := range conds {
		col, ok := t.columns[c.Column]
		if !ok {
			return nil, domain.InvalidArgument("unknown column %q", c.Column)
		}
		cols[i] = col
	}
	matched := make([]int, 0, t.nrows)
	for row := 0; row < t.nrows; row++ {
		ok := true
		for i, c := range conds {
			m, err := EvaluateCondition(c, cols[i], row)
			if err != nil {
				return nil, err
			}
			if !m {
				ok = false
				break
			}
		}
		if ok {
			matched = append(matched, row)
		}
	}
	return t.selectRows(matched), nil
}

func (t *MemTable) ValueCounts(col string, normalize, dropNull bool) (domain.Table, error) {
	c, ok := t.columns[col]
	if !ok {
		return nil, domain.InvalidArgument("unknown column %q", col)
	}
	type keyed struct {
		val   any
		count int
	}
	order := []string{}
	counts := map[string]*keyed{}
	total := 0
	for i := 0; i < c.Len(); i++ {
		if c.IsNull(i) {
			if dropNull {
				continue
			}
			key := "\x00null"
			if counts[key] == nil {
				counts[key] = &keyed{val: nil}
				order = append(order, key)
			}
			counts[key].count++
			total++
			continue
		}
		v := c.At(i)
		key := formatAny(v)
		if counts[key] == nil {
			counts[key] = &keyed{val: v}
			order = append(order, key)
		}
		counts[key].count++
		total++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]].count > counts[order[j]].count
	})

	values := make([]any, len(order))
	countsCol := make([]float64, len(order))
	validCounts := make([]bool, len(order))
	for i, key := range order {
		k := counts[key]
		values[i] = k.val
		if normalize && total > 0 {
			countsCol[i] = float64(k.count) / float64(total)
		} else {
			countsCol[i] = float64(k.count)
		}
		validCounts[i] = true
	}

	valueCol := anyColumnFromValues(values)
	numCol := &Float64Column{Values: countsCol, Valid: validCounts}
	numColName := "Count"
	if normalize {
		numColName = "Frequency"
	}
	return NewMemTable([]string{"Value", numColName}, map[string]Column{
		"Value":    valueCol,
		numColName: numCol,
	}), nil
}

func (t *MemTable) Describe(include []string) (domain.Table, error) {
	targets := include
	if len(targets) == 0 {
		for _, name := range t.columnOrder {
			if c, ok := t.columns[name]; ok && (c.Dtype() == "float64" || c.Dtype() == "int64") {
				targets = append(targets, name)
			}
		}
	}
	stats := []string{"count", "mean", "std", "min", "max"}
	result := map[string]Column{"statistic": &StringColumn{Values: stats, Valid: allTrue(len(stats))}}
	order := []string{"statistic"}
	for _, name := range targets {
		c, ok := t.columns[name]
		if !ok {
			return nil, domain.InvalidArgument("unknown column %q", name)
		}
		vals := numericValues(c)
		count, mean, std, min, max := describeStats(vals)
		col := &Float64Column{
			Values: []float64{count, mean, std, min, max},
			Valid:  allTrue(5),
		}
		result[name] = col
		order = append(order, name)
	}
	return NewMemTable(order, result), nil
}

func (t *MemTable) ToRecords() []map[string]any {
	records := make([]map[string]any, t.nrows)
	for i := 0; i < t.nrows; i++ {
		rec := make(map[string]any, len(t.columnOrder))
		for _, name := range t.columnOrder {
			rec[name] = t.columns[name].At(i)
		}
		records[i] = rec
	}
	return records
}

func (t *MemTable) Copy() domain.Table {
	cols := make(map[string]Column, len(t.columns))
	for name, c := range t.columns {
		cols[name] = c.Copy()
	}
	order := make([]string, len(t.columnOrder))
	copy(order, t.columnOrder)
	return NewMemTable(order, cols)
}

// Column exposes the underlying Column for a name, for use by
// summarizer/dispatcher code that needs typed access beyond the
// domain.Table interface. Not part of domain.Table.
func (t *MemTable) Column(name string) (Column, bool) {
	c, ok := t.columns[name]
	return c, ok
}

// ─── helpers ────────────────────────────────────────────────────────

func allTrue(n int) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = true
	}
	return out
}

func numericValues(c Column) []float64 {
	vals := make([]float64, 0, c.Len())
	for i := 0; i < c.Len(); i++ {
		if f, ok := c.AsFloat(i); ok {
			vals = append(vals, f)
		}
	}
	return vals
}

func describeStats(vals []float64) (count, mean, std, min, max float64) {
	count = float64(len(vals))
	if count == 0 {
		return 0, 0, 0, 0, 0
	}
	sum := 0.0
	min, max = vals[0], vals[0]
	for _, v := range vals {
		sum += v
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	mean = sum / count
	var variance float64
	for _, v := range vals {
		d := v - mean
		variance += d * d
	}
	if count > 1 {
		variance /= count - 1
	}
	std = math.Sqrt(variance)
	return
}

func formatAny(v any) string {
	switch x := v.(type) {
	case string:
		return "s:" + x
	case float64:
		return "f:" + formatFloat(x)
	case int64:
		return "i:" + formatInt(x)
	case bool:
		if x {
			return "b:true"
		}
		return "b:false"
	default:
		return "o:?"
	}
}

func anyColumnFromValues(values []any) Column {
	if len(values) == 0 {
		return &StringColumn{}
	}
	allString, allFloat, allBool := true, true, true
	for _, v := range values {
		if v == nil {
			continue
		}
		if _, ok := v.(string); !ok {
			allString = false
		}
		if _, ok := v.(float64); !ok {
			if _, ok2 := v.(int64); !ok2 {
				allFloat = false
			}
		}
		if _, ok := v.(bool); !ok {
			allBool = false
		}
	}
	switch {
	case allFloat:
		vals := make([]float64, len(values))
		valid := make([]bool, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			if f, ok := v.(float64); ok {
				vals[i], valid[i] = f, true
			} else if n, ok := v.(int64); ok {
				vals[i], valid[i] = float64(n), true
			}
		}
		return &Float64Column{Values: vals, Valid: valid}
	case allBool:
		vals := make([]bool, len(values))
		valid := make([]bool, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			vals[i], valid[i] = v.(bool), true
		}
		return &BoolColumn{Values: vals, Valid: valid}
	case allString:
		vals := make([]string, len(values))
		valid := make([]bool, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			vals[i], valid[i] = v.(string), true
		}
		return &StringColumn{Values: vals, Valid: valid}
	default:
		vals := make([]string, len(values))
		valid := make([]bool, len(values))
		for i, v := range values {
			if v == nil {
				continue
			}
			vals[i] = formatAny(v)
			valid[i] = true
		}
		return &StringColumn{Values: vals, Valid: valid}
	}
}
