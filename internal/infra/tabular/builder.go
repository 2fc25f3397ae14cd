package tabular

import "time"

// FromRecords builds a MemTable from a slice of row records (as decoded
// from JSON or CSV), inferring a dtype per column from the first
// non-null value observed. columnOrder fixes display order; if nil, the
// columns are the union of keys across records, and their order is not
// defined (keys are read by map iteration).
func FromRecords(records []map[string]any, columnOrder []string) *MemTable {
	if columnOrder == nil {
		seen := map[string]bool{}
		for _, rec := range records {
			for k := range rec {
				if !seen[k] {
					seen[k] = true
					columnOrder = append(columnOrder, k)
				}
			}
		}
	}

	n := len(records)
	columns := make(map[string]Column, len(columnOrder))
	for _, name := range columnOrder {
		columns[name] = buildColumn(records, name, n)
	}
	return NewMemTable(columnOrder, columns)
}

func buildColumn(records []map[string]any, name string, n int) Column {
	kind := inferKind(records, name)
	switch kind {
	case "float64":
		vals := make([]float64, n)
		valid := make([]bool, n)
		for i, rec := range records {
			if f, ok := toFloat(rec[name]); ok {
				vals[i], valid[i] = f, true
			}
		}
		return &Float64Column{Values: vals, Valid: valid}
	case "bool":
		vals := make([]bool, n)
		valid := make([]bool, n)
		for i, rec := range records {
			if b, ok := rec[name].(bool); ok {
				vals[i], valid[i] = b, true
			}
		}
		return &BoolColumn{Values: vals, Valid: valid}
	case "datetime":
		vals := make([]time.Time, n)
		valid := make([]bool, n)
		for i, rec := range records {
			if s, ok := rec[name].(string); ok {
				if ts, err := time.Parse(time.RFC3339, s); err == nil {
					vals[i], valid[i] = ts, true
				}
			}
		}
		return &TimeColumn{Values: vals, Valid: valid}
	default:
		vals := make([]string, n)
		valid := make([]bool, n)
		for i, rec := range records {
			v := rec[name]
			if v == nil {
				continue
			}
			if s, ok := v.(string); ok {
				vals[i], valid[i] = s, true
			} else if s, ok := v.(fmtStringer); ok {
				vals[i], valid[i] = s.String(), true
			} else {
				vals[i], valid[i] = formatAny(v), true
			}
		}
		return &StringColumn{Values: vals, Valid: valid}
	}
}

type fmtStringer interface{ String() string }

func inferKind(records []map[string]any, name string) string {
	for _, rec := range records {
		v, ok := rec[name]
		if !ok || v == nil {
			continue
		}
		switch v.(type) {
		case float64, int, int64:
			return "float64"
		case bool:
			return "bool"
		case string:
			return "string"
		}
	}
	return "string"
}
