package dispatcher

import (
	"strconv"
	"strings"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/tabular"
)

func intParam(params map[string]any, key string, def int) (int, error) {
	v, ok := params[key]
	if !ok {
		return def, nil
	}
	switch x := v.(type) {
	case int:
		return x, nil
	case int64:
		return int(x), nil
	case float64:
		return int(x), nil
	case string:
		n, err := strconv.Atoi(x)
		if err != nil {
			return 0, domain.InvalidArgument("%s must be an integer, got %q", key, x)
		}
		return n, nil
	default:
		return 0, domain.InvalidArgument("%s must be an integer", key)
	}
}

func toFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	case string:
		f, err := strconv.ParseFloat(x, 64)
		return f, err == nil
	default:
		return 0, false
	}
}

func stringListParam(params map[string]any, key string) ([]string, error) {
	v, ok := params[key]
	if !ok || v == nil {
		return nil, nil
	}
	switch x := v.(type) {
	case string:
		return []string{x}, nil
	case []string:
		return x, nil
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, domain.InvalidArgument("%s must be a string or list of strings", key)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, domain.InvalidArgument("%s must be a string or list of strings", key)
	}
}

func toLower(s string) string { return strings.ToLower(s) }
func contains(haystack, needle string) bool { return strings.Contains(haystack, needle) }

// recordsTable builds a domain.Table from pre-built records, inferring
// dtypes the same way tabular.FromRecords does (used for synthetic
// result tables such as the "info" operation's column summary).
func recordsTable(records []map[string]any, columnOrder []string) domain.Table {
	return tabular.FromRecords(records, columnOrder)
}

// sliceByRecordIndex rebuilds t restricted to the given row indices by
// round-tripping through records. Used where domain.Table exposes no
// direct "select these rows" primitive (e.g. search, which filters on
// a computed per-row predicate rather than a column condition).
func sliceByRecordIndex(t domain.Table, indices []int) (domain.Table, error) {
	all := t.ToRecords()
	cols := t.Columns()
	kept := make([]map[string]any, len(indices))
	for i, idx := range indices {
		kept[i] = all[idx]
	}
	return tabular.FromRecords(kept, cols), nil
}
