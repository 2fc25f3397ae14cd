package tabular

import (
	"fmt"
	"strings"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
)

// operatorKeys are the only recognized operator-object keys, per
// SPEC_FULL.md §4.5's filter operator grammar.
var operatorKeys = map[string]bool{
	"eq": true, "ne": true, "gt": true, "gte": true, "lt": true, "lte": true,
	"in": true, "not_in": true,
	"contains": true, "startswith": true, "endswith": true,
}

// Condition is one column → operator → value constraint. Conditions
// across columns are combined with logical AND.
type Condition struct {
	Column string
	Op     string
	Value  any
}

// ParseConditions turns the wire-level conditions map into a slice of
// Condition, validating the operator grammar along the way. A bare
// primitive at a column position is equivalent to {"eq": primitive}.
func ParseConditions(raw map[string]any) ([]Condition, error) {
	if len(raw) == 0 {
		return nil, domain.InvalidArgument("filter requires a non-empty conditions map")
	}
	conds := make([]Condition, 0, len(raw))
	for col, v := range raw {
		if asMap, ok := v.(map[string]any); ok {
			op, val, err := extractOperator(col, asMap)
			if err != nil {
				return nil, err
			}
			conds = append(conds, Condition{Column: col, Op: op, Value: val})
			continue
		}
		conds = append(conds, Condition{Column: col, Op: "eq", Value: v})
	}
	return conds, nil
}

func extractOperator(col string, m map[string]any) (string, any, error) {
	if len(m) != 1 {
		return "", nil, domain.InvalidArgument(
			"condition for column %q must have exactly one operator key, got %d", col, len(m))
	}
	for k, v := range m {
		if !operatorKeys[k] {
			return "", nil, domain.InvalidArgument("unknown filter operator %q for column %q", k, col)
		}
		return k, v, nil
	}
	panic("unreachable")
}

// EvaluateCondition reports whether row i of col satisfies cond.
//
// Null handling follows the original pandas-based engine
// (original_source/utils/dataframe_manager/query/processor.py), not a
// blanket "null never matches" rule: `eq`/`in` exclude null cells
// because equalsValue can never match one, and `ne`/`not_in` therefore
// *include* them, mirroring pandas' `NaN != value` / `~NaN.isin(...)`
// both evaluating truthy. The comparisons `gt`/`gte`/`lt`/`lte` and
// `contains`/`startswith`/`endswith` never match a null cell.
func EvaluateCondition(cond Condition, col Column, i int) (bool, error) {
	switch cond.Op {
	case "eq":
		return equalsValue(col, i, cond.Value), nil
	case "ne":
		return !equalsValue(col, i, cond.Value), nil
	case "gt", "gte", "lt", "lte":
		if col.IsNull(i) {
			return false, nil
		}
		cv, ok := col.AsFloat(i)
		target, okT := toFloat(cond.Value)
		if !ok || !okT {
			return false, domain.InvalidArgument(
				"non-numeric comparison on column %q with operator %q", cond.Column, cond.Op)
		}
		switch cond.Op {
		case "gt":
			return cv > target, nil
		case "gte":
			return cv >= target, nil
		case "lt":
			return cv < target, nil
		default:
			return cv <= target, nil
		}
	case "in", "not_in":
		list, ok := cond.Value.([]any)
		if !ok {
			return false, domain.InvalidArgument("operator %q on column %q requires a list value", cond.Op, cond.Column)
		}
		found := false
		for _, item := range list {
			if equalsValue(col, i, item) {
				found = true
				break
			}
		}
		if cond.Op == "in" {
			return found, nil
		}
		return !found, nil
	case "contains", "startswith", "endswith":
		s, ok := col.AsString(i)
		target, okT := cond.Value.(string)
		if !ok || !okT {
			return false, nil
		}
		switch cond.Op {
		case "contains":
			return strings.Contains(strings.ToLower(s), strings.ToLower(target)), nil
		case "startswith":
			return strings.HasPrefix(strings.ToLower(s), strings.ToLower(target)), nil
		default:
			return strings.HasSuffix(strings.ToLower(s), strings.ToLower(target)), nil
		}
	default:
		return false, domain.InvalidArgument("unknown filter operator %q", cond.Op)
	}
}

func equalsValue(col Column, i int, v any) bool {
	if col.IsNull(i) {
		return false
	}
	if f, ok := toFloat(v); ok {
		if cv, okc := col.AsFloat(i); okc {
			return cv == f
		}
	}
	if s, ok := v.(string); ok {
		if cv, okc := col.AsString(i); okc {
			return cv == s
		}
	}
	if b, ok := v.(bool); ok {
		return col.At(i) == b
	}
	return fmt.Sprintf("%v", col.At(i)) == fmt.Sprintf("%v", v)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
