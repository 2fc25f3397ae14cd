// Package dispatcher implements the Query Dispatcher (C5): given an
// operation name and a parameter map, it validates the request and
// invokes the matching domain.Table primitive, wrapping the result in
// a domain.QueryResult with timing and provenance.
//
// Grounded on the teacher's operation-routing style in
// internal/mcp/gateway.go (a name → handler switch with structured
// provenance), and on the parameter semantics of
// original_source/utils/dataframe_manager/query/processor.py.
package dispatcher

import (
	"context"
	"time"

	"github.com/plusplusoneplusplus/dfcache/internal/domain"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/metrics"
	"github.com/plusplusoneplusplus/dfcache/internal/infra/tabular"
)

// Dispatcher routes (op, params) pairs to domain.Table operations.
type Dispatcher struct{}

// New constructs a Dispatcher. It carries no state: every call operates
// purely on the table and parameters it is given.
func New() *Dispatcher { return &Dispatcher{} }

var _ domain.Dispatcher = (*Dispatcher)(nil)

// Dispatch validates params for op, executes it against t, and returns
// the wrapped result. execution_time_ms measures only the body of this
// call, not any registry lookup the caller performed beforehand.
func (d *Dispatcher) Dispatch(ctx context.Context, t domain.Table, op string, params map[string]any) (domain.QueryResult, error) {
	if err := ctx.Err(); err != nil {
		return domain.QueryResult{}, domain.Cancelled()
	}

	start := time.Now()
	originalShape := domain.Shape{Rows: t.RowCount(), Cols: t.ColCount()}

	var (
		result     domain.Table
		provenance map[string]any
		err        error
	)

	switch op {
	case "head":
		result, provenance, err = dispatchHead(t, params)
	case "tail":
		result, provenance, err = dispatchTail(t, params)
	case "sample":
		result, provenance, err = dispatchSample(t, params)
	case "describe":
		result, provenance, err = dispatchDescribe(t, params)
	case "info":
		result, provenance, err = dispatchInfo(t, params)
	case "filter":
		result, provenance, err = dispatchFilter(t, params)
	case "search":
		result, provenance, err = dispatchSearch(t, params)
	case "value_counts":
		result, provenance, err = dispatchValueCounts(t, params)
	default:
		metrics.DispatcherOperationsTotal.WithLabelValues(op, "error").Inc()
		return domain.QueryResult{}, domain.InvalidArgument("unknown operation %q", op)
	}
	metrics.DispatcherOperationLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.DispatcherOperationsTotal.WithLabelValues(op, "error").Inc()
		return domain.QueryResult{}, err
	}
	metrics.DispatcherOperationsTotal.WithLabelValues(op, "ok").Inc()

	provenance["original_shape"] = []int{originalShape.Rows, originalShape.Cols}
	resultShape := domain.Shape{Rows: result.RowCount(), Cols: result.ColCount()}
	provenance["result_shape"] = []int{resultShape.Rows, resultShape.Cols}

	elapsed := time.Since(start).Seconds() * 1000

	return domain.QueryResult{
		Data:            result.ToRecords(),
		Columns:         result.Columns(),
		Operation:       op,
		Parameters:      params,
		Provenance:      provenance,
		ResultShape:     resultShape,
		ExecutionTimeMs: elapsed,
	}, nil
}

func dispatchHead(t domain.Table, params map[string]any) (domain.Table, map[string]any, error) {
	n, err := intParam(params, "n", 5)
	if err != nil {
		return nil, nil, err
	}
	if n < 1 {
		return nil, nil, domain.InvalidArgument("n must be >= 1, got %d", n)
	}
	result := t.Head(n)
	return result, map[string]any{"rows_returned": result.RowCount()}, nil
}

func dispatchTail(t domain.Table, params map[string]any) (domain.Table, map[string]any, error) {
	n, err := intParam(params, "n", 5)
	if err != nil {
		return nil, nil, err
	}
	if n < 1 {
		return nil, nil, domain.InvalidArgument("n must be >= 1, got %d", n)
	}
	result := t.Tail(n)
	return result, map[string]any{"rows_returned": result.RowCount()}, nil
}

func dispatchSample(t domain.Table, params map[string]any) (domain.Table, map[string]any, error) {
	nRaw, hasN := params["n"]
	fracRaw, hasFrac := params["frac"]
	if hasN && hasFrac {
		return nil, nil, domain.InvalidArgument("sample: specify at most one of n, frac")
	}

	var n int
	var frac float64
	switch {
	case hasN:
		v, err := intParam(params, "n", 0)
		if err != nil {
			return nil, nil, err
		}
		if v < 1 {
			return nil, nil, domain.InvalidArgument("n must be >= 1, got %d", v)
		}
		n = v
	case hasFrac:
		f, ok := toFloat(fracRaw)
		if !ok || f <= 0 || f > 1 {
			return nil, nil, domain.InvalidArgument("frac must be in (0, 1], got %v", fracRaw)
		}
		frac = f
	default:
		n = t.RowCount()
		if n > 10 {
			n = 10
		}
	}

	var seed int64 = time.Now().UnixNano()
	if rs, ok := params["random_state"]; ok {
		s, err := intParam(map[string]any{"random_state": rs}, "random_state", 0)
		if err != nil {
			return nil, nil, domain.InvalidArgument("random_state must be an integer")
		}
		seed = int64(s)
	}

	result, err := t.Sample(n, frac, seed)
	if err != nil {
		return nil, nil, domain.EngineFailure(err, "sample failed")
	}
	ratio := 0.0
	if t.RowCount() > 0 {
		ratio = float64(result.RowCount()) / float64(t.RowCount())
	}
	return result, map[string]any{
		"rows_returned":   result.RowCount(),
		"sampling_ratio":  ratio,
	}, nil
}

func dispatchDescribe(t domain.Table, params map[string]any) (domain.Table, map[string]any, error) {
	include, err := stringListParam(params, "include")
	if err != nil {
		return nil, nil, err
	}
	result, err := t.Describe(include)
	if err != nil {
		return nil, nil, domain.EngineFailure(err, "describe failed")
	}
	return result, map[string]any{
		"columns_analyzed":     result.Columns(),
		"statistics_computed":  []string{"count", "mean", "std", "min", "max"},
	}, nil
}

func dispatchInfo(t domain.Table, _ map[string]any) (domain.Table, map[string]any, error) {
	cols := t.Columns()
	mt, ok := t.(*tabular.MemTable)
	recs := make([]map[string]any, len(cols))
	for i, col := range cols {
		dtype, _ := t.Dtype(col)
		nonNull := t.RowCount()
		var memBytes int64
		if ok {
			if c, found := mt.Column(col); found {
				nonNull = 0
				for r := 0; r < c.Len(); r++ {
					if !c.IsNull(r) {
						nonNull++
					}
				}
				memBytes = c.MemoryBytes()
			}
		}
		recs[i] = map[string]any{
			"Column":         col,
			"Non-Null Count": nonNull,
			"Dtype":          dtype,
			"Memory Usage":   memBytes,
		}
	}
	memTotal := t.DeepMemoryBytes()
	result := recordsTable(recs, []string{"Column", "Non-Null Count", "Dtype", "Memory Usage"})
	return result, map[string]any{
		"total_memory_usage": memTotal,
		"total_memory_mb":    float64(memTotal) / (1024 * 1024),
		"column_count":       t.ColCount(),
		"row_count":          t.RowCount(),
	}, nil
}

func dispatchFilter(t domain.Table, params map[string]any) (domain.Table, map[string]any, error) {
	condsRaw, ok := params["conditions"]
	if !ok {
		return nil, nil, domain.InvalidArgument("filter requires non-empty 'conditions'")
	}
	conditions, ok := condsRaw.(map[string]any)
	if !ok || len(conditions) == 0 {
		return nil, nil, domain.InvalidArgument("filter requires non-empty 'conditions'")
	}
	originalRows := t.RowCount()
	result, err := t.FilterByConditions(conditions)
	if err != nil {
		return nil, nil, err
	}
	ratio := 0.0
	if originalRows > 0 {
		ratio = float64(result.RowCount()) / float64(originalRows)
	}
	return result, map[string]any{
		"rows_filtered": originalRows - result.RowCount(),
		"filter_ratio":  ratio,
	}, nil
}

func dispatchSearch(t domain.Table, params map[string]any) (domain.Table, map[string]any, error) {
	query, _ := params["query"].(string)
	if query == "" {
		return nil, nil, domain.InvalidArgument("search requires a non-empty 'query'")
	}
	columns, err := stringListParam(params, "columns")
	if err != nil {
		return nil, nil, err
	}
	if len(columns) == 0 {
		for _, col := range t.Columns() {
			if dt, ok := t.Dtype(col); ok && dt == "string" {
				columns = append(columns, col)
			}
		}
	}
	if len(columns) == 0 {
		return nil, nil, domain.InvalidArgument("no searchable (string) columns found")
	}

	matched := map[int]bool{}
	records := t.ToRecords()
	lowered := toLower(query)
	for _, col := range columns {
		if _, ok := t.Dtype(col); !ok {
			return nil, nil, domain.InvalidArgument("unknown column %q", col)
		}
	}
	var keepIdx []int
	for i, rec := range records {
		for _, col := range columns {
			v, ok := rec[col]
			if !ok || v == nil {
				continue
			}
			if s, ok := v.(string); ok && contains(toLower(s), lowered) {
				matched[i] = true
				break
			}
		}
		if matched[i] {
			keepIdx = append(keepIdx, i)
		}
	}

	result, err := sliceByRecordIndex(t, keepIdx)
	if err != nil {
		return nil, nil, err
	}
	return result, map[string]any{
		"matches_found":     result.RowCount(),
		"columns_searched":  columns,
	}, nil
}

func dispatchValueCounts(t domain.Table, params map[string]any) (domain.Table, map[string]any, error) {
	col, _ := params["column"].(string)
	if col == "" {
		return nil, nil, domain.InvalidArgument("value_counts requires 'column'")
	}
	if _, ok := t.Dtype(col); !ok {
		return nil, nil, domain.InvalidArgument("unknown column %q", col)
	}
	normalize, _ := params["normalize"].(bool)
	dropna := true
	if v, ok := params["dropna"]; ok {
		if b, ok := v.(bool); ok {
			dropna = b
		}
	}
	result, err := t.ValueCounts(col, normalize, dropna)
	if err != nil {
		return nil, nil, domain.EngineFailure(err, "value_counts failed")
	}
	return result, map[string]any{
		"unique_values":    result.RowCount(),
		"column_analyzed":  col,
	}, nil
}
