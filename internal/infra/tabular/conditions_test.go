package tabular

import "testing"

func nullableStatusTable() *MemTable {
	return NewMemTable([]string{"status"}, map[string]Column{
		"status": &StringColumn{
			Values: []string{"active", "", "inactive"},
			Valid:  []bool{true, false, true},
		},
	})
}

func TestEvaluateConditionEqExcludesNull(t *testing.T) {
	tbl := nullableStatusTable()
	col, _ := tbl.Column("status")
	ok, err := EvaluateCondition(Condition{Column: "status", Op: "eq", Value: "active"}, col, 1)
	if err != nil {
		t.Fatalf("EvaluateCondition: %v", err)
	}
	if ok {
		t.Fatal("eq should never match a null cell")
	}
}

func TestEvaluateConditionNeIncludesNull(t *testing.T) {
	tbl := nullableStatusTable()
	col, _ := tbl.Column("status")
	ok, err := EvaluateCondition(Condition{Column: "status", Op: "ne", Value: "active"}, col, 1)
	if err != nil {
		t.Fatalf("EvaluateCondition: %v", err)
	}
	if !ok {
		t.Fatal("ne should include a null cell, matching pandas' NaN != value")
	}
}

func TestEvaluateConditionInExcludesNull(t *testing.T) {
	tbl := nullableStatusTable()
	col, _ := tbl.Column("status")
	ok, err := EvaluateCondition(Condition{Column: "status", Op: "in", Value: []any{"active", "inactive"}}, col, 1)
	if err != nil {
		t.Fatalf("EvaluateCondition: %v", err)
	}
	if ok {
		t.Fatal("in should never match a null cell")
	}
}

func TestEvaluateConditionNotInIncludesNull(t *testing.T) {
	tbl := nullableStatusTable()
	col, _ := tbl.Column("status")
	ok, err := EvaluateCondition(Condition{Column: "status", Op: "not_in", Value: []any{"active", "inactive"}}, col, 1)
	if err != nil {
		t.Fatalf("EvaluateCondition: %v", err)
	}
	if !ok {
		t.Fatal("not_in should include a null cell, matching pandas' ~NaN.isin([...])")
	}
}

func TestEvaluateConditionContainsExcludesNull(t *testing.T) {
	tbl := nullableStatusTable()
	col, _ := tbl.Column("status")
	ok, err := EvaluateCondition(Condition{Column: "status", Op: "contains", Value: "act"}, col, 1)
	if err != nil {
		t.Fatalf("EvaluateCondition: %v", err)
	}
	if ok {
		t.Fatal("contains should never match a null cell")
	}
}

func TestEvaluateConditionGtExcludesNull(t *testing.T) {
	tbl := NewMemTable([]string{"age"}, map[string]Column{
		"age": &Float64Column{Values: []float64{10, 0, 30}, Valid: []bool{true, false, true}},
	})
	col, _ := tbl.Column("age")
	ok, err := EvaluateCondition(Condition{Column: "age", Op: "gt", Value: float64(5)}, col, 1)
	if err != nil {
		t.Fatalf("EvaluateCondition: %v", err)
	}
	if ok {
		t.Fatal("gt should never match a null cell, matching pandas' NaN > value")
	}
}
