package core

import (
	"encoding/json"
	"math"
	"testing"
)

func statsFor(t *testing.T, content string) map[string]ColumnStats {
	t.Helper()
	res := CalculateStatistics(mustParse(t, content))
	out := make(map[string]ColumnStats, len(res.Columns))
	for _, p := range res.Columns {
		if _, seen := out[p.Name]; !seen {
			out[p.Name] = p.Stats
		}
	}
	return out
}

func TestCalculateStatistics_SingleNumericValue(t *testing.T) {
	stats := statsFor(t, "v,w\n5,a\n,b\n,c\n")

	ns, ok := stats["v"].(NumericStats)
	if !ok {
		t.Fatalf("v stats = %T, want NumericStats", stats["v"])
	}
	if ns.Min == nil || ns.Max == nil || ns.Mean == nil {
		t.Fatal("min/max/mean should be set")
	}
	if *ns.Min != 5 || *ns.Max != 5 || *ns.Mean != 5 {
		t.Errorf("min/max/mean = %v/%v/%v, want 5", *ns.Min, *ns.Max, *ns.Mean)
	}
	if ns.Std != nil {
		t.Errorf("std = %v, want nil for a single value", *ns.Std)
	}
	if ns.Missing != 2 {
		t.Errorf("missing = %d, want 2", ns.Missing)
	}
}

func TestCalculateStatistics_SampleStd(t *testing.T) {
	stats := statsFor(t, "v\n1\n2\n3\n4\n")

	ns := stats["v"].(NumericStats)
	if *ns.Mean != 2.5 {
		t.Errorf("mean = %v, want 2.5", *ns.Mean)
	}
	want := math.Sqrt(5.0 / 3.0)
	if ns.Std == nil || math.Abs(*ns.Std-want) > 1e-12 {
		t.Errorf("std = %v, want %v", ns.Std, want)
	}
}

func TestCalculateStatistics_AllMissingNumeric(t *testing.T) {
	stats := statsFor(t, "v,w\n,1\nNA,2\n")

	ns, ok := stats["v"].(NumericStats)
	if !ok {
		t.Fatalf("all-missing column should be numeric, got %T", stats["v"])
	}
	if ns.Min != nil || ns.Max != nil || ns.Mean != nil || ns.Std != nil {
		t.Errorf("all-missing stats = %+v, want nil values", ns)
	}
	if ns.Missing != 2 {
		t.Errorf("missing = %d, want 2", ns.Missing)
	}
}

func TestCalculateStatistics_NonFiniteIsNull(t *testing.T) {
	stats := statsFor(t, "v\ninf\n1\n")

	ns := stats["v"].(NumericStats)
	if ns.Min == nil || *ns.Min != 1 {
		t.Errorf("min = %v, want 1", ns.Min)
	}
	if ns.Max != nil || ns.Mean != nil || ns.Std != nil {
		t.Errorf("non-finite results should be nil: %+v", ns)
	}

	if _, err := json.Marshal(CalculateStatistics(mustParse(t, "v\ninf\n1\n"))); err != nil {
		t.Errorf("payload with infinity should marshal: %v", err)
	}
}

func TestCalculateStatistics_Text(t *testing.T) {
	stats := statsFor(t, "c\nx\ny\ny\nx\n\nNA\n")

	ts, ok := stats["c"].(TextStats)
	if !ok {
		t.Fatalf("c stats = %T, want TextStats", stats["c"])
	}
	if ts.UniqueValues != 2 {
		t.Errorf("unique = %d, want 2", ts.UniqueValues)
	}
	if ts.MostCommon == nil || *ts.MostCommon != "x" {
		t.Errorf("most_common = %v, want first-encountered x", ts.MostCommon)
	}
	if ts.Missing != 1 {
		t.Errorf("missing = %d, want 1", ts.Missing)
	}
}

func TestCalculateStatistics_MostCommonByCount(t *testing.T) {
	stats := statsFor(t, "c\na\nb\nb\nc\n")

	ts := stats["c"].(TextStats)
	if *ts.MostCommon != "b" {
		t.Errorf("most_common = %q, want b", *ts.MostCommon)
	}
	if ts.UniqueValues != 3 {
		t.Errorf("unique = %d, want 3", ts.UniqueValues)
	}
}

func TestStatisticsResult_MarshalJSON(t *testing.T) {
	res := CalculateStatistics(mustParse(t, "a,a,name\n1,x,bob\n,y,\n"))

	raw, err := json.Marshal(res)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var payload struct {
		Numeric map[string]map[string]any `json:"numeric_columns"`
		Text    map[string]map[string]any `json:"text_columns"`
		Total   int                       `json:"total_columns"`
	}
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if payload.Total != 3 {
		t.Errorf("total_columns = %d, want 3", payload.Total)
	}
	a, ok := payload.Numeric["a"]
	if !ok {
		t.Fatalf("first column named a should be numeric: %s", raw)
	}
	if a["std"] != nil {
		t.Errorf("std = %v, want null", a["std"])
	}
	if _, dup := payload.Text["a"]; dup {
		t.Error("second column named a must not be reported")
	}
	if payload.Text["name"]["most_common"] != "bob" {
		t.Errorf("name most_common = %v", payload.Text["name"]["most_common"])
	}
}

func TestStatisticsResult_UnmarshalOrdersColumns(t *testing.T) {
	in := []byte(`{"numeric_columns":{"z":{"min":1,"max":1,"mean":1,"std":null,"missing":0},"b":{"min":null,"max":null,"mean":null,"std":null,"missing":2}},"text_columns":{"a":{"unique_values":1,"most_common":"q","missing":0}},"total_columns":3}`)

	var res StatisticsResult
	if err := json.Unmarshal(in, &res); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	var names []string
	for _, p := range res.Columns {
		names = append(names, p.Name+":"+p.Stats.Kind().String())
	}
	want := []string{"b:numeric", "z:numeric", "a:text"}
	if len(names) != len(want) {
		t.Fatalf("columns = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("columns = %v, want %v", names, want)
			break
		}
	}
}
