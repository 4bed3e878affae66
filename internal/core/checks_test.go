package core

import (
	"encoding/json"
	"testing"
)

const scenarioCSV = "name,value\na,1\nb,2\na,1\nb,\n"

func TestCheckMissingValues_Scenario(t *testing.T) {
	res := CheckMissingValues(mustParse(t, scenarioCSV))

	if res.TotalRows != 4 || res.TotalColumns != 2 || res.TotalCells != 8 {
		t.Errorf("shape = %d rows, %d cols, %d cells", res.TotalRows, res.TotalColumns, res.TotalCells)
	}
	if res.MissingCells != 1 {
		t.Errorf("MissingCells = %d, want 1", res.MissingCells)
	}
	if res.MissingPercentage != 12.5 {
		t.Errorf("MissingPercentage = %v, want 12.5", res.MissingPercentage)
	}
	if len(res.ColumnsWithMissing) != 1 || res.ColumnsWithMissing["value"] != 1 {
		t.Errorf("ColumnsWithMissing = %v, want map[value:1]", res.ColumnsWithMissing)
	}
}

func TestCheckDuplicateRows_Scenario(t *testing.T) {
	res := CheckDuplicateRows(mustParse(t, scenarioCSV))

	if res.TotalRows != 4 {
		t.Errorf("TotalRows = %d, want 4", res.TotalRows)
	}
	if res.DuplicateRows != 1 {
		t.Errorf("DuplicateRows = %d, want 1", res.DuplicateRows)
	}
	if res.DuplicatePercentage != 25.0 {
		t.Errorf("DuplicatePercentage = %v, want 25", res.DuplicatePercentage)
	}
}

func TestCheckDuplicateRows_ValueIdentity(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
	}{
		{"numeric compares by value", "x\n1\n1.0\n1e0\n", 2},
		{"negative zero equals zero", "x\n0\n-0\n", 1},
		{"text compares exactly", "x\nv\n1\n1.0\n", 0},
		{"text is case sensitive", "x\nA\na\n", 0},
		{"missing equals missing", "a,b\n,1\nNA,1\n", 1},
		{"missing differs from value", "a,b\nx,\nx,0\n", 0},
		{"missing differs from a marker-like value", "a,b\n\x00NA,x\n,x\n", 0},
		{"missing differs from a tag-like value", "a,b\nM,x\n,x\n", 0},
		{"every repeat counts", "a\nx\nx\nx\n", 2},
		{"cells do not bleed across columns", "a,b\nab,c\na,bc\n", 0},
		{"no rows", "a,b\n", 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckDuplicateRows(mustParse(t, tt.content)).DuplicateRows
			if got != tt.want {
				t.Errorf("DuplicateRows = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestCheckMissingValues_DuplicateColumnNamesSum(t *testing.T) {
	res := CheckMissingValues(mustParse(t, "a,a,b\n,,1\n1,,2\n"))

	if got := res.ColumnsWithMissing["a"]; got != 3 {
		t.Errorf("ColumnsWithMissing[a] = %d, want 3", got)
	}
	if _, ok := res.ColumnsWithMissing["b"]; ok {
		t.Error("column without missing values must be omitted")
	}
}

func TestCheckResults_HeaderOnly(t *testing.T) {
	table := mustParse(t, "a,b,c\n")

	m := CheckMissingValues(table)
	d := CheckDuplicateRows(table)

	if m.TotalRows != 0 || m.TotalCells != 0 || m.MissingPercentage != 0 {
		t.Errorf("missing = %+v, want zero rows and 0%%", m)
	}
	if d.DuplicateRows != 0 || d.DuplicatePercentage != 0 {
		t.Errorf("duplicates = %+v, want 0 and 0%%", d)
	}
}

// Properties that must hold for any table.
func TestCheckInvariants(t *testing.T) {
	inputs := []string{
		scenarioCSV,
		"a\n",
		"a,b,c\n,,\n,,\n",
		"a,b\n1,x\n2,y\n3,z\n",
		"id,v\n1,NA\n1,NA\n2,null\n3,\n",
		"x,y,z\n1\n1\n2,3\n",
	}

	for _, in := range inputs {
		table := mustParse(t, in)
		m := CheckMissingValues(table)
		d := CheckDuplicateRows(table)

		if m.TotalCells != m.TotalRows*m.TotalColumns {
			t.Errorf("%q: total_cells %d != %d x %d", in, m.TotalCells, m.TotalRows, m.TotalColumns)
		}
		if m.MissingCells > m.TotalCells {
			t.Errorf("%q: missing_cells %d > total_cells %d", in, m.MissingCells, m.TotalCells)
		}
		for _, p := range []float64{m.MissingPercentage, d.DuplicatePercentage} {
			if p < 0 || p > 100 {
				t.Errorf("%q: percentage %v out of range", in, p)
			}
		}
		for name, n := range m.ColumnsWithMissing {
			if n == 0 {
				t.Errorf("%q: column %q listed with zero missing", in, name)
			}
		}
		if got := IssuesCount(m, d); got != m.MissingCells+d.DuplicateRows {
			t.Errorf("%q: IssuesCount = %d", in, got)
		}
	}
}

func TestPercentage(t *testing.T) {
	tests := []struct {
		part, total int
		want        float64
	}{
		{0, 0, 0},
		{5, 0, 0},
		{1, 3, 33.33},
		{2, 3, 66.67},
		{1, 8, 12.5},
		{3, 3, 100},
	}
	for _, tt := range tests {
		if got := percentage(tt.part, tt.total); got != tt.want {
			t.Errorf("percentage(%d, %d) = %v, want %v", tt.part, tt.total, got, tt.want)
		}
	}
}

func TestMissingResult_JSONFields(t *testing.T) {
	raw, err := json.Marshal(CheckMissingValues(mustParse(t, scenarioCSV)))
	if err != nil {
		t.Fatal(err)
	}

	var fields map[string]any
	if err := json.Unmarshal(raw, &fields); err != nil {
		t.Fatal(err)
	}
	for _, key := range []string{"total_rows", "total_columns", "total_cells", "missing_cells", "missing_percentage", "columns_with_missing"} {
		if _, ok := fields[key]; !ok {
			t.Errorf("payload missing %q: %s", key, raw)
		}
	}
}

func TestDecodePayload(t *testing.T) {
	table := mustParse(t, scenarioCSV)
	inputs, err := checkInputs(CheckMissingValues(table), CheckDuplicateRows(table), CalculateStatistics(table))
	if err != nil {
		t.Fatalf("checkInputs: %v", err)
	}

	for _, in := range inputs {
		v, err := CheckResult{Kind: in.Kind, Payload: in.Payload}.DecodePayload()
		if err != nil {
			t.Fatalf("DecodePayload(%s): %v", in.Kind, err)
		}
		switch r := v.(type) {
		case MissingResult:
			if r.MissingCells != 1 {
				t.Errorf("decoded MissingCells = %d", r.MissingCells)
			}
		case DuplicateResult:
			if r.DuplicateRows != 1 {
				t.Errorf("decoded DuplicateRows = %d", r.DuplicateRows)
			}
		case StatisticsResult:
			if r.TotalColumns != 2 || len(r.Columns) != 2 {
				t.Errorf("decoded statistics = %+v", r)
			}
		default:
			t.Errorf("unexpected type %T", v)
		}
	}

	if _, err := (CheckResult{Kind: "bogus"}).DecodePayload(); err == nil {
		t.Error("unknown kind should fail")
	}
}
