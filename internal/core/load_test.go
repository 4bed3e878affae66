package core

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/text/encoding/charmap"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "data.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}
	return path
}

func mustParse(t *testing.T, content string) *Table {
	t.Helper()
	table, err := parseTable(strings.NewReader(content))
	if err != nil {
		t.Fatalf("parseTable: %v", err)
	}
	return table
}

// ============================================================================
// LoadTable Tests
// ============================================================================

func TestLoadTable_UTF8(t *testing.T) {
	path := writeCSV(t, "name,age\nAnn,30\nBob,\n")

	table, enc, err := LoadTable(path, 0)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if enc != EncodingUTF8 {
		t.Errorf("encoding = %q, want %q", enc, EncodingUTF8)
	}
	if table.NumRows() != 2 || table.NumColumns() != 2 {
		t.Fatalf("shape = %dx%d, want 2x2", table.NumRows(), table.NumColumns())
	}
	if table.Columns[0].Kind != KindText || table.Columns[1].Kind != KindNumeric {
		t.Errorf("kinds = %v,%v, want text,numeric", table.Columns[0].Kind, table.Columns[1].Kind)
	}
	if !table.Rows[1][1].Missing {
		t.Error("empty age for Bob should be missing")
	}
}

func TestLoadTable_StripsBOM(t *testing.T) {
	path := writeCSV(t, "\xEF\xBB\xBFid,v\n1,2\n")

	table, _, err := LoadTable(path, 0)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if got := table.Columns[0].Name; got != "id" {
		t.Errorf("first column = %q, want id", got)
	}
}

func TestLoadTable_Windows1251Fallback(t *testing.T) {
	encoded, err := charmap.Windows1251.NewEncoder().String("имя,город\nИван,Москва\nОльга,\n")
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	path := writeCSV(t, encoded)

	table, enc, err := LoadTable(path, 0)
	if err != nil {
		t.Fatalf("LoadTable: %v", err)
	}
	if enc != EncodingWindows1251 {
		t.Errorf("encoding = %q, want %q", enc, EncodingWindows1251)
	}
	if got := table.Columns[0].Name; got != "имя" {
		t.Errorf("header = %q, want имя", got)
	}
	if got := table.Rows[0][1].Value; got != "Москва" {
		t.Errorf("cell = %q, want Москва", got)
	}
	if !table.Rows[1][1].Missing {
		t.Error("empty city should be missing")
	}
}

func TestLoadTable_UndecodableBytes(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"undefined byte in a cell", "a,b\n\x98x,1\n"},
		{"binary blob", "\x1f\x8b\x08\x00\x98\xff\x00\x00\x03"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, tt.content)
			_, enc, err := LoadTable(path, 0)

			var le *LoadError
			if !errors.As(err, &le) {
				t.Fatalf("expected *LoadError, got %v", err)
			}
			if le.Path != path || le.Encoding != EncodingWindows1251 {
				t.Errorf("LoadError = %+v", le)
			}
			if enc != EncodingWindows1251 {
				t.Errorf("encoding = %q, want %q", enc, EncodingWindows1251)
			}
			if !strings.Contains(err.Error(), "encoding error") {
				t.Errorf("error %q does not mention the encoding", err)
			}
			if got := MapError(err).Code; got != "FILE003" {
				t.Errorf("MapError code = %q, want FILE003", got)
			}
		})
	}
}

func TestLoadTable_Errors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		maxSize int64
		wantIs  error
		wantMsg string
	}{
		{
			name:    "row longer than header",
			content: "a,b\n1,2\n1,2,3\n",
			wantIs:  ErrLoad,
			wantMsg: "line 3: expected 2 fields, saw 3",
		},
		{
			name:    "empty file",
			content: "",
			wantIs:  ErrAnalysis,
			wantMsg: "no header row",
		},
		{
			name:    "only blank lines",
			content: "\n\n\n",
			wantIs:  ErrAnalysis,
			wantMsg: "no header row",
		},
		{
			name:    "file too large",
			content: "a,b\n1,2\n",
			maxSize: 4,
			wantIs:  ErrLoad,
			wantMsg: "file too large",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := writeCSV(t, tt.content)
			_, _, err := LoadTable(path, tt.maxSize)
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, tt.wantIs) {
				t.Errorf("error %v is not %v", err, tt.wantIs)
			}
			if !strings.Contains(err.Error(), tt.wantMsg) {
				t.Errorf("error %q does not contain %q", err.Error(), tt.wantMsg)
			}
		})
	}
}

func TestLoadTable_MissingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nope.csv")

	_, _, err := LoadTable(path, 0)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if le.Path != path {
		t.Errorf("Path = %q, want %q", le.Path, path)
	}
	if !errors.Is(err, os.ErrNotExist) {
		t.Error("missing file error should wrap os.ErrNotExist")
	}
	if got := MapError(err).Code; got != "FILE002" {
		t.Errorf("MapError code = %q, want FILE002", got)
	}
}

func TestLoadTable_Directory(t *testing.T) {
	_, _, err := LoadTable(t.TempDir(), 0)
	if !errors.Is(err, ErrLoad) {
		t.Fatalf("expected load error, got %v", err)
	}
}

func TestLoadTable_LongRowKeepsPath(t *testing.T) {
	path := writeCSV(t, "a\n1,2\n")

	_, _, err := LoadTable(path, 0)
	var le *LoadError
	if !errors.As(err, &le) {
		t.Fatalf("expected *LoadError, got %T", err)
	}
	if le.Path != path || le.Encoding != EncodingUTF8 {
		t.Errorf("LoadError = %+v", le)
	}
}

// ============================================================================
// parseTable Tests
// ============================================================================

func TestParseTable_Shapes(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantRows int
		wantCols int
	}{
		{"header only", "a,b,c\n", 0, 3},
		{"header without newline", "a,b", 0, 2},
		{"blank lines skipped", "a,b\n\n1,2\n\n3,4\n", 2, 2},
		{"crlf line endings", "a,b\r\n1,2\r\n", 1, 2},
		{"quoted comma", "a,b\n\"x,y\",2\n", 1, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			table := mustParse(t, tt.content)
			if table.NumRows() != tt.wantRows || table.NumColumns() != tt.wantCols {
				t.Errorf("shape = %dx%d, want %dx%d",
					table.NumRows(), table.NumColumns(), tt.wantRows, tt.wantCols)
			}
		})
	}
}

func TestParseTable_ShortRowsPadded(t *testing.T) {
	table := mustParse(t, "a,b,c\n1\n")

	row := table.Rows[0]
	if row[0].Missing {
		t.Error("first cell should be present")
	}
	if !row[1].Missing || !row[2].Missing {
		t.Error("padded cells should be missing")
	}
}

func TestParseTable_DuplicateHeaderNamesKept(t *testing.T) {
	table := mustParse(t, "x,x,y\n1,2,3\n")

	names := []string{table.Columns[0].Name, table.Columns[1].Name, table.Columns[2].Name}
	if strings.Join(names, ",") != "x,x,y" {
		t.Errorf("columns = %v, want [x x y]", names)
	}
}

func TestIsMissingValue(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"", true},
		{"NA", true},
		{"N/A", true},
		{"null", true},
		{"NULL", true},
		{"NaN", true},
		{"nan", true},
		{"None", true},
		{"<NA>", true},
		{"#N/A", true},
		{"-", false},
		{" ", false},
		{"none", false},
		{"0", false},
		{"Na", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := IsMissingValue(tt.in); got != tt.want {
				t.Errorf("IsMissingValue(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"1", 1, true},
		{"-2.5", -2.5, true},
		{"+3", 3, true},
		{".5", 0.5, true},
		{"5.", 5, true},
		{"1e3", 1000, true},
		{"1E-2", 0.01, true},
		{"  42  ", 42, true},
		{"007", 7, true},
		{"", 0, false},
		{"-", 0, false},
		{".", 0, false},
		{"1e", 0, false},
		{"0x1F", 0, false},
		{"1,000", 0, false},
		{"1_000", 0, false},
		{"$5", 0, false},
		{"true", 0, false},
		{"abc", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := ParseNumber(tt.in)
			if ok != tt.wantOK {
				t.Fatalf("ParseNumber(%q) ok = %v, want %v", tt.in, ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("ParseNumber(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestParseNumber_Infinity(t *testing.T) {
	for _, in := range []string{"inf", "-Inf", "Infinity", "1e999"} {
		f, ok := ParseNumber(in)
		if !ok {
			t.Errorf("ParseNumber(%q) should be numeric", in)
		}
		if f == 0 {
			t.Errorf("ParseNumber(%q) = 0, want infinity", in)
		}
	}
}

func TestInferKinds(t *testing.T) {
	table := mustParse(t, "num,txt,empty,bool,mixed\n1,a,,true,1\n2.5,b,NA,false,x\n")

	want := []ColumnKind{KindNumeric, KindText, KindNumeric, KindText, KindText}
	for i, k := range want {
		if got := table.Columns[i].Kind; got != k {
			t.Errorf("column %s kind = %v, want %v", table.Columns[i].Name, got, k)
		}
	}
}
