package core

import (
	"math"
	"strconv"
	"strings"
)

// ColumnKind is the inferred type of a column.
type ColumnKind int

const (
	KindNumeric ColumnKind = iota
	KindText
)

func (k ColumnKind) String() string {
	if k == KindNumeric {
		return "numeric"
	}
	return "text"
}

// Column describes one column of a loaded table.
type Column struct {
	Name string
	Kind ColumnKind
}

// Cell is a single table value. Missing cells keep their raw text in Value
// (empty or an NA marker) but must not be treated as data.
type Cell struct {
	Value   string
	Missing bool
}

// Table is the in-memory tabular form of a CSV file. It lives only for the
// duration of one analysis.
type Table struct {
	Columns []Column
	Rows    [][]Cell
}

// NumRows returns the number of data rows.
func (t *Table) NumRows() int { return len(t.Rows) }

// NumColumns returns the number of columns.
func (t *Table) NumColumns() int { return len(t.Columns) }

// naMarkers are the strings read as missing, in addition to the empty string.
var naMarkers = map[string]struct{}{
	"#N/A": {}, "#N/A N/A": {}, "#NA": {}, "-1.#IND": {}, "-1.#QNAN": {},
	"-NaN": {}, "-nan": {}, "1.#IND": {}, "1.#QNAN": {}, "<NA>": {},
	"N/A": {}, "NA": {}, "NULL": {}, "NaN": {}, "None": {}, "n/a": {},
	"nan": {}, "null": {},
}

// IsMissingValue reports whether a raw CSV field denotes a missing value.
func IsMissingValue(s string) bool {
	if s == "" {
		return true
	}
	_, ok := naMarkers[s]
	return ok
}

// ParseNumber parses a cell as a number. Surrounding spaces are ignored.
// Only plain decimal and scientific notation plus inf/infinity are accepted;
// hex, underscores, thousands separators and currency symbols are not.
func ParseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if !isNumberLiteral(s) {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		// Out-of-range literals still parse to ±Inf.
		if ne, ok := err.(*strconv.NumError); ok && ne.Err == strconv.ErrRange {
			return f, true
		}
		return 0, false
	}
	return f, true
}

func isNumberLiteral(s string) bool {
	i := 0
	if i < len(s) && (s[i] == '+' || s[i] == '-') {
		i++
	}
	switch strings.ToLower(s[i:]) {
	case "inf", "infinity":
		return true
	}

	digits := 0
	for i < len(s) && isDigit(s[i]) {
		i++
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for i < len(s) && isDigit(s[i]) {
			i++
			digits++
		}
	}
	if digits == 0 {
		return false
	}

	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for i < len(s) && isDigit(s[i]) {
			i++
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// inferKinds classifies every column: numeric when all non-missing values
// parse as numbers (vacuously true for all-missing columns), text otherwise.
func (t *Table) inferKinds() {
	for c := range t.Columns {
		kind := KindNumeric
		for _, row := range t.Rows {
			cell := row[c]
			if cell.Missing {
				continue
			}
			if _, ok := ParseNumber(cell.Value); !ok {
				kind = KindText
				break
			}
		}
		t.Columns[c].Kind = kind
	}
}

// cellKey returns the value identity of a cell for duplicate detection.
// Every key starts with a tag byte: M for missing, N for a parsed number and
// V for raw text, so no cell value can collide with another kind's key.
// Numeric cells compare by parsed value so "1" and "1.0" are equal.
func (t *Table) cellKey(col int, cell Cell) string {
	if cell.Missing {
		return "M"
	}
	if t.Columns[col].Kind == KindNumeric {
		f, _ := ParseNumber(cell.Value)
		if f == 0 {
			f = 0 // fold -0 into 0
		}
		return "N" + strconv.FormatUint(math.Float64bits(f), 16)
	}
	return "V" + cell.Value
}
