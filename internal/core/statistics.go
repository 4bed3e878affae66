package core

import (
	"encoding/json"
	"math"
	"sort"
)

// ColumnStats is the per-column statistics variant: either NumericStats or
// TextStats. Consumers switch on the concrete type.
type ColumnStats interface {
	Kind() ColumnKind
	MissingCount() int
}

// NumericStats summarizes a numeric column. Min, Max, Mean and Std are nil
// when they cannot be computed: no non-missing values, a non-finite result,
// or (for Std) fewer than two values.
type NumericStats struct {
	Min     *float64 `json:"min"`
	Max     *float64 `json:"max"`
	Mean    *float64 `json:"mean"`
	Std     *float64 `json:"std"`
	Missing int      `json:"missing"`
}

func (NumericStats) Kind() ColumnKind { return KindNumeric }
func (s NumericStats) MissingCount() int { return s.Missing }

// TextStats summarizes a text column. MostCommon is the first-encountered
// value among the most frequent ones, nil when the column has no values.
type TextStats struct {
	UniqueValues int     `json:"unique_values"`
	MostCommon   *string `json:"most_common"`
	Missing      int     `json:"missing"`
}

func (TextStats) Kind() ColumnKind { return KindText }
func (s TextStats) MissingCount() int { return s.Missing }

// ColumnProfile pairs a column name with its statistics.
type ColumnProfile struct {
	Name  string
	Stats ColumnStats
}

// StatisticsResult is the payload of the statistics check. Columns keep the
// file header order.
type StatisticsResult struct {
	Columns      []ColumnProfile
	TotalColumns int
}

type statisticsJSON struct {
	NumericColumns map[string]NumericStats `json:"numeric_columns"`
	TextColumns    map[string]TextStats    `json:"text_columns"`
	TotalColumns   int                     `json:"total_columns"`
}

// MarshalJSON writes numeric_columns and text_columns keyed by column name.
// When a header name repeats, the first column with that name is kept.
func (r StatisticsResult) MarshalJSON() ([]byte, error) {
	out := statisticsJSON{
		NumericColumns: make(map[string]NumericStats),
		TextColumns:    make(map[string]TextStats),
		TotalColumns:   r.TotalColumns,
	}
	seen := make(map[string]bool, len(r.Columns))
	for _, p := range r.Columns {
		if seen[p.Name] {
			continue
		}
		seen[p.Name] = true
		switch s := p.Stats.(type) {
		case NumericStats:
			out.NumericColumns[p.Name] = s
		case TextStats:
			out.TextColumns[p.Name] = s
		}
	}
	return json.Marshal(out)
}

// UnmarshalJSON restores a stored payload. Column order is not persisted, so
// numeric columns come first, each group sorted by name.
func (r *StatisticsResult) UnmarshalJSON(data []byte) error {
	var in statisticsJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	r.TotalColumns = in.TotalColumns
	r.Columns = r.Columns[:0]
	for _, name := range sortedKeys(in.NumericColumns) {
		r.Columns = append(r.Columns, ColumnProfile{Name: name, Stats: in.NumericColumns[name]})
	}
	for _, name := range sortedKeys(in.TextColumns) {
		r.Columns = append(r.Columns, ColumnProfile{Name: name, Stats: in.TextColumns[name]})
	}
	return nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// CalculateStatistics profiles every column according to its inferred kind.
func CalculateStatistics(t *Table) StatisticsResult {
	res := StatisticsResult{
		Columns:      make([]ColumnProfile, 0, t.NumColumns()),
		TotalColumns: t.NumColumns(),
	}
	for c, col := range t.Columns {
		var stats ColumnStats
		switch col.Kind {
		case KindNumeric:
			stats = numericStats(t, c)
		default:
			stats = textStats(t, c)
		}
		res.Columns = append(res.Columns, ColumnProfile{Name: col.Name, Stats: stats})
	}
	return res
}

func numericStats(t *Table, c int) NumericStats {
	var s NumericStats
	values := make([]float64, 0, t.NumRows())
	for _, row := range t.Rows {
		if row[c].Missing {
			s.Missing++
			continue
		}
		if f, ok := ParseNumber(row[c].Value); ok {
			values = append(values, f)
		}
	}
	if len(values) == 0 {
		return s
	}

	minV, maxV, sum := values[0], values[0], 0.0
	for _, v := range values {
		minV = math.Min(minV, v)
		maxV = math.Max(maxV, v)
		sum += v
	}
	mean := sum / float64(len(values))

	s.Min = finite(minV)
	s.Max = finite(maxV)
	s.Mean = finite(mean)

	if len(values) > 1 {
		var sq float64
		for _, v := range values {
			d := v - mean
			sq += d * d
		}
		s.Std = finite(math.Sqrt(sq / float64(len(values)-1)))
	}
	return s
}

func textStats(t *Table, c int) TextStats {
	var s TextStats
	counts := make(map[string]int)
	var order []string
	for _, row := range t.Rows {
		cell := row[c]
		if cell.Missing {
			s.Missing++
			continue
		}
		if counts[cell.Value] == 0 {
			order = append(order, cell.Value)
		}
		counts[cell.Value]++
	}

	s.UniqueValues = len(order)
	best := 0
	for _, v := range order {
		if counts[v] > best {
			best = counts[v]
			mc := v
			s.MostCommon = &mc
		}
	}
	return s
}

// finite returns a pointer to v, or nil when v is NaN or infinite.
func finite(v float64) *float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil
	}
	return &v
}
