package core

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// MissingResult is the payload of the missing-value check.
type MissingResult struct {
	TotalRows          int            `json:"total_rows"`
	TotalColumns       int            `json:"total_columns"`
	TotalCells         int            `json:"total_cells"`
	MissingCells       int            `json:"missing_cells"`
	MissingPercentage  float64        `json:"missing_percentage"`
	ColumnsWithMissing map[string]int `json:"columns_with_missing"`
}

// DuplicateResult is the payload of the duplicate-row check.
type DuplicateResult struct {
	TotalRows           int     `json:"total_rows"`
	DuplicateRows       int     `json:"duplicate_rows"`
	DuplicatePercentage float64 `json:"duplicate_percentage"`
}

// CheckMissingValues counts missing cells overall and per column. Columns
// without missing cells are omitted from ColumnsWithMissing.
func CheckMissingValues(t *Table) MissingResult {
	res := MissingResult{
		TotalRows:          t.NumRows(),
		TotalColumns:       t.NumColumns(),
		TotalCells:         t.NumRows() * t.NumColumns(),
		ColumnsWithMissing: make(map[string]int),
	}

	for c, col := range t.Columns {
		n := 0
		for _, row := range t.Rows {
			if row[c].Missing {
				n++
			}
		}
		res.MissingCells += n
		if n > 0 {
			// Repeated header names share one entry.
			res.ColumnsWithMissing[col.Name] += n
		}
	}

	res.MissingPercentage = percentage(res.MissingCells, res.TotalCells)
	return res
}

// CheckDuplicateRows counts rows that are value-identical to an earlier row.
// The first occurrence of a row is not counted.
func CheckDuplicateRows(t *Table) DuplicateResult {
	res := DuplicateResult{TotalRows: t.NumRows()}

	seen := make(map[string]struct{}, t.NumRows())
	var b strings.Builder
	for _, row := range t.Rows {
		b.Reset()
		for c, cell := range row {
			k := t.cellKey(c, cell)
			b.WriteString(strconv.Itoa(len(k)))
			b.WriteByte(':')
			b.WriteString(k)
		}
		key := b.String()
		if _, dup := seen[key]; dup {
			res.DuplicateRows++
			continue
		}
		seen[key] = struct{}{}
	}

	res.DuplicatePercentage = percentage(res.DuplicateRows, res.TotalRows)
	return res
}

// percentage returns part/total*100 rounded to two decimals, or 0 when total
// is zero.
func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return round2(float64(part) / float64(total) * 100)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// DecodePayload unmarshals a stored payload into MissingResult,
// DuplicateResult or StatisticsResult according to the check kind.
func (c CheckResult) DecodePayload() (any, error) {
	var (
		v   any
		err error
	)
	switch c.Kind {
	case CheckMissing:
		var m MissingResult
		err = json.Unmarshal(c.Payload, &m)
		v = m
	case CheckDuplicates:
		var d DuplicateResult
		err = json.Unmarshal(c.Payload, &d)
		v = d
	case CheckStatistics:
		var s StatisticsResult
		err = json.Unmarshal(c.Payload, &s)
		v = s
	default:
		return nil, fmt.Errorf("unknown check type %q", c.Kind)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s payload: %w", c.Kind, err)
	}
	return v, nil
}
