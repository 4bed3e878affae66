package core

import (
	"fmt"
	"strconv"
	"strings"
)

// Recommendation lines used in report summaries.
const (
	recMissingHeader = "- Missing values detected. Consider:"
	recMissingFill   = "  - filling them with the column mean or mode"
	recMissingDrop   = "  - dropping rows with missing values (if there are few of them)"
	recDuplicates    = "- Duplicate rows detected. Removing them is recommended."
	recAllClear      = "- Data quality looks good. No significant issues found."
)

// IssuesCount is the number of issues reported for one run.
func IssuesCount(m MissingResult, d DuplicateResult) int {
	return m.MissingCells + d.DuplicateRows
}

// BuildSummary renders the human-readable report text for a dataset.
func BuildSummary(datasetName string, m MissingResult, d DuplicateResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Data quality report for %s\n\n", datasetName)

	b.WriteString("Overview:\n")
	fmt.Fprintf(&b, "- Rows: %d\n", m.TotalRows)
	fmt.Fprintf(&b, "- Columns: %d\n", m.TotalColumns)
	fmt.Fprintf(&b, "- Cells: %d\n\n", m.TotalCells)

	b.WriteString("Data quality issues:\n")
	fmt.Fprintf(&b, "- Missing values: %d (%s%%)\n", m.MissingCells, formatPercent(m.MissingPercentage))
	fmt.Fprintf(&b, "- Duplicate rows: %d (%s%%)\n\n", d.DuplicateRows, formatPercent(d.DuplicatePercentage))

	b.WriteString("Recommendations:\n")
	b.WriteString(strings.Join(Recommendations(m, d), "\n"))
	b.WriteString("\n")
	return b.String()
}

// Recommendations returns the guidance lines for a run: missing-value
// guidance, then duplicate guidance, and the all-clear line only when
// neither applies.
func Recommendations(m MissingResult, d DuplicateResult) []string {
	var recs []string
	if m.MissingCells > 0 {
		recs = append(recs, recMissingHeader, recMissingFill, recMissingDrop)
	}
	if d.DuplicateRows > 0 {
		recs = append(recs, recDuplicates)
	}
	if len(recs) == 0 {
		recs = append(recs, recAllClear)
	}
	return recs
}

func formatPercent(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
