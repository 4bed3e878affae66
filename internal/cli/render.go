package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strconv"
	"time"

	"github.com/JonMunkholm/csvquality/internal/core"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"gopkg.in/yaml.v3"
)

// Output formats.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

var outputFormats = []string{formatTable, formatJSON, formatYAML}

// renderer writes command results as go-pretty tables, JSON or YAML.
type renderer struct {
	w      io.Writer
	format string
}

func newRenderer(w io.Writer, format string) (*renderer, error) {
	switch format {
	case formatTable, formatJSON, formatYAML:
		return &renderer{w: w, format: format}, nil
	case "":
		return &renderer{w: w, format: formatTable}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want table, json or yaml)", format)
	}
}

// structured encodes v when the format is json or yaml and reports whether
// it did.
func (r *renderer) structured(v any) (bool, error) {
	switch r.format {
	case formatJSON:
		enc := json.NewEncoder(r.w)
		enc.SetIndent("", "  ")
		return true, enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(r.w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return true, err
		}
		return true, enc.Close()
	}
	return false, nil
}

func (r *renderer) newTable(title string) table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(r.w)
	t.SetStyle(table.StyleLight)
	if title != "" {
		t.SetTitle("%s", title)
	}
	return t
}

// Views shared by the json and yaml encoders.

type datasetView struct {
	ID         string    `json:"id" yaml:"id"`
	Name       string    `json:"name" yaml:"name"`
	Status     string    `json:"status" yaml:"status"`
	FilePath   string    `json:"file_path" yaml:"file_path"`
	UploadedAt time.Time `json:"uploaded_at" yaml:"uploaded_at"`
}

type checkView struct {
	Type      string    `json:"check_type" yaml:"check_type"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`
	Result    any       `json:"result" yaml:"result"`
}

type reportView struct {
	ID          string    `json:"id" yaml:"id"`
	Summary     string    `json:"summary" yaml:"summary"`
	IssuesCount int       `json:"issues_count" yaml:"issues_count"`
	GeneratedAt time.Time `json:"generated_at" yaml:"generated_at"`
}

type datasetReportView struct {
	Dataset datasetView `json:"dataset" yaml:"dataset"`
	Report  reportView  `json:"report" yaml:"report"`
	Checks  []checkView `json:"checks,omitempty" yaml:"checks,omitempty"`
}

type analysisView struct {
	DatasetID     string      `json:"dataset_id" yaml:"dataset_id"`
	Name          string      `json:"name" yaml:"name"`
	Status        string      `json:"status" yaml:"status"`
	Encoding      string      `json:"encoding,omitempty" yaml:"encoding,omitempty"`
	IssuesCount   int         `json:"issues_count" yaml:"issues_count"`
	ReportCreated bool        `json:"report_created" yaml:"report_created"`
	DurationMS    int64       `json:"duration_ms" yaml:"duration_ms"`
	Error         string      `json:"error,omitempty" yaml:"error,omitempty"`
	Checks        []checkView `json:"checks,omitempty" yaml:"checks,omitempty"`
}

func toDatasetView(ds core.Dataset) datasetView {
	return datasetView{
		ID:         ds.ID,
		Name:       ds.Name,
		Status:     string(ds.Status),
		FilePath:   ds.FilePath,
		UploadedAt: ds.UploadedAt,
	}
}

func toReportView(r core.Report) reportView {
	return reportView{
		ID:          r.ID,
		Summary:     r.Summary,
		IssuesCount: r.IssuesCount,
		GeneratedAt: r.GeneratedAt,
	}
}

// toCheckViews decodes stored payloads into generic values so yaml output
// mirrors the JSON payload keys.
func toCheckViews(checks []core.CheckResult) ([]checkView, error) {
	out := make([]checkView, 0, len(checks))
	for _, c := range checks {
		var result any
		if err := json.Unmarshal(c.Payload, &result); err != nil {
			return nil, fmt.Errorf("decode %s payload: %w", c.Kind, err)
		}
		out = append(out, checkView{Type: string(c.Kind), CreatedAt: c.CreatedAt, Result: result})
	}
	return out, nil
}

// datasets

func (r *renderer) datasets(list []core.Dataset) error {
	views := make([]datasetView, 0, len(list))
	for _, ds := range list {
		views = append(views, toDatasetView(ds))
	}
	if ok, err := r.structured(views); ok {
		return err
	}

	if len(list) == 0 {
		_, _ = fmt.Fprintln(r.w, "(0 datasets)")
		return nil
	}

	t := r.newTable("")
	t.AppendHeader(table.Row{"ID", "Name", "Status", "Uploaded"})
	for _, ds := range list {
		t.AppendRow(table.Row{ds.ID, ds.Name, ds.Status, ds.UploadedAt.Local().Format(time.DateTime)})
	}
	t.Render()
	_, _ = fmt.Fprintf(r.w, "(%d datasets)\n", len(list))
	return nil
}

func (r *renderer) dataset(ds core.Dataset) error {
	if ok, err := r.structured(toDatasetView(ds)); ok {
		return err
	}

	t := r.newTable("Dataset")
	t.AppendRows([]table.Row{
		{"ID", ds.ID},
		{"Name", ds.Name},
		{"Status", ds.Status},
		{"File", ds.FilePath},
		{"Uploaded", ds.UploadedAt.Local().Format(time.DateTime)},
	})
	t.Render()
	return nil
}

// report

func (r *renderer) report(ds core.Dataset, rep core.Report, checks []core.CheckResult) error {
	views, err := toCheckViews(checks)
	if err != nil {
		return err
	}
	if ok, err := r.structured(datasetReportView{
		Dataset: toDatasetView(ds),
		Report:  toReportView(rep),
		Checks:  views,
	}); ok {
		return err
	}

	_, _ = fmt.Fprint(r.w, rep.Summary)
	_, _ = fmt.Fprintf(r.w, "\nIssues: %d (generated %s)\n", rep.IssuesCount, rep.GeneratedAt.Local().Format(time.DateTime))
	return r.checkTables(checks)
}

// checkTables prints one table per stored check.
func (r *renderer) checkTables(checks []core.CheckResult) error {
	for _, c := range checks {
		payload, err := c.DecodePayload()
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(r.w)
		switch p := payload.(type) {
		case core.MissingResult:
			r.missingTable(p)
		case core.DuplicateResult:
			r.duplicateTable(p)
		case core.StatisticsResult:
			r.statisticsTable(p)
		}
	}
	return nil
}

func (r *renderer) missingTable(m core.MissingResult) {
	t := r.newTable(core.CheckMissing.Label())
	t.AppendHeader(table.Row{"Column", "Missing"})

	names := make([]string, 0, len(m.ColumnsWithMissing))
	for name := range m.ColumnsWithMissing {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		t.AppendRow(table.Row{name, m.ColumnsWithMissing[name]})
	}
	t.AppendFooter(table.Row{"Total", fmt.Sprintf("%d of %d cells (%s%%)",
		m.MissingCells, m.TotalCells, formatFloat(m.MissingPercentage))})
	t.SetColumnConfigs([]table.ColumnConfig{{Number: 2, Align: text.AlignRight}})
	t.Style().Format.Footer = text.FormatDefault
	t.Render()
}

func (r *renderer) duplicateTable(d core.DuplicateResult) {
	t := r.newTable(core.CheckDuplicates.Label())
	t.AppendHeader(table.Row{"Rows", "Duplicates", "Percentage"})
	t.AppendRow(table.Row{d.TotalRows, d.DuplicateRows, formatFloat(d.DuplicatePercentage) + "%"})
	t.Render()
}

func (r *renderer) statisticsTable(s core.StatisticsResult) {
	t := r.newTable(core.CheckStatistics.Label())
	t.AppendHeader(table.Row{"Column", "Type", "Min", "Max", "Mean", "Std", "Unique", "Most common", "Missing"})
	for _, col := range s.Columns {
		switch st := col.Stats.(type) {
		case core.NumericStats:
			t.AppendRow(table.Row{col.Name, st.Kind(), optFloat(st.Min), optFloat(st.Max), optFloat(st.Mean), optFloat(st.Std), "", "", st.Missing})
		case core.TextStats:
			mc := "-"
			if st.MostCommon != nil {
				mc = text.Trim(*st.MostCommon, 40)
			}
			t.AppendRow(table.Row{col.Name, st.Kind(), "", "", "", "", st.UniqueValues, mc, st.Missing})
		}
	}
	t.Render()
}

// analysis

func (r *renderer) analyses(results []analysisResult) error {
	views := make([]analysisView, 0, len(results))
	for _, res := range results {
		v := analysisView{
			DatasetID: res.dataset.ID,
			Name:      res.dataset.Name,
			Status:    res.status,
		}
		if res.err != nil {
			v.Error = errorMessage(res.err)
		} else {
			checks, err := toCheckViews(res.outcome.Checks)
			if err != nil {
				return err
			}
			v.Encoding = res.outcome.Encoding
			v.IssuesCount = res.outcome.IssuesCount()
			v.ReportCreated = res.outcome.ReportCreated
			v.DurationMS = res.outcome.Duration.Milliseconds()
			v.Checks = checks
		}
		views = append(views, v)
	}
	if ok, err := r.structured(views); ok {
		return err
	}

	t := r.newTable("")
	t.AppendHeader(table.Row{"Dataset", "Name", "Status", "Missing", "Duplicates", "Issues", "Duration"})
	for _, res := range results {
		if res.err != nil {
			t.AppendRow(table.Row{res.dataset.ID, res.dataset.Name, res.status, "", "", "", errorMessage(res.err)})
			continue
		}
		o := res.outcome
		t.AppendRow(table.Row{
			res.dataset.ID,
			res.dataset.Name,
			res.status,
			fmt.Sprintf("%d (%s%%)", o.Missing.MissingCells, formatFloat(o.Missing.MissingPercentage)),
			fmt.Sprintf("%d (%s%%)", o.Duplicates.DuplicateRows, formatFloat(o.Duplicates.DuplicatePercentage)),
			o.IssuesCount(),
			o.Duration.Round(time.Millisecond),
		})
	}
	t.Render()
	return nil
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func optFloat(v *float64) string {
	if v == nil {
		return "-"
	}
	return strconv.FormatFloat(*v, 'g', 6, 64)
}
