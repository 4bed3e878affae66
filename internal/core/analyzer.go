package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// Analyzer runs the data-quality pipeline for a single dataset: load the CSV
// file, run the missing-value, duplicate-row and statistics checks, then
// persist the check results and the report.
//
// An Analyzer holds no shared state and is not safe for concurrent use.
// Callers must not run two analyses of the same dataset at once.
type Analyzer struct {
	dataset     Dataset
	store       ResultStore
	logger      *slog.Logger
	maxFileSize int64
}

// AnalyzerOption configures an Analyzer.
type AnalyzerOption func(*Analyzer)

// WithLogger sets the logger used for progress events.
func WithLogger(l *slog.Logger) AnalyzerOption {
	return func(a *Analyzer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithMaxFileSize rejects files larger than n bytes. Zero disables the limit.
func WithMaxFileSize(n int64) AnalyzerOption {
	return func(a *Analyzer) { a.maxFileSize = n }
}

// NewAnalyzer binds an Analyzer to a dataset and the store that receives
// its results.
func NewAnalyzer(ds Dataset, store ResultStore, opts ...AnalyzerOption) *Analyzer {
	a := &Analyzer{
		dataset: ds,
		store:   store,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = a.logger.With("dataset_id", ds.ID, "dataset", ds.Name)
	return a
}

// Outcome is everything produced by a successful analysis.
type Outcome struct {
	DatasetID     string
	Encoding      string
	Missing       MissingResult
	Duplicates    DuplicateResult
	Statistics    StatisticsResult
	Checks        []CheckResult
	Report        Report
	ReportCreated bool
	Duration      time.Duration
}

// IssuesCount returns missing cells plus duplicate rows for this run.
func (o *Outcome) IssuesCount() int {
	return IssuesCount(o.Missing, o.Duplicates)
}

// Analyze runs the pipeline. A nil error means the dataset's checks were
// replaced and its report upserted together. On failure the error is a
// *LoadError, *AnalysisError or *PersistenceError, and nothing from this run
// is stored.
func (a *Analyzer) Analyze(ctx context.Context) (*Outcome, error) {
	start := time.Now()

	a.logger.Info("analysis started", "phase", PhaseLoading, "path", a.dataset.FilePath)
	table, enc, err := LoadTable(a.dataset.FilePath, a.maxFileSize)
	if err != nil {
		return nil, a.fail(PhaseLoading, err)
	}
	if table.NumColumns() == 0 {
		return nil, a.fail(PhaseLoading, &AnalysisError{Reason: "table has no columns"})
	}
	a.logger.Info("file loaded",
		"phase", PhaseLoading,
		"encoding", enc,
		"rows", table.NumRows(),
		"columns", table.NumColumns(),
	)

	a.logger.Debug("running checks", "phase", PhaseChecking)
	missing := CheckMissingValues(table)
	duplicates := CheckDuplicateRows(table)
	stats := CalculateStatistics(table)

	inputs, err := checkInputs(missing, duplicates, stats)
	if err != nil {
		return nil, a.fail(PhaseChecking, err)
	}

	if a.store == nil {
		return nil, a.fail(PhasePersisting, &PersistenceError{Op: "save results", Err: errors.New("no result store configured")})
	}

	issues := IssuesCount(missing, duplicates)
	a.logger.Debug("persisting results", "phase", PhasePersisting)
	saved, err := a.store.SaveResults(ctx, a.dataset.ID, ResultSet{
		Checks:      inputs,
		Summary:     BuildSummary(a.dataset.Name, missing, duplicates),
		IssuesCount: issues,
	})
	if err != nil {
		return nil, a.fail(PhasePersisting, &PersistenceError{Op: "save results", Err: err})
	}
	created := saved.ReportCreated

	out := &Outcome{
		DatasetID:     a.dataset.ID,
		Encoding:      enc,
		Missing:       missing,
		Duplicates:    duplicates,
		Statistics:    stats,
		Checks:        saved.Checks,
		Report:        saved.Report,
		ReportCreated: created,
		Duration:      time.Since(start),
	}

	a.logger.Info("analysis complete",
		"phase", PhaseComplete,
		"missing_cells", missing.MissingCells,
		"duplicate_rows", duplicates.DuplicateRows,
		"issues_count", issues,
		"report_created", created,
		"duration_ms", out.Duration.Milliseconds(),
	)
	return out, nil
}

func (a *Analyzer) fail(phase AnalysisPhase, err error) error {
	a.logger.Error("analysis failed", "phase", PhaseFailed, "failed_phase", phase, "error", err)
	return err
}

// checkInputs encodes the three payloads in persistence order.
func checkInputs(m MissingResult, d DuplicateResult, s StatisticsResult) ([]CheckInput, error) {
	payloads := []struct {
		kind CheckKind
		v    any
	}{
		{CheckMissing, m},
		{CheckDuplicates, d},
		{CheckStatistics, s},
	}

	inputs := make([]CheckInput, 0, len(payloads))
	for _, p := range payloads {
		raw, err := json.Marshal(p.v)
		if err != nil {
			return nil, &AnalysisError{Reason: fmt.Sprintf("encode %s payload: %v", p.kind, err)}
		}
		inputs = append(inputs, CheckInput{Kind: p.kind, Payload: raw})
	}
	return inputs, nil
}
