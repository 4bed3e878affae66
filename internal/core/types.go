package core

import (
	"context"
	"encoding/json"
	"time"
)

// DatasetStatus is the processing state of an uploaded dataset.
type DatasetStatus string

const (
	StatusUploaded   DatasetStatus = "uploaded"
	StatusProcessing DatasetStatus = "processing"
	StatusCompleted  DatasetStatus = "completed"
	StatusFailed     DatasetStatus = "failed"
)

// Valid reports whether s is one of the known statuses.
func (s DatasetStatus) Valid() bool {
	switch s {
	case StatusUploaded, StatusProcessing, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Dataset is a caller-owned record identifying one uploaded CSV file.
type Dataset struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	FilePath   string        `json:"file_path"`
	Status     DatasetStatus `json:"status"`
	UploadedAt time.Time     `json:"uploaded_at"`
}

// CheckKind identifies one of the quality checks.
type CheckKind string

const (
	CheckMissing    CheckKind = "missing"
	CheckDuplicates CheckKind = "duplicates"
	CheckStatistics CheckKind = "statistics"
)

// Label returns a display name for the check kind.
func (k CheckKind) Label() string {
	switch k {
	case CheckMissing:
		return "Missing values"
	case CheckDuplicates:
		return "Duplicate rows"
	case CheckStatistics:
		return "Statistics"
	default:
		return string(k)
	}
}

// CheckInput is one check payload handed to the store for persistence.
type CheckInput struct {
	Kind    CheckKind
	Payload json.RawMessage
}

// CheckResult is a persisted fact-set produced by a single check.
type CheckResult struct {
	ID        string          `json:"id"`
	DatasetID string          `json:"dataset_id"`
	Kind      CheckKind       `json:"check_type"`
	Payload   json.RawMessage `json:"result_json"`
	CreatedAt time.Time       `json:"created_at"`
}

// Report is the persisted human-readable summary for a dataset.
type Report struct {
	ID          string    `json:"id"`
	DatasetID   string    `json:"dataset_id"`
	Summary     string    `json:"summary"`
	IssuesCount int       `json:"issues_count"`
	GeneratedAt time.Time `json:"generated_at"`
}

// ResultSet is everything one analysis run persists for a dataset.
type ResultSet struct {
	Checks      []CheckInput
	Summary     string
	IssuesCount int
}

// SavedResults is what SaveResults committed.
type SavedResults struct {
	Checks        []CheckResult
	Report        Report
	ReportCreated bool
}

// ResultStore persists analysis output for a dataset.
//
// SaveResults deletes every existing check of the dataset, inserts the new
// ones and creates or overwrites the dataset's single report, all in one
// transaction. On error the previous checks and report stay in place.
type ResultStore interface {
	SaveResults(ctx context.Context, datasetID string, rs ResultSet) (SavedResults, error)
}

// DatasetStore manages dataset records and read access to their results.
type DatasetStore interface {
	CreateDataset(ctx context.Context, ds Dataset) (Dataset, error)
	GetDataset(ctx context.Context, id string) (Dataset, error)
	ListDatasets(ctx context.Context) ([]Dataset, error)
	SetDatasetStatus(ctx context.Context, id string, status DatasetStatus) error
	ListChecks(ctx context.Context, datasetID string) ([]CheckResult, error)
	GetReport(ctx context.Context, datasetID string) (Report, error)
}

// Store is satisfied by storage backends that serve both roles.
type Store interface {
	DatasetStore
	ResultStore
}

// AnalysisPhase indicates the current stage of an analysis run.
type AnalysisPhase string

const (
	PhaseLoading    AnalysisPhase = "loading"
	PhaseChecking   AnalysisPhase = "checking"
	PhasePersisting AnalysisPhase = "persisting"
	PhaseComplete   AnalysisPhase = "complete"
	PhaseFailed     AnalysisPhase = "failed"
)
