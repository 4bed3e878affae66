package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/csvquality/internal/core"
	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteStore persists datasets and results in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens the database at path with foreign keys enforced.
// Use ":memory:" for a private in-memory database.
func OpenSQLite(ctx context.Context, path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := path
	if path == ":memory:" {
		dsn = "file:dqcheck-" + uuid.NewString() + "?mode=memory&cache=shared"
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// SQLite allows a single writer; one connection also keeps an
	// in-memory database alive for the store's lifetime.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// NewSQLiteStore wraps an already open database handle.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	return migrateUp(ctx, s.db, "sqlite3", sqliteMigrations)
}

func (s *SQLiteStore) MigrationVersion(ctx context.Context) (int64, error) {
	return migrationVersion(ctx, s.db, "sqlite3")
}

func (s *SQLiteStore) CreateDataset(ctx context.Context, ds core.Dataset) (core.Dataset, error) {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	if ds.Status == "" {
		ds.Status = core.StatusUploaded
	}
	if ds.UploadedAt.IsZero() {
		ds.UploadedAt = time.Now()
	}
	ds.UploadedAt = ds.UploadedAt.UTC()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO datasets (id, name, file_path, status, uploaded_at)
		VALUES (?, ?, ?, ?, ?)
	`, ds.ID, ds.Name, ds.FilePath, string(ds.Status), formatTime(ds.UploadedAt))
	if err != nil {
		return core.Dataset{}, fmt.Errorf("insert dataset: %w", err)
	}
	return ds, nil
}

func (s *SQLiteStore) GetDataset(ctx context.Context, id string) (core.Dataset, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, name, file_path, status, uploaded_at
		FROM datasets
		WHERE id = ?
	`, id)

	ds, err := scanSQLiteDataset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Dataset{}, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
	}
	if err != nil {
		return core.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return ds, nil
}

func (s *SQLiteStore) ListDatasets(ctx context.Context) ([]core.Dataset, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, file_path, status, uploaded_at
		FROM datasets
		ORDER BY uploaded_at DESC, id
	`)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	defer rows.Close()

	var out []core.Dataset
	for rows.Next() {
		ds, err := scanSQLiteDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetDatasetStatus(ctx context.Context, id string, status core.DatasetStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid dataset status %q", status)
	}
	res, err := s.db.ExecContext(ctx, `UPDATE datasets SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update dataset status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update dataset status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
	}
	return nil
}

func (s *SQLiteStore) ListChecks(ctx context.Context, datasetID string) ([]core.CheckResult, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, dataset_id, check_type, result_json, created_at
		FROM checks
		WHERE dataset_id = ?
	`, datasetID)
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var out []core.CheckResult
	for rows.Next() {
		var (
			c         core.CheckResult
			kind      string
			payload   string
			createdAt string
		)
		if err := rows.Scan(&c.ID, &c.DatasetID, &kind, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		if c.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, err
		}
		c.Kind = core.CheckKind(kind)
		c.Payload = []byte(payload)
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return checkOrder(out[i].Kind) < checkOrder(out[j].Kind) })
	return out, nil
}

func (s *SQLiteStore) GetReport(ctx context.Context, datasetID string) (core.Report, error) {
	var (
		r           core.Report
		generatedAt string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, dataset_id, summary, issues_count, generated_at
		FROM reports
		WHERE dataset_id = ?
	`, datasetID).Scan(&r.ID, &r.DatasetID, &r.Summary, &r.IssuesCount, &generatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return core.Report{}, fmt.Errorf("%w: %s", core.ErrReportNotFound, datasetID)
	}
	if err != nil {
		return core.Report{}, fmt.Errorf("get report: %w", err)
	}
	if r.GeneratedAt, err = parseTime(generatedAt); err != nil {
		return core.Report{}, err
	}
	return r, nil
}

// SaveResults replaces the dataset's checks and upserts its report in one
// transaction.
func (s *SQLiteStore) SaveResults(ctx context.Context, datasetID string, rs core.ResultSet) (core.SavedResults, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return core.SavedResults{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now().UTC()
	checks, err := replaceSQLiteChecks(ctx, tx, datasetID, rs.Checks, now)
	if err != nil {
		return core.SavedResults{}, err
	}
	report, created, err := upsertSQLiteReport(ctx, tx, datasetID, rs.Summary, rs.IssuesCount, now)
	if err != nil {
		return core.SavedResults{}, err
	}

	if err := tx.Commit(); err != nil {
		return core.SavedResults{}, fmt.Errorf("commit transaction: %w", err)
	}
	return core.SavedResults{Checks: checks, Report: report, ReportCreated: created}, nil
}

// replaceSQLiteChecks deletes the dataset's checks and inserts the new ones.
func replaceSQLiteChecks(ctx context.Context, tx *sql.Tx, datasetID string, checks []core.CheckInput, now time.Time) ([]core.CheckResult, error) {
	if _, err := tx.ExecContext(ctx, `DELETE FROM checks WHERE dataset_id = ?`, datasetID); err != nil {
		return nil, fmt.Errorf("delete checks: %w", err)
	}

	out := make([]core.CheckResult, 0, len(checks))
	for _, c := range checks {
		res := core.CheckResult{
			ID:        uuid.NewString(),
			DatasetID: datasetID,
			Kind:      c.Kind,
			Payload:   c.Payload,
			CreatedAt: now,
		}
		_, err := tx.ExecContext(ctx, `
			INSERT INTO checks (id, dataset_id, check_type, result_json, created_at)
			VALUES (?, ?, ?, ?, ?)
		`, res.ID, datasetID, string(res.Kind), string(res.Payload), formatTime(now))
		if err != nil {
			return nil, fmt.Errorf("insert %s check: %w", c.Kind, err)
		}
		out = append(out, res)
	}
	return out, nil
}

// upsertSQLiteReport writes the dataset's single report. The conflict branch
// keeps the existing id, so a returned id equal to the proposed one means the
// row was created.
func upsertSQLiteReport(ctx context.Context, tx *sql.Tx, datasetID, summary string, issuesCount int, now time.Time) (core.Report, bool, error) {
	proposed := uuid.NewString()

	var id string
	err := tx.QueryRowContext(ctx, `
		INSERT INTO reports (id, dataset_id, summary, issues_count, generated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (dataset_id) DO UPDATE
		SET summary = excluded.summary,
		    issues_count = excluded.issues_count,
		    generated_at = excluded.generated_at
		RETURNING id
	`, proposed, datasetID, summary, int64(issuesCount), formatTime(now)).Scan(&id)
	if err != nil {
		return core.Report{}, false, fmt.Errorf("upsert report: %w", err)
	}

	return core.Report{
		ID:          id,
		DatasetID:   datasetID,
		Summary:     summary,
		IssuesCount: issuesCount,
		GeneratedAt: now,
	}, id == proposed, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteDataset(row rowScanner) (core.Dataset, error) {
	var (
		ds         core.Dataset
		status     string
		uploadedAt string
	)
	if err := row.Scan(&ds.ID, &ds.Name, &ds.FilePath, &status, &uploadedAt); err != nil {
		return core.Dataset{}, err
	}
	t, err := parseTime(uploadedAt)
	if err != nil {
		return core.Dataset{}, err
	}
	ds.Status = core.DatasetStatus(status)
	ds.UploadedAt = t
	return ds, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(timeLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", s, err)
	}
	return t, nil
}
