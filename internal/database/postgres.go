package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/JonMunkholm/csvquality/internal/config"
	"github.com/JonMunkholm/csvquality/internal/core"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

// NewPool parses cfg.URL, applies the pool settings and verifies the
// connection.
func NewPool(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolConfig, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolConfig.MaxConns = int32(cfg.MaxConns)
	poolConfig.MinConns = int32(cfg.MinConns)
	poolConfig.MaxConnLifetime = cfg.MaxConnLifetime
	poolConfig.MaxConnIdleTime = cfg.MaxConnIdleTime

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if u, err := url.Parse(cfg.URL); err == nil {
		slog.Info("connected to database", "name", strings.TrimPrefix(u.Path, "/"))
	} else {
		slog.Info("connected to database")
	}
	return pool, nil
}

// PostgresStore persists datasets and results in PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps an open pool.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// Migrate applies pending migrations through a database/sql view of the pool.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	return migrateUp(ctx, db, "postgres", postgresMigrations)
}

func (s *PostgresStore) MigrationVersion(ctx context.Context) (int64, error) {
	db := stdlib.OpenDBFromPool(s.pool)
	defer db.Close()
	return migrationVersion(ctx, db, "postgres")
}

func (s *PostgresStore) CreateDataset(ctx context.Context, ds core.Dataset) (core.Dataset, error) {
	if ds.ID == "" {
		ds.ID = uuid.NewString()
	}
	if ds.Status == "" {
		ds.Status = core.StatusUploaded
	}
	if ds.UploadedAt.IsZero() {
		ds.UploadedAt = time.Now()
	}
	ds.UploadedAt = ds.UploadedAt.UTC().Truncate(time.Microsecond)

	id := toPgUUID(ds.ID)
	if !id.Valid {
		return core.Dataset{}, fmt.Errorf("invalid dataset id %q", ds.ID)
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO datasets (id, name, file_path, status, uploaded_at)
		VALUES ($1, $2, $3, $4, $5)
	`, id, ds.Name, ds.FilePath, string(ds.Status), toPgTimestamptz(ds.UploadedAt))
	if err != nil {
		return core.Dataset{}, fmt.Errorf("insert dataset: %w", err)
	}
	return ds, nil
}

func (s *PostgresStore) GetDataset(ctx context.Context, id string) (core.Dataset, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, name, file_path, status, uploaded_at
		FROM datasets
		WHERE id = $1
	`, toPgUUID(id))

	ds, err := scanDataset(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Dataset{}, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
	}
	if err != nil {
		return core.Dataset{}, fmt.Errorf("get dataset: %w", err)
	}
	return ds, nil
}

func (s *PostgresStore) ListDatasets(ctx context.Context) ([]core.Dataset, error) {
	rows, err := s.pool.Query(ctx, `
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
		ds, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan dataset: %w", err)
		}
		out = append(out, ds)
	}
	return out, rows.Err()
}

func (s *PostgresStore) SetDatasetStatus(ctx context.Context, id string, status core.DatasetStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid dataset status %q", status)
	}
	tag, err := s.pool.Exec(ctx, `UPDATE datasets SET status = $2 WHERE id = $1`, toPgUUID(id), string(status))
	if err != nil {
		return fmt.Errorf("update dataset status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", core.ErrDatasetNotFound, id)
	}
	return nil
}

func (s *PostgresStore) ListChecks(ctx context.Context, datasetID string) ([]core.CheckResult, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, dataset_id, check_type, result_json, created_at
		FROM checks
		WHERE dataset_id = $1
	`, toPgUUID(datasetID))
	if err != nil {
		return nil, fmt.Errorf("list checks: %w", err)
	}
	defer rows.Close()

	var out []core.CheckResult
	for rows.Next() {
		var (
			id, dsID  pgtype.UUID
			kind      string
			payload   []byte
			createdAt pgtype.Timestamptz
		)
		if err := rows.Scan(&id, &dsID, &kind, &payload, &createdAt); err != nil {
			return nil, fmt.Errorf("scan check: %w", err)
		}
		out = append(out, core.CheckResult{
			ID:        uuidToString(id),
			DatasetID: uuidToString(dsID),
			Kind:      core.CheckKind(kind),
			Payload:   payload,
			CreatedAt: createdAt.Time.UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool { return checkOrder(out[i].Kind) < checkOrder(out[j].Kind) })
	return out, nil
}

func (s *PostgresStore) GetReport(ctx context.Context, datasetID string) (core.Report, error) {
	var (
		id, dsID    pgtype.UUID
		summary     string
		issues      int64
		generatedAt pgtype.Timestamptz
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, dataset_id, summary, issues_count, generated_at
		FROM reports
		WHERE dataset_id = $1
	`, toPgUUID(datasetID)).Scan(&id, &dsID, &summary, &issues, &generatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return core.Report{}, fmt.Errorf("%w: %s", core.ErrReportNotFound, datasetID)
	}
	if err != nil {
		return core.Report{}, fmt.Errorf("get report: %w", err)
	}

	return core.Report{
		ID:          uuidToString(id),
		DatasetID:   uuidToString(dsID),
		Summary:     summary,
		IssuesCount: int(issues),
		GeneratedAt: generatedAt.Time.UTC(),
	}, nil
}

// SaveResults replaces the dataset's checks and upserts its report in one
// transaction.
func (s *PostgresStore) SaveResults(ctx context.Context, datasetID string, rs core.ResultSet) (core.SavedResults, error) {
	dsID := toPgUUID(datasetID)
	if !dsID.Valid {
		return core.SavedResults{}, fmt.Errorf("%w: %s", core.ErrDatasetNotFound, datasetID)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return core.SavedResults{}, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	now := time.Now().UTC().Truncate(time.Microsecond)
	checks, err := replacePgChecks(ctx, tx, dsID, rs.Checks, now)
	if err != nil {
		return core.SavedResults{}, err
	}
	report, created, err := upsertPgReport(ctx, tx, dsID, rs.Summary, rs.IssuesCount, now)
	if err != nil {
		return core.SavedResults{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return core.SavedResults{}, fmt.Errorf("commit transaction: %w", err)
	}
	return core.SavedResults{Checks: checks, Report: report, ReportCreated: created}, nil
}

// replacePgChecks deletes the dataset's checks and batches the inserts of the
// new ones.
func replacePgChecks(ctx context.Context, tx pgx.Tx, dsID pgtype.UUID, checks []core.CheckInput, now time.Time) ([]core.CheckResult, error) {
	if _, err := tx.Exec(ctx, `DELETE FROM checks WHERE dataset_id = $1`, dsID); err != nil {
		return nil, fmt.Errorf("delete checks: %w", err)
	}

	datasetID := uuidToString(dsID)
	out := make([]core.CheckResult, 0, len(checks))
	batch := &pgx.Batch{}
	for _, c := range checks {
		res := core.CheckResult{
			ID:        uuid.NewString(),
			DatasetID: datasetID,
			Kind:      c.Kind,
			Payload:   c.Payload,
			CreatedAt: now,
		}
		batch.Queue(`
			INSERT INTO checks (id, dataset_id, check_type, result_json, created_at)
			VALUES ($1, $2, $3, $4, $5)
		`, toPgUUID(res.ID), dsID, string(res.Kind), []byte(res.Payload), toPgTimestamptz(now))
		out = append(out, res)
	}

	br := tx.SendBatch(ctx, batch)
	for _, c := range checks {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return nil, fmt.Errorf("insert %s check: %w", c.Kind, err)
		}
	}
	if err := br.Close(); err != nil {
		return nil, fmt.Errorf("close batch: %w", err)
	}
	return out, nil
}

// upsertPgReport writes the dataset's single report. xmax is zero only for a
// freshly inserted row, which tells a create from an update.
func upsertPgReport(ctx context.Context, tx pgx.Tx, dsID pgtype.UUID, summary string, issuesCount int, now time.Time) (core.Report, bool, error) {
	var (
		id          pgtype.UUID
		generatedAt pgtype.Timestamptz
		created     bool
	)
	err := tx.QueryRow(ctx, `
		INSERT INTO reports (id, dataset_id, summary, issues_count, generated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (dataset_id) DO UPDATE
		SET summary = EXCLUDED.summary,
		    issues_count = EXCLUDED.issues_count,
		    generated_at = EXCLUDED.generated_at
		RETURNING id, generated_at, (xmax = 0)
	`, toPgUUID(uuid.NewString()), dsID, summary, int64(issuesCount), toPgTimestamptz(now)).
		Scan(&id, &generatedAt, &created)
	if err != nil {
		return core.Report{}, false, fmt.Errorf("upsert report: %w", err)
	}

	return core.Report{
		ID:          uuidToString(id),
		DatasetID:   uuidToString(dsID),
		Summary:     summary,
		IssuesCount: issuesCount,
		GeneratedAt: generatedAt.Time.UTC(),
	}, created, nil
}

func scanDataset(row pgx.Row) (core.Dataset, error) {
	var (
		id         pgtype.UUID
		ds         core.Dataset
		status     string
		uploadedAt pgtype.Timestamptz
	)
	if err := row.Scan(&id, &ds.Name, &ds.FilePath, &status, &uploadedAt); err != nil {
		return core.Dataset{}, err
	}
	ds.ID = uuidToString(id)
	ds.Status = core.DatasetStatus(status)
	ds.UploadedAt = uploadedAt.Time.UTC()
	return ds, nil
}

// Helper functions for type conversion

func toPgUUID(s string) pgtype.UUID {
	if s == "" {
		return pgtype.UUID{Valid: false}
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return pgtype.UUID{Valid: false}
	}
	return pgtype.UUID{Bytes: parsed, Valid: true}
}

func uuidToString(u pgtype.UUID) string {
	if !u.Valid {
		return ""
	}
	return uuid.UUID(u.Bytes).String()
}

func toPgTimestamptz(t time.Time) pgtype.Timestamptz {
	if t.IsZero() {
		return pgtype.Timestamptz{Valid: false}
	}
	return pgtype.Timestamptz{Time: t.UTC(), Valid: true}
}
