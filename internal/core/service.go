package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/csvquality/internal/logging"
)

// ServiceConfig holds the Service settings taken from the application config.
type ServiceConfig struct {
	DataDir       string        // where registered CSV files are copied
	MaxFileSize   int64         // bytes; zero disables the limit
	MaxConcurrent int           // analyses running at once
	MaxWait       time.Duration // how long to wait for a free slot
}

// Service is the caller of the Analyzer. It registers datasets, owns their
// status transitions and serializes analyses per dataset.
type Service struct {
	store   Store
	cfg     ServiceConfig
	limiter *AnalysisLimiter

	mu       sync.Mutex
	inFlight map[string]struct{}
}

// NewService creates a Service on top of store. The data directory is created
// if it does not exist.
func NewService(store Store, cfg ServiceConfig) (*Service, error) {
	if store == nil {
		return nil, errors.New("new service: store is required")
	}
	if cfg.DataDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("get working directory: %w", err)
		}
		cfg.DataDir = filepath.Join(wd, "data", "datasets")
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	return &Service{
		store:    store,
		cfg:      cfg,
		limiter:  NewAnalysisLimiter(cfg.MaxConcurrent, cfg.MaxWait),
		inFlight: make(map[string]struct{}),
	}, nil
}

// RegisterDataset copies the CSV file at srcPath into the data directory and
// records it as a dataset with status uploaded. An empty name defaults to the
// file's base name.
func (s *Service) RegisterDataset(ctx context.Context, srcPath, name string) (Dataset, error) {
	if !strings.EqualFold(filepath.Ext(srcPath), ".csv") {
		return Dataset{}, fmt.Errorf("not a csv file: %s", srcPath)
	}

	info, err := os.Stat(srcPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Dataset{}, fmt.Errorf("file not found: %s", srcPath)
		}
		return Dataset{}, fmt.Errorf("stat %s: %w", srcPath, err)
	}
	if info.IsDir() {
		return Dataset{}, fmt.Errorf("invalid csv: path is a directory: %s", srcPath)
	}
	if s.cfg.MaxFileSize > 0 && info.Size() > s.cfg.MaxFileSize {
		return Dataset{}, fmt.Errorf("file too large: %d bytes exceeds %d", info.Size(), s.cfg.MaxFileSize)
	}

	if strings.TrimSpace(name) == "" {
		name = filepath.Base(srcPath)
	}

	id := uuid.NewString()
	dst := filepath.Join(s.cfg.DataDir, id+".csv")
	if err := copyFile(srcPath, dst); err != nil {
		return Dataset{}, fmt.Errorf("copy dataset file: %w", err)
	}

	ds, err := s.store.CreateDataset(ctx, Dataset{
		ID:         id,
		Name:       name,
		FilePath:   dst,
		Status:     StatusUploaded,
		UploadedAt: time.Now().UTC(),
	})
	if err != nil {
		os.Remove(dst)
		return Dataset{}, fmt.Errorf("create dataset: %w", err)
	}

	logging.WithFields(ctx, "dataset_id", ds.ID).Info("dataset registered",
		"name", ds.Name,
		"bytes", info.Size(),
	)
	return ds, nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}

// AnalyzeDataset runs the Analyzer for a dataset. The dataset is marked
// processing while it runs, then completed or failed. A second call for a
// dataset that is still being analyzed fails with ErrAnalysisInProgress.
func (s *Service) AnalyzeDataset(ctx context.Context, id string) (*Outcome, error) {
	if logging.RunID(ctx) == "" {
		ctx = logging.WithRunID(ctx, "")
	}
	logger := logging.WithFields(ctx, "dataset_id", id)

	ds, err := s.store.GetDataset(ctx, id)
	if err != nil {
		return nil, err
	}

	if !s.begin(id) {
		return nil, fmt.Errorf("%w: %s", ErrAnalysisInProgress, id)
	}
	defer s.end(id)

	if !s.limiter.TryAcquire() {
		st := s.limiter.Status()
		logger.Info("waiting for analysis slot", "active", st.Active, "max_concurrent", st.MaxConcurrent)
		if err := s.limiter.Acquire(ctx); err != nil {
			return nil, err
		}
	}
	defer s.limiter.Release()

	if err := s.store.SetDatasetStatus(ctx, id, StatusProcessing); err != nil {
		return nil, fmt.Errorf("set status %s: %w", StatusProcessing, err)
	}

	analyzer := NewAnalyzer(ds, s.store,
		WithLogger(logger),
		WithMaxFileSize(s.cfg.MaxFileSize),
	)
	out, err := analyzer.Analyze(ctx)
	if err != nil {
		// The failure must be recorded even when ctx was cancelled.
		if serr := s.store.SetDatasetStatus(context.WithoutCancel(ctx), id, StatusFailed); serr != nil {
			logger.Error("failed to mark dataset failed", "error", serr)
		}
		return nil, err
	}

	if err := s.store.SetDatasetStatus(ctx, id, StatusCompleted); err != nil {
		return out, fmt.Errorf("set status %s: %w", StatusCompleted, err)
	}
	return out, nil
}

func (s *Service) begin(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[id]; busy {
		return false
	}
	s.inFlight[id] = struct{}{}
	return true
}

func (s *Service) end(id string) {
	s.mu.Lock()
	delete(s.inFlight, id)
	s.mu.Unlock()
}

// GetDataset returns a dataset by ID.
func (s *Service) GetDataset(ctx context.Context, id string) (Dataset, error) {
	return s.store.GetDataset(ctx, id)
}

// ListDatasets returns all datasets, newest first.
func (s *Service) ListDatasets(ctx context.Context) ([]Dataset, error) {
	return s.store.ListDatasets(ctx)
}

// GetChecks returns the stored check results of a dataset.
func (s *Service) GetChecks(ctx context.Context, id string) ([]CheckResult, error) {
	if _, err := s.store.GetDataset(ctx, id); err != nil {
		return nil, err
	}
	return s.store.ListChecks(ctx, id)
}

// GetReport returns the stored report of a dataset.
func (s *Service) GetReport(ctx context.Context, id string) (Report, error) {
	if _, err := s.store.GetDataset(ctx, id); err != nil {
		return Report{}, err
	}
	return s.store.GetReport(ctx, id)
}

// LimiterStatus returns the analysis limiter state.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForAnalyses blocks until running analyses finish or ctx is done.
func (s *Service) WaitForAnalyses(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}
