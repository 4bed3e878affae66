package core

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memStore is an in-memory Store for tests.
type memStore struct {
	mu       sync.Mutex
	datasets map[string]Dataset
	checks   map[string][]CheckResult
	reports  map[string]Report
	statuses map[string][]DatasetStatus

	// replaceErr fails the checks step, upsertErr the report step.
	replaceErr error
	upsertErr  error
	saveCalls  int

	// block, when set, is waited on inside SaveResults.
	block chan struct{}
}

func newMemStore() *memStore {
	return &memStore{
		datasets: make(map[string]Dataset),
		checks:   make(map[string][]CheckResult),
		reports:  make(map[string]Report),
		statuses: make(map[string][]DatasetStatus),
	}
}

func (s *memStore) CreateDataset(_ context.Context, ds Dataset) (Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[ds.ID] = ds
	return ds, nil
}

func (s *memStore) GetDataset(_ context.Context, id string) (Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[id]
	if !ok {
		return Dataset{}, ErrDatasetNotFound
	}
	return ds, nil
}

func (s *memStore) ListDatasets(_ context.Context) ([]Dataset, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Dataset, 0, len(s.datasets))
	for _, ds := range s.datasets {
		out = append(out, ds)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UploadedAt.After(out[j].UploadedAt) })
	return out, nil
}

func (s *memStore) SetDatasetStatus(_ context.Context, id string, status DatasetStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ds, ok := s.datasets[id]
	if !ok {
		return ErrDatasetNotFound
	}
	ds.Status = status
	s.datasets[id] = ds
	s.statuses[id] = append(s.statuses[id], status)
	return nil
}

func (s *memStore) ListChecks(_ context.Context, datasetID string) ([]CheckResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]CheckResult(nil), s.checks[datasetID]...), nil
}

func (s *memStore) GetReport(_ context.Context, datasetID string) (Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[datasetID]
	if !ok {
		return Report{}, ErrReportNotFound
	}
	return r, nil
}

// SaveResults stages both steps and commits them together, so a failing
// step leaves the previous results untouched.
func (s *memStore) SaveResults(_ context.Context, datasetID string, rs ResultSet) (SavedResults, error) {
	if s.block != nil {
		<-s.block
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.replaceErr != nil {
		return SavedResults{}, s.replaceErr
	}

	now := time.Now().UTC()
	checks := make([]CheckResult, 0, len(rs.Checks))
	for _, c := range rs.Checks {
		checks = append(checks, CheckResult{
			ID:        uuid.NewString(),
			DatasetID: datasetID,
			Kind:      c.Kind,
			Payload:   append([]byte(nil), c.Payload...),
			CreatedAt: now,
		})
	}

	if s.upsertErr != nil {
		return SavedResults{}, s.upsertErr
	}
	r, exists := s.reports[datasetID]
	if !exists {
		r = Report{ID: uuid.NewString(), DatasetID: datasetID}
	}
	r.Summary = rs.Summary
	r.IssuesCount = rs.IssuesCount
	r.GeneratedAt = now

	s.checks[datasetID] = checks
	s.reports[datasetID] = r
	return SavedResults{Checks: checks, Report: r, ReportCreated: !exists}, nil
}

func (s *memStore) statusHistory(id string) []DatasetStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]DatasetStatus(nil), s.statuses[id]...)
}
