package core

import (
	"errors"
	"fmt"
)

// Sentinels for classifying analysis failures with errors.Is.
var (
	ErrLoad        = errors.New("load error")
	ErrAnalysis    = errors.New("analysis error")
	ErrPersistence = errors.New("persistence error")
)

// Caller-level errors returned by Service and the stores.
var (
	ErrDatasetNotFound    = errors.New("dataset not found")
	ErrReportNotFound     = errors.New("report not found")
	ErrAnalysisInProgress = errors.New("analysis already in progress for dataset")
)

// LoadError is returned when the CSV file is missing, unreadable, or cannot
// be parsed under any supported encoding.
type LoadError struct {
	Path     string
	Encoding string // encoding of the last attempt, empty if the file was never read
	Err      error
}

func (e *LoadError) Error() string {
	if e.Encoding != "" {
		return fmt.Sprintf("load %s (%s): %v", e.Path, e.Encoding, e.Err)
	}
	return fmt.Sprintf("load %s: %v", e.Path, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrLoad) match any *LoadError.
func (e *LoadError) Is(target error) bool { return target == ErrLoad }

// AnalysisError is returned when the loaded table cannot be analyzed.
type AnalysisError struct {
	Reason string
}

func (e *AnalysisError) Error() string {
	return "analysis: " + e.Reason
}

func (e *AnalysisError) Is(target error) bool { return target == ErrAnalysis }

// PersistenceError wraps a storage failure while saving results.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

func (e *PersistenceError) Is(target error) bool { return target == ErrPersistence }
