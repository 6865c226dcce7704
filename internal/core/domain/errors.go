package domain

import (
	"errors"
	"fmt"
)

// ErrNoCandidates is the routine "no confident candidate" outcome of a
// recommendation; callers treat it as retryable, not fatal.
var ErrNoCandidates = errors.New("no eligible candidate models")

// ErrEmptyCache signals a fatal configuration problem: the performance
// cache holds no models at all. Surfaced distinctly from ErrNoCandidates
// so operators can alert on it.
var ErrEmptyCache = errors.New("performance cache is empty")

type ErrInvalidTaskType struct {
	TaskType string
}

func (e *ErrInvalidTaskType) Error() string {
	return fmt.Sprintf("invalid task type: %q", e.TaskType)
}

type RefreshError struct {
	Err    error
	Source string
}

func (e *RefreshError) Error() string {
	return fmt.Sprintf("refresh failed for source %s: %v", e.Source, e.Err)
}

func (e *RefreshError) Unwrap() error {
	return e.Err
}

type FetchError struct {
	Err        error
	Source     string
	URL        string
	StatusCode int
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch failed for %s (%s): HTTP %d: %v", e.Source, e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch failed for %s (%s): %v", e.Source, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

type PersistenceError struct {
	Err       error
	Operation string
	Table     string
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s failed on %s: %v", e.Operation, e.Table, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
