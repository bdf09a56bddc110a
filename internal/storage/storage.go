// Package storage persists test cases, defects, runs and history.
package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"qad/internal/domain"
)

var (
	// ErrUnavailable wraps every failure to reach or write the backing store.
	ErrUnavailable = errors.New("storage unavailable")
	// ErrDuplicateID is returned when an insert reuses an existing id.
	ErrDuplicateID = errors.New("duplicate id")
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("not found")
)

// Store is the authoritative record set behind the in-memory engine.
type Store interface {
	// Startup loads
	LoadAllTestCaseNames(ctx context.Context) ([]string, error)
	LoadAllHistoryEntries(ctx context.Context) ([]string, error)
	LoadPendingRuns(ctx context.Context) ([]domain.ScheduledRun, error)
	// MaxID is the highest test case or defect id ever stored, deleted ones
	// included, 0 when empty.
	MaxID(ctx context.Context) (int, error)
	MaxRunID(ctx context.Context) (int, error)

	// One-way emissions from the engine and scheduler
	PersistRun(ctx context.Context, run domain.ScheduledRun) error
	// MarkRunConsumed is written as soon as a run is popped; consumed runs
	// are never restored as pending, even when their result is missing.
	MarkRunConsumed(ctx context.Context, runID int, at time.Time) error
	PersistResult(ctx context.Context, rec domain.RunRecord) error
	PersistHistoryEntry(ctx context.Context, text string, ts time.Time) error
	PersistDefect(ctx context.Context, d domain.Defect) error

	// Record management. Test cases and defects share one id space.
	CreateTestCase(ctx context.Context, tc domain.TestCase) error
	GetTestCase(ctx context.Context, id int) (domain.TestCase, error)
	ListTestCases(ctx context.Context) ([]domain.TestCase, error)
	DeleteTestCase(ctx context.Context, id int) error
	ListDefects(ctx context.Context) ([]domain.Defect, error)
	UpdateDefectStatus(ctx context.Context, id int, status domain.DefectStatus) error
	ListResults(ctx context.Context) ([]domain.RunRecord, error)

	Close() error
}

func unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrUnavailable, err)
}
