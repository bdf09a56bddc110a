package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"qad/internal/domain"
)

type historyDoc struct {
	Entry     string    `json:"entry"`
	Timestamp time.Time `json:"timestamp"`
}

// document is the on-disk layout of a JSONStore file.
type document struct {
	TestCases []domain.TestCase     `json:"test_cases"`
	Defects   []domain.Defect       `json:"defects"`
	Runs      []domain.ScheduledRun `json:"runs"`
	Results   []domain.RunRecord    `json:"results"`
	History   []historyDoc          `json:"history"`
	// Consumed maps run ids to the time they were popped.
	Consumed map[int]time.Time `json:"consumed_runs,omitempty"`
	// RetiredIDs are ids of deleted test cases, never handed out again.
	RetiredIDs []int `json:"retired_ids,omitempty"`
}

// JSONStore keeps every record in a single JSON file. Each call reads and
// rewrites the file under an exclusive file lock, so several processes can
// share it.
type JSONStore struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewJSONStore returns a Store backed by the JSON file at path.
func NewJSONStore(path string) (*JSONStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, unavailable("create store dir", err)
	}
	return &JSONStore{path: path, lock: flock.New(path + ".lock")}, nil
}

// Path returns the backing file path
func (s *JSONStore) Path() string { return s.path }

func (s *JSONStore) read() (*document, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return &document{}, nil
	}
	if err != nil {
		return nil, unavailable("read store", err)
	}
	var doc document
	if len(data) == 0 {
		return &doc, nil
	}
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, unavailable("parse store", err)
	}
	return &doc, nil
}

func (s *JSONStore) write(doc *document) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal store: %w", err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return unavailable("write store", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return unavailable("replace store", err)
	}
	return nil
}

// view runs fn against a snapshot of the document under a shared lock.
func (s *JSONStore) view(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.RLock(); err != nil {
		return unavailable("lock store", err)
	}
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	return fn(doc)
}

// update runs fn under an exclusive lock and writes the document back when fn succeeds.
func (s *JSONStore) update(fn func(doc *document) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.lock.Lock(); err != nil {
		return unavailable("lock store", err)
	}
	defer s.lock.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	if err := fn(doc); err != nil {
		return err
	}
	return s.write(doc)
}

func (s *JSONStore) LoadAllTestCaseNames(ctx context.Context) ([]string, error) {
	var names []string
	err := s.view(func(doc *document) error {
		for _, tc := range doc.TestCases {
			names = append(names, tc.Name)
		}
		return nil
	})
	return names, err
}

func (s *JSONStore) LoadAllHistoryEntries(ctx context.Context) ([]string, error) {
	var entries []string
	err := s.view(func(doc *document) error {
		for _, h := range doc.History {
			entries = append(entries, h.Entry)
		}
		return nil
	})
	return entries, err
}

func (s *JSONStore) LoadPendingRuns(ctx context.Context) ([]domain.ScheduledRun, error) {
	var pending []domain.ScheduledRun
	err := s.view(func(doc *document) error {
		done := make(map[int]bool, len(doc.Results))
		for _, r := range doc.Results {
			done[r.RunID] = true
		}
		for _, run := range doc.Runs {
			if _, consumed := doc.Consumed[run.RunID]; !consumed && !done[run.RunID] {
				pending = append(pending, run)
			}
		}
		return nil
	})
	return pending, err
}

func (s *JSONStore) MaxID(ctx context.Context) (int, error) {
	maxID := 0
	err := s.view(func(doc *document) error {
		for _, tc := range doc.TestCases {
			maxID = max(maxID, tc.ID)
		}
		for _, d := range doc.Defects {
			maxID = max(maxID, d.ID)
		}
		for _, id := range doc.RetiredIDs {
			maxID = max(maxID, id)
		}
		return nil
	})
	return maxID, err
}

func (s *JSONStore) MaxRunID(ctx context.Context) (int, error) {
	maxID := 0
	err := s.view(func(doc *document) error {
		for _, r := range doc.Runs {
			maxID = max(maxID, r.RunID)
		}
		for _, r := range doc.Results {
			maxID = max(maxID, r.RunID)
		}
		return nil
	})
	return maxID, err
}

func (s *JSONStore) PersistRun(ctx context.Context, run domain.ScheduledRun) error {
	return s.update(func(doc *document) error {
		for _, r := range doc.Runs {
			if r.RunID == run.RunID {
				return fmt.Errorf("run %d: %w", run.RunID, ErrDuplicateID)
			}
		}
		doc.Runs = append(doc.Runs, run)
		return nil
	})
}

func (s *JSONStore) MarkRunConsumed(ctx context.Context, runID int, at time.Time) error {
	return s.update(func(doc *document) error {
		if doc.Consumed == nil {
			doc.Consumed = make(map[int]time.Time)
		}
		if _, ok := doc.Consumed[runID]; !ok {
			doc.Consumed[runID] = at
		}
		return nil
	})
}

func (s *JSONStore) PersistResult(ctx context.Context, rec domain.RunRecord) error {
	return s.update(func(doc *document) error {
		doc.Results = append(doc.Results, rec)
		return nil
	})
}

func (s *JSONStore) PersistHistoryEntry(ctx context.Context, text string, ts time.Time) error {
	return s.update(func(doc *document) error {
		doc.History = append(doc.History, historyDoc{Entry: text, Timestamp: ts})
		return nil
	})
}

func (s *JSONStore) PersistDefect(ctx context.Context, d domain.Defect) error {
	return s.update(func(doc *document) error {
		if doc.idTaken(d.ID) {
			return fmt.Errorf("defect %d: %w", d.ID, ErrDuplicateID)
		}
		doc.Defects = append(doc.Defects, d)
		return nil
	})
}

func (s *JSONStore) CreateTestCase(ctx context.Context, tc domain.TestCase) error {
	return s.update(func(doc *document) error {
		if doc.idTaken(tc.ID) {
			return fmt.Errorf("test case %d: %w", tc.ID, ErrDuplicateID)
		}
		doc.TestCases = append(doc.TestCases, tc)
		return nil
	})
}

func (s *JSONStore) GetTestCase(ctx context.Context, id int) (domain.TestCase, error) {
	var found *domain.TestCase
	err := s.view(func(doc *document) error {
		for i := range doc.TestCases {
			if doc.TestCases[i].ID == id {
				found = &doc.TestCases[i]
				return nil
			}
		}
		return fmt.Errorf("test case %d: %w", id, ErrNotFound)
	})
	if err != nil {
		return domain.TestCase{}, err
	}
	return *found, nil
}

func (s *JSONStore) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	var out []domain.TestCase
	err := s.view(func(doc *document) error {
		out = append(out, doc.TestCases...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *JSONStore) DeleteTestCase(ctx context.Context, id int) error {
	return s.update(func(doc *document) error {
		for i, tc := range doc.TestCases {
			if tc.ID == id {
				doc.TestCases = append(doc.TestCases[:i], doc.TestCases[i+1:]...)
				doc.RetiredIDs = append(doc.RetiredIDs, id)
				return nil
			}
		}
		return fmt.Errorf("test case %d: %w", id, ErrNotFound)
	})
}

func (s *JSONStore) ListDefects(ctx context.Context) ([]domain.Defect, error) {
	var out []domain.Defect
	err := s.view(func(doc *document) error {
		out = append(out, doc.Defects...)
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, err
}

func (s *JSONStore) UpdateDefectStatus(ctx context.Context, id int, status domain.DefectStatus) error {
	return s.update(func(doc *document) error {
		for i := range doc.Defects {
			if doc.Defects[i].ID == id {
				doc.Defects[i].Status = status
				return nil
			}
		}
		return fmt.Errorf("defect %d: %w", id, ErrNotFound)
	})
}

func (s *JSONStore) ListResults(ctx context.Context) ([]domain.RunRecord, error) {
	var out []domain.RunRecord
	err := s.view(func(doc *document) error {
		out = append(out, doc.Results...)
		return nil
	})
	return out, err
}

func (s *JSONStore) Close() error {
	return s.lock.Close()
}

func (doc *document) idTaken(id int) bool {
	if slices.Contains(doc.RetiredIDs, id) {
		return true
	}
	for _, tc := range doc.TestCases {
		if tc.ID == id {
			return true
		}
	}
	for _, d := range doc.Defects {
		if d.ID == id {
			return true
		}
	}
	return false
}
