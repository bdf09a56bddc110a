// Package dashboard wires the in-memory engine to the persistent store and
// implements the record management operations around it.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"qad/internal/discovery"
	"qad/internal/domain"
	"qad/internal/execution"
	"qad/internal/history"
	"qad/internal/idgen"
	"qad/internal/search"
	"qad/internal/storage"
)

// Dashboard owns one engine instance and its store.
type Dashboard struct {
	store  storage.Store
	index  *search.PrefixIndex
	engine *execution.Engine
	ids    *idgen.Allocator
	logger *zap.Logger
}

// Open loads the index, history, id counters and pending runs from store.
func Open(ctx context.Context, store storage.Store, oracle execution.OutcomeOracle, logger *zap.Logger, opts ...execution.EngineOption) (*Dashboard, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	var (
		names   []string
		entries []string
		pending []domain.ScheduledRun
		maxRun  int
		ids     *idgen.Allocator
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		names, err = store.LoadAllTestCaseNames(gctx)
		return err
	})
	g.Go(func() (err error) {
		entries, err = store.LoadAllHistoryEntries(gctx)
		return err
	})
	g.Go(func() (err error) {
		pending, err = store.LoadPendingRuns(gctx)
		return err
	})
	g.Go(func() (err error) {
		maxRun, err = store.MaxRunID(gctx)
		return err
	})
	g.Go(func() (err error) {
		ids, err = idgen.New(gctx, store)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("load dashboard state: %w", err)
	}

	index := search.NewPrefixIndex()
	index.Rebuild(names)

	scheduler := execution.NewRunScheduler(execution.WithFirstRunID(maxRun + 1))
	for _, run := range pending {
		scheduler.Restore(run)
	}

	engine := execution.NewEngine(scheduler, history.Seed(entries), oracle, store, ids, logger, opts...)

	logger.Debug("dashboard loaded",
		zap.Int("test_cases", len(names)),
		zap.Int("history", len(entries)),
		zap.Int("pending_runs", len(pending)),
		zap.Int("next_id", ids.Peek()))

	return &Dashboard{
		store:  store,
		index:  index,
		engine: engine,
		ids:    ids,
		logger: logger,
	}, nil
}

// Engine exposes the execution engine
func (d *Dashboard) Engine() *execution.Engine { return d.engine }

// Store exposes the backing store
func (d *Dashboard) Store() storage.Store { return d.store }

// Close closes the store
func (d *Dashboard) Close() error { return d.store.Close() }

// CreateTestCase assigns an id to tc, stores it and indexes its name.
func (d *Dashboard) CreateTestCase(ctx context.Context, tc domain.TestCase) (domain.TestCase, error) {
	priority, err := domain.ParsePriorityClass(string(tc.Priority))
	if err != nil {
		return domain.TestCase{}, err
	}
	tc.Priority = priority
	tc.Name = strings.TrimSpace(tc.Name)
	if err := tc.Validate(); err != nil {
		return domain.TestCase{}, err
	}

	err = d.withFreshID(ctx, func(id int) error {
		tc.ID = id
		return d.store.CreateTestCase(ctx, tc)
	})
	if err != nil {
		return domain.TestCase{}, err
	}

	d.index.Insert(tc.Name)
	d.logger.Info("test case created", zap.Int("id", tc.ID), zap.String("name", tc.Name))
	return tc, nil
}

// withFreshID runs insert with a new id, reseeding and retrying once when the id is taken.
func (d *Dashboard) withFreshID(ctx context.Context, insert func(id int) error) error {
	err := insert(d.ids.Next())
	if !errors.Is(err, storage.ErrDuplicateID) {
		return err
	}
	d.logger.Warn("id conflict, reseeding from store", zap.Error(err))
	if err := d.ids.Reseed(ctx); err != nil {
		return err
	}
	return insert(d.ids.Next())
}

type importFile struct {
	TestCases []domain.TestCase `yaml:"test_cases"`
}

// ImportTestCases creates every test case listed in a YAML document of the form
//
//	test_cases:
//	  - name: Login
//	    priority: P0
//	    automated: true
//
// Ids in the file are ignored. Import stops at the first invalid entry.
func (d *Dashboard) ImportTestCases(ctx context.Context, r io.Reader) ([]domain.TestCase, error) {
	var file importFile
	if err := yaml.NewDecoder(r).Decode(&file); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse import file: %w", err)
	}

	created := make([]domain.TestCase, 0, len(file.TestCases))
	for i, tc := range file.TestCases {
		tc.ID = 0
		stored, err := d.CreateTestCase(ctx, tc)
		if err != nil {
			return created, fmt.Errorf("test case %d (%q): %w", i+1, tc.Name, err)
		}
		created = append(created, stored)
	}
	return created, nil
}

// SyncDiscovered registers every discovered test whose name is not stored yet
// as an automated test case. The description holds the file it was found in.
func (d *Dashboard) SyncDiscovered(ctx context.Context, found []discovery.Discovered, priority domain.PriorityClass) ([]domain.TestCase, error) {
	existing, err := d.store.ListTestCases(ctx)
	if err != nil {
		return nil, err
	}
	known := make(map[string]bool, len(existing))
	for _, tc := range existing {
		known[tc.Name] = true
	}

	var created []domain.TestCase
	for _, f := range found {
		if known[f.Name] {
			continue
		}
		tc, err := d.CreateTestCase(ctx, domain.TestCase{
			Name:        f.Name,
			Description: f.File,
			Priority:    priority,
			Automated:   true,
		})
		if err != nil {
			return created, fmt.Errorf("register %s: %w", f.Name, err)
		}
		known[f.Name] = true
		created = append(created, tc)
	}
	d.logger.Info("discovered tests synced", zap.Int("found", len(found)), zap.Int("created", len(created)))
	return created, nil
}

// GetTestCase loads a single test case
func (d *Dashboard) GetTestCase(ctx context.Context, id int) (domain.TestCase, error) {
	return d.store.GetTestCase(ctx, id)
}

// ListTestCases returns every stored test case ordered by id
func (d *Dashboard) ListTestCases(ctx context.Context) ([]domain.TestCase, error) {
	return d.store.ListTestCases(ctx)
}

// SearchTestCases returns the lower-cased names starting with prefix.
func (d *Dashboard) SearchTestCases(prefix string) []string {
	return d.index.SearchPrefix(prefix)
}

// DeleteTestCase removes the test case and rebuilds the name index from the store.
// Runs already scheduled for it stay queued.
func (d *Dashboard) DeleteTestCase(ctx context.Context, id int) error {
	if err := d.store.DeleteTestCase(ctx, id); err != nil {
		return err
	}
	d.logger.Info("test case deleted", zap.Int("id", id))
	return d.RebuildIndex(ctx)
}

// RebuildIndex reloads the name index from the authoritative store.
func (d *Dashboard) RebuildIndex(ctx context.Context) error {
	names, err := d.store.LoadAllTestCaseNames(ctx)
	if err != nil {
		return fmt.Errorf("rebuild index: %w", err)
	}
	d.index.Rebuild(names)
	return nil
}

// ScheduleRun queues a run for an existing test case and persists it.
// When only the persistence fails the run is still queued: the returned run is
// valid and the error wraps storage.ErrUnavailable.
func (d *Dashboard) ScheduleRun(ctx context.Context, testCaseID, priority int) (domain.ScheduledRun, error) {
	if _, err := d.store.GetTestCase(ctx, testCaseID); err != nil {
		return domain.ScheduledRun{}, err
	}

	run := d.engine.Scheduler().Submit(testCaseID, priority)
	d.logger.Info("run scheduled", zap.Int("run", run.RunID), zap.Int("test_case", testCaseID), zap.Int("priority", priority))

	if err := d.store.PersistRun(ctx, run); err != nil {
		d.logger.Warn("run not persisted", zap.Int("run", run.RunID), zap.Error(err))
		return run, fmt.Errorf("run %d queued but not persisted: %w", run.RunID, err)
	}
	return run, nil
}

// PendingRuns lists queued runs in execution order
func (d *Dashboard) PendingRuns() []domain.ScheduledRun {
	return d.engine.Scheduler().Pending()
}

// ExecuteRuns drains the scheduler
func (d *Dashboard) ExecuteRuns(ctx context.Context) (*execution.DrainReport, error) {
	return d.engine.DrainAll(ctx)
}

// History returns the execution history, oldest first
func (d *Dashboard) History() []history.Entry {
	return d.engine.History().All()
}

// Results returns the stored outcome of every executed run, oldest first.
func (d *Dashboard) Results(ctx context.Context) ([]domain.RunRecord, error) {
	return d.store.ListResults(ctx)
}

// AddDefect records a manually entered defect with status Open.
func (d *Dashboard) AddDefect(ctx context.Context, testCaseID int, title, severity string) (domain.Defect, error) {
	sev, err := domain.ParseSeverity(severity)
	if err != nil {
		return domain.Defect{}, err
	}
	title = strings.TrimSpace(title)
	if title == "" {
		return domain.Defect{}, errors.New("defect title is required")
	}

	def := domain.Defect{
		TestCaseID: testCaseID,
		Title:      title,
		Severity:   sev,
		Status:     domain.StatusOpen,
	}
	err = d.withFreshID(ctx, func(id int) error {
		def.ID = id
		return d.store.PersistDefect(ctx, def)
	})
	if err != nil {
		return domain.Defect{}, err
	}
	d.logger.Info("defect created", zap.Int("id", def.ID), zap.String("severity", string(def.Severity)))
	return def, nil
}

// ListDefects returns every stored defect ordered by id
func (d *Dashboard) ListDefects(ctx context.Context) ([]domain.Defect, error) {
	return d.store.ListDefects(ctx)
}

// UpdateDefectStatus moves a defect to status
func (d *Dashboard) UpdateDefectStatus(ctx context.Context, id int, status domain.DefectStatus) error {
	if err := d.store.UpdateDefectStatus(ctx, id, status); err != nil {
		return err
	}
	d.logger.Info("defect updated", zap.Int("id", id), zap.String("status", string(status)))
	return nil
}
