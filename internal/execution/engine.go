package execution

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"qad/internal/config"
	"qad/internal/domain"
	"qad/internal/history"
	"qad/internal/storage"
)

// ErrDraining is returned when DrainAll is called while a drain is in progress.
var ErrDraining = errors.New("engine is already draining")

// State of the execution engine
type State int32

const (
	StateIdle State = iota
	StateDraining
)

func (s State) String() string {
	if s == StateDraining {
		return "draining"
	}
	return "idle"
}

// Sink receives everything the engine wants made durable. Calls are one-way:
// an error never rolls back the in-memory effect that preceded it.
type Sink interface {
	// MarkRunConsumed records that a run left the queue so it is never restored.
	MarkRunConsumed(ctx context.Context, runID int, at time.Time) error
	PersistResult(ctx context.Context, rec domain.RunRecord) error
	PersistHistoryEntry(ctx context.Context, text string, ts time.Time) error
	PersistDefect(ctx context.Context, d domain.Defect) error
}

// IDAllocator hands out defect ids.
type IDAllocator interface {
	Next() int
	Reseed(ctx context.Context) error
}

// Progress is notified after every processed run.
type Progress interface {
	Update(passed, failed, errored int)
	Finish()
}

// RunOutcome is what happened to a single popped run.
type RunOutcome struct {
	Run     domain.ScheduledRun
	Outcome domain.Outcome
	Result  domain.ExecutionResult
	History string
}

// ExecutionError records a run whose outcome could not be produced.
type ExecutionError struct {
	Run domain.ScheduledRun
	Err error
}

func (e ExecutionError) Error() string {
	return fmt.Sprintf("run %d (test case %d): %v", e.Run.RunID, e.Run.TestCaseID, e.Err)
}

func (e ExecutionError) Unwrap() error { return e.Err }

// DrainReport describes one DrainAll call.
type DrainReport struct {
	BatchID  string
	Runs     []RunOutcome
	Defects  []domain.Defect
	Errors   []ExecutionError
	Warnings []error
	Duration time.Duration
}

// Meta summarises the report
func (r *DrainReport) Meta() domain.DrainMeta {
	meta := domain.DrainMeta{
		BatchID:  r.BatchID,
		Executed: len(r.Runs),
		Defects:  len(r.Defects),
		Warnings: len(r.Warnings),
		Duration: r.Duration.Seconds(),
	}
	for _, o := range r.Runs {
		switch o.Outcome {
		case domain.OutcomePass:
			meta.Passed++
		case domain.OutcomeFail:
			meta.Failed++
		default:
			meta.Errored++
		}
	}
	return meta
}

// Engine drains a RunScheduler, records each outcome in the history and raises
// a defect for every failed run.
type Engine struct {
	scheduler *RunScheduler
	history   *history.ExecutionHistory
	oracle    OutcomeOracle
	sink      Sink
	ids       IDAllocator
	logger    *zap.Logger
	progress  Progress

	criticalThreshold int
	now               func() time.Time
	newBatchID        func() string

	state atomic.Int32
}

// EngineOption configures an Engine
type EngineOption func(*Engine)

// WithCriticalThreshold sets the priority at or below which failures are Critical.
func WithCriticalThreshold(p int) EngineOption {
	return func(e *Engine) { e.criticalThreshold = p }
}

// WithEngineClock overrides the execution timestamp source.
func WithEngineClock(now func() time.Time) EngineOption {
	return func(e *Engine) { e.now = now }
}

// WithBatchIDs overrides batch id generation.
func WithBatchIDs(fn func() string) EngineOption {
	return func(e *Engine) { e.newBatchID = fn }
}

// NewEngine creates an idle engine. sink may be nil when nothing is persisted.
func NewEngine(
	scheduler *RunScheduler,
	hist *history.ExecutionHistory,
	oracle OutcomeOracle,
	sink Sink,
	ids IDAllocator,
	logger *zap.Logger,
	opts ...EngineOption,
) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	e := &Engine{
		scheduler:         scheduler,
		history:           hist,
		oracle:            oracle,
		sink:              sink,
		ids:               ids,
		logger:            logger,
		criticalThreshold: config.DefaultCriticalThreshold,
		now:               time.Now,
		newBatchID:        func() string { return uuid.NewString() },
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// SetProgress sets the progress reporter for the next drain
func (e *Engine) SetProgress(p Progress) {
	e.progress = p
}

// State reports whether a drain is running
func (e *Engine) State() State {
	return State(e.state.Load())
}

// Scheduler returns the scheduler the engine drains
func (e *Engine) Scheduler() *RunScheduler { return e.scheduler }

// History returns the history the engine appends to
func (e *Engine) History() *history.ExecutionHistory { return e.history }

// DrainAll pops and executes runs until the scheduler is empty.
// A popped run is never re-queued, whatever happens downstream. Failures of a
// single run or of persistence are collected in the report and do not stop the
// drain; the returned error is only ErrDraining.
func (e *Engine) DrainAll(ctx context.Context) (*DrainReport, error) {
	if !e.state.CompareAndSwap(int32(StateIdle), int32(StateDraining)) {
		return nil, ErrDraining
	}
	defer e.state.Store(int32(StateIdle))

	report := &DrainReport{BatchID: e.newBatchID()}
	log := e.logger.With(zap.String("batch", report.BatchID))
	log.Debug("drain started", zap.Int("pending", e.scheduler.Len()))

	start := time.Now()
	var passed, failed, errored int
	for {
		run, err := e.scheduler.PopNext()
		if errors.Is(err, ErrEmptyQueue) {
			break
		}
		e.markConsumed(ctx, log, report, run)
		outcome := e.execute(ctx, log, report, run)
		report.Runs = append(report.Runs, outcome)

		switch outcome.Outcome {
		case domain.OutcomePass:
			passed++
		case domain.OutcomeFail:
			failed++
		default:
			errored++
		}
		if e.progress != nil {
			e.progress.Update(passed, failed, errored)
		}
	}
	if e.progress != nil {
		e.progress.Finish()
	}
	report.Duration = time.Since(start)

	log.Info("drain finished",
		zap.Int("executed", len(report.Runs)),
		zap.Int("defects", len(report.Defects)),
		zap.Int("errors", len(report.Errors)),
		zap.Int("warnings", len(report.Warnings)),
		zap.Duration("duration", report.Duration))
	return report, nil
}

func (e *Engine) execute(ctx context.Context, log *zap.Logger, report *DrainReport, run domain.ScheduledRun) RunOutcome {
	log = log.With(zap.Int("run", run.RunID), zap.Int("test_case", run.TestCaseID), zap.Int("priority", run.Priority))

	passed, err := e.decide(ctx, run)
	if err != nil {
		log.Warn("run could not be executed", zap.Error(err))
		report.Errors = append(report.Errors, ExecutionError{Run: run, Err: err})

		result := domain.ExecutionResult{TestCaseID: run.TestCaseID, Notes: "Error - " + err.Error()}
		e.persistResult(ctx, log, report, run, domain.OutcomeError, result)
		text := fmt.Sprintf("%s (%v)", domain.RunSummary(run.RunID, run.TestCaseID, domain.OutcomeError), err)
		e.appendHistory(ctx, log, report, text)
		return RunOutcome{Run: run, Outcome: domain.OutcomeError, Result: result, History: text}
	}

	result := domain.NewExecutionResult(run.TestCaseID, passed)
	e.persistResult(ctx, log, report, run, result.Outcome(), result)

	text := domain.RunSummary(run.RunID, run.TestCaseID, result.Outcome())
	e.appendHistory(ctx, log, report, text)
	log.Debug("run executed", zap.String("outcome", string(result.Outcome())))

	if !passed {
		e.raiseDefect(ctx, log, report, run)
	}
	return RunOutcome{Run: run, Outcome: result.Outcome(), Result: result, History: text}
}

// markConsumed makes the pop durable before the run is executed.
func (e *Engine) markConsumed(ctx context.Context, log *zap.Logger, report *DrainReport, run domain.ScheduledRun) {
	if e.sink == nil {
		return
	}
	if err := e.sink.MarkRunConsumed(ctx, run.RunID, e.now()); err != nil {
		e.warn(log, report, fmt.Errorf("mark run %d consumed: %w", run.RunID, err))
	}
}

// decide shields the drain from a panicking oracle.
func (e *Engine) decide(ctx context.Context, run domain.ScheduledRun) (passed bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("outcome oracle panicked: %v", r)
		}
	}()
	return e.oracle.Decide(ctx, run)
}

func (e *Engine) persistResult(ctx context.Context, log *zap.Logger, report *DrainReport, run domain.ScheduledRun, outcome domain.Outcome, result domain.ExecutionResult) {
	if e.sink == nil {
		return
	}
	rec := domain.RunRecord{
		RunID:      run.RunID,
		BatchID:    report.BatchID,
		Priority:   run.Priority,
		Outcome:    outcome,
		Result:     result,
		ExecutedAt: e.now(),
	}
	if err := e.sink.PersistResult(ctx, rec); err != nil {
		e.warn(log, report, fmt.Errorf("persist result of run %d: %w", run.RunID, err))
	}
}

func (e *Engine) appendHistory(ctx context.Context, log *zap.Logger, report *DrainReport, text string) {
	entry := e.history.Append(text)
	if e.sink == nil {
		return
	}
	if err := e.sink.PersistHistoryEntry(ctx, entry.Text, entry.Timestamp); err != nil {
		e.warn(log, report, fmt.Errorf("persist history entry %d: %w", entry.Seq+1, err))
	}
}

func (e *Engine) raiseDefect(ctx context.Context, log *zap.Logger, report *DrainReport, run domain.ScheduledRun) {
	severity := domain.SeverityMajor
	if run.Priority <= e.criticalThreshold {
		severity = domain.SeverityCritical
	}
	d := domain.Defect{
		ID:         e.ids.Next(),
		TestCaseID: run.TestCaseID,
		Title:      domain.AutoDefectTitle(run.TestCaseID),
		Severity:   severity,
		Status:     domain.StatusOpen,
	}

	if e.sink != nil {
		err := e.sink.PersistDefect(ctx, d)
		if errors.Is(err, storage.ErrDuplicateID) {
			log.Warn("defect id already taken, reseeding", zap.Int("defect", d.ID))
			if rerr := e.ids.Reseed(ctx); rerr != nil {
				err = fmt.Errorf("reseed ids after conflict on %d: %w", d.ID, rerr)
			} else {
				d.ID = e.ids.Next()
				err = e.sink.PersistDefect(ctx, d)
			}
		}
		if err != nil {
			e.warn(log, report, fmt.Errorf("persist defect %d: %w", d.ID, err))
		}
	}

	report.Defects = append(report.Defects, d)
	log.Info("defect raised", zap.Int("defect", d.ID), zap.String("severity", string(d.Severity)))
}

func (e *Engine) warn(log *zap.Logger, report *DrainReport, err error) {
	log.Warn("persistence failed", zap.Error(err))
	report.Warnings = append(report.Warnings, err)
}
