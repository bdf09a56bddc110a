package execution

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"qad/internal/domain"
	"qad/internal/history"
	"qad/internal/storage"
)

type fakeSink struct {
	mu         sync.Mutex
	consumed   []int
	results    []domain.RunRecord
	history    []string
	defects    []domain.Defect
	consumeErr error
	resultErr  error
	histErr    error
	defectErr  error
	// dupIDs are rejected with storage.ErrDuplicateID
	dupIDs map[int]bool
}

func (f *fakeSink) MarkRunConsumed(_ context.Context, runID int, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.consumeErr != nil {
		return f.consumeErr
	}
	f.consumed = append(f.consumed, runID)
	return nil
}

func (f *fakeSink) consumedRuns() []int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]int(nil), f.consumed...)
}

func (f *fakeSink) PersistResult(_ context.Context, rec domain.RunRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.resultErr != nil {
		return f.resultErr
	}
	f.results = append(f.results, rec)
	return nil
}

func (f *fakeSink) PersistHistoryEntry(_ context.Context, text string, _ time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.histErr != nil {
		return f.histErr
	}
	f.history = append(f.history, text)
	return nil
}

func (f *fakeSink) PersistDefect(_ context.Context, d domain.Defect) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dupIDs[d.ID] {
		return fmt.Errorf("defect %d: %w", d.ID, storage.ErrDuplicateID)
	}
	if f.defectErr != nil {
		return f.defectErr
	}
	f.defects = append(f.defects, d)
	return nil
}

type fakeIDs struct {
	next    int
	reseeds int
	reseed  int
}

func (f *fakeIDs) Next() int {
	id := f.next
	f.next++
	return id
}

func (f *fakeIDs) Reseed(context.Context) error {
	f.reseeds++
	if f.reseed > f.next {
		f.next = f.reseed
	}
	return nil
}

func newTestEngine(t *testing.T, oracle OutcomeOracle, sink Sink, ids IDAllocator) *Engine {
	sched := NewRunScheduler(WithClock(newClock().now))
	return NewEngine(sched, history.New(), oracle, sink, ids, zaptest.NewLogger(t),
		WithBatchIDs(func() string { return "batch-test" }))
}

func TestEngine_DrainAll_EndToEnd(t *testing.T) {
	sink := &fakeSink{}
	ids := &fakeIDs{next: 1000}
	e := newTestEngine(t, NewSequenceOracle(false, true), sink, ids)

	r1 := e.Scheduler().Submit(42, 1)
	r2 := e.Scheduler().Submit(43, 5)
	require.Equal(t, 1, r1.RunID)
	require.Equal(t, 2, r2.RunID)

	report, err := e.DrainAll(context.Background())
	require.NoError(t, err)

	expected := []string{"Run 1: testCase 42 -> FAIL", "Run 2: testCase 43 -> PASS"}
	assert.Equal(t, expected, e.History().Texts())
	assert.Equal(t, expected, sink.history)
	assert.Equal(t, []int{1, 2}, sink.consumed)

	require.Len(t, sink.defects, 1)
	d := sink.defects[0]
	assert.Equal(t, domain.SeverityCritical, d.Severity)
	assert.Equal(t, 42, d.TestCaseID)
	assert.Equal(t, domain.StatusOpen, d.Status)
	assert.Equal(t, 1000, d.ID)
	assert.Equal(t, "Auto-generated defect for test 42", d.Title)

	require.Len(t, sink.results, 2)
	assert.Equal(t, domain.NotesFailed, sink.results[0].Result.Notes)
	assert.Equal(t, domain.NotesPassed, sink.results[1].Result.Notes)
	assert.Equal(t, "batch-test", sink.results[0].BatchID)

	meta := report.Meta()
	assert.Equal(t, domain.DrainMeta{BatchID: "batch-test", Executed: 2, Passed: 1, Failed: 1, Defects: 1, Duration: meta.Duration}, meta)
	assert.Empty(t, report.Warnings)
	assert.Equal(t, StateIdle, e.State())
	assert.True(t, e.Scheduler().IsEmpty())
}

func TestEngine_SeverityThreshold(t *testing.T) {
	tests := []struct {
		priority int
		expected domain.Severity
	}{
		{priority: 1, expected: domain.SeverityCritical},
		{priority: 3, expected: domain.SeverityCritical},
		{priority: 4, expected: domain.SeverityMajor},
		{priority: 10, expected: domain.SeverityMajor},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("priority %d", tt.priority), func(t *testing.T) {
			sink := &fakeSink{}
			e := newTestEngine(t, NewSequenceOracle(false), sink, &fakeIDs{next: 1000})
			e.Scheduler().Submit(7, tt.priority)

			report, err := e.DrainAll(context.Background())
			require.NoError(t, err)
			require.Len(t, report.Defects, 1)
			assert.Equal(t, tt.expected, report.Defects[0].Severity)
		})
	}
}

func TestEngine_CustomThreshold(t *testing.T) {
	sink := &fakeSink{}
	sched := NewRunScheduler()
	e := NewEngine(sched, history.New(), NewSequenceOracle(false), sink, &fakeIDs{next: 1000}, nil, WithCriticalThreshold(5))
	sched.Submit(7, 5)

	report, err := e.DrainAll(context.Background())
	require.NoError(t, err)
	require.Len(t, report.Defects, 1)
	assert.Equal(t, domain.SeverityCritical, report.Defects[0].Severity)
}

func TestEngine_OracleFailureDoesNotStopDrain(t *testing.T) {
	sink := &fakeSink{}
	calls := 0
	oracle := OracleFunc(func(_ context.Context, run domain.ScheduledRun) (bool, error) {
		calls++
		switch run.TestCaseID {
		case 2:
			return false, errors.New("runner crashed")
		case 3:
			panic("boom")
		}
		return true, nil
	})
	e := newTestEngine(t, oracle, sink, &fakeIDs{next: 1000})
	for tc := 1; tc <= 4; tc++ {
		e.Scheduler().Submit(tc, tc)
	}

	report, err := e.DrainAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, calls)
	require.Len(t, report.Errors, 2)
	assert.Equal(t, 2, report.Errors[0].Run.TestCaseID)
	assert.Contains(t, report.Errors[1].Error(), "panicked")

	texts := e.History().Texts()
	require.Len(t, texts, 4)
	assert.Equal(t, "Run 1: testCase 1 -> PASS", texts[0])
	assert.Equal(t, "Run 2: testCase 2 -> ERROR (runner crashed)", texts[1])
	assert.Equal(t, "Run 4: testCase 4 -> PASS", texts[3])

	assert.Empty(t, report.Defects, "errored runs do not raise defects")
	meta := report.Meta()
	assert.Equal(t, 2, meta.Passed)
	assert.Equal(t, 2, meta.Errored)

	require.Len(t, sink.results, 4, "errored runs are recorded so they are not restored again")
	assert.Equal(t, domain.OutcomeError, sink.results[1].Outcome)
}

func TestEngine_PersistenceFailuresAreWarnings(t *testing.T) {
	unavailable := fmt.Errorf("%w: connection refused", storage.ErrUnavailable)
	sink := &fakeSink{consumeErr: unavailable, resultErr: unavailable, histErr: unavailable, defectErr: unavailable}
	e := newTestEngine(t, NewSequenceOracle(false, false), sink, &fakeIDs{next: 1000})
	e.Scheduler().Submit(1, 1)
	e.Scheduler().Submit(2, 9)

	report, err := e.DrainAll(context.Background())
	require.NoError(t, err)

	// in-memory effects are kept
	assert.Equal(t, 2, e.History().Len())
	assert.Len(t, report.Defects, 2)
	assert.True(t, e.Scheduler().IsEmpty(), "popped runs are not re-queued")

	assert.Len(t, report.Warnings, 8)
	for _, w := range report.Warnings {
		assert.ErrorIs(t, w, storage.ErrUnavailable)
	}
}

func TestEngine_MarksRunConsumedBeforeExecuting(t *testing.T) {
	sink := &fakeSink{}
	var seen [][]int
	oracle := OracleFunc(func(_ context.Context, run domain.ScheduledRun) (bool, error) {
		seen = append(seen, sink.consumedRuns())
		if run.TestCaseID == 2 {
			return false, errors.New("runner crashed")
		}
		return false, nil
	})
	e := newTestEngine(t, oracle, sink, &fakeIDs{next: 1000})
	e.Scheduler().Submit(1, 1)
	e.Scheduler().Submit(2, 2)

	_, err := e.DrainAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]int{{1}, {1, 2}}, seen)
}

func TestEngine_DuplicateDefectIDReseeds(t *testing.T) {
	sink := &fakeSink{dupIDs: map[int]bool{1000: true}}
	ids := &fakeIDs{next: 1000, reseed: 1200}
	e := newTestEngine(t, NewSequenceOracle(false), sink, ids)
	e.Scheduler().Submit(42, 2)

	report, err := e.DrainAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, ids.reseeds)
	require.Len(t, sink.defects, 1)
	assert.Equal(t, 1200, sink.defects[0].ID)
	assert.Equal(t, 1200, report.Defects[0].ID)
	assert.Empty(t, report.Warnings)
}

func TestEngine_NilSink(t *testing.T) {
	e := newTestEngine(t, NewSequenceOracle(false), nil, &fakeIDs{next: 1000})
	e.Scheduler().Submit(42, 1)

	report, err := e.DrainAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, report.Defects, 1)
	assert.Equal(t, 1, e.History().Len())
}

func TestEngine_RejectsConcurrentDrain(t *testing.T) {
	release := make(chan struct{})
	started := make(chan struct{})
	oracle := OracleFunc(func(context.Context, domain.ScheduledRun) (bool, error) {
		close(started)
		<-release
		return true, nil
	})
	e := newTestEngine(t, oracle, nil, &fakeIDs{next: 1000})
	e.Scheduler().Submit(1, 1)

	done := make(chan error, 1)
	go func() {
		_, err := e.DrainAll(context.Background())
		done <- err
	}()

	<-started
	assert.Equal(t, StateDraining, e.State())
	_, err := e.DrainAll(context.Background())
	assert.ErrorIs(t, err, ErrDraining)

	close(release)
	require.NoError(t, <-done)
	assert.Equal(t, StateIdle, e.State())
}

type countingProgress struct {
	updates  int
	passed   int
	failed   int
	errored  int
	finished bool
}

func (p *countingProgress) Update(passed, failed, errored int) {
	p.updates++
	p.passed, p.failed, p.errored = passed, failed, errored
}

func (p *countingProgress) Finish() { p.finished = true }

func TestEngine_Progress(t *testing.T) {
	oracle := OracleFunc(func(_ context.Context, run domain.ScheduledRun) (bool, error) {
		switch run.TestCaseID {
		case 1:
			return false, nil
		case 3:
			return false, errors.New("runner crashed")
		}
		return true, nil
	})
	e := newTestEngine(t, oracle, &fakeSink{}, &fakeIDs{next: 1000})
	for i := 0; i < 4; i++ {
		e.Scheduler().Submit(i, 1)
	}
	p := &countingProgress{}
	e.SetProgress(p)

	_, err := e.DrainAll(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, p.updates)
	assert.Equal(t, 2, p.passed)
	assert.Equal(t, 1, p.failed)
	assert.Equal(t, 1, p.errored, "oracle errors are not failures")
	assert.True(t, p.finished)
}

func TestEngine_DrainEmpty(t *testing.T) {
	e := newTestEngine(t, NewSequenceOracle(), &fakeSink{}, &fakeIDs{next: 1000})
	report, err := e.DrainAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, report.Runs)
	assert.Equal(t, 0, e.History().Len())
}
