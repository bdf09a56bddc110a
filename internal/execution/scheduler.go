package execution

import (
	"container/heap"
	"errors"
	"sync"
	"time"

	"qad/internal/domain"
)

// ErrEmptyQueue is returned by PopNext when no runs are pending.
var ErrEmptyQueue = errors.New("no scheduled runs pending")

type queuedRun struct {
	run domain.ScheduledRun
	seq uint64
}

// runHeap orders by priority, then submission time, then insertion sequence.
type runHeap []queuedRun

func (h runHeap) Len() int { return len(h) }

func (h runHeap) Less(i, j int) bool {
	a, b := h[i], h[j]
	if a.run.Priority != b.run.Priority {
		return a.run.Priority < b.run.Priority
	}
	if !a.run.SubmittedAt.Equal(b.run.SubmittedAt) {
		return a.run.SubmittedAt.Before(b.run.SubmittedAt)
	}
	return a.seq < b.seq
}

func (h runHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *runHeap) Push(x any) { *h = append(*h, x.(queuedRun)) }

func (h *runHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// RunScheduler is a priority queue of pending runs.
// Runs with equal priority and equal submission instant pop in insertion order.
type RunScheduler struct {
	mu        sync.Mutex
	runs      runHeap
	nextRunID int
	seq       uint64
	now       func() time.Time
}

// SchedulerOption configures a RunScheduler
type SchedulerOption func(*RunScheduler)

// WithClock overrides the submission timestamp source.
func WithClock(now func() time.Time) SchedulerOption {
	return func(s *RunScheduler) { s.now = now }
}

// WithFirstRunID sets the id handed to the first submitted run.
func WithFirstRunID(id int) SchedulerOption {
	return func(s *RunScheduler) {
		if id > 0 {
			s.nextRunID = id
		}
	}
}

// NewRunScheduler creates an empty scheduler whose run ids start at 1.
func NewRunScheduler(opts ...SchedulerOption) *RunScheduler {
	s := &RunScheduler{nextRunID: 1, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit queues a run for testCaseID. The test case is not checked for existence.
func (s *RunScheduler) Submit(testCaseID, priority int) domain.ScheduledRun {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := domain.ScheduledRun{
		RunID:       s.nextRunID,
		TestCaseID:  testCaseID,
		Priority:    priority,
		SubmittedAt: s.now(),
	}
	s.nextRunID++
	s.pushLocked(run)
	return run
}

// Restore re-queues a run loaded from storage, keeping its id and submission time.
func (s *RunScheduler) Restore(run domain.ScheduledRun) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if run.RunID >= s.nextRunID {
		s.nextRunID = run.RunID + 1
	}
	s.pushLocked(run)
}

func (s *RunScheduler) pushLocked(run domain.ScheduledRun) {
	heap.Push(&s.runs, queuedRun{run: run, seq: s.seq})
	s.seq++
}

// PopNext removes and returns the most urgent run.
func (s *RunScheduler) PopNext() (domain.ScheduledRun, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.runs) == 0 {
		return domain.ScheduledRun{}, ErrEmptyQueue
	}
	return heap.Pop(&s.runs).(queuedRun).run, nil
}

// IsEmpty reports whether any runs are pending
func (s *RunScheduler) IsEmpty() bool {
	return s.Len() == 0
}

// Len returns the number of pending runs
func (s *RunScheduler) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.runs)
}

// Pending returns the queued runs in the order PopNext would return them.
func (s *RunScheduler) Pending() []domain.ScheduledRun {
	s.mu.Lock()
	snapshot := make(runHeap, len(s.runs))
	copy(snapshot, s.runs)
	s.mu.Unlock()

	out := make([]domain.ScheduledRun, 0, len(snapshot))
	for snapshot.Len() > 0 {
		out = append(out, heap.Pop(&snapshot).(queuedRun).run)
	}
	return out
}
