package execution

import (
	"errors"
	"math/rand"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qad/internal/domain"
)

// fixedClock returns t0, t0+1ns, t0+2ns, ... unless frozen.
type fixedClock struct {
	mu     sync.Mutex
	t      time.Time
	frozen bool
}

func (c *fixedClock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.t
	if !c.frozen {
		c.t = c.t.Add(time.Nanosecond)
	}
	return t
}

func newClock() *fixedClock {
	return &fixedClock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func TestRunScheduler_EmptyQueue(t *testing.T) {
	s := NewRunScheduler()
	assert.True(t, s.IsEmpty())

	_, err := s.PopNext()
	assert.ErrorIs(t, err, ErrEmptyQueue)

	run := s.Submit(42, 1)
	assert.False(t, s.IsEmpty())
	assert.Equal(t, 1, run.RunID)

	got, err := s.PopNext()
	require.NoError(t, err)
	assert.Equal(t, run, got)
	assert.True(t, s.IsEmpty())

	_, err = s.PopNext()
	assert.True(t, errors.Is(err, ErrEmptyQueue))
}

func TestRunScheduler_Order(t *testing.T) {
	tests := []struct {
		name       string
		priorities []int
		frozen     bool
		expected   []int // test case ids in pop order
	}{
		{
			name:       "priority ascending",
			priorities: []int{5, 1, 3},
			expected:   []int{1, 2, 0},
		},
		{
			name:       "equal priority pops in submission order",
			priorities: []int{2, 2, 2, 2},
			expected:   []int{0, 1, 2, 3},
		},
		{
			name:       "identical instant falls back to insertion order",
			priorities: []int{4, 4, 1, 4},
			frozen:     true,
			expected:   []int{2, 0, 1, 3},
		},
		{
			name:       "negative priorities are most urgent",
			priorities: []int{0, -1, 10},
			expected:   []int{1, 0, 2},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			clock := newClock()
			clock.frozen = tt.frozen
			s := NewRunScheduler(WithClock(clock.now))
			for i, p := range tt.priorities {
				s.Submit(i, p)
			}

			var got []int
			for !s.IsEmpty() {
				run, err := s.PopNext()
				require.NoError(t, err)
				got = append(got, run.TestCaseID)
			}
			assert.Equal(t, tt.expected, got)
		})
	}
}

func TestRunScheduler_LowerPriorityNeverOvertakes(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	for round := 0; round < 20; round++ {
		s := NewRunScheduler(WithClock(newClock().now))
		n := 1 + rng.Intn(200)
		for i := 0; i < n; i++ {
			s.Submit(i, rng.Intn(10))
		}

		var popped []domain.ScheduledRun
		for !s.IsEmpty() {
			run, err := s.PopNext()
			require.NoError(t, err)
			popped = append(popped, run)
		}
		require.Len(t, popped, n)

		sorted := sort.SliceIsSorted(popped, func(i, j int) bool {
			if popped[i].Priority != popped[j].Priority {
				return popped[i].Priority < popped[j].Priority
			}
			return popped[i].SubmittedAt.Before(popped[j].SubmittedAt)
		})
		assert.True(t, sorted, "round %d popped out of order", round)
	}
}

func TestRunScheduler_UniqueRunIDs(t *testing.T) {
	s := NewRunScheduler(WithFirstRunID(100))
	seen := map[int]bool{}
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				run := s.Submit(i, j%3)
				mu.Lock()
				seen[run.RunID] = true
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Len(t, seen, 400)
	assert.True(t, seen[100])
	assert.True(t, seen[499])
	assert.Equal(t, 400, s.Len())
}

func TestRunScheduler_Restore(t *testing.T) {
	clock := newClock()
	s := NewRunScheduler(WithClock(clock.now))

	old := domain.ScheduledRun{RunID: 7, TestCaseID: 42, Priority: 3, SubmittedAt: time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC)}
	s.Restore(old)

	fresh := s.Submit(43, 3)
	assert.Equal(t, 8, fresh.RunID, "submit continues after restored ids")

	first, err := s.PopNext()
	require.NoError(t, err)
	assert.Equal(t, old, first, "older submission wins at equal priority")
}

func TestRunScheduler_PendingDoesNotMutate(t *testing.T) {
	s := NewRunScheduler(WithClock(newClock().now))
	s.Submit(1, 9)
	s.Submit(2, 1)
	s.Submit(3, 5)

	pending := s.Pending()
	require.Len(t, pending, 3)
	assert.Equal(t, []int{2, 3, 1}, []int{pending[0].TestCaseID, pending[1].TestCaseID, pending[2].TestCaseID})
	assert.Equal(t, 3, s.Len())

	run, err := s.PopNext()
	require.NoError(t, err)
	assert.Equal(t, 2, run.TestCaseID)
}
