package execution

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qad/internal/config"
	"qad/internal/domain"
)

func TestSequenceOracle(t *testing.T) {
	ctx := context.Background()
	o := NewSequenceOracle(false, true)

	got, err := o.Decide(ctx, domain.ScheduledRun{})
	require.NoError(t, err)
	assert.False(t, got)

	got, err = o.Decide(ctx, domain.ScheduledRun{})
	require.NoError(t, err)
	assert.True(t, got)

	_, err = o.Decide(ctx, domain.ScheduledRun{})
	assert.ErrorIs(t, err, ErrOutcomesExhausted)
}

func TestRandomOracle_SeedIsReproducible(t *testing.T) {
	ctx := context.Background()
	a, b := NewRandomOracle(99), NewRandomOracle(99)
	var passes int
	for i := 0; i < 100; i++ {
		x, _ := a.Decide(ctx, domain.ScheduledRun{})
		y, _ := b.Decide(ctx, domain.ScheduledRun{})
		require.Equal(t, x, y)
		if x {
			passes++
		}
	}
	assert.Greater(t, passes, 0)
	assert.Less(t, passes, 100)
}

func TestNewOracle(t *testing.T) {
	cfg := config.New()
	assert.IsType(t, &RandomOracle{}, NewOracle(cfg))

	cfg.Engine.Oracle = config.OracleCommand
	cfg.Engine.Command = "true"
	assert.IsType(t, &CommandOracle{}, NewOracle(cfg))
}

func TestCommandOracle(t *testing.T) {
	ctx := context.Background()
	run := domain.ScheduledRun{RunID: 3, TestCaseID: 1042, Priority: 2}

	newOracle := func(command string, timeout time.Duration) *CommandOracle {
		cfg := config.New()
		cfg.ProjectPath = t.TempDir()
		cfg.Engine.Command = command
		cfg.Engine.CommandTimeout = timeout
		return NewCommandOracle(cfg)
	}

	tests := []struct {
		name    string
		command string
		timeout time.Duration
		passed  bool
		wantErr bool
	}{
		{name: "zero exit passes", command: "exit 0", passed: true},
		{name: "non-zero exit fails", command: "exit 3"},
		{name: "run is described in env", command: `test "$QAD_TEST_CASE_ID" = 1042 && test "$QAD_RUN_ID" = 3`, passed: true},
		{name: "timeout is an error", command: "sleep 5", timeout: 50 * time.Millisecond, wantErr: true},
		{name: "empty command is an error", command: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			passed, err := newOracle(tt.command, tt.timeout).Decide(ctx, run)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.passed, passed)
		})
	}
}

func TestCommandOracle_Lookup(t *testing.T) {
	ctx := context.Background()
	cfg := config.New()
	cfg.ProjectPath = t.TempDir()
	cfg.Engine.Command = `test "$QAD_TEST_NAME" = "store_test::TestStore_Create" && test "$QAD_TEST_DESCRIPTION" = "pkg/store/store_test.go"`

	lookup := func(_ context.Context, id int) (domain.TestCase, error) {
		if id != 1042 {
			return domain.TestCase{}, fmt.Errorf("test case %d not found", id)
		}
		return domain.TestCase{ID: id, Name: "store_test::TestStore_Create", Description: "pkg/store/store_test.go"}, nil
	}
	oracle := NewCommandOracle(cfg).WithLookup(lookup)

	passed, err := oracle.Decide(ctx, domain.ScheduledRun{RunID: 1, TestCaseID: 1042})
	require.NoError(t, err)
	assert.True(t, passed)

	// a deleted test case still runs, without the name
	passed, err = oracle.Decide(ctx, domain.ScheduledRun{RunID: 2, TestCaseID: 7})
	require.NoError(t, err)
	assert.False(t, passed)
}
