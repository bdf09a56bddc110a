package execution

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"time"

	"qad/internal/config"
	"qad/internal/domain"
)

// TestCaseLookup resolves the test case a run refers to.
type TestCaseLookup func(ctx context.Context, id int) (domain.TestCase, error)

// CommandOracle runs a shell command per run and passes the run when it exits 0.
// The run is described to the command through QAD_RUN_ID, QAD_TEST_CASE_ID and
// QAD_PRIORITY, plus QAD_TEST_NAME and QAD_TEST_DESCRIPTION when a lookup is set
// and the test case still exists.
type CommandOracle struct {
	config *config.Config
	lookup TestCaseLookup
}

// NewCommandOracle creates a new CommandOracle
func NewCommandOracle(cfg *config.Config) *CommandOracle {
	return &CommandOracle{config: cfg}
}

// WithLookup sets the test case lookup and returns c
func (c *CommandOracle) WithLookup(lookup TestCaseLookup) *CommandOracle {
	c.lookup = lookup
	return c
}

// Decide executes the configured command for run.
// A non-zero exit is a failed run; failing to start the command or hitting the
// timeout is an error.
func (c *CommandOracle) Decide(ctx context.Context, run domain.ScheduledRun) (bool, error) {
	if c.config.Engine.Command == "" {
		return false, errors.New("no engine command configured")
	}

	if c.config.Engine.CommandTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.config.Engine.CommandTimeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", c.config.Engine.Command)

	// Set environment variables
	cmd.Env = os.Environ()
	cmd.Env = append(cmd.Env,
		"QAD_RUN_ID="+strconv.Itoa(run.RunID),
		"QAD_TEST_CASE_ID="+strconv.Itoa(run.TestCaseID),
		"QAD_PRIORITY="+strconv.Itoa(run.Priority),
	)
	if c.lookup != nil {
		if tc, err := c.lookup(ctx, run.TestCaseID); err == nil {
			cmd.Env = append(cmd.Env,
				"QAD_TEST_NAME="+tc.Name,
				"QAD_TEST_DESCRIPTION="+tc.Description,
			)
		}
	}
	cmd.Dir = c.config.ProjectPath

	start := time.Now()
	err := cmd.Run()
	if err == nil {
		return true, nil
	}
	if ctx.Err() != nil {
		return false, fmt.Errorf("command for run %d timed out after %s: %w", run.RunID, time.Since(start).Round(time.Millisecond), ctx.Err())
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		return false, nil
	}
	return false, fmt.Errorf("start command for run %d: %w", run.RunID, err)
}
