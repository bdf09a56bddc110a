package commands

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qad/internal/cli"
	"qad/internal/domain"
	"qad/internal/storage"
)

// execute runs one CLI invocation against project, like a separate process would.
func execute(t *testing.T, project string, args ...string) error {
	t.Helper()
	rootCmd := &cobra.Command{Use: "qad", SilenceUsage: true, SilenceErrors: true}
	var flags cli.Flags
	cmds := NewCommands(&flags)
	cmds.Register(rootCmd, &flags)

	rootCmd.SetArgs(append([]string{"--project", project}, args...))
	err := rootCmd.ExecuteContext(context.Background())
	return errors.Join(err, cmds.Session.Close())
}

func openProjectStore(t *testing.T, project string) storage.Store {
	t.Helper()
	s, err := storage.NewJSONStore(filepath.Join(project, "storage", "qa-dashboard.json"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestCommands_Workflow(t *testing.T) {
	ctx := context.Background()
	project := t.TempDir()

	// Only the Logout test case passes
	qadYAML := "engine:\n  oracle: command\n  command: test \"$QAD_TEST_NAME\" = Logout\n"
	require.NoError(t, os.WriteFile(filepath.Join(project, "qad.yaml"), []byte(qadYAML), 0644))

	require.NoError(t, execute(t, project, "testcase", "create", "Login", "-p", "P0", "-d", "valid credentials"))
	require.NoError(t, execute(t, project, "testcase", "create", "Logout", "--automated"))
	require.Error(t, execute(t, project, "testcase", "create", "Broken", "-p", "P7"))

	require.NoError(t, execute(t, project, "testcase", "search", "log"))
	require.NoError(t, execute(t, project, "testcase", "list", "--filter", "*out"))

	require.NoError(t, execute(t, project, "run", "schedule", "1001", "-p", "5"))
	require.NoError(t, execute(t, project, "run", "schedule", "1000", "-p", "1"))
	err := execute(t, project, "run", "schedule", "9999")
	assert.ErrorIs(t, err, storage.ErrNotFound)
	require.NoError(t, execute(t, project, "run", "pending"))

	require.NoError(t, execute(t, project, "run", "execute"))

	store := openProjectStore(t, project)
	history, err := store.LoadAllHistoryEntries(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"Run 2: testCase 1000 -> FAIL",
		"Run 1: testCase 1001 -> PASS",
	}, history)

	defects, err := store.ListDefects(ctx)
	require.NoError(t, err)
	require.Len(t, defects, 1)
	assert.Equal(t, domain.Defect{
		ID:         1002,
		TestCaseID: 1000,
		Title:      "Auto-generated defect for test 1000",
		Severity:   domain.SeverityCritical,
		Status:     domain.StatusOpen,
	}, defects[0])

	require.NoError(t, execute(t, project, "defect", "status", "1002", "in", "progress"))
	require.NoError(t, execute(t, project, "defect", "add", "1001", "Session", "survives", "logout", "-s", "minor"))
	require.NoError(t, execute(t, project, "defect", "list"))
	require.NoError(t, execute(t, project, "history"))
	require.NoError(t, execute(t, project, "run", "results"))

	defects, err = store.ListDefects(ctx)
	require.NoError(t, err)
	require.Len(t, defects, 2)
	assert.Equal(t, domain.StatusInProgress, defects[0].Status)
	assert.Equal(t, "Session survives logout", defects[1].Title)
	assert.Equal(t, domain.SeverityMinor, defects[1].Severity)

	pending, err := store.LoadPendingRuns(ctx)
	require.NoError(t, err)
	assert.Empty(t, pending)
}

func TestCommands_ImportAndDiscover(t *testing.T) {
	ctx := context.Background()
	project := t.TempDir()

	importFile := filepath.Join(project, "cases.yaml")
	require.NoError(t, os.WriteFile(importFile, []byte("test_cases:\n  - name: Checkout\n    priority: P1\n"), 0644))
	require.NoError(t, execute(t, project, "testcase", "import", importFile))

	goTest := "package cart\n\nimport \"testing\"\n\nfunc TestCart_Add(t *testing.T) {}\n"
	require.NoError(t, os.MkdirAll(filepath.Join(project, "src", "cart"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(project, "src", "cart", "cart_test.go"), []byte(goTest), 0644))

	require.NoError(t, execute(t, project, "testcase", "discover", "-t", "src", "-p", "P0"))
	// a second discovery registers nothing new
	require.NoError(t, execute(t, project, "testcase", "discover", "-t", "src"))

	cases, err := openProjectStore(t, project).ListTestCases(ctx)
	require.NoError(t, err)
	require.Len(t, cases, 2)
	assert.Equal(t, "Checkout", cases[0].Name)
	assert.Equal(t, domain.TestCase{
		ID:          1001,
		Name:        "cart_test::TestCart_Add",
		Description: "cart/cart_test.go",
		Priority:    domain.PriorityP0,
		Automated:   true,
	}, cases[1])

	require.NoError(t, execute(t, project, "testcase", "show", "1001"))
	require.NoError(t, execute(t, project, "testcase", "delete", "1001"))
	assert.Error(t, execute(t, project, "testcase", "show", "1001"))
}
