package commands

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"qad/internal/cli"
	"qad/internal/discovery"
	"qad/internal/domain"
	"qad/internal/ui"
)

// TestCaseCommand handles the testcase subcommands
type TestCaseCommand struct {
	session   *Session
	flags     *cli.Flags
	formatter *ui.Formatter
	filter    *discovery.Filter
	parser    *discovery.Parser
}

// NewTestCaseCommand creates a new TestCaseCommand
func NewTestCaseCommand(session *Session, flags *cli.Flags, formatter *ui.Formatter) *TestCaseCommand {
	return &TestCaseCommand{
		session:   session,
		flags:     flags,
		formatter: formatter,
		filter:    discovery.NewFilter(),
		parser:    discovery.NewParser(),
	}
}

// Create stores a new test case named by the joined arguments
func (tc *TestCaseCommand) Create(cmd *cobra.Command, args []string) error {
	priority, err := domain.ParsePriorityClass(tc.flags.Priority)
	if err != nil {
		return err
	}
	dash, err := tc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}

	created, err := dash.CreateTestCase(cmd.Context(), domain.TestCase{
		Name:        strings.Join(args, " "),
		Description: tc.flags.Description,
		Priority:    priority,
		Automated:   tc.flags.Automated,
	})
	if err != nil {
		return err
	}
	color.Green("Test case created with ID: %d", created.ID)
	return nil
}

// List prints all test cases
func (tc *TestCaseCommand) List(cmd *cobra.Command, args []string) error {
	dash, err := tc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	cases, err := dash.ListTestCases(cmd.Context())
	if err != nil {
		return err
	}
	tc.formatter.PrintTestCases(tc.filter.FilterByName(cases, tc.flags.NameFilter))
	return nil
}

// Show prints a single test case
func (tc *TestCaseCommand) Show(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	dash, err := tc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	found, err := dash.GetTestCase(cmd.Context(), id)
	if err != nil {
		return err
	}
	tc.formatter.PrintTestCase(found)
	return nil
}

// Search prints the indexed names starting with the prefix
func (tc *TestCaseCommand) Search(cmd *cobra.Command, args []string) error {
	dash, err := tc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	prefix := ""
	if len(args) > 0 {
		prefix = args[0]
	}
	tc.formatter.PrintSearchResults(dash.SearchTestCases(prefix))
	return nil
}

// Delete removes a test case and rebuilds the search index
func (tc *TestCaseCommand) Delete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	dash, err := tc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	if err := dash.DeleteTestCase(cmd.Context(), id); err != nil {
		return err
	}
	color.Green("Test case %d deleted", id)
	return nil
}

// Import creates the test cases listed in a YAML file
func (tc *TestCaseCommand) Import(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", args[0], err)
	}
	defer f.Close()

	dash, err := tc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	created, err := dash.ImportTestCases(cmd.Context(), f)
	if len(created) > 0 {
		color.Green("Imported %d test case(s)", len(created))
		tc.formatter.PrintTestCases(created)
	}
	return err
}

// Discover registers the automated tests found under the test path
func (tc *TestCaseCommand) Discover(cmd *cobra.Command, args []string) error {
	priority, err := domain.ParsePriorityClass(tc.flags.Priority)
	if err != nil {
		return err
	}
	cfg, err := tc.session.Config()
	if err != nil {
		return err
	}
	dash, err := tc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}

	scanner := discovery.NewScanner(cfg.Discovery.PathsToIgnore, cfg.Discovery.Patterns)
	found, skipped, err := discovery.Discover(scanner, tc.parser, cfg.GetTestPath())
	if err != nil {
		return err
	}
	for _, e := range skipped {
		color.Yellow("Skipped: %v", e)
	}
	if len(found) == 0 {
		color.Yellow("No tests found in %s", cfg.GetTestPath())
		return nil
	}

	created, err := dash.SyncDiscovered(cmd.Context(), found, priority)
	color.Green("Found %d test(s), registered %d new test case(s)", len(found), len(created))
	if len(created) > 0 {
		tc.formatter.PrintTestCases(created)
	}
	return err
}

func parseID(s string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, fmt.Errorf("invalid id %q: must be a number", s)
	}
	return id, nil
}
