package commands

import (
	"github.com/spf13/cobra"

	"qad/internal/cli"
	"qad/internal/config"
	"qad/internal/ui"
)

// Commands holds all CLI commands
type Commands struct {
	Session  *Session
	TestCase *TestCaseCommand
	Run      *RunCommand
	Defect   *DefectCommand
	History  *HistoryCommand
}

// NewCommands creates all commands sharing one session
func NewCommands(flags *cli.Flags) *Commands {
	session := NewSession(flags)
	formatter := ui.NewFormatter()

	return &Commands{
		Session:  session,
		TestCase: NewTestCaseCommand(session, flags, formatter),
		Run:      NewRunCommand(session, flags, formatter),
		Defect:   NewDefectCommand(session, flags, formatter),
		History:  NewHistoryCommand(session, formatter),
	}
}

// Register registers all commands with cobra
func (c *Commands) Register(rootCmd *cobra.Command, flags *cli.Flags) {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flags.ConfigFile, "config", "c", "", "Config file (default: qad.yaml in the project path)")
	pf.StringVar(&flags.ProjectPath, "project", "", "Project path holding qad.yaml, .env and the store (default: current directory)")
	pf.StringVar(&flags.StoreDriver, "store", "", "Store driver: json, sqlite or mysql")
	pf.StringVar(&flags.StorePath, "store-path", "", "JSON or SQLite store file")
	pf.StringVar(&flags.Oracle, "oracle", "", "Outcome oracle: random or command")
	pf.Int64Var(&flags.Seed, "seed", 0, "Seed for the random oracle (0 = time based)")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.PersistentPostRunE = func(cmd *cobra.Command, args []string) error {
		return c.Session.Close()
	}

	rootCmd.AddCommand(c.testCaseCommand(flags))
	rootCmd.AddCommand(c.runCommand(flags))
	rootCmd.AddCommand(c.defectCommand(flags))

	// History command
	rootCmd.AddCommand(&cobra.Command{
		Use:   "history",
		Short: "Show the execution history",
		Long:  "Print every executed run, oldest first, numbered from 1",
		Args:  cobra.NoArgs,
		RunE:  c.History.Execute,
	})
}

func (c *Commands) testCaseCommand(flags *cli.Flags) *cobra.Command {
	testCaseCmd := &cobra.Command{
		Use:     "testcase",
		Aliases: []string{"tc"},
		Short:   "Manage test cases",
	}

	createCmd := &cobra.Command{
		Use:   "create <name...>",
		Short: "Create a test case",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.TestCase.Create,
	}
	createCmd.Flags().StringVarP(&flags.Description, "description", "d", "", "Test case description")
	createCmd.Flags().StringVarP(&flags.Priority, "priority", "p", config.DefaultPriorityClass, "Priority class: P0, P1 or P2")
	createCmd.Flags().BoolVarP(&flags.Automated, "automated", "a", false, "Mark the test case as automated")

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List test cases",
		Args:  cobra.NoArgs,
		RunE:  c.TestCase.List,
	}
	listCmd.Flags().StringVarP(&flags.NameFilter, "filter", "f", "", "Filter test cases by name pattern (supports wildcards, e.g., '*Login*' or 'UserTest::*')")

	discoverCmd := &cobra.Command{
		Use:   "discover",
		Short: "Register automated tests found in the project",
		Long:  "Scan the test path for Go, PHPUnit and pytest tests and create an automated test case for each one not registered yet",
		Args:  cobra.NoArgs,
		RunE:  c.TestCase.Discover,
	}
	discoverCmd.Flags().StringVarP(&flags.TestPath, "test-path", "t", "", "Path to the folder where test discovery should start")
	discoverCmd.Flags().StringVarP(&flags.Priority, "priority", "p", config.DefaultPriorityClass, "Priority class of the new test cases: P0, P1 or P2")

	testCaseCmd.AddCommand(
		createCmd,
		listCmd,
		discoverCmd,
		&cobra.Command{
			Use:   "show <id>",
			Short: "Show a test case",
			Args:  cobra.ExactArgs(1),
			RunE:  c.TestCase.Show,
		},
		&cobra.Command{
			Use:   "search [prefix]",
			Short: "Search test case names by prefix (case-insensitive)",
			Args:  cobra.MaximumNArgs(1),
			RunE:  c.TestCase.Search,
		},
		&cobra.Command{
			Use:   "delete <id>",
			Short: "Delete a test case and rebuild the search index",
			Args:  cobra.ExactArgs(1),
			RunE:  c.TestCase.Delete,
		},
		&cobra.Command{
			Use:   "import <file.yaml>",
			Short: "Create the test cases listed under test_cases: in a YAML file",
			Args:  cobra.ExactArgs(1),
			RunE:  c.TestCase.Import,
		},
	)
	return testCaseCmd
}

func (c *Commands) runCommand(flags *cli.Flags) *cobra.Command {
	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Schedule and execute test runs",
	}

	scheduleCmd := &cobra.Command{
		Use:   "schedule <testCaseId>",
		Short: "Queue a run of a test case",
		Long:  "Queue a run of a test case. Lower priority numbers execute first; equal priorities execute in submission order.",
		Args:  cobra.ExactArgs(1),
		RunE:  c.Run.Schedule,
	}
	scheduleCmd.Flags().IntVarP(&flags.RunPriority, "priority", "p", config.DefaultRunPriority, "Numeric run priority (lower = more urgent)")

	executeCmd := &cobra.Command{
		Use:   "execute",
		Short: "Execute every pending run",
		Long:  "Drain the run queue, record each outcome in the history and raise a defect for every failed run",
		Args:  cobra.NoArgs,
		RunE:  c.Run.Execute,
	}
	executeCmd.Flags().BoolVar(&flags.OpenDefects, "open-defects", false, "Open the defect viewer when the drain raised defects")

	runCmd.AddCommand(
		scheduleCmd,
		&cobra.Command{
			Use:   "pending",
			Short: "List pending runs in execution order",
			Args:  cobra.NoArgs,
			RunE:  c.Run.Pending,
		},
		executeCmd,
		&cobra.Command{
			Use:   "results",
			Short: "List recorded run outcomes with their batch ids",
			Args:  cobra.NoArgs,
			RunE:  c.Run.Results,
		},
	)
	return runCmd
}

func (c *Commands) defectCommand(flags *cli.Flags) *cobra.Command {
	defectCmd := &cobra.Command{
		Use:   "defect",
		Short: "Manage defects",
	}

	addCmd := &cobra.Command{
		Use:   "add <testCaseId> [title...]",
		Short: "Record a defect against a test case",
		Args:  cobra.MinimumNArgs(1),
		RunE:  c.Defect.Add,
	}
	addCmd.Flags().StringVarP(&flags.Title, "title", "t", "", "Defect title")
	addCmd.Flags().StringVarP(&flags.Severity, "severity", "s", config.DefaultSeverity, "Severity: Critical, Major or Minor")

	defectCmd.AddCommand(
		addCmd,
		&cobra.Command{
			Use:   "list",
			Short: "List defects",
			Args:  cobra.NoArgs,
			RunE:  c.Defect.List,
		},
		&cobra.Command{
			Use:   "status <id> <Open|In Progress|Closed>",
			Short: "Set the status of a defect",
			Args:  cobra.MinimumNArgs(2),
			RunE:  c.Defect.Status,
		},
		&cobra.Command{
			Use:   "view",
			Short: "Browse defects interactively",
			Long:  "Display defects in an interactive viewer; press S to advance the selected defect's status",
			Args:  cobra.NoArgs,
			RunE:  c.Defect.View,
		},
	)
	return defectCmd
}
