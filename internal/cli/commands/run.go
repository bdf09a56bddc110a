package commands

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"qad/internal/cli"
	"qad/internal/domain"
	"qad/internal/storage"
	"qad/internal/ui"
)

// RunCommand handles scheduling and executing runs
type RunCommand struct {
	session   *Session
	flags     *cli.Flags
	formatter *ui.Formatter
	viewer    func(update ui.StatusUpdater) ui.Viewer
}

// NewRunCommand creates a new RunCommand
func NewRunCommand(session *Session, flags *cli.Flags, formatter *ui.Formatter) *RunCommand {
	return &RunCommand{
		session:   session,
		flags:     flags,
		formatter: formatter,
		viewer: func(update ui.StatusUpdater) ui.Viewer {
			return ui.NewDefectViewer(update)
		},
	}
}

// Schedule queues a run of an existing test case
func (rc *RunCommand) Schedule(cmd *cobra.Command, args []string) error {
	testCaseID, err := parseID(args[0])
	if err != nil {
		return err
	}
	dash, err := rc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}

	run, err := dash.ScheduleRun(cmd.Context(), testCaseID, rc.flags.RunPriority)
	if err != nil && !errors.Is(err, storage.ErrUnavailable) {
		return err
	}
	color.Green("Run %d scheduled for test case %d (priority %d)", run.RunID, run.TestCaseID, run.Priority)
	if err != nil {
		color.Yellow("Warning: %v", err)
	}
	return nil
}

// Pending prints the queued runs in the order they will execute
func (rc *RunCommand) Pending(cmd *cobra.Command, args []string) error {
	dash, err := rc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	rc.formatter.PrintPendingRuns(dash.PendingRuns())
	return nil
}

// Results prints the recorded outcome of every executed run
func (rc *RunCommand) Results(cmd *cobra.Command, args []string) error {
	dash, err := rc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	records, err := dash.Results(cmd.Context())
	if err != nil {
		return err
	}
	rc.formatter.PrintResults(records)
	return nil
}

// Execute drains every pending run
func (rc *RunCommand) Execute(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dash, err := rc.session.Dashboard(ctx)
	if err != nil {
		return err
	}

	if n := len(dash.PendingRuns()); n > 0 {
		dash.Engine().SetProgress(ui.NewProgressBar(n))
	}

	report, err := dash.ExecuteRuns(ctx)
	if err != nil {
		return err
	}
	rc.formatter.PrintDrainReport(report)

	if rc.flags.OpenDefects && len(report.Defects) > 0 {
		fmt.Println()
		update := func(id int, status domain.DefectStatus) error {
			return dash.UpdateDefectStatus(ctx, id, status)
		}
		return rc.viewer(update).View(report.Defects)
	}
	return nil
}
