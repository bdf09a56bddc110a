package commands

import (
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"qad/internal/cli"
	"qad/internal/domain"
	"qad/internal/ui"
)

// DefectCommand handles the defect subcommands
type DefectCommand struct {
	session   *Session
	flags     *cli.Flags
	formatter *ui.Formatter
	viewer    func(update ui.StatusUpdater) ui.Viewer
}

// NewDefectCommand creates a new DefectCommand
func NewDefectCommand(session *Session, flags *cli.Flags, formatter *ui.Formatter) *DefectCommand {
	return &DefectCommand{
		session:   session,
		flags:     flags,
		formatter: formatter,
		viewer: func(update ui.StatusUpdater) ui.Viewer {
			return ui.NewDefectViewer(update)
		},
	}
}

// Add records a defect against a test case
func (dc *DefectCommand) Add(cmd *cobra.Command, args []string) error {
	testCaseID, err := parseID(args[0])
	if err != nil {
		return err
	}
	dash, err := dc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}

	title := dc.flags.Title
	if len(args) > 1 {
		title = strings.Join(args[1:], " ")
	}
	def, err := dash.AddDefect(cmd.Context(), testCaseID, title, dc.flags.Severity)
	if err != nil {
		return err
	}
	color.Green("Defect created with ID: %d", def.ID)
	return nil
}

// List prints all defects
func (dc *DefectCommand) List(cmd *cobra.Command, args []string) error {
	dash, err := dc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	defects, err := dash.ListDefects(cmd.Context())
	if err != nil {
		return err
	}
	dc.formatter.PrintDefects(defects)
	return nil
}

// Status sets the status of a defect
func (dc *DefectCommand) Status(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	status, err := domain.ParseDefectStatus(strings.Join(args[1:], " "))
	if err != nil {
		return err
	}
	dash, err := dc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	if err := dash.UpdateDefectStatus(cmd.Context(), id, status); err != nil {
		return err
	}
	color.Green("Defect %d is now %s", id, status)
	return nil
}

// View opens the interactive defect viewer
func (dc *DefectCommand) View(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dash, err := dc.session.Dashboard(ctx)
	if err != nil {
		return err
	}
	defects, err := dash.ListDefects(ctx)
	if err != nil {
		return err
	}
	update := func(id int, status domain.DefectStatus) error {
		return dash.UpdateDefectStatus(ctx, id, status)
	}
	return dc.viewer(update).View(defects)
}
