package commands

import (
	"github.com/spf13/cobra"

	"qad/internal/ui"
)

// HistoryCommand prints the execution history
type HistoryCommand struct {
	session   *Session
	formatter *ui.Formatter
}

// NewHistoryCommand creates a new HistoryCommand
func NewHistoryCommand(session *Session, formatter *ui.Formatter) *HistoryCommand {
	return &HistoryCommand{session: session, formatter: formatter}
}

// Execute runs the command
func (hc *HistoryCommand) Execute(cmd *cobra.Command, args []string) error {
	dash, err := hc.session.Dashboard(cmd.Context())
	if err != nil {
		return err
	}
	hc.formatter.PrintHistory(dash.History())
	return nil
}
