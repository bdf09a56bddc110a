package ui

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"qad/internal/domain"
)

// DefectViewer lists defects in a TUI and lets the user advance their status.
type DefectViewer struct {
	update StatusUpdater
}

// NewDefectViewer creates a viewer that saves status changes through update.
func NewDefectViewer(update StatusUpdater) *DefectViewer {
	return &DefectViewer{update: update}
}

// View displays defects until the user quits
func (dv *DefectViewer) View(defects []domain.Defect) error {
	if len(defects) == 0 {
		color.Green("✓ No defects recorded!")
		return nil
	}

	app := tview.NewApplication()

	list := tview.NewList().
		ShowSecondaryText(false).
		SetHighlightFullLine(true)

	for i := range defects {
		list.AddItem(defectListText(defects[i]), "", 0, nil)
	}

	list.SetMainTextColor(tview.Styles.PrimaryTextColor).
		SetSelectedTextColor(tcell.ColorWhite).
		SetSelectedBackgroundColor(tcell.ColorDarkCyan)

	detailsView := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetWordWrap(true)

	statusView := tview.NewTextView().
		SetDynamicColors(true)

	rightSide := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(detailsView, 0, 1, false).
		AddItem(statusView, 1, 0, false)

	flex := tview.NewFlex().
		SetDirection(tview.FlexColumn).
		AddItem(list, 0, 1, true).
		AddItem(rightSide, 0, 2, false)

	headerView := tview.NewTextView().
		SetTextAlign(tview.AlignCenter).
		SetDynamicColors(true)

	updateHeader := func() {
		open := 0
		for _, d := range defects {
			if d.Status != domain.StatusClosed {
				open++
			}
		}
		headerView.SetText(fmt.Sprintf(" Defects (%d total, %d not closed) | ↑↓ navigate, [yellow]S[white] advance status, Ctrl+C exit ", len(defects), open))
	}

	updateDetails := func() {
		index := list.GetCurrentItem()
		if index >= 0 && index < len(defects) {
			detailsView.SetText(formatDefectDetails(defects[index]))
		}
	}

	list.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		switch event.Key() {
		case tcell.KeyCtrlC, tcell.KeyEsc:
			app.Stop()
			return nil
		case tcell.KeyRune:
			if event.Rune() != 's' && event.Rune() != 'S' {
				return event
			}
			index := list.GetCurrentItem()
			if index < 0 || index >= len(defects) {
				return nil
			}
			next := defects[index].Status.Next()
			if next == defects[index].Status {
				return nil
			}
			if dv.update != nil {
				if err := dv.update(defects[index].ID, next); err != nil {
					statusView.SetText(fmt.Sprintf("[red]save failed: %v", tview.Escape(err.Error())))
					return nil
				}
			}
			defects[index].Status = next
			list.SetItemText(index, defectListText(defects[index]), "")
			statusView.SetText(fmt.Sprintf("[green]defect %d is now %s", defects[index].ID, next))
			updateHeader()
			updateDetails()
			return nil
		}
		return event
	})

	list.SetChangedFunc(func(int, string, string, rune) {
		statusView.SetText("")
		updateDetails()
	})

	updateHeader()
	updateDetails()

	mainLayout := tview.NewFlex().
		SetDirection(tview.FlexRow).
		AddItem(headerView, 1, 0, false).
		AddItem(tview.NewBox(), 1, 0, false).
		AddItem(flex, 0, 1, true)

	if err := app.SetRoot(mainLayout, true).SetFocus(list).Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func severityTag(s domain.Severity) string {
	switch s {
	case domain.SeverityCritical:
		return "red"
	case domain.SeverityMajor:
		return "yellow"
	default:
		return "white"
	}
}

func defectListText(d domain.Defect) string {
	if d.Status == domain.StatusClosed {
		return fmt.Sprintf("[gray]✓ %d. %s[white]", d.ID, tview.Escape(d.Title))
	}
	return fmt.Sprintf("[%s]%d.[white] %s", severityTag(d.Severity), d.ID, tview.Escape(d.Title))
}

// formatDefectDetails uses tview color tags
func formatDefectDetails(d domain.Defect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]%s defect %d[white]\n\n", severityTag(d.Severity), d.Severity, d.ID)
	fmt.Fprintf(&b, "[cyan]Title:[white] %s\n", tview.Escape(d.Title))
	fmt.Fprintf(&b, "[cyan]Test case:[white] %d\n", d.TestCaseID)
	fmt.Fprintf(&b, "[cyan]Status:[white] %s\n", d.Status)
	return b.String()
}
