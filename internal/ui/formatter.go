package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/fatih/color"

	"qad/internal/domain"
	"qad/internal/execution"
	"qad/internal/history"
)

// Formatter formats and displays output
type Formatter struct {
	out io.Writer

	cyan   *color.Color
	green  *color.Color
	red    *color.Color
	yellow *color.Color
	white  *color.Color
}

// NewFormatter creates a Formatter writing to stdout
func NewFormatter() *Formatter {
	return NewFormatterTo(os.Stdout)
}

// NewFormatterTo creates a Formatter writing to w
func NewFormatterTo(w io.Writer) *Formatter {
	return &Formatter{
		out:    w,
		cyan:   color.New(color.FgCyan),
		green:  color.New(color.FgGreen),
		red:    color.New(color.FgRed),
		yellow: color.New(color.FgYellow),
		white:  color.New(color.FgWhite),
	}
}

func (f *Formatter) header(title string) {
	f.cyan.Fprintf(f.out, "--- %s ---\n", title)
}

// PrintTestCases lists test cases, one per line
func (f *Formatter) PrintTestCases(cases []domain.TestCase) {
	f.header("Test Cases")
	if len(cases) == 0 {
		f.yellow.Fprintln(f.out, "No test cases found")
		return
	}
	w := tabwriter.NewWriter(f.out, 0, 0, 1, ' ', 0)
	for _, tc := range cases {
		fmt.Fprintf(w, "ID:%d\t| %s\t| %s\t| automated:%t\n", tc.ID, tc.Name, tc.Priority, tc.Automated)
	}
	w.Flush()
}

// PrintTestCase shows one test case in full
func (f *Formatter) PrintTestCase(tc domain.TestCase) {
	f.cyan.Fprintf(f.out, "Test case %d\n", tc.ID)
	fmt.Fprintf(f.out, "  Name:        %s\n", tc.Name)
	fmt.Fprintf(f.out, "  Description: %s\n", tc.Description)
	fmt.Fprintf(f.out, "  Priority:    %s\n", tc.Priority)
	fmt.Fprintf(f.out, "  Automated:   %t\n", tc.Automated)
}

// PrintSearchResults prints prefix matches
func (f *Formatter) PrintSearchResults(names []string) {
	if len(names) == 0 {
		f.yellow.Fprintln(f.out, "No matches.")
		return
	}
	f.green.Fprintln(f.out, "Matches:")
	for _, name := range names {
		fmt.Fprintf(f.out, " - %s\n", name)
	}
}

// PrintPendingRuns lists queued runs in execution order
func (f *Formatter) PrintPendingRuns(runs []domain.ScheduledRun) {
	f.header("Pending Runs")
	if len(runs) == 0 {
		f.yellow.Fprintln(f.out, "No runs scheduled")
		return
	}
	w := tabwriter.NewWriter(f.out, 0, 0, 1, ' ', 0)
	for _, r := range runs {
		fmt.Fprintf(w, "Run %d\t| testCase %d\t| priority %d\t| submitted %s\n",
			r.RunID, r.TestCaseID, r.Priority, r.SubmittedAt.Local().Format("2006-01-02 15:04:05"))
	}
	w.Flush()
}

// PrintResults lists recorded run outcomes with the batch that executed them
func (f *Formatter) PrintResults(records []domain.RunRecord) {
	f.header("Run Results")
	if len(records) == 0 {
		f.yellow.Fprintln(f.out, "No runs executed yet")
		return
	}
	w := tabwriter.NewWriter(f.out, 0, 0, 1, ' ', 0)
	for _, r := range records {
		fmt.Fprintf(w, "Run %d\t| testCase %d\t| %s\t| batch %s\t| %s\t| %s\n",
			r.RunID, r.Result.TestCaseID, r.Outcome, r.BatchID,
			r.ExecutedAt.Local().Format("2006-01-02 15:04:05"), r.Result.Notes)
	}
	w.Flush()
}

// PrintHistory prints the execution history numbered from 1
func (f *Formatter) PrintHistory(entries []history.Entry) {
	f.header("Execution History")
	if len(entries) == 0 {
		f.yellow.Fprintln(f.out, "No runs executed yet")
		return
	}
	for _, e := range entries {
		c := f.white
		switch {
		case strings.HasSuffix(e.Text, string(domain.OutcomePass)):
			c = f.green
		case strings.Contains(e.Text, "-> "+string(domain.OutcomeFail)), strings.Contains(e.Text, "-> "+string(domain.OutcomeError)):
			c = f.red
		}
		fmt.Fprintf(f.out, "%d. ", e.Seq+1)
		c.Fprintln(f.out, e.Text)
	}
}

// PrintDefects lists defects, one per line
func (f *Formatter) PrintDefects(defects []domain.Defect) {
	f.header("Defects")
	if len(defects) == 0 {
		f.green.Fprintln(f.out, "✓ No defects recorded")
		return
	}
	for _, d := range defects {
		c := f.yellow
		switch {
		case d.Status == domain.StatusClosed:
			c = f.white
		case d.Severity == domain.SeverityCritical:
			c = f.red
		}
		c.Fprintf(f.out, "ID:%d | TestCase:%d | %s | %s | %s\n", d.ID, d.TestCaseID, d.Severity, d.Status, d.Title)
	}
}

// PrintDrainReport prints the statistics table of a drain followed by the
// defects it raised, grouped by test case.
func (f *Formatter) PrintDrainReport(report *execution.DrainReport) {
	meta := report.Meta()

	fmt.Fprint(f.out, "\n")
	f.cyan.Fprintln(f.out, "╔═══════════════════════════════════════════════════════════════╗")
	f.cyan.Fprintln(f.out, "║                    Run Execution Statistics                   ║")
	f.cyan.Fprintln(f.out, "╚═══════════════════════════════════════════════════════════════╝")

	row := func(label string, c *color.Color, value any) {
		fmt.Fprintf(f.out, "│ %-31s │ ", label)
		c.Fprintf(f.out, "%-27v", value)
		fmt.Fprintln(f.out, " │")
	}
	sep := "├─────────────────────────────────┼─────────────────────────────┤"

	fmt.Fprintln(f.out, "┌─────────────────────────────────┬─────────────────────────────┐")
	row("Executed Runs", f.white, meta.Executed)
	fmt.Fprintln(f.out, sep)
	row("Passed", f.green, meta.Passed)
	fmt.Fprintln(f.out, sep)
	row("Failed", f.red, meta.Failed)
	fmt.Fprintln(f.out, sep)
	row("Errored", f.red, meta.Errored)
	fmt.Fprintln(f.out, sep)
	row("Defects Raised", f.yellow, meta.Defects)
	fmt.Fprintln(f.out, sep)
	row("Storage Warnings", f.yellow, meta.Warnings)
	fmt.Fprintln(f.out, sep)
	row("Duration", f.white, fmt.Sprintf("%.2fs", meta.Duration))
	fmt.Fprintln(f.out, sep)
	row("Batch", f.white, meta.BatchID)
	fmt.Fprintln(f.out, "└─────────────────────────────────┴─────────────────────────────┘")

	fmt.Fprintln(f.out)
	switch {
	case meta.Executed == 0:
		f.yellow.Fprintln(f.out, "No runs were pending")
	case meta.Failed == 0 && meta.Errored == 0:
		f.green.Fprintln(f.out, "✓ All runs passed!")
	default:
		f.red.Fprintf(f.out, "✗ %d run(s) failed, %d errored, %d defect(s) raised\n", meta.Failed, meta.Errored, meta.Defects)
		f.printDefectTree(report.Defects)
	}

	for _, e := range report.Errors {
		f.red.Fprintf(f.out, "  error: %v\n", e)
	}
	for _, w := range report.Warnings {
		f.yellow.Fprintf(f.out, "  warning: %v\n", w)
	}
}

// printDefectTree prints raised defects under their test case
func (f *Formatter) printDefectTree(defects []domain.Defect) {
	if len(defects) == 0 {
		return
	}
	byCase := make(map[int][]domain.Defect)
	for _, d := range defects {
		byCase[d.TestCaseID] = append(byCase[d.TestCaseID], d)
	}
	ids := make([]int, 0, len(byCase))
	for id := range byCase {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for i, id := range ids {
		lastCase := i == len(ids)-1
		branch, indent := "├── ", "│   "
		if lastCase {
			branch, indent = "└── ", "    "
		}
		f.cyan.Fprintf(f.out, "%stestCase %d\n", branch, id)
		for j, d := range byCase[id] {
			leaf := "├── "
			if j == len(byCase[id])-1 {
				leaf = "└── "
			}
			fmt.Fprint(f.out, indent+leaf)
			f.red.Fprintf(f.out, "defect %d [%s]\n", d.ID, d.Severity)
		}
	}
}
