package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrInvalidSeverity = errors.New("invalid severity")
	ErrInvalidStatus   = errors.New("invalid defect status")
)

// Severity of a defect
type Severity string

const (
	SeverityCritical Severity = "Critical"
	SeverityMajor    Severity = "Major"
	SeverityMinor    Severity = "Minor"
)

// ParseSeverity is case-insensitive.
func ParseSeverity(s string) (Severity, error) {
	for _, sev := range []Severity{SeverityCritical, SeverityMajor, SeverityMinor} {
		if strings.EqualFold(strings.TrimSpace(s), string(sev)) {
			return sev, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidSeverity, s)
}

// DefectStatus is the workflow state of a defect
type DefectStatus string

const (
	StatusOpen       DefectStatus = "Open"
	StatusInProgress DefectStatus = "In Progress"
	StatusClosed     DefectStatus = "Closed"
)

// ParseDefectStatus accepts "open", "in progress", "in-progress", "inprogress" and "closed".
func ParseDefectStatus(s string) (DefectStatus, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer("-", "", "_", "", " ", "").Replace(key)
	switch key {
	case "open":
		return StatusOpen, nil
	case "inprogress":
		return StatusInProgress, nil
	case "closed":
		return StatusClosed, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidStatus, s)
}

// Next returns the following workflow state. Closed stays closed.
func (s DefectStatus) Next() DefectStatus {
	switch s {
	case StatusOpen:
		return StatusInProgress
	default:
		return StatusClosed
	}
}

// Defect is a tracked problem, either entered manually or raised by a failed run.
type Defect struct {
	ID         int          `json:"id"`
	TestCaseID int          `json:"test_case_id"`
	Title      string       `json:"title"`
	Severity   Severity     `json:"severity"`
	Status     DefectStatus `json:"status"`
}

// AutoDefectTitle is the title used for defects raised by failed runs.
func AutoDefectTitle(testCaseID int) string {
	return fmt.Sprintf("Auto-generated defect for test %d", testCaseID)
}
