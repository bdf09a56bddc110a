package domain

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidPriority is returned when a priority class is not one of P0, P1, P2.
var ErrInvalidPriority = errors.New("invalid priority class")

// MinTestCaseID is the lowest id ever handed out to a test case or defect.
const MinTestCaseID = 1000

// PriorityClass is the coarse importance of a test case.
type PriorityClass string

const (
	PriorityP0 PriorityClass = "P0"
	PriorityP1 PriorityClass = "P1"
	PriorityP2 PriorityClass = "P2"
)

// ParsePriorityClass accepts "p0", "P1", " P2 " etc.
func ParsePriorityClass(s string) (PriorityClass, error) {
	switch p := PriorityClass(strings.ToUpper(strings.TrimSpace(s))); p {
	case PriorityP0, PriorityP1, PriorityP2:
		return p, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidPriority, s)
	}
}

// TestCase represents a single tracked test case
type TestCase struct {
	ID          int           `json:"id" yaml:"id,omitempty"`
	Name        string        `json:"name" yaml:"name"`
	Description string        `json:"description" yaml:"description"`
	Priority    PriorityClass `json:"priority" yaml:"priority"`
	Automated   bool          `json:"automated" yaml:"automated"`
}

// Validate checks the fields a caller must supply before the test case is stored.
func (t TestCase) Validate() error {
	if strings.TrimSpace(t.Name) == "" {
		return errors.New("test case name is required")
	}
	if _, err := ParsePriorityClass(string(t.Priority)); err != nil {
		return err
	}
	return nil
}
