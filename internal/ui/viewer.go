package ui

import "qad/internal/domain"

// Viewer browses defects interactively
type Viewer interface {
	View(defects []domain.Defect) error
}

// StatusUpdater persists a defect status change made in a viewer.
type StatusUpdater func(id int, status domain.DefectStatus) error
