// Package idgen allocates test case and defect ids.
package idgen

import (
	"context"
	"fmt"
	"sync"

	"qad/internal/domain"
)

// MaxIDSource reports the highest id already stored.
type MaxIDSource interface {
	MaxID(ctx context.Context) (int, error)
}

// NextAvailableID returns the first id after existingMax, never below domain.MinTestCaseID.
func NextAvailableID(existingMax int) int {
	return max(existingMax+1, domain.MinTestCaseID)
}

// Allocator hands out increasing ids seeded from the store.
type Allocator struct {
	mu     sync.Mutex
	next   int
	source MaxIDSource
}

// New creates an allocator seeded from source.
func New(ctx context.Context, source MaxIDSource) (*Allocator, error) {
	a := &Allocator{next: domain.MinTestCaseID, source: source}
	if err := a.Reseed(ctx); err != nil {
		return nil, err
	}
	return a, nil
}

// Next returns a fresh id
func (a *Allocator) Next() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	id := a.next
	a.next++
	return id
}

// Peek returns the id Next would hand out without consuming it.
func (a *Allocator) Peek() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.next
}

// Reseed re-derives the next id from the store's current maximum.
// It is called after a duplicate id conflict; the counter never moves backwards.
func (a *Allocator) Reseed(ctx context.Context) error {
	maxID, err := a.source.MaxID(ctx)
	if err != nil {
		return fmt.Errorf("derive next id: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	a.next = max(a.next, NextAvailableID(maxID))
	return nil
}
