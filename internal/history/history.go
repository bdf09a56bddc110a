// Package history keeps the append-only log of run outcomes.
package history

import (
	"sync"
	"time"
)

// Entry is a single line of the execution history
type Entry struct {
	Seq       int // zero-based insertion position
	Text      string
	Timestamp time.Time // zero for entries seeded from storage without one
}

// ExecutionHistory is an ordered, append-only list of run summaries.
// It never removes or rewrites entries.
type ExecutionHistory struct {
	mu      sync.RWMutex
	entries []Entry
	now     func() time.Time
}

// New returns an empty history
func New() *ExecutionHistory {
	return &ExecutionHistory{now: time.Now}
}

// Seed returns a history pre-populated with texts in the given order.
func Seed(texts []string) *ExecutionHistory {
	h := New()
	h.entries = make([]Entry, 0, len(texts))
	for i, text := range texts {
		h.entries = append(h.entries, Entry{Seq: i, Text: text})
	}
	return h
}

// Append adds text at the end and returns the stored entry.
func (h *ExecutionHistory) Append(text string) Entry {
	h.mu.Lock()
	defer h.mu.Unlock()
	e := Entry{Seq: len(h.entries), Text: text, Timestamp: h.now()}
	h.entries = append(h.entries, e)
	return e
}

// All returns a copy of every entry, oldest first.
func (h *ExecutionHistory) All() []Entry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}

// Texts returns the entry texts, oldest first.
func (h *ExecutionHistory) Texts() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]string, len(h.entries))
	for i, e := range h.entries {
		out[i] = e.Text
	}
	return out
}

// Len reports how many entries have been recorded.
func (h *ExecutionHistory) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}
