// Package receipt remembers which receipt files were already uploaded so
// reused screenshots can be flagged for staff.
package receipt

import (
	"context"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Ledger records receipt file ids.
type Ledger interface {
	// Seen records uniqueID for ref and reports whether it was recorded before.
	Seen(ctx context.Context, uniqueID, ref string) (bool, error)
}

type sighting struct {
	ref string
	at  time.Time
}

// Memory is the in-process ledger.
type Memory struct {
	clock clockwork.Clock
	mu    sync.Mutex
	seen  map[string]sighting
}

// NewMemory creates an empty in-process ledger.
func NewMemory(clock clockwork.Clock) *Memory {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Memory{clock: clock, seen: make(map[string]sighting)}
}

// Seen implements Ledger.
func (m *Memory) Seen(_ context.Context, uniqueID, ref string) (bool, error) {
	if uniqueID == "" {
		return false, nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.seen[uniqueID]; ok {
		return true, nil
	}
	m.seen[uniqueID] = sighting{ref: ref, at: m.clock.Now()}
	return false, nil
}

// FirstRef returns the ref the file was first uploaded for.
func (m *Memory) FirstRef(uniqueID string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.seen[uniqueID]
	return s.ref, ok
}

// Prune forgets sightings older than maxAge and returns how many were dropped.
func (m *Memory) Prune(maxAge time.Duration) int {
	cutoff := m.clock.Now().Add(-maxAge)
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for id, s := range m.seen {
		if s.at.Before(cutoff) {
			delete(m.seen, id)
			n++
		}
	}
	return n
}

// Len returns the number of remembered files.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.seen)
}
