// Package undo implements short-lived, single-use undo permissions keyed by
// order reference and action.
package undo

import (
	"errors"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

var (
	// ErrNotFound is returned when no window exists for the key.
	ErrNotFound = errors.New("undo: no window")
	// ErrExpired is returned when the window has passed its expiry.
	ErrExpired = errors.New("undo: window expired")
	// ErrNotOwner is returned when the caller did not open the window.
	ErrNotOwner = errors.New("undo: not the window owner")
)

// Window is a snapshot of an open undo permission.
type Window struct {
	Ref       string
	Action    string
	ActorID   int64
	ExpiresAt time.Time
}

type key struct {
	ref    string
	action string
}

type entry struct {
	Window
	timer clockwork.Timer
}

// Registry holds at most one window per (ref, action).
type Registry struct {
	clock   clockwork.Clock
	mu      sync.Mutex
	windows map[key]*entry
}

// NewRegistry creates a registry driven by clock. A nil clock uses real time.
func NewRegistry(clock clockwork.Clock) *Registry {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Registry{clock: clock, windows: make(map[key]*entry)}
}

// Open grants actorID the right to undo action on ref for d. Any previous
// window for the same key is canceled first.
func (r *Registry) Open(ref, action string, actorID int64, d time.Duration) Window {
	k := key{ref: ref, action: action}
	e := &entry{Window: Window{
		Ref:       ref,
		Action:    action,
		ActorID:   actorID,
		ExpiresAt: r.clock.Now().Add(d),
	}}

	r.mu.Lock()
	defer r.mu.Unlock()
	if prev, ok := r.windows[k]; ok && prev.timer != nil {
		prev.timer.Stop()
	}
	e.timer = r.clock.AfterFunc(d, func() { r.expire(k, e) })
	r.windows[k] = e
	return e.Window
}

// IsActive reports whether a live window exists, dropping it if it expired.
func (r *Registry) IsActive(ref, action string) bool {
	k := key{ref: ref, action: action}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.windows[k]
	if !ok {
		return false
	}
	if !r.clock.Now().Before(e.ExpiresAt) {
		r.removeLocked(k)
		return false
	}
	return true
}

// Consume uses the window once. It fails with ErrExpired after expiry and
// with ErrNotOwner when actorID differs from the opener.
func (r *Registry) Consume(ref, action string, actorID int64) error {
	k := key{ref: ref, action: action}
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.windows[k]
	if !ok {
		return ErrNotFound
	}
	if !r.clock.Now().Before(e.ExpiresAt) {
		r.removeLocked(k)
		return ErrExpired
	}
	if e.ActorID != actorID {
		return ErrNotOwner
	}
	r.removeLocked(k)
	return nil
}

// Cancel drops the window early. It reports whether one existed.
func (r *Registry) Cancel(ref, action string) bool {
	k := key{ref: ref, action: action}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.windows[k]; !ok {
		return false
	}
	r.removeLocked(k)
	return true
}

// Len returns the number of tracked windows.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.windows)
}

func (r *Registry) expire(k key, e *entry) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if cur, ok := r.windows[k]; ok && cur == e {
		delete(r.windows, k)
	}
}

func (r *Registry) removeLocked(k key) {
	if e, ok := r.windows[k]; ok {
		if e.timer != nil {
			e.timer.Stop()
		}
		delete(r.windows, k)
	}
}
