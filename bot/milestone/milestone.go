// Package milestone is the append-only audit log of order transitions.
package milestone

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Event is one status transition of an order.
type Event struct {
	ID         uuid.UUID `db:"id" json:"id"`
	Ref        string    `db:"ref" json:"ref"`
	CustomerID int64     `db:"customer_id" json:"customer_id"`
	From       string    `db:"status_from" json:"from"`
	To         string    `db:"status_to" json:"to"`
	ActorID    int64     `db:"actor_id" json:"actor_id"`
	Note       string    `db:"note" json:"note,omitempty"`
	At         time.Time `db:"at" json:"at"`
}

// NewEvent stamps a transition with a fresh id.
func NewEvent(ref string, customerID int64, from, to string, actorID int64, note string, at time.Time) Event {
	return Event{
		ID:         uuid.New(),
		Ref:        ref,
		CustomerID: customerID,
		From:       from,
		To:         to,
		ActorID:    actorID,
		Note:       note,
		At:         at.UTC(),
	}
}

// Recorder accepts milestone events.
type Recorder interface {
	Record(ctx context.Context, e Event) error
}

// Fanout records to every sink and joins their failures.
type Fanout []Recorder

// Record implements Recorder.
func (f Fanout) Record(ctx context.Context, e Event) error {
	var errs []error
	for _, r := range f {
		if r == nil {
			continue
		}
		if err := r.Record(ctx, e); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Memory keeps events in process.
type Memory struct {
	mu     sync.Mutex
	events []Event
}

// Record implements Recorder.
func (m *Memory) Record(_ context.Context, e Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

// Events returns a copy of the recorded events, optionally for one ref.
func (m *Memory) Events(ref string) []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Event, 0, len(m.events))
	for _, e := range m.events {
		if ref == "" || e.Ref == ref {
			out = append(out, e)
		}
	}
	return out
}
