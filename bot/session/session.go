// Package session keeps the live, in-memory order sessions: one per customer,
// indexed both by customer and by order reference.
package session

import (
	"slices"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/m3rciful/dispatchbot/bot/intake"
)

// Receipt describes the payment proof uploaded by the customer.
type Receipt struct {
	FileID    string
	UniqueID  string
	Duplicate bool
	Forwarded bool
}

// OnFile reports whether a receipt was uploaded.
func (r Receipt) OnFile() bool { return r.FileID != "" }

// Timer is a cancelable scheduled callback owned by a session. Callbacks
// receive the id they were armed with so they can detect being superseded.
type Timer struct {
	id     uint64
	handle clockwork.Timer
}

// Active reports whether the timer is armed.
func (t Timer) Active() bool { return t.handle != nil }

// Is reports whether t is still the timer armed with id.
func (t Timer) Is(id uint64) bool { return t.handle != nil && t.id == id }

// Stop cancels the timer and clears the slot.
func (t *Timer) Stop() {
	if t.handle != nil {
		t.handle.Stop()
	}
	*t = Timer{}
}

// Session is one customer's active order.
type Session struct {
	CustomerID   int64
	CustomerName string
	Ref          string
	SourceRef    string
	Summary      string
	Fields       intake.Fields
	Status       Status
	Method       Method

	AssignedDriverID int64
	ExcludedDrivers  []int64
	GiveupUntil      time.Time

	Approval Timer
	Driver   Timer

	HoldMsgID int
	Receipt   Receipt
	TIN       string

	CreatedAt time.Time

	PendingNewSummary string
	SupersededRefs    []string
}

// StopTimers cancels every timer owned by the session.
func (s *Session) StopTimers() {
	s.Approval.Stop()
	s.Driver.Stop()
}

// Excluded reports whether driverID gave up this order before.
func (s Session) Excluded(driverID int64) bool {
	return slices.Contains(s.ExcludedDrivers, driverID)
}

func (s Session) clone() Session {
	s.ExcludedDrivers = slices.Clone(s.ExcludedDrivers)
	s.SupersededRefs = slices.Clone(s.SupersededRefs)
	return s
}
