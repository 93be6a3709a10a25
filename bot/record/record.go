// Package record persists the order history row of every reference and
// exports it as CSV.
package record

import (
	"time"

	"github.com/m3rciful/dispatchbot/bot/intake"
)

// Phase is a persistence checkpoint of the order flow.
type Phase string

const (
	PhaseIntake           Phase = "intake"
	PhasePaymentConfirmed Phase = "payment_confirmed"
	PhaseDriverAccepted   Phase = "driver_accepted"
	PhasePicked           Phase = "picked"
	PhaseDelivered        Phase = "delivered"
)

// Valid reports whether p is a known phase.
func (p Phase) Valid() bool {
	switch p {
	case PhaseIntake, PhasePaymentConfirmed, PhaseDriverAccepted, PhasePicked, PhaseDelivered:
		return true
	}
	return false
}

// Record is one row of the orders table.
type Record struct {
	ID           int64         `db:"id"`
	Ref          string        `db:"ref"`
	SourceRef    string        `db:"source_ref"`
	CustomerID   int64         `db:"customer_id"`
	CustomerName string        `db:"customer_name"`
	Phone        string        `db:"phone"`
	Area         string        `db:"area"`
	MapURL       string        `db:"map_url"`
	Qty          int           `db:"qty"`
	Total        intake.Amount `db:"total"`
	Delivery     intake.Amount `db:"delivery"`
	Method       string        `db:"method"`
	TIN          string        `db:"tin"`
	DriverID     int64         `db:"driver_id"`
	DriverName   string        `db:"driver_name"`
	Status       string        `db:"status"`
	Summary      string        `db:"summary"`

	IntakeAt           *time.Time `db:"intake_at"`
	PaymentConfirmedAt *time.Time `db:"payment_confirmed_at"`
	DriverAcceptedAt   *time.Time `db:"driver_accepted_at"`
	PickedAt           *time.Time `db:"picked_at"`
	DeliveredAt        *time.Time `db:"delivered_at"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// Stamp sets the timestamp of phase to at unless it is already set.
func (r *Record) Stamp(phase Phase, at time.Time) {
	slot := r.phaseSlot(phase)
	if slot == nil || *slot != nil {
		return
	}
	t := at
	*slot = &t
}

func (r *Record) phaseSlot(phase Phase) **time.Time {
	switch phase {
	case PhaseIntake:
		return &r.IntakeAt
	case PhasePaymentConfirmed:
		return &r.PaymentConfirmedAt
	case PhaseDriverAccepted:
		return &r.DriverAcceptedAt
	case PhasePicked:
		return &r.PickedAt
	case PhaseDelivered:
		return &r.DeliveredAt
	}
	return nil
}

// Merge folds incoming into existing field by field. A non-empty incoming
// value wins; an empty one never erases what is stored. Phase timestamps keep
// the first time a phase was reached.
func Merge(existing, incoming Record) Record {
	out := existing
	out.Ref = pickString(existing.Ref, incoming.Ref)
	out.SourceRef = pickString(existing.SourceRef, incoming.SourceRef)
	out.CustomerName = pickString(existing.CustomerName, incoming.CustomerName)
	out.Phone = pickString(existing.Phone, incoming.Phone)
	out.Area = pickString(existing.Area, incoming.Area)
	out.MapURL = pickString(existing.MapURL, incoming.MapURL)
	out.Method = pickString(existing.Method, incoming.Method)
	out.TIN = pickString(existing.TIN, incoming.TIN)
	out.DriverName = pickString(existing.DriverName, incoming.DriverName)
	out.Status = pickString(existing.Status, incoming.Status)
	out.Summary = pickString(existing.Summary, incoming.Summary)

	if incoming.CustomerID != 0 {
		out.CustomerID = incoming.CustomerID
	}
	if incoming.DriverID != 0 {
		out.DriverID = incoming.DriverID
	}
	if incoming.Qty > 0 {
		out.Qty = incoming.Qty
	}
	if incoming.Total.Valid {
		out.Total = incoming.Total
	}
	if incoming.Delivery.Valid {
		out.Delivery = incoming.Delivery
	}

	out.IntakeAt = pickTime(existing.IntakeAt, incoming.IntakeAt)
	out.PaymentConfirmedAt = pickTime(existing.PaymentConfirmedAt, incoming.PaymentConfirmedAt)
	out.DriverAcceptedAt = pickTime(existing.DriverAcceptedAt, incoming.DriverAcceptedAt)
	out.PickedAt = pickTime(existing.PickedAt, incoming.PickedAt)
	out.DeliveredAt = pickTime(existing.DeliveredAt, incoming.DeliveredAt)
	return out
}

func pickString(existing, incoming string) string {
	if intake.IsEmpty(incoming) {
		return existing
	}
	return incoming
}

func pickTime(existing, incoming *time.Time) *time.Time {
	if existing != nil {
		return existing
	}
	return incoming
}
