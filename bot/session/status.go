package session

// Status is the order state of a session.
type Status string

const (
	StatusAwaitingPayment Status = "AWAITING_PAYMENT"
	StatusAwaitingReceipt Status = "AWAITING_RECEIPT"
	StatusAwaitingTIN     Status = "AWAITING_TIN"
	StatusAwaitingTINText Status = "AWAITING_TIN_TEXT"
	StatusAwaitingReview  Status = "AWAITING_REVIEW"
	StatusRejected        Status = "REJECTED"
	StatusApprovedHold    Status = "APPROVED_HOLD"
	StatusDispatching     Status = "DISPATCHING"
	StatusAssigned        Status = "ASSIGNED"
	StatusOutForDelivery  Status = "OUT_FOR_DELIVERY"
	StatusDelivered       Status = "DELIVERED"
	StatusCanceled        Status = "CANCELED"
)

// Method is the payment method picked by the customer.
type Method string

const (
	MethodNone     Method = ""
	MethodTelebirr Method = "TELEBIRR"
	MethodBank     Method = "BANK"
)

// ParseMethod validates a method name.
func ParseMethod(s string) (Method, bool) {
	switch Method(s) {
	case MethodTelebirr, MethodBank:
		return Method(s), true
	}
	return MethodNone, false
}

// AllowedTransitions is the order state flow. Owner overrides (revert, force
// approve) and customer cancel are part of the table.
var AllowedTransitions = map[Status][]Status{
	StatusAwaitingPayment: {StatusAwaitingReceipt, StatusApprovedHold, StatusCanceled},
	StatusAwaitingReceipt: {StatusAwaitingTIN, StatusAwaitingReview, StatusApprovedHold, StatusRejected, StatusCanceled},
	StatusAwaitingTIN:     {StatusAwaitingTINText, StatusAwaitingReview, StatusAwaitingReceipt, StatusApprovedHold, StatusCanceled},
	StatusAwaitingTINText: {StatusAwaitingReview, StatusAwaitingReceipt, StatusApprovedHold, StatusCanceled},
	StatusAwaitingReview:  {StatusApprovedHold, StatusRejected, StatusAwaitingReceipt, StatusCanceled},
	StatusRejected:        {StatusAwaitingTIN, StatusAwaitingReview, StatusAwaitingReceipt, StatusApprovedHold, StatusCanceled},
	StatusApprovedHold:    {StatusDispatching, StatusAwaitingReceipt, StatusCanceled},
	StatusDispatching:     {StatusAssigned, StatusAwaitingReceipt, StatusCanceled},
	StatusAssigned:        {StatusOutForDelivery, StatusDispatching, StatusAwaitingReceipt, StatusCanceled},
	StatusOutForDelivery:  {StatusDelivered, StatusAwaitingReceipt, StatusCanceled},
}

// CanTransition reports whether from -> to is part of the flow.
func CanTransition(from, to Status) bool {
	for _, s := range AllowedTransitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusDelivered || s == StatusCanceled
}

// Dispatched reports whether the order already left staff review.
func (s Status) Dispatched() bool {
	switch s {
	case StatusDispatching, StatusAssigned, StatusOutForDelivery, StatusDelivered:
		return true
	}
	return false
}
