// Package action describes the inline button actions of the order flow and
// their callback encoding.
package action

import (
	"errors"
	"strings"
)

// Kind identifies what a button does. It doubles as the callback unique key.
type Kind string

const (
	Pay           Kind = "pay"
	Approve       Kind = "approve"
	Reject        Kind = "reject"
	Undo          Kind = "undo"
	Accept        Kind = "accept"
	Picked        Kind = "picked"
	Delivered     Kind = "delivered"
	GiveUp        Kind = "giveup"
	TINYes        Kind = "tin_yes"
	TINNo         Kind = "tin_no"
	ClearPrevious Kind = "clear_prev"
	KeepPrevious  Kind = "keep_prev"
)

var kinds = []Kind{
	Pay, Approve, Reject, Undo,
	Accept, Picked, Delivered, GiveUp,
	TINYes, TINNo, ClearPrevious, KeepPrevious,
}

const sep = "|"

// ErrMalformed is returned for callback data that does not decode.
var ErrMalformed = errors.New("action: malformed callback")

// Action is a decoded button press. Arg carries the payment method for Pay
// and the undone action for Undo.
type Action struct {
	Kind Kind
	Ref  string
	Arg  string
}

// New builds an action without argument.
func New(kind Kind, ref string) Action { return Action{Kind: kind, Ref: ref} }

// With builds an action carrying arg.
func With(kind Kind, ref, arg string) Action { return Action{Kind: kind, Ref: ref, Arg: arg} }

// Kinds lists every known kind.
func Kinds() []Kind { return append([]Kind(nil), kinds...) }

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	for _, known := range kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Unique returns the callback unique key.
func (a Action) Unique() string { return string(a.Kind) }

// Payload returns the callback payload: ref or ref|arg.
func (a Action) Payload() string {
	if a.Arg == "" {
		return a.Ref
	}
	return a.Ref + sep + a.Arg
}

// Decode parses a callback unique key and payload back into an action.
func Decode(unique, payload string) (Action, error) {
	kind := Kind(strings.TrimSpace(unique))
	if !kind.Valid() {
		return Action{}, ErrMalformed
	}
	ref, arg, _ := strings.Cut(payload, sep)
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return Action{}, ErrMalformed
	}
	a := Action{Kind: kind, Ref: ref, Arg: strings.TrimSpace(arg)}
	if (kind == Pay || kind == Undo) && a.Arg == "" {
		return Action{}, ErrMalformed
	}
	return a, nil
}
