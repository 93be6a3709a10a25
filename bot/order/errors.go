package order

import (
	"errors"
	"strings"
)

// Kind classifies an expected refusal.
type Kind string

const (
	KindNotFound      Kind = "not_found"
	KindNotAuthorized Kind = "not_authorized"
	KindExpired       Kind = "expired"
	KindConflict      Kind = "conflict"
	KindInvalidState  Kind = "invalid_state"
)

// Rejection is an expected refusal of an action. TextKey names the catalog
// entry shown to the actor.
type Rejection struct {
	Kind    Kind
	TextKey string
}

// Sentinels for errors.Is; they match any rejection of the same kind.
var (
	ErrNotFound      = &Rejection{Kind: KindNotFound}
	ErrNotAuthorized = &Rejection{Kind: KindNotAuthorized}
	ErrExpired       = &Rejection{Kind: KindExpired}
	ErrConflict      = &Rejection{Kind: KindConflict}
	ErrInvalidState  = &Rejection{Kind: KindInvalidState}
)

func (r *Rejection) Error() string {
	if r.TextKey == "" {
		return "order: " + string(r.Kind)
	}
	return "order: " + string(r.Kind) + " (" + r.TextKey + ")"
}

// Code is used for the err_code log field.
func (r *Rejection) Code() string { return strings.ToUpper(string(r.Kind)) }

// Is matches rejections by kind.
func (r *Rejection) Is(target error) bool {
	t, ok := target.(*Rejection)
	return ok && t.Kind == r.Kind
}

// IsRejection reports whether err is an expected refusal and returns it.
func IsRejection(err error) (*Rejection, bool) {
	var r *Rejection
	if errors.As(err, &r) {
		return r, true
	}
	return nil, false
}

func notFound(key string) error     { return &Rejection{Kind: KindNotFound, TextKey: key} }
func notAllowed(key string) error   { return &Rejection{Kind: KindNotAuthorized, TextKey: key} }
func expired(key string) error      { return &Rejection{Kind: KindExpired, TextKey: key} }
func conflict(key string) error     { return &Rejection{Kind: KindConflict, TextKey: key} }
func invalidState(key string) error { return &Rejection{Kind: KindInvalidState, TextKey: key} }

// errStale aborts an update whose timer or state was superseded.
var errStale = errors.New("order: stale callback")
