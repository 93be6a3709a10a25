package undo

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	ref    = "GG-20250101-120000-AB12"
	action = "approve"
)

func TestConsumeOnce(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	w := r.Open(ref, action, 7, time.Minute)
	assert.Equal(t, clock.Now().Add(time.Minute), w.ExpiresAt)
	assert.True(t, r.IsActive(ref, action))

	require.NoError(t, r.Consume(ref, action, 7))
	assert.ErrorIs(t, r.Consume(ref, action, 7), ErrNotFound)
	assert.False(t, r.IsActive(ref, action))
}

func TestConsumeRejectsOtherActor(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())
	r.Open(ref, action, 7, time.Minute)

	assert.ErrorIs(t, r.Consume(ref, action, 8), ErrNotOwner)
	// the rightful owner can still use it
	assert.NoError(t, r.Consume(ref, action, 7))
}

func TestConsumeAfterExpiry(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)
	r.Open(ref, action, 7, time.Minute)

	// Move the clock without firing timers: lazy expiry must still apply.
	e := r.windows[key{ref: ref, action: action}]
	e.ExpiresAt = clock.Now().Add(-time.Second)

	assert.ErrorIs(t, r.Consume(ref, action, 7), ErrExpired)
	assert.Zero(t, r.Len())
}

func TestTimerRemovesWindow(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)
	r.Open(ref, action, 7, time.Minute)

	clock.Advance(time.Minute)
	require.Eventually(t, func() bool { return r.Len() == 0 }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, r.Consume(ref, action, 7), ErrNotFound)
}

func TestOpenTwiceKeepsOnlySecond(t *testing.T) {
	clock := clockwork.NewFakeClock()
	r := NewRegistry(clock)

	r.Open(ref, action, 1, time.Minute)
	clock.Advance(30 * time.Second)
	second := r.Open(ref, action, 2, time.Minute)

	assert.ErrorIs(t, r.Consume(ref, action, 1), ErrNotOwner)

	// The first window's deadline passes; the second must survive it.
	clock.Advance(45 * time.Second)
	assert.True(t, r.IsActive(ref, action))
	assert.Equal(t, second.ExpiresAt, r.windows[key{ref: ref, action: action}].ExpiresAt)
	assert.NoError(t, r.Consume(ref, action, 2))
}

func TestCancel(t *testing.T) {
	r := NewRegistry(clockwork.NewFakeClock())
	r.Open(ref, action, 1, time.Minute)

	assert.True(t, r.Cancel(ref, action))
	assert.False(t, r.Cancel(ref, action))
	assert.False(t, r.IsActive(ref, action))
}
