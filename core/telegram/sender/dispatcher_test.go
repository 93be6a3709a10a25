package sender

import (
	"context"
	"errors"
	"net"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	tele "gopkg.in/telebot.v4"
)

func newTestDispatcher(t *testing.T, retries int) *Dispatcher {
	t.Helper()
	d := NewDispatcher(Options{
		Workers:      1,
		MaxRetries:   retries,
		RetryBackoff: time.Millisecond,
		MaxDuration:  time.Second,
	})
	t.Cleanup(d.Close)
	return d
}

func TestDoRetriesTransientFailures(t *testing.T) {
	d := newTestDispatcher(t, 3)
	var calls atomic.Int32
	err := d.Do(context.Background(), "notify.send", "sendMessage", func() error {
		if calls.Add(1) < 3 {
			return &net.OpError{Op: "dial", Err: errors.New("connection refused")}
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
	assert.Zero(t, d.ErrorCount())
}

func TestDoStopsOnClientError(t *testing.T) {
	d := newTestDispatcher(t, 3)
	blocked := &tele.Error{Code: 403, Description: "Forbidden: bot was blocked by the user"}
	var calls atomic.Int32
	err := d.Do(context.Background(), "notify.send", "sendMessage", func() error {
		calls.Add(1)
		return blocked
	})
	assert.ErrorIs(t, err, blocked)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, uint64(1), d.ErrorCount())
}

func TestDoGivesUpAfterMaxRetries(t *testing.T) {
	d := newTestDispatcher(t, 2)
	var calls atomic.Int32
	err := d.Do(context.Background(), "notify.send", "sendMessage", func() error {
		calls.Add(1)
		return &tele.Error{Code: 502, Description: "Bad Gateway"}
	})
	assert.Error(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestDoAfterClose(t *testing.T) {
	d := NewDispatcher(Options{})
	d.Close()
	err := d.Do(context.Background(), "notify.send", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueClosed)
	assert.ErrorIs(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error { return nil }), ErrQueueClosed)
}

func TestEnqueueRunsAsync(t *testing.T) {
	d := newTestDispatcher(t, 0)
	done := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
		close(done)
		return nil
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("job did not run")
	}
}

func TestCloseDrainsQueue(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1})
	var mu sync.Mutex
	var ran []int
	for i := range 5 {
		require.NoError(t, d.Enqueue(context.Background(), "send.text", "sendMessage", func() error {
			mu.Lock()
			ran = append(ran, i)
			mu.Unlock()
			return nil
		}))
	}
	d.Close()
	d.Close()

	assert.Equal(t, []int{0, 1, 2, 3, 4}, ran)
}

func TestEnqueueQueueFull(t *testing.T) {
	d := NewDispatcher(Options{Workers: 1, QueueSize: 1})
	release := make(chan struct{})
	started := make(chan struct{})
	require.NoError(t, d.Enqueue(context.Background(), "a", "sendMessage", func() error {
		close(started)
		<-release
		return nil
	}))
	<-started
	require.NoError(t, d.Enqueue(context.Background(), "b", "sendMessage", func() error { return nil }))

	err := d.Enqueue(context.Background(), "c", "sendMessage", func() error { return nil })
	assert.ErrorIs(t, err, ErrQueueFull)

	close(release)
	d.Close()
}
