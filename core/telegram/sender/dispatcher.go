// Package sender runs outbound Bot API calls with retries, either queued on
// a worker pool or inline on the caller.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/m3rciful/dispatchbot/core/logger"
	"github.com/m3rciful/dispatchbot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull is returned by Enqueue when no slot is free.
	ErrQueueFull = errors.New("telegram sender: queue full")

	errNilRun = errors.New("telegram sender: nil run function")
)

// Options tune the dispatcher. Zero values select the defaults.
type Options struct {
	QueueSize int // 256
	Workers   int // 4
	// MaxRetries is the number of extra attempts after the first; 0 disables
	// retries.
	MaxRetries   int
	RetryBackoff time.Duration // 2s, grown linearly per attempt
	// MaxDuration bounds the time spent on one call including waits (12s).
	MaxDuration time.Duration
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	o.MaxRetries = max(o.MaxRetries, 0)
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

// job is one Bot API call. run must be safe to repeat.
type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs() []slog.Attr {
	return []slog.Attr{
		slog.String("op", j.action),
		slog.String("endpoint", j.endpoint),
	}
}

// Dispatcher executes Bot API calls under a shared retry policy.
type Dispatcher struct {
	opts Options
	jobs chan job

	// mu guards closed against Enqueue racing Close.
	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
	failed atomic.Uint64
}

// NewDispatcher starts the worker pool.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	d := &Dispatcher{opts: opts, jobs: make(chan job, opts.QueueSize)}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go func() {
			defer d.wg.Done()
			for j := range d.jobs {
				_ = d.deliver(j)
			}
		}()
	}
	return d
}

// Enqueue queues run for a worker and returns at once. Use it for replies
// whose outcome the caller does not need.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Do runs run on the caller's goroutine under the retry policy and returns
// the final error. Use it when the result matters, e.g. a message id.
func (d *Dispatcher) Do(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errNilRun
	}
	d.mu.RLock()
	closed := d.closed
	d.mu.RUnlock()
	if closed {
		return ErrQueueClosed
	}
	return d.deliver(job{ctx: ctx, action: action, endpoint: endpoint, run: run})
}

// ErrorCount is the number of calls that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.failed.Load()
}

// Close stops accepting work and waits for queued jobs to finish.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return
	}
	d.closed = true
	close(d.jobs)
	d.mu.Unlock()

	d.wg.Wait()
	logger.Info(context.Background(), logger.ComponentSender, "sender.closed",
		slog.Uint64("failed", d.failed.Load()),
	)
}

// deliver runs j until it succeeds, fails with a final error, runs out of
// attempts or would exceed MaxDuration.
func (d *Dispatcher) deliver(j job) error {
	ctx := j.ctx
	if ctx == nil {
		ctx = context.Background()
	}
	budget, cancel := context.WithTimeout(ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts := d.opts.MaxRetries + 1
	attempt := 0
	var err error
	for attempt < attempts {
		attempt++
		if err = j.run(); err == nil {
			logger.Debug(ctx, logger.ComponentSender, "send.ok", append(j.attrs(),
				slog.Int("attempts", attempt),
				slog.Duration("duration", time.Since(start)),
			)...)
			return nil
		}
		if attempt == attempts || !netutil.ShouldRetry(err) {
			break
		}
		delay := netutil.Backoff(err, attempt, d.opts.RetryBackoff)
		if dl, ok := budget.Deadline(); ok && time.Until(dl) < delay {
			break
		}
		logger.Debug(ctx, logger.ComponentSender, "send.retry", append(j.attrs(),
			slog.Int("attempts", attempt),
			slog.Duration("backoff", delay),
			slog.String("cause", netutil.Classify(err)),
		)...)
		if werr := wait(budget, delay); werr != nil {
			err = errors.Join(err, werr)
			break
		}
	}

	d.failed.Add(1)
	logger.Error(ctx, logger.ComponentSender, "send.fail", append(j.attrs(),
		slog.String("status", "fail"),
		slog.String("err", netutil.Redact(err.Error())),
		slog.String("err_code", netutil.Classify(err)),
		slog.Int("attempts", attempt),
		slog.Duration("duration", time.Since(start)),
	)...)
	return err
}

func wait(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
