package logger

import (
	"bufio"
	"errors"
	"io"
	"sync"
)

// asyncWriter moves formatting off the caller: lines are queued and a single
// goroutine fans them out to the sinks. The first write error sticks and is
// reported by every later call.
type asyncWriter struct {
	queue   chan []byte
	flushes chan chan error
	done    chan struct{}
	sinks   []*bufio.Writer

	// mu guards closed against concurrent Write and Close.
	mu     sync.RWMutex
	closed bool

	errMu sync.Mutex
	err   error
}

func newAsyncWriter(outputs []io.Writer, bufSize int) *asyncWriter {
	if bufSize <= 0 {
		bufSize = 64 * 1024
	}
	w := &asyncWriter{
		queue:   make(chan []byte, 256),
		flushes: make(chan chan error),
		done:    make(chan struct{}),
	}
	for _, out := range outputs {
		if out != nil {
			w.sinks = append(w.sinks, bufio.NewWriterSize(out, bufSize))
		}
	}
	go w.run()
	return w
}

func (w *asyncWriter) run() {
	defer close(w.done)
	for {
		select {
		case line, ok := <-w.queue:
			if !ok {
				w.fail(w.flush())
				return
			}
			w.fail(w.write(line))
		case ack := <-w.flushes:
			ack <- w.flush()
		}
	}
}

// Write queues a copy of p. It blocks when the queue is full. Lines written
// after Close are dropped.
func (w *asyncWriter) Write(p []byte) error {
	if err := w.failed(); err != nil {
		return err
	}
	if len(p) == 0 {
		return nil
	}
	w.mu.RLock()
	defer w.mu.RUnlock()
	if !w.closed {
		w.queue <- append([]byte(nil), p...)
	}
	return nil
}

// Flush waits until everything queued so far reached the sinks.
func (w *asyncWriter) Flush() error {
	if err := w.failed(); err != nil {
		return err
	}
	select {
	case <-w.done:
		return nil
	default:
	}
	ack := make(chan error, 1)
	select {
	case w.flushes <- ack:
		return <-ack
	case <-w.done:
		return w.failed()
	}
}

// Close drains the queue and stops the goroutine.
func (w *asyncWriter) Close() error {
	w.mu.Lock()
	if !w.closed {
		w.closed = true
		close(w.queue)
	}
	w.mu.Unlock()
	<-w.done
	return w.failed()
}

func (w *asyncWriter) write(line []byte) error {
	for _, sink := range w.sinks {
		if _, err := sink.Write(line); err != nil {
			return err
		}
		if err := sink.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func (w *asyncWriter) flush() error {
	var errs []error
	for _, sink := range w.sinks {
		errs = append(errs, sink.Flush())
	}
	return errors.Join(errs...)
}

func (w *asyncWriter) fail(err error) {
	if err == nil {
		return
	}
	w.errMu.Lock()
	if w.err == nil {
		w.err = err
	}
	w.errMu.Unlock()
}

func (w *asyncWriter) failed() error {
	w.errMu.Lock()
	defer w.errMu.Unlock()
	return w.err
}
