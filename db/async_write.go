package db

import (
	"context"
	"sync"
	"time"
)

const (
	DefaultChannelCapacity = 256
	DefaultDrainTimeout    = 10 * time.Second
)

// WriteOperation is one queued write.
type WriteOperation struct {
	Data      any
	Timestamp time.Time
}

// WriteHandler applies a write. It reports its own failures.
type WriteHandler func(op WriteOperation) error

// AsyncWriter applies writes on a background goroutine so callers never
// block on SQLite. Writes that do not fit in the buffer are dropped and
// counted.
type AsyncWriter struct {
	writeChan chan WriteOperation
	handler   WriteHandler
	onError   func(error)

	wg     sync.WaitGroup
	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	started bool
	dropped int64
}

// NewAsyncWriter returns a writer with a buffer of capacity operations.
// onError, if set, receives every handler error.
func NewAsyncWriter(handler WriteHandler, capacity int, onError func(error)) *AsyncWriter {
	if capacity <= 0 {
		capacity = DefaultChannelCapacity
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &AsyncWriter{
		writeChan: make(chan WriteOperation, capacity),
		handler:   handler,
		onError:   onError,
		ctx:       ctx,
		cancel:    cancel,
	}
}

// Start launches the background goroutine. Calling it twice is a no-op.
func (w *AsyncWriter) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	w.wg.Add(1)
	go w.run()
}

func (w *AsyncWriter) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.ctx.Done():
			w.drain()
			return
		case op := <-w.writeChan:
			w.apply(op)
		}
	}
}

func (w *AsyncWriter) drain() {
	for {
		select {
		case op := <-w.writeChan:
			w.apply(op)
		default:
			return
		}
	}
}

func (w *AsyncWriter) apply(op WriteOperation) {
	if err := w.handler(op); err != nil && w.onError != nil {
		w.onError(err)
	}
}

// Write queues data without blocking. It returns false when the writer is
// stopped or the buffer is full.
func (w *AsyncWriter) Write(data any) bool {
	if w.ctx.Err() != nil {
		return false
	}
	select {
	case w.writeChan <- WriteOperation{Data: data, Timestamp: time.Now()}:
		return true
	default:
		w.mu.Lock()
		w.dropped++
		w.mu.Unlock()
		return false
	}
}

// Pending is the number of queued writes.
func (w *AsyncWriter) Pending() int {
	return len(w.writeChan)
}

// Dropped is the number of writes rejected because the buffer was full.
func (w *AsyncWriter) Dropped() int64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.dropped
}

// IsStarted reports whether Start has been called.
func (w *AsyncWriter) IsStarted() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.started
}

// Stop rejects new writes, applies the queued ones and waits for the
// goroutine, or until ctx is done.
func (w *AsyncWriter) Stop(ctx context.Context) error {
	w.cancel()

	done := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
