// Package shutdown coordinates graceful termination: signal handling, a
// priority-ordered cleanup registry and tracking of in-flight pipeline
// operations such as image acquisitions.
package shutdown

import (
	"context"
	"errors"
	"sort"
	"sync"
)

// ErrTrackerClosed is returned when trying to start an operation on a closed tracker.
var ErrTrackerClosed = errors.New("shutdown: operation tracker is closed")

// OperationTracker counts in-flight operations by name and lets shutdown
// wait for them to drain.
//
// Usage:
//
//	if !tracker.Start("acquire") {
//	    return ErrTrackerClosed
//	}
//	defer tracker.Done("acquire")
type OperationTracker struct {
	mu     sync.Mutex
	active map[string]int
	total  int
	closed bool
	idle   chan struct{} // closed whenever total drops to zero
}

// NewOperationTracker creates an open tracker.
func NewOperationTracker() *OperationTracker {
	idle := make(chan struct{})
	close(idle)
	return &OperationTracker{
		active: make(map[string]int),
		idle:   idle,
	}
}

// Start registers an operation. It returns false once the tracker is
// closed, in which case the caller must not call Done.
func (t *OperationTracker) Start(name string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return false
	}
	if t.total == 0 {
		t.idle = make(chan struct{})
	}
	t.total++
	t.active[name]++
	return true
}

// Done marks one operation of the given name as finished.
func (t *OperationTracker) Done(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active[name] > 0 {
		t.active[name]--
		if t.active[name] == 0 {
			delete(t.active, name)
		}
	}
	if t.total > 0 {
		t.total--
		if t.total == 0 {
			close(t.idle)
		}
	}
}

// Wait blocks until no operations are active or ctx is done.
func (t *OperationTracker) Wait(ctx context.Context) error {
	t.mu.Lock()
	idle := t.idle
	t.mu.Unlock()

	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops new operations from starting. Running ones continue.
func (t *OperationTracker) Close() {
	t.mu.Lock()
	t.closed = true
	t.mu.Unlock()
}

// ActiveCount returns the number of running operations.
func (t *OperationTracker) ActiveCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.total
}

// ActiveNames lists the names of running operations, sorted.
func (t *OperationTracker) ActiveNames() []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	names := make([]string, 0, len(t.active))
	for name := range t.active {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// IsClosed returns true if the tracker has been closed.
func (t *OperationTracker) IsClosed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.closed
}
