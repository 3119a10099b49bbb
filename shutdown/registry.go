package shutdown

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"storybook/core"
)

// Priorities used by the storybook service. Lower runs first.
const (
	PriorityHTTPServer    = 10
	PriorityBroadcaster   = 20
	PriorityHistoryWriter = 25
	PriorityModel         = 30
	PriorityDatabase      = 35
	PriorityTempFiles     = 38
	PriorityLogger        = 40
)

type registryEntry struct {
	name     string
	fn       core.ShutdownFunc
	priority int
	seq      int
}

// HandlerResult is the outcome of one cleanup function.
type HandlerResult struct {
	Name     string
	Priority int
	Duration time.Duration
	Err      error
}

// Registry runs cleanup functions once, in ascending priority. Entries with
// equal priority run in registration order.
type Registry struct {
	mu      sync.Mutex
	entries []registryEntry
	closed  bool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a cleanup function. Registration after Run is ignored.
func (r *Registry) Register(name string, priority int, fn core.ShutdownFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return
	}
	r.entries = append(r.entries, registryEntry{
		name:     name,
		fn:       fn,
		priority: priority,
		seq:      len(r.entries),
	})
}

// Run executes every registered function, even after failures, and returns
// one result per function. A second call returns nil.
func (r *Registry) Run(ctx context.Context) []HandlerResult {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	entries := r.sortedLocked()
	r.mu.Unlock()

	results := make([]HandlerResult, 0, len(entries))
	for _, e := range entries {
		start := time.Now()
		err := e.fn(ctx)
		if err != nil {
			err = fmt.Errorf("%s: %w", e.name, err)
		}
		results = append(results, HandlerResult{
			Name:     e.name,
			Priority: e.priority,
			Duration: time.Since(start),
			Err:      err,
		})
	}
	return results
}

func (r *Registry) sortedLocked() []registryEntry {
	sorted := slices.Clone(r.entries)
	slices.SortFunc(sorted, func(a, b registryEntry) int {
		if a.priority != b.priority {
			return a.priority - b.priority
		}
		return a.seq - b.seq
	})
	return sorted
}

// Names returns the registered names in execution order.
func (r *Registry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	sorted := r.sortedLocked()
	names := make([]string, len(sorted))
	for i, e := range sorted {
		names[i] = e.name
	}
	return names
}

// Count returns the number of registered functions.
func (r *Registry) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
