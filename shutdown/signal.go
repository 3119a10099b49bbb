package shutdown

import (
	"os"
	"sync"
	"syscall"

	"storybook/core"
)

// SignalCounter remembers the first shutdown signal and calls onForce when
// the count reaches forceAfter.
type SignalCounter struct {
	mu         sync.Mutex
	count      int
	first      os.Signal
	forceAfter int
	onForce    func()
}

// NewSignalCounter creates a counter; onForce may be nil.
func NewSignalCounter(forceAfter int, onForce func()) *SignalCounter {
	return &SignalCounter{
		forceAfter: forceAfter,
		onForce:    onForce,
	}
}

// Observe records sig and returns the new count. The force callback runs
// with the lock held.
func (s *SignalCounter) Observe(sig os.Signal) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.count++
	if s.first == nil {
		s.first = sig
	}
	if s.forceAfter > 0 && s.count >= s.forceAfter && s.onForce != nil {
		s.onForce()
	}
	return s.count
}

// Count returns the number of signals seen.
func (s *SignalCounter) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

// First returns the first signal seen, or nil.
func (s *SignalCounter) First() os.Signal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.first
}

// ExitCodeForSignal maps a termination signal to the conventional 128+n
// process exit code.
func ExitCodeForSignal(sig os.Signal) int {
	switch sig {
	case nil:
		return core.ExitCodeSuccess
	case os.Interrupt:
		return core.ExitCodeSIGINT
	case syscall.SIGTERM:
		return core.ExitCodeSIGTERM
	default:
		return core.ExitCodeError
	}
}
