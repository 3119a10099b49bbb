package shutdown

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"

	"storybook/core"
)

// DefaultTimeout bounds the whole shutdown sequence.
const DefaultTimeout = 30 * time.Second

// Manager ties together signal handling, the operation tracker and the
// cleanup registry.
//
// Usage:
//
//	manager := shutdown.NewManager(logger)
//	manager.Register("http-server", shutdown.PriorityHTTPServer, srv.Shutdown)
//	manager.Start()
//
//	err := manager.WrapOperation(ctx, "acquire", func(ctx context.Context) error {
//	    ...
//	})
//
//	<-manager.Context().Done()
//	_ = manager.Shutdown()
type Manager struct {
	logger  *zap.Logger
	timeout time.Duration
	parent  context.Context
	exit    func(code int)

	mu       sync.Mutex
	started  bool
	shutdown bool
	reason   string

	ctx    context.Context
	cancel context.CancelFunc

	tracker  *OperationTracker
	registry *Registry
	signals  *SignalCounter
	sigChan  chan os.Signal
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithTimeout sets the shutdown timeout duration.
func WithTimeout(timeout time.Duration) ManagerOption {
	return func(m *Manager) {
		m.timeout = timeout
	}
}

// WithParent derives the managed context from ctx instead of Background.
func WithParent(ctx context.Context) ManagerOption {
	return func(m *Manager) {
		m.parent = ctx
	}
}

// WithForceExit replaces os.Exit as the action taken on a second signal.
func WithForceExit(exit func(code int)) ManagerOption {
	return func(m *Manager) {
		m.exit = exit
	}
}

// NewManager creates a Manager. The first SIGINT/SIGTERM after Start
// cancels Context; a second one exits immediately.
func NewManager(logger *zap.Logger, opts ...ManagerOption) *Manager {
	m := &Manager{
		logger:   logger.With(zap.String("component", "shutdown")),
		timeout:  DefaultTimeout,
		parent:   context.Background(),
		exit:     os.Exit,
		tracker:  NewOperationTracker(),
		registry: NewRegistry(),
		sigChan:  make(chan os.Signal, 2),
	}
	for _, opt := range opts {
		opt(m)
	}

	m.ctx, m.cancel = context.WithCancel(m.parent)
	m.signals = NewSignalCounter(2, func() {
		m.logger.Warn("Received second signal, forcing exit")
		m.exit(core.ExitCodeError)
	})
	return m
}

// Context is cancelled when shutdown begins.
func (m *Manager) Context() context.Context {
	return m.ctx
}

// Register adds a cleanup function; lower priorities run first.
func (m *Manager) Register(name string, priority int, fn core.ShutdownFunc) {
	m.registry.Register(name, priority, fn)
	m.logger.Debug("Registered shutdown handler",
		zap.String("name", name),
		zap.Int("priority", priority),
	)
}

// Start listens for SIGINT and SIGTERM. Calling it twice is a no-op.
func (m *Manager) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.started {
		return
	}
	m.started = true

	signal.Notify(m.sigChan, os.Interrupt, syscall.SIGTERM)
	go m.handleSignals()
}

func (m *Manager) handleSignals() {
	for sig := range m.sigChan {
		if m.signals.Observe(sig) == 1 {
			m.Trigger("signal " + sig.String())
		}
	}
}

// Trigger begins shutdown without a signal, e.g. when the HTTP server
// fails. Only the first reason is kept.
func (m *Manager) Trigger(reason string) {
	m.mu.Lock()
	if m.reason == "" {
		m.reason = reason
	}
	m.mu.Unlock()

	m.logger.Info("Shutdown requested", zap.String("reason", reason))
	m.cancel()
}

// Shutdown stops new operations, waits for running ones and then runs the
// cleanup registry, all within the configured timeout. Later calls return
// nil.
func (m *Manager) Shutdown() error {
	m.mu.Lock()
	if m.shutdown {
		m.mu.Unlock()
		return nil
	}
	m.shutdown = true
	m.mu.Unlock()

	m.cancel()
	start := time.Now()
	ctx, cancel := context.WithTimeout(context.Background(), m.timeout)
	defer cancel()

	m.tracker.Close()
	if n := m.tracker.ActiveCount(); n > 0 {
		m.logger.Info("Waiting for in-flight operations",
			zap.Int("active_count", n),
			zap.Strings("operations", m.tracker.ActiveNames()),
		)
	}
	if err := m.tracker.Wait(ctx); err != nil {
		m.logger.Warn("Timed out waiting for in-flight operations",
			zap.Duration("waited", time.Since(start)),
			zap.Strings("remaining", m.tracker.ActiveNames()),
		)
	}

	// Cleanup always gets at least a second, even after a slow drain.
	if time.Until(deadline(ctx)) < time.Second {
		cancel()
		ctx, cancel = context.WithTimeout(context.Background(), time.Second)
		defer cancel()
	}

	var errs []error
	for _, res := range m.registry.Run(ctx) {
		if res.Err != nil {
			m.logger.Error("Cleanup function failed",
				zap.String("name", res.Name),
				zap.Duration("duration", res.Duration),
				zap.Error(res.Err),
			)
			errs = append(errs, res.Err)
			continue
		}
		m.logger.Debug("Cleanup function completed",
			zap.String("name", res.Name),
			zap.Duration("duration", res.Duration),
		)
	}

	m.mu.Lock()
	if m.started {
		signal.Stop(m.sigChan)
		close(m.sigChan)
	}
	m.mu.Unlock()

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	m.logger.Info("Graceful shutdown completed", zap.Duration("duration", time.Since(start)))
	return nil
}

func deadline(ctx context.Context) time.Time {
	d, _ := ctx.Deadline()
	return d
}

// Wait blocks until shutdown begins.
func (m *Manager) Wait() {
	<-m.ctx.Done()
}

// WrapOperation runs fn as a tracked operation. Once shutdown has begun it
// returns ErrTrackerClosed or context.Canceled without calling fn.
func (m *Manager) WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error {
	if !m.tracker.Start(name) {
		m.logger.Debug("Operation rejected, shutting down", zap.String("operation", name))
		return ErrTrackerClosed
	}
	defer m.tracker.Done(name)

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-m.ctx.Done():
		return context.Canceled
	default:
	}

	return fn(ctx)
}

// ActiveOperations returns the count of in-flight operations.
func (m *Manager) ActiveOperations() int {
	return m.tracker.ActiveCount()
}

// IsShuttingDown reports whether shutdown has begun.
func (m *Manager) IsShuttingDown() bool {
	return m.ctx.Err() != nil || m.tracker.IsClosed()
}

// Reason is the first recorded cause of shutdown, empty if none.
func (m *Manager) Reason() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reason
}

// ExitCode is the process exit code implied by the first signal received,
// or ExitCodeSuccess when shutdown was not signal-driven.
func (m *Manager) ExitCode() int {
	return ExitCodeForSignal(m.signals.First())
}

// RegisteredHandlers returns handler names in execution order.
func (m *Manager) RegisteredHandlers() []string {
	return m.registry.Names()
}

// Signal delivers sig as if it came from the OS. Start must have been called.
func (m *Manager) Signal(sig os.Signal) {
	m.sigChan <- sig
}
