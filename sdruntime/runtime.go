package sdruntime

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Runtime is the process-wide model handle. It is safe for concurrent use;
// callers queue on a single slot and run one at a time.
type Runtime struct {
	backend Backend
	cfg     Config
	logger  *zap.Logger

	// slot is a one-element semaphore held for the whole of a Generate call.
	// model is only touched while holding it.
	slot  chan struct{}
	model Model

	loaded      atomic.Bool
	closed      atomic.Bool
	loads       atomic.Int64
	generations atomic.Int64
}

// New returns a Runtime that will load backend's model on first use.
// A nil backend is treated as NullBackend.
func New(backend Backend, cfg Config, logger *zap.Logger) *Runtime {
	if backend == nil {
		backend = NullBackend{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Runtime{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "sdruntime"), zap.String("backend", backend.Name())),
		slot:    make(chan struct{}, 1),
	}
}

// Generate renders prompt into PNG bytes. It waits for the runtime slot
// until ctx is done, then applies the configured timeout to the load and
// generation that follow.
func (r *Runtime) Generate(ctx context.Context, prompt string) ([]byte, error) {
	params := r.cfg.Params(prompt)
	if err := ValidateParams(params); err != nil {
		return nil, err
	}
	if r.closed.Load() {
		return nil, ErrRuntimeClosed
	}

	select {
	case r.slot <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	defer func() { <-r.slot }()

	if r.closed.Load() {
		return nil, ErrRuntimeClosed
	}

	if r.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.Timeout)
		defer cancel()
	}

	model, err := r.ensureLoaded(ctx)
	if err != nil {
		return nil, err
	}

	if params.Seed < 0 {
		params.Seed = RandomSeed()
	}

	start := time.Now()
	data, err := model.TextToImage(ctx, params)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if err := ValidateImageData(data); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidOutput, err)
	}

	r.generations.Add(1)
	r.logger.Debug("image generated",
		zap.Int64("seed", params.Seed),
		zap.Int("width", params.Width),
		zap.Int("height", params.Height),
		zap.Int("image_bytes", len(data)),
		zap.Duration("duration", time.Since(start)))
	return data, nil
}

// ensureLoaded must be called while holding the slot.
func (r *Runtime) ensureLoaded(ctx context.Context) (Model, error) {
	if r.model != nil {
		return r.model, nil
	}

	start := time.Now()
	m, err := r.backend.Load(ctx)
	if err == nil && m == nil {
		err = errors.New("backend returned no model")
	}
	if err != nil {
		r.logger.Warn("model load failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %w: %w", ErrModelLoadFailed, ErrGenerationTimeout, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrModelLoadFailed, err)
	}

	r.model = m
	r.loaded.Store(true)
	r.loads.Add(1)
	r.logger.Info("model loaded", zap.Duration("duration", time.Since(start)))
	return m, nil
}

func classify(ctx context.Context, err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrGenerationTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, ErrGenerationFailed),
		errors.Is(err, ErrInvalidOutput),
		errors.Is(err, ErrModelUnavailable),
		errors.Is(err, ErrInvalidPrompt),
		errors.Is(err, ErrInvalidParams):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
	}
}

// BackendName reports which backend the runtime wraps.
func (r *Runtime) BackendName() string {
	return r.backend.Name()
}

// Loaded reports whether a model has been loaded successfully.
func (r *Runtime) Loaded() bool {
	return r.loaded.Load()
}

// LoadCount is the number of successful loads; it never exceeds one.
func (r *Runtime) LoadCount() int64 {
	return r.loads.Load()
}

// Generations is the number of images produced so far.
func (r *Runtime) Generations() int64 {
	return r.generations.Load()
}

// Config returns the generation defaults.
func (r *Runtime) Config() Config {
	return r.cfg
}

// Shutdown rejects new calls, waits for an in-flight generation (or ctx)
// and releases the model.
func (r *Runtime) Shutdown(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		return nil
	}

	select {
	case r.slot <- struct{}{}:
	case <-ctx.Done():
		return fmt.Errorf("sdruntime: waiting for in-flight generation: %w", ctx.Err())
	}
	defer func() { <-r.slot }()

	if r.model == nil {
		return nil
	}
	err := r.model.Close()
	r.model = nil
	r.loaded.Store(false)
	r.logger.Info("model released")
	return err
}

// Close is Shutdown without a deadline.
func (r *Runtime) Close() error {
	return r.Shutdown(context.Background())
}
