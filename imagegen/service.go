package imagegen

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"storybook/logging"
	"storybook/metrics"
	"storybook/sdruntime"
)

// Generator is the model handle the service drives. *sdruntime.Runtime
// satisfies it.
type Generator interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
	BackendName() string
}

// OperationWrapper tracks a call as in-flight work for graceful shutdown.
// *shutdown.Manager satisfies it.
type OperationWrapper interface {
	WrapOperation(ctx context.Context, name string, fn func(context.Context) error) error
}

// Result is the outcome of one acquisition. Exactly one of Image and
// Failure is set.
type Result struct {
	Image    []byte
	Failure  *Failure
	Duration time.Duration
}

// OK reports whether an image was produced.
func (r Result) OK() bool {
	return r.Failure == nil
}

// Service acquires illustrations, one backend call per Acquire.
type Service struct {
	gen      Generator
	ops      OperationWrapper
	recorder metrics.Recorder
	logger   *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithOperations tracks every acquisition with ops.
func WithOperations(ops OperationWrapper) Option {
	return func(s *Service) { s.ops = ops }
}

// WithRecorder records an acquire task per call.
func WithRecorder(r metrics.Recorder) Option {
	return func(s *Service) { s.recorder = metrics.OrNop(r) }
}

// NewService returns a Service backed by gen.
func NewService(gen Generator, logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		gen:      gen,
		recorder: metrics.Nop,
		logger:   logger.With(zap.String("component", "imagegen")),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// BackendName reports the backend behind the service.
func (s *Service) BackendName() string {
	return s.gen.BackendName()
}

// Acquire renders prompt into a PNG. It never panics and never returns an
// error: every problem, including a backend panic, becomes a Failure.
func (s *Service) Acquire(ctx context.Context, prompt string) Result {
	task := metrics.StartTaskContext(ctx, metrics.TaskTypeAcquire)
	start := time.Now()

	var image []byte
	err := sdruntime.ValidatePrompt(prompt)
	if err == nil {
		run := func(ctx context.Context) error {
			var genErr error
			image, genErr = s.generate(ctx, prompt)
			if genErr != nil {
				return genErr
			}
			if vErr := sdruntime.ValidateImageData(image); vErr != nil {
				image = nil
				return fmt.Errorf("%w: %w", sdruntime.ErrInvalidOutput, vErr)
			}
			return nil
		}
		if s.ops != nil {
			err = s.ops.WrapOperation(ctx, "acquire", run)
		} else {
			err = run(ctx)
		}
	}

	res := Result{Duration: time.Since(start)}
	if err != nil {
		res.Failure = NewFailure(err)
		s.recorder.RecordTask(task.Fail(string(res.Failure.Code), res.Failure.Cause))
		s.logger.Warn("image acquisition failed",
			logging.PromptField(prompt),
			zap.String("code", string(res.Failure.Code)),
			zap.Error(err),
			zap.Duration("duration", res.Duration))
		return res
	}

	res.Image = image
	s.recorder.RecordTask(task.Succeed())
	s.logger.Info("image acquired",
		append(logging.AcquisitionFields(s.gen.BackendName(), len(image), res.Duration),
			logging.PromptField(prompt))...)
	return res
}

func (s *Service) generate(ctx context.Context, prompt string) (image []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			image = nil
			err = &PanicError{Value: r}
			s.logger.Error("recovered backend panic", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	return s.gen.Generate(ctx, prompt)
}
