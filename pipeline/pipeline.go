// Package pipeline coordinates synthesis, prompt edits, image acquisition
// and export against one session.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"storybook/composer"
	"storybook/imagegen"
	"storybook/logging"
	"storybook/metrics"
	"storybook/session"
	"storybook/story"
)

var (
	// ErrEmptyPrompt is returned by EditPrompt for a blank prompt.
	ErrEmptyPrompt = errors.New("pipeline: prompt is empty")

	// ErrNoScenes is returned by GenerateAll on a session that has never
	// been synthesized.
	ErrNoScenes = errors.New("pipeline: session has no scenes")
)

// Synthesizer turns parameters into a fresh scene collection.
type Synthesizer interface {
	Synthesize(p story.Params) ([]story.Scene, error)
}

// Acquirer renders one prompt. *imagegen.Service satisfies it.
type Acquirer interface {
	Acquire(ctx context.Context, prompt string) imagegen.Result
}

// DocumentComposer renders scenes into a document. *composer.Composer
// satisfies it.
type DocumentComposer interface {
	Compose(scenes []story.Scene) (composer.Document, error)
}

// Outcome is the result of one scene's acquisition.
type Outcome struct {
	Index      int
	Prompt     string
	Failure    *imagegen.Failure
	Skipped    bool
	ImageBytes int
	Duration   time.Duration
}

// OK reports whether the scene got a new image.
func (o Outcome) OK() bool {
	return o.Failure == nil
}

// Progress is reported after each scene of a batch.
type Progress struct {
	Outcome   Outcome
	Completed int
	Total     int
}

// ProgressFunc receives batch progress. It runs on the batch goroutine and
// should return quickly.
type ProgressFunc func(Progress)

// Pipeline is stateless; all story state lives in the session passed to
// each call.
type Pipeline struct {
	synth    Synthesizer
	acquirer Acquirer
	composer DocumentComposer
	logger   *zap.Logger
	recorder metrics.Recorder
}

// New assembles a Pipeline. A nil synth uses the template synthesizer.
func New(synth Synthesizer, acquirer Acquirer, comp DocumentComposer, logger *zap.Logger, recorder metrics.Recorder) *Pipeline {
	if synth == nil {
		synth = story.NewSynthesizer(nil)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Pipeline{
		synth:    synth,
		acquirer: acquirer,
		composer: comp,
		logger:   logger.With(zap.String("component", "pipeline")),
		recorder: metrics.OrNop(recorder),
	}
}

// Synthesize builds new scenes from p and installs them in sess as a whole.
// On error sess is left as it was.
func (p *Pipeline) Synthesize(sess *session.Session, params story.Params) ([]story.Scene, error) {
	task := metrics.StartTask(metrics.TaskTypeSynthesize)
	task.SessionID = sess.ID()

	if params.Clamped() {
		p.logger.Warn("scene count clamped",
			zap.String("session_id", sess.ID()),
			zap.Int("requested", params.SceneCount),
			zap.Int("effective", story.MaxSceneCount))
	}

	scenes, err := p.synth.Synthesize(params)
	if err == nil {
		err = sess.ReplaceAll(scenes)
	}
	if err != nil {
		field := "unknown"
		if se, ok := story.IsSynthesisError(err); ok {
			field = se.Field
		}
		p.recorder.RecordTask(task.Fail("invalid_params", err.Error()))
		p.logger.Info("synthesis rejected",
			zap.String("session_id", sess.ID()),
			zap.String("field", field),
			zap.Error(err))
		return nil, err
	}

	p.recorder.RecordTask(task.Succeed())
	p.logger.Info("story synthesized",
		zap.String("session_id", sess.ID()),
		zap.Int("scenes", len(scenes)))
	return sess.Scenes(), nil
}

// EditPrompt overwrites one scene's prompt with the trimmed prompt. The
// scene's image, title and text are untouched.
func (p *Pipeline) EditPrompt(sess *session.Session, index int, prompt string) (story.Scene, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return story.Scene{}, ErrEmptyPrompt
	}
	if err := sess.SetPrompt(index, prompt); err != nil {
		return story.Scene{}, err
	}
	p.logger.Debug("prompt edited",
		append(logging.SceneFields(index, ""), logging.PromptField(prompt), zap.String("session_id", sess.ID()))...)
	return sess.Scene(index)
}

// GenerateImage acquires an image for one scene from its current prompt.
// Acquisition failures are carried in the Outcome and leave the scene's
// image as it was. The error is reserved for an unknown index, or
// session.ErrReplaced when the story was replaced mid-acquisition.
func (p *Pipeline) GenerateImage(ctx context.Context, sess *session.Session, index int) (Outcome, error) {
	epoch := sess.Epoch()
	sc, err := sess.Scene(index)
	if err != nil {
		return Outcome{}, err
	}
	return p.generate(ctx, sess, epoch, sc)
}

func (p *Pipeline) generate(ctx context.Context, sess *session.Session, epoch uint64, sc story.Scene) (Outcome, error) {
	ctx = metrics.WithTaskInfo(ctx, metrics.TaskInfo{SessionID: sess.ID(), SceneIndex: sc.Index})
	res := p.acquirer.Acquire(ctx, sc.ImagePrompt)

	out := Outcome{
		Index:    sc.Index,
		Prompt:   sc.ImagePrompt,
		Failure:  res.Failure,
		Duration: res.Duration,
	}
	if !res.OK() {
		return out, nil
	}

	if err := sess.SetImageIfCurrent(epoch, sc.Index, res.Image); err != nil {
		p.logger.Warn("discarding image for replaced story",
			append(logging.SceneFields(sc.Index, sc.Title), zap.String("session_id", sess.ID()), zap.Error(err))...)
		return out, err
	}
	out.ImageBytes = len(res.Image)
	return out, nil
}

// GenerateAll acquires images for every scene in index order. Each result
// is applied and reported before the next scene starts, and a failure
// never stops later scenes. Once ctx is done the remaining scenes are
// reported as skipped.
func (p *Pipeline) GenerateAll(ctx context.Context, sess *session.Session, onProgress ProgressFunc) ([]Outcome, error) {
	scenes, epoch := sess.Snapshot()
	if len(scenes) == 0 {
		return nil, ErrNoScenes
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	start := time.Now()
	outcomes := make([]Outcome, 0, len(scenes))
	for _, sc := range scenes {
		var out Outcome
		if err := ctx.Err(); err != nil {
			out = Outcome{
				Index:  sc.Index,
				Prompt: sc.ImagePrompt,
				Failure: &imagegen.Failure{
					Code:  imagegen.CodeCanceled,
					Cause: "skipped: " + err.Error(),
					Err:   err,
				},
				Skipped: true,
			}
		} else {
			// The prompt may have been edited since the snapshot.
			if current, err := sess.Scene(sc.Index); err == nil {
				sc.ImagePrompt = current.ImagePrompt
			}
			var err error
			out, err = p.generate(ctx, sess, epoch, sc)
			if err != nil {
				return outcomes, fmt.Errorf("scene %d: %w", sc.Index, err)
			}
		}

		outcomes = append(outcomes, out)
		onProgress(Progress{Outcome: out, Completed: len(outcomes), Total: len(scenes)})
	}

	failed := 0
	for _, o := range outcomes {
		if !o.OK() {
			failed++
		}
	}
	p.logger.Info("batch acquisition finished",
		zap.String("session_id", sess.ID()),
		zap.Int("scenes", len(outcomes)),
		zap.Int("failed", failed),
		zap.Duration("duration", time.Since(start)))
	return outcomes, nil
}

// Export composes a snapshot of sess. The session is never modified.
func (p *Pipeline) Export(sess *session.Session) (composer.Document, error) {
	return p.composer.Compose(sess.Scenes())
}

// AcquireImage renders a prompt without a session.
func (p *Pipeline) AcquireImage(ctx context.Context, prompt string) imagegen.Result {
	return p.acquirer.Acquire(ctx, prompt)
}

// ComposeDocument composes caller-supplied scenes without a session.
func (p *Pipeline) ComposeDocument(scenes []story.Scene) (composer.Document, error) {
	return p.composer.Compose(scenes)
}
