package sdruntime

import (
	"time"

	"storybook/core"
)

// Config holds the generation defaults applied to every prompt.
type Config struct {
	ImageSize      int     // square output size in pixels
	InferenceSteps int     // denoising steps
	GuidanceScale  float64 // CFG scale
	NegativePrompt string

	// Timeout bounds one Generate call, including a first-use model load.
	Timeout time.Duration
}

// Defaults tuned for sd-turbo, which produces usable images in one step
// without classifier-free guidance.
const (
	DefaultImageSize      = 256
	DefaultInferenceSteps = 1
	DefaultGuidanceScale  = 1.0
	DefaultTimeoutSeconds = 120
)

// DefaultConfig returns the sd-turbo profile.
func DefaultConfig() Config {
	return Config{
		ImageSize:      DefaultImageSize,
		InferenceSteps: DefaultInferenceSteps,
		GuidanceScale:  DefaultGuidanceScale,
		Timeout:        DefaultTimeoutSeconds * time.Second,
	}
}

// ConfigFrom extracts the generation settings from the application config.
// Zero values fall back to the defaults.
func ConfigFrom(c *core.Config) Config {
	cfg := DefaultConfig()
	if c == nil {
		return cfg
	}
	if c.SDImageSize > 0 {
		cfg.ImageSize = c.SDImageSize
	}
	if c.SDInferenceSteps > 0 {
		cfg.InferenceSteps = c.SDInferenceSteps
	}
	if c.SDGuidanceScale > 0 {
		cfg.GuidanceScale = c.SDGuidanceScale
	}
	if c.SDTimeout > 0 {
		cfg.Timeout = c.SDTimeout
	}
	cfg.NegativePrompt = c.SDNegativePrompt
	return cfg
}

// Params builds the generation parameters for prompt. The seed is left at
// -1 so the runtime picks a fresh one per call.
func (c Config) Params(prompt string) GenerateParams {
	return GenerateParams{
		Prompt:         SanitizePrompt(prompt),
		NegativePrompt: c.NegativePrompt,
		Width:          c.ImageSize,
		Height:         c.ImageSize,
		Steps:          c.InferenceSteps,
		CFGScale:       c.GuidanceScale,
		Seed:           -1,
	}
}
