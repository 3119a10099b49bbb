package sdruntime

import "errors"

// Sentinel errors for runtime operations.
var (
	// Model lifecycle
	ErrModelUnavailable = errors.New("sdruntime: image model unavailable")
	ErrModelLoadFailed  = errors.New("sdruntime: failed to load model")
	ErrRuntimeClosed    = errors.New("sdruntime: runtime is closed")

	// Generation
	ErrGenerationFailed  = errors.New("sdruntime: image generation failed")
	ErrGenerationTimeout = errors.New("sdruntime: image generation timed out")
	ErrInvalidOutput     = errors.New("sdruntime: backend returned an invalid image")

	// Input validation
	ErrInvalidPrompt = errors.New("sdruntime: invalid prompt")
	ErrInvalidParams = errors.New("sdruntime: invalid generation parameters")
)
