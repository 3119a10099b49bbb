// Package imagegen is the image acquisition service: one prompt in, one
// validated PNG or one typed failure out.
package imagegen

import (
	"context"
	"errors"
	"strings"

	"github.com/sashabaranov/go-openai"

	"storybook/sdruntime"
	"storybook/shutdown"
)

// IsAzureEndpoint reports whether endpoint is an Azure OpenAI resource.
func IsAzureEndpoint(endpoint string) bool {
	lower := strings.ToLower(endpoint)
	return strings.Contains(lower, "openai.azure.com") ||
		strings.Contains(lower, "cognitiveservices.azure.com")
}

// OpenAIImageSize maps a square pixel size to the nearest size the Images
// API accepts for dall-e-2 that is not smaller than the request.
func OpenAIImageSize(px int) string {
	switch {
	case px <= 256:
		return openai.CreateImageSize256x256
	case px <= 512:
		return openai.CreateImageSize512x512
	default:
		return openai.CreateImageSize1024x1024
	}
}

// Classify maps an acquisition error to its failure code.
func Classify(err error) Code {
	var pe *PanicError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &pe):
		return CodeInternal
	case errors.Is(err, sdruntime.ErrInvalidPrompt), errors.Is(err, sdruntime.ErrInvalidParams):
		return CodeInvalidPrompt
	case errors.Is(err, shutdown.ErrTrackerClosed), errors.Is(err, sdruntime.ErrRuntimeClosed):
		return CodeShuttingDown
	case errors.Is(err, sdruntime.ErrGenerationTimeout), errors.Is(err, context.DeadlineExceeded):
		return CodeTimeout
	case errors.Is(err, context.Canceled):
		return CodeCanceled
	case errors.Is(err, sdruntime.ErrModelLoadFailed), errors.Is(err, sdruntime.ErrModelUnavailable):
		return CodeModelUnavailable
	case errors.Is(err, sdruntime.ErrInvalidOutput):
		return CodeInvalidOutput
	case errors.Is(err, sdruntime.ErrGenerationFailed):
		return CodeGenerationFailed
	default:
		return CodeInternal
	}
}
