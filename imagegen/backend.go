package imagegen

import (
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"storybook/core"
	"storybook/sdruntime"
)

// NewBackend selects the image backend named by cfg.ImageBackend.
func NewBackend(cfg *core.Config, logger *zap.Logger) (sdruntime.Backend, error) {
	switch cfg.ImageBackend {
	case core.BackendWebUI:
		client := &http.Client{Timeout: cfg.SDTimeout}
		return sdruntime.NewWebUIBackend(cfg.SDWebUIURL, cfg.SDModel, client, logger), nil
	case core.BackendOpenAI:
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:  cfg.OpenAIAPIKey,
			BaseURL: cfg.OpenAIBaseURL,
			Model:   cfg.OpenAIImageModel,
		}, logger)
	case core.BackendNull, "":
		return sdruntime.NullBackend{}, nil
	default:
		return nil, fmt.Errorf("imagegen: unknown image backend %q", cfg.ImageBackend)
	}
}
