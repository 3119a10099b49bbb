package imagegen

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"storybook/sdruntime"
)

// DefaultOpenAIImageModel is used when no model is configured.
const DefaultOpenAIImageModel = openai.CreateImageModelDallE2

// OpenAIConfig holds the OpenAI Images settings.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string // empty means api.openai.com; Azure endpoints are detected
	Model   string

	// HTTPClient overrides the transport, mainly for tests.
	HTTPClient *http.Client
}

// OpenAIBackend is an sdruntime.Backend for the OpenAI Images API.
type OpenAIBackend struct {
	cfg    OpenAIConfig
	logger *zap.Logger
}

// NewOpenAIBackend validates cfg and returns a backend. The API is not
// contacted until the runtime loads the model.
func NewOpenAIBackend(cfg OpenAIConfig, logger *zap.Logger) (*OpenAIBackend, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("imagegen: OpenAI API key is required for the openai backend")
	}
	if cfg.Model == "" {
		cfg.Model = DefaultOpenAIImageModel
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIBackend{cfg: cfg, logger: logger.With(zap.String("component", "openai_images"))}, nil
}

// Name returns "openai".
func (b *OpenAIBackend) Name() string { return "openai" }

// Load builds the API client. It does not make a request: the Images API
// has no cheap readiness probe.
func (b *OpenAIBackend) Load(ctx context.Context) (sdruntime.Model, error) {
	var clientConfig openai.ClientConfig
	if IsAzureEndpoint(b.cfg.BaseURL) {
		clientConfig = openai.DefaultAzureConfig(b.cfg.APIKey, b.cfg.BaseURL)
	} else {
		clientConfig = openai.DefaultConfig(b.cfg.APIKey)
		if b.cfg.BaseURL != "" {
			clientConfig.BaseURL = b.cfg.BaseURL
		}
	}
	if b.cfg.HTTPClient != nil {
		clientConfig.HTTPClient = b.cfg.HTTPClient
	}

	b.logger.Info("OpenAI images client ready", zap.String("model", b.cfg.Model))
	return &openaiModel{
		client: openai.NewClientWithConfig(clientConfig),
		model:  b.cfg.Model,
	}, nil
}

type openaiModel struct {
	client *openai.Client
	model  string
}

func (m *openaiModel) TextToImage(ctx context.Context, p sdruntime.GenerateParams) ([]byte, error) {
	req := openai.ImageRequest{
		Prompt:         p.Prompt,
		Model:          m.model,
		N:              1,
		Size:           OpenAIImageSize(max(p.Width, p.Height)),
		ResponseFormat: openai.CreateImageResponseFormatB64JSON,
	}

	resp, err := m.client.CreateImage(ctx, req)
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusUnauthorized {
			return nil, fmt.Errorf("%w: %w", sdruntime.ErrModelUnavailable, err)
		}
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", sdruntime.ErrGenerationFailed, err)
	}
	if len(resp.Data) == 0 || resp.Data[0].B64JSON == "" {
		return nil, fmt.Errorf("%w: OpenAI returned no image data", sdruntime.ErrInvalidOutput)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Data[0].B64JSON)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", sdruntime.ErrInvalidOutput, err)
	}
	return data, nil
}

func (m *openaiModel) Close() error { return nil }

var _ sdruntime.Backend = (*OpenAIBackend)(nil)
