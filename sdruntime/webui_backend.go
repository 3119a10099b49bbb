package sdruntime

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// Stable Diffusion WebUI (AUTOMATIC1111 / Forge) API paths.
const (
	webuiModelsPath  = "/sdapi/v1/sd-models"
	webuiOptionsPath = "/sdapi/v1/options"
	webuiTxt2ImgPath = "/sdapi/v1/txt2img"

	maxErrorBodyBytes = 512
)

// WebUIBackend talks to a running Stable Diffusion WebUI instance.
type WebUIBackend struct {
	baseURL string
	model   string
	client  *http.Client
	logger  *zap.Logger
}

// NewWebUIBackend returns a backend for the WebUI at baseURL. When model is
// non-empty, Load activates the first checkpoint whose title or name
// contains it. A nil client uses http.DefaultClient.
func NewWebUIBackend(baseURL, model string, client *http.Client, logger *zap.Logger) *WebUIBackend {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebUIBackend{
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		client:  client,
		logger:  logger.With(zap.String("component", "sd_webui")),
	}
}

// Name returns "webui".
func (b *WebUIBackend) Name() string { return "webui" }

type webuiCheckpoint struct {
	Title     string `json:"title"`
	ModelName string `json:"model_name"`
}

type txt2imgRequest struct {
	Prompt         string  `json:"prompt"`
	NegativePrompt string  `json:"negative_prompt,omitempty"`
	Width          int     `json:"width"`
	Height         int     `json:"height"`
	Steps          int     `json:"steps"`
	CFGScale       float64 `json:"cfg_scale"`
	Seed           int64   `json:"seed"`
	BatchSize      int     `json:"batch_size"`
	NIter          int     `json:"n_iter"`
}

type txt2imgResponse struct {
	Images []string `json:"images"`
}

// Load checks that the server is reachable and selects the configured
// checkpoint.
func (b *WebUIBackend) Load(ctx context.Context) (Model, error) {
	var checkpoints []webuiCheckpoint
	if err := b.do(ctx, http.MethodGet, webuiModelsPath, nil, &checkpoints); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}

	if b.model == "" {
		b.logger.Info("using server's active checkpoint", zap.Int("available", len(checkpoints)))
		return &webuiModel{backend: b}, nil
	}

	title, ok := matchCheckpoint(checkpoints, b.model)
	if !ok {
		return nil, fmt.Errorf("%w: checkpoint %q not found among %d models", ErrModelUnavailable, b.model, len(checkpoints))
	}

	opts := map[string]string{"sd_model_checkpoint": title}
	if err := b.do(ctx, http.MethodPost, webuiOptionsPath, opts, nil); err != nil {
		return nil, fmt.Errorf("select checkpoint %q: %w", title, err)
	}

	b.logger.Info("checkpoint selected", zap.String("checkpoint", title))
	return &webuiModel{backend: b, checkpoint: title}, nil
}

func matchCheckpoint(checkpoints []webuiCheckpoint, want string) (string, bool) {
	want = strings.ToLower(want)
	for _, c := range checkpoints {
		if strings.Contains(strings.ToLower(c.Title), want) || strings.Contains(strings.ToLower(c.ModelName), want) {
			return c.Title, true
		}
	}
	return "", false
}

func (b *WebUIBackend) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBodyBytes))
		return &HTTPStatusError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

// HTTPStatusError is a non-2xx answer from the WebUI server.
type HTTPStatusError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPStatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type webuiModel struct {
	backend    *WebUIBackend
	checkpoint string
}

func (m *webuiModel) TextToImage(ctx context.Context, p GenerateParams) ([]byte, error) {
	req := txt2imgRequest{
		Prompt:         p.Prompt,
		NegativePrompt: p.NegativePrompt,
		Width:          p.Width,
		Height:         p.Height,
		Steps:          p.Steps,
		CFGScale:       p.CFGScale,
		Seed:           p.Seed,
		BatchSize:      1,
		NIter:          1,
	}

	var resp txt2imgResponse
	if err := m.backend.do(ctx, http.MethodPost, webuiTxt2ImgPath, req, &resp); err != nil {
		var statusErr *HTTPStatusError
		if errors.As(err, &statusErr) {
			return nil, fmt.Errorf("%w: %w", ErrGenerationFailed, err)
		}
		return nil, err
	}
	if len(resp.Images) == 0 {
		return nil, fmt.Errorf("%w: response contained no images", ErrInvalidOutput)
	}
	return DecodeBase64Image(resp.Images[0])
}

func (m *webuiModel) Close() error { return nil }
