package validation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"storybook/core"
)

const (
	webuiProbePath  = "/sdapi/v1/sd-models"
	openaiProbePath = "/models"

	defaultOpenAIBaseURL = "https://api.openai.com/v1"
)

func (s *ValidationSuite) checkEnvFile(context.Context) (StepStatus, string, error) {
	info, err := os.Stat(s.envPath)
	switch {
	case err == nil && info.IsDir():
		return StepFailed, "", fmt.Errorf("%s is a directory", s.envPath)
	case err == nil:
		return StepPassed, fmt.Sprintf("Loaded %s", s.envPath), nil
	case errors.Is(err, os.ErrNotExist):
		return StepWarning, "No .env file, using the process environment", nil
	default:
		return StepFailed, "", fmt.Errorf("cannot read %s: %w", s.envPath, err)
	}
}

func (s *ValidationSuite) checkBackendConfig(context.Context) (StepStatus, string, error) {
	if err := s.cfg.Validate(); err != nil {
		return StepFailed, "", err
	}
	switch s.cfg.ImageBackend {
	case core.BackendWebUI:
		return StepPassed, fmt.Sprintf("webui at %s", s.cfg.SDWebUIURL), nil
	case core.BackendOpenAI:
		return StepPassed, fmt.Sprintf("openai (%s)", s.cfg.OpenAIImageModel), nil
	default:
		return StepWarning, "null backend, scenes will not be illustrated", nil
	}
}

func (s *ValidationSuite) checkOutputPaths(context.Context) (StepStatus, string, error) {
	checked := 0
	if s.cfg.LogFile != "" {
		if err := CheckWritableDir(filepath.Dir(s.cfg.LogFile)); err != nil {
			return StepFailed, "", core.ErrNotWritable("LOG_FILE", s.cfg.LogFile, err)
		}
		checked++
	}
	if s.cfg.HistoryEnabled() {
		if err := CheckWritableDir(filepath.Dir(s.cfg.HistoryDBPath)); err != nil {
			return StepFailed, "", core.ErrNotWritable("STORY_HISTORY_DB", s.cfg.HistoryDBPath, err)
		}
		checked++
	}
	if checked == 0 {
		return StepSkipped, "No log file or task history configured", nil
	}
	return StepPassed, fmt.Sprintf("%d locations writable", checked), nil
}

func (s *ValidationSuite) checkDiskSpace(context.Context) (StepStatus, string, error) {
	path := "."
	switch {
	case s.cfg.HistoryEnabled():
		path = filepath.Dir(s.cfg.HistoryDBPath)
	case s.cfg.LogFile != "":
		path = filepath.Dir(s.cfg.LogFile)
	}

	info, err := GetDiskSpace(path)
	if err != nil {
		return StepWarning, fmt.Sprintf("Cannot determine free space: %v", err), nil
	}
	if err := CheckDiskSpace(info, s.minFreeDisk); err != nil {
		return StepWarning, err.Error(), nil
	}
	return StepPassed, fmt.Sprintf("%s free on %s", info.FreeFormatted, info.Path), nil
}

func (s *ValidationSuite) checkConnectivity(ctx context.Context) (StepStatus, string, error) {
	var target string
	headers := http.Header{}

	switch s.cfg.ImageBackend {
	case core.BackendWebUI:
		target = s.cfg.SDWebUIURL + webuiProbePath
	case core.BackendOpenAI:
		base := s.cfg.OpenAIBaseURL
		if base == "" {
			base = defaultOpenAIBaseURL
		}
		target = base + openaiProbePath
		headers.Set("Authorization", "Bearer "+s.cfg.OpenAIAPIKey)
	default:
		return StepSkipped, "Nothing to probe for the null backend", nil
	}

	result := s.connectivity.Check(ctx, target, headers)
	if !result.Reachable {
		return StepFailed, result.Message, result.Error
	}

	msg := fmt.Sprintf("%s (latency: %v)", result.Message, result.Latency.Round(time.Millisecond))
	switch {
	case result.StatusCode == http.StatusUnauthorized || result.StatusCode == http.StatusForbidden:
		return StepFailed, msg, core.ErrMissingAuth(s.cfg.ImageBackend)
	case result.StatusCode >= http.StatusInternalServerError:
		return StepWarning, msg, nil
	}
	return StepPassed, msg, nil
}
