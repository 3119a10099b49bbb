package core

import (
	"errors"
	"fmt"
)

// ConfigError is a configuration problem with a human-readable message and
// an instruction telling the operator how to fix it.
type ConfigError struct {
	Code    string // Error code for programmatic handling
	Message string // Human-readable error message
	Action  string // Actionable instruction for resolution
}

func (e *ConfigError) Error() string {
	if e.Action != "" {
		return fmt.Sprintf("%s. %s", e.Message, e.Action)
	}
	return e.Message
}

const (
	ErrCodeInvalidURL    = "INVALID_URL"
	ErrCodeInvalidValue  = "INVALID_VALUE"
	ErrCodeMissingAuth   = "MISSING_AUTH"
	ErrCodeMissingConfig = "MISSING_CONFIG"
	ErrCodeParamsFile    = "PARAMS_FILE"
	ErrCodeUnreachable   = "BACKEND_UNREACHABLE"
	ErrCodeNotWritable   = "NOT_WRITABLE"
)

// ErrInvalidURL reports a malformed URL variable.
func ErrInvalidURL(varName, value string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidURL,
		Message: fmt.Sprintf("Invalid %s URL '%s'", varName, value),
		Action:  fmt.Sprintf("Set %s to an absolute URL (e.g., http://127.0.0.1:7860)", varName),
	}
}

// ErrInvalidValue reports a variable whose value is outside its accepted set.
func ErrInvalidValue(varName, value, expected string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeInvalidValue,
		Message: fmt.Sprintf("Invalid value for %s: '%s'", varName, value),
		Action:  fmt.Sprintf("Set %s to %s", varName, expected),
	}
}

// ErrMissingAuth reports a backend selected without its credentials.
func ErrMissingAuth(service string) *ConfigError {
	action := fmt.Sprintf("Set the required API key for %s in your .env file", service)
	if service == BackendOpenAI {
		action = "Set OPENAI_API_KEY in your .env file (or choose IMAGE_BACKEND=webui)"
	}
	return &ConfigError{
		Code:    ErrCodeMissingAuth,
		Message: fmt.Sprintf("Missing authentication credentials for %s", service),
		Action:  action,
	}
}

// ErrMissingConfig reports a required variable that is unset.
func ErrMissingConfig(varName string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeMissingConfig,
		Message: fmt.Sprintf("Missing required configuration: %s", varName),
		Action:  fmt.Sprintf("Set %s in your .env file", varName),
	}
}

// ErrParamsFile reports an unreadable or malformed story parameters file.
func ErrParamsFile(path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeParamsFile,
		Message: fmt.Sprintf("Cannot read story parameters from %s: %v", path, cause),
		Action:  "Provide a YAML file with idea, genre, tone, audience, scene_count and art_style",
	}
}

// ErrBackendUnreachable reports an image backend that did not answer a probe.
func ErrBackendUnreachable(url, reason string) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeUnreachable,
		Message: fmt.Sprintf("Image backend at %s is unreachable: %s", url, reason),
		Action:  "Start the backend or point SD_WEBUI_URL / OPENAI_BASE_URL at a running one",
	}
}

// ErrNotWritable reports a log or database location the process cannot write.
func ErrNotWritable(varName, path string, cause error) *ConfigError {
	return &ConfigError{
		Code:    ErrCodeNotWritable,
		Message: fmt.Sprintf("Cannot write to %s (%s): %v", path, varName, cause),
		Action:  fmt.Sprintf("Fix the directory permissions or set %s to a writable path", varName),
	}
}

// IsConfigError unwraps err looking for a *ConfigError.
func IsConfigError(err error) (*ConfigError, bool) {
	var configErr *ConfigError
	if errors.As(err, &configErr) {
		return configErr, true
	}
	return nil, false
}

// GetErrorCode returns the ConfigError code or "" for other errors.
func GetErrorCode(err error) string {
	if configErr, ok := IsConfigError(err); ok {
		return configErr.Code
	}
	return ""
}
