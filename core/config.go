package core

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"
)

// Image backend identifiers recognized by IMAGE_BACKEND.
const (
	BackendWebUI  = "webui"
	BackendOpenAI = "openai"
	BackendNull   = "null"
)

// Config holds all configuration values
type Config struct {
	// Environment
	Environment string // "development" or "production"
	LogLevel    string
	LogFile     string

	// HTTP service
	ListenAddr        string
	AllowedOrigins    []string
	SessionTTL        time.Duration
	AcquireRatePerMin int
	MaxBodyBytes      int64
	DashboardPassword string // empty leaves the dashboard open

	// Optional audit history (empty disables it)
	HistoryDBPath        string
	HistoryRetentionDays int // 0 keeps everything

	// Image backend selection
	ImageBackend string

	// Stable Diffusion WebUI backend
	SDWebUIURL       string
	SDModel          string  // checkpoint title to activate on first use
	SDImageSize      int     // square output size in pixels
	SDInferenceSteps int     // denoising steps
	SDGuidanceScale  float64 // CFG scale
	SDNegativePrompt string
	SDTimeout        time.Duration

	// OpenAI images backend
	OpenAIAPIKey     string
	OpenAIBaseURL    string
	OpenAIImageModel string

	// Composition
	ComposerMaxImagePixels int // longest side before images are down-sampled
}

// Default values applied when the corresponding variable is unset.
const (
	DefaultListenAddr         = "localhost:8000"
	DefaultSessionTTLMinutes  = 120
	DefaultAcquireRatePerMin  = 30
	DefaultMaxBodyMB          = 32
	DefaultSDWebUIURL         = "http://127.0.0.1:7860"
	DefaultSDModel            = "sd_turbo"
	DefaultSDImageSize        = 256
	DefaultSDInferenceSteps   = 1
	DefaultSDGuidanceScale    = 1.0
	DefaultSDTimeoutSeconds   = 120
	DefaultOpenAIImageModel   = "dall-e-2"
	DefaultComposerMaxPixels  = 2048
	DefaultHistoryRetention   = 30
	DefaultLogFile            = "storybook.log"
	DefaultEnvironment        = "production"
	DevelopmentEnvironment    = "development"
	defaultAllowedOriginsList = "*"
)

// LoadConfig reads configuration from the environment. Callers are expected
// to have loaded .env (godotenv) beforehand.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Environment: strings.ToLower(GetEnvOrDefault("STORY_ENV", DefaultEnvironment)),
		LogLevel:    GetEnvOrDefault("LOG_LEVEL", "info"),
		LogFile:     GetEnvOrDefault("LOG_FILE", DefaultLogFile),

		ListenAddr:        GetEnvOrDefault("STORY_LISTEN_ADDR", DefaultListenAddr),
		AllowedOrigins:    ParseListEnv("STORY_ALLOWED_ORIGINS", defaultAllowedOriginsList),
		SessionTTL:        time.Duration(ParseIntEnv("STORY_SESSION_TTL_MINUTES", DefaultSessionTTLMinutes)) * time.Minute,
		AcquireRatePerMin: ParseIntEnv("STORY_ACQUIRE_RATE_PER_MIN", DefaultAcquireRatePerMin),
		MaxBodyBytes:      ParseInt64Env("STORY_MAX_BODY_MB", DefaultMaxBodyMB) << 20,
		DashboardPassword: os.Getenv("STORY_DASHBOARD_PASSWORD"),

		HistoryDBPath:        os.Getenv("STORY_HISTORY_DB"),
		HistoryRetentionDays: ParseIntEnv("STORY_HISTORY_RETENTION_DAYS", DefaultHistoryRetention),

		ImageBackend: strings.ToLower(GetEnvOrDefault("IMAGE_BACKEND", BackendNull)),

		SDWebUIURL:       strings.TrimRight(GetEnvOrDefault("SD_WEBUI_URL", DefaultSDWebUIURL), "/"),
		SDModel:          GetEnvOrDefault("SD_MODEL", DefaultSDModel),
		SDImageSize:      ParseIntEnv("SD_IMAGE_SIZE", DefaultSDImageSize),
		SDInferenceSteps: ParseIntEnv("SD_INFERENCE_STEPS", DefaultSDInferenceSteps),
		SDGuidanceScale:  ParseFloat64Env("SD_GUIDANCE_SCALE", DefaultSDGuidanceScale),
		SDNegativePrompt: os.Getenv("SD_NEGATIVE_PROMPT"),
		SDTimeout:        ParseDurationEnv("SD_TIMEOUT_SECONDS", DefaultSDTimeoutSeconds),

		OpenAIAPIKey:     os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:    os.Getenv("OPENAI_BASE_URL"),
		OpenAIImageModel: GetEnvOrDefault("OPENAI_IMAGE_MODEL", DefaultOpenAIImageModel),

		ComposerMaxImagePixels: ParseIntEnv("STORY_MAX_IMAGE_PIXELS", DefaultComposerMaxPixels),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints and returns the first ConfigError found.
func (c *Config) Validate() error {
	switch c.ImageBackend {
	case BackendWebUI:
		u, err := url.Parse(c.SDWebUIURL)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return ErrInvalidURL("SD_WEBUI_URL", c.SDWebUIURL)
		}
	case BackendOpenAI:
		if c.OpenAIAPIKey == "" {
			return ErrMissingAuth(BackendOpenAI)
		}
	case BackendNull:
	default:
		return ErrInvalidValue("IMAGE_BACKEND", c.ImageBackend,
			fmt.Sprintf("one of %s, %s, %s", BackendWebUI, BackendOpenAI, BackendNull))
	}

	if c.AcquireRatePerMin <= 0 {
		return ErrInvalidValue("STORY_ACQUIRE_RATE_PER_MIN", fmt.Sprint(c.AcquireRatePerMin), "a positive integer")
	}
	if c.SessionTTL <= 0 {
		return ErrInvalidValue("STORY_SESSION_TTL_MINUTES", c.SessionTTL.String(), "a positive number of minutes")
	}
	if c.HistoryRetentionDays < 0 {
		return ErrInvalidValue("STORY_HISTORY_RETENTION_DAYS", fmt.Sprint(c.HistoryRetentionDays), "zero or a positive number of days")
	}
	if c.MaxBodyBytes <= 0 {
		return ErrInvalidValue("STORY_MAX_BODY_MB", fmt.Sprint(c.MaxBodyBytes>>20), "a positive number of megabytes")
	}
	return nil
}

// IsDevelopment reports whether verbose console logging should be enabled.
func (c *Config) IsDevelopment() bool {
	return c.Environment == DevelopmentEnvironment
}

// HistoryEnabled reports whether task history should be written to SQLite.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDBPath != ""
}
