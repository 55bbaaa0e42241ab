package config

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"ocrtranslate/internal/failure"

	cenv "github.com/caarlos0/env/v11"
)

const (
	ProviderGemini = "gemini"
	ProviderOpenAI = "openai"
)

var ErrMissingAPIKey = errors.New("model provider API key is missing")

var defaultModels = map[string]string{
	ProviderGemini: "gemini-2.0-flash",
	ProviderOpenAI: "gpt-4o-mini",
}

type Config struct {
	ListenAddr         string
	Provider           string
	APIKey             string
	BaseURL            string
	Model              string
	RequestTimeout     time.Duration
	ExtractionTimeout  time.Duration
	TranslationTimeout time.Duration
	MaxUploadBytes     int64
	MaxImageDimension  int
	LogLevel           string
}

type envConfig struct {
	Host                      string `env:"HOST" envDefault:""`
	Port                      int    `env:"PORT" envDefault:"8080"`
	Provider                  string `env:"MODEL_PROVIDER" envDefault:"gemini"`
	GeminiAPIKey              string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey              string `env:"OPENAI_API_KEY"`
	BaseURL                   string `env:"MODEL_BASE_URL"`
	Model                     string `env:"MODEL_NAME"`
	RequestTimeoutSeconds     int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"60"`
	ExtractionTimeoutSeconds  int    `env:"EXTRACTION_TIMEOUT_SECONDS" envDefault:"60"`
	TranslationTimeoutSeconds int    `env:"TRANSLATION_TIMEOUT_SECONDS" envDefault:"60"`
	MaxUploadBytes            int64  `env:"MAX_UPLOAD_BYTES" envDefault:"0"`
	MaxImageDimension         int    `env:"MAX_IMAGE_DIMENSION" envDefault:"0"`
	LogLevel                  string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (Config, error) {
	var raw envConfig
	if err := cenv.Parse(&raw); err != nil {
		return Config{}, failure.New(failure.KindConfig, failure.StageStartup, err)
	}

	provider := strings.ToLower(strings.TrimSpace(raw.Provider))
	apiKey := raw.GeminiAPIKey
	if provider == ProviderOpenAI {
		apiKey = raw.OpenAIAPIKey
	}
	model := strings.TrimSpace(raw.Model)
	if model == "" {
		model = defaultModels[provider]
	}

	cfg := Config{
		ListenAddr:         net.JoinHostPort(strings.TrimSpace(raw.Host), strconv.Itoa(raw.Port)),
		Provider:           provider,
		APIKey:             strings.TrimSpace(apiKey),
		BaseURL:            strings.TrimRight(strings.TrimSpace(raw.BaseURL), "/"),
		Model:              model,
		RequestTimeout:     time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		ExtractionTimeout:  time.Duration(raw.ExtractionTimeoutSeconds) * time.Second,
		TranslationTimeout: time.Duration(raw.TranslationTimeoutSeconds) * time.Second,
		MaxUploadBytes:     raw.MaxUploadBytes,
		MaxImageDimension:  raw.MaxImageDimension,
		LogLevel:           strings.ToLower(strings.TrimSpace(raw.LogLevel)),
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, failure.New(failure.KindConfig, failure.StageStartup, err)
	}
	return cfg, nil
}

func (c Config) Validate() error {
	switch c.Provider {
	case ProviderGemini, ProviderOpenAI:
	default:
		return fmt.Errorf("MODEL_PROVIDER must be %q or %q, got %q", ProviderGemini, ProviderOpenAI, c.Provider)
	}
	if c.APIKey == "" {
		return fmt.Errorf("%w: set %s", ErrMissingAPIKey, c.apiKeyVar())
	}
	if c.Model == "" {
		return errors.New("MODEL_NAME must not be empty")
	}
	if c.RequestTimeout <= 0 {
		return errors.New("REQUEST_TIMEOUT_SECONDS must be > 0")
	}
	if c.ExtractionTimeout <= 0 {
		return errors.New("EXTRACTION_TIMEOUT_SECONDS must be > 0")
	}
	if c.TranslationTimeout <= 0 {
		return errors.New("TRANSLATION_TIMEOUT_SECONDS must be > 0")
	}
	if c.MaxUploadBytes < 0 {
		return errors.New("MAX_UPLOAD_BYTES must be >= 0")
	}
	if c.MaxImageDimension < 0 {
		return errors.New("MAX_IMAGE_DIMENSION must be >= 0")
	}
	return nil
}

func (c Config) apiKeyVar() string {
	if c.Provider == ProviderOpenAI {
		return "OPENAI_API_KEY"
	}
	return "GEMINI_API_KEY"
}
