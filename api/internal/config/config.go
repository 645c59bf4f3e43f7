package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	log "github.com/sirupsen/logrus"
)

const (
	BackendGemini     = "gemini"
	BackendGeminiSDK  = "gemini-sdk"
	BackendOpenRouter = "openrouter"
	BackendOllama     = "ollama"
)

// Config is built once at startup and passed to constructors. Nothing
// mutates it afterwards.
type Config struct {
	Port        string
	DatabaseURL string

	LogLevel  string
	LogFormat string
	LogFile   string

	// Backend per feature group: structured generation (notes, quiz,
	// classifier text stage), chat/visualiser, vision.
	LLMBackend    string
	ChatBackend   string
	VisionBackend string

	GeminiAPIKey      string
	GeminiFallbackKey string
	GeminiModel       string
	GeminiBaseURL     string

	OpenRouterAPIKey      string
	OpenRouterFallbackKey string
	OpenRouterModel       string
	OpenRouterBaseURL     string

	OllamaBaseURL string
	OllamaModel   string
	OllamaAPIKey  string

	// SystemFallbackKey is the last-resort Gemini key the topic classifier
	// retries with after an adapter-layer fault.
	SystemFallbackKey string

	MaxRetries    int
	TextTimeout   time.Duration
	VisionTimeout time.Duration
	BackoffUnit   time.Duration

	AppReferer string
	AppTitle   string

	AIMLAPIKey  string
	AIMLBaseURL string
	ImageModel  string

	TelegramBotToken string
	WebhookURL       string

	FallbackBankPath string
}

func getEnv(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func getInt(k string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return n, nil
}

func getDuration(k string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", k, err)
	}
	return d, nil
}

// Load reads .env (if present) and the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Warnf("config: .env not loaded: %v", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the environment only.
func FromEnv() (*Config, error) {
	llmBackend := strings.ToLower(getEnv("LLM_BACKEND", BackendGemini))
	geminiFallback := getEnv("GEMINI_FALLBACK_API_KEY", "")

	cfg := &Config{
		Port:        getEnv("PORT", "8000"),
		DatabaseURL: getEnv("DATABASE_URL", ""),

		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogFormat: getEnv("LOG_FORMAT", "text"),
		LogFile:   getEnv("LOG_FILE", ""),

		LLMBackend:    llmBackend,
		ChatBackend:   strings.ToLower(getEnv("CHAT_BACKEND", llmBackend)),
		VisionBackend: strings.ToLower(getEnv("VISION_BACKEND", BackendGemini)),

		GeminiAPIKey:      getEnv("GEMINI_API_KEY", ""),
		GeminiFallbackKey: geminiFallback,
		GeminiModel:       getEnv("GEMINI_MODEL", "gemini-2.0-flash"),
		GeminiBaseURL:     getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com"),

		OpenRouterAPIKey:      getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterFallbackKey: getEnv("OPENROUTER_FALLBACK_API_KEY", ""),
		OpenRouterModel:       getEnv("OPENROUTER_MODEL", "google/gemini-2.0-flash-001"),
		OpenRouterBaseURL:     getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),

		OllamaBaseURL: getEnv("OLLAMA_BASE_URL", "http://localhost:11434"),
		OllamaModel:   getEnv("OLLAMA_MODEL", "llama3"),
		OllamaAPIKey:  getEnv("OLLAMA_API_KEY", "local"),

		SystemFallbackKey: getEnv("SYSTEM_FALLBACK_API_KEY", geminiFallback),

		AppReferer: getEnv("APP_REFERER", "http://localhost:3000"),
		AppTitle:   getEnv("APP_TITLE", "Stemly"),

		AIMLAPIKey:  getEnv("AIML_API_KEY", ""),
		AIMLBaseURL: getEnv("AIML_BASE_URL", "https://api.aimlapi.com/v1"),
		ImageModel:  getEnv("IMAGE_MODEL", "flux/schnell"),

		TelegramBotToken: getEnv("TELEGRAM_BOT_TOKEN", ""),
		WebhookURL:       getEnv("WEBHOOK_URL", ""),

		FallbackBankPath: getEnv("FALLBACK_BANK_PATH", ""),
	}

	var err error
	if cfg.MaxRetries, err = getInt("LLM_MAX_RETRIES", 2); err != nil {
		return nil, err
	}
	if cfg.TextTimeout, err = getDuration("LLM_TEXT_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.VisionTimeout, err = getDuration("LLM_VISION_TIMEOUT", 90*time.Second); err != nil {
		return nil, err
	}
	if cfg.BackoffUnit, err = getDuration("LLM_BACKOFF_UNIT", time.Second); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail late. Missing API keys
// are allowed: features degrade to fallback content.
func (c *Config) Validate() error {
	for name, b := range map[string]string{
		"LLM_BACKEND":    c.LLMBackend,
		"CHAT_BACKEND":   c.ChatBackend,
		"VISION_BACKEND": c.VisionBackend,
	} {
		if !KnownBackend(b) {
			return fmt.Errorf("%s: unknown backend %q", name, b)
		}
	}
	if c.MaxRetries < 0 || c.MaxRetries > 10 {
		return fmt.Errorf("LLM_MAX_RETRIES: %d out of range 0..10", c.MaxRetries)
	}
	if c.TextTimeout <= 0 || c.VisionTimeout <= 0 {
		return errors.New("LLM_TEXT_TIMEOUT and LLM_VISION_TIMEOUT must be positive")
	}
	if c.BackoffUnit < 0 {
		return errors.New("LLM_BACKOFF_UNIT must not be negative")
	}
	switch strings.ToLower(c.LogFormat) {
	case "text", "json":
	default:
		return fmt.Errorf("LOG_FORMAT: unknown format %q", c.LogFormat)
	}
	return nil
}

func KnownBackend(b string) bool {
	switch b {
	case BackendGemini, BackendGeminiSDK, BackendOpenRouter, BackendOllama:
		return true
	}
	return false
}
