package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv           string
	Port             string
	IntermediaryPort string
	DatabaseURL      string
	RedisAddr        string
	RedisPassword    string

	OpenAIAPIKey      string
	OpenAIModel       string
	OpenAIBaseURL     string
	OpenAIMaxTokens   int
	OpenAITemperature float64
	OpenAITimeout     time.Duration

	// Gemini settings are only read by the vision intermediary.
	GeminiAPIKey  string
	GeminiModel   string
	GeminiBaseURL string
	GeminiTimeout time.Duration

	VisionIntermediaryURL  string
	VisionTimeout          time.Duration
	VisionCacheFingerprint string

	JobMinDelay          time.Duration
	JobMaxDelay          time.Duration
	JobFailureRate       float64
	LegacyJobFailureRate float64

	SessionTTL          time.Duration
	ResultsRedirectPath string
	CORSAllowedOrigins  []string
	RateLimitPerMin     int

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:           getEnv("APP_ENV", "development"),
		Port:             getEnv("PORT", "8080"),
		IntermediaryPort: getEnv("INTERMEDIARY_PORT", "8081"),
		DatabaseURL:      os.Getenv("DATABASE_URL"),
		RedisAddr:        os.Getenv("REDIS_ADDR"),
		RedisPassword:    os.Getenv("REDIS_PASSWORD"),

		OpenAIAPIKey:      strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
		OpenAIModel:       getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAIBaseURL:     getEnv("OPENAI_BASE_URL", "https://api.openai.com/v1"),
		OpenAIMaxTokens:   getEnvInt("OPENAI_MAX_TOKENS", 300),
		OpenAITemperature: getEnvFloat("OPENAI_TEMPERATURE", 0.7),
		OpenAITimeout:     time.Second * time.Duration(getEnvInt("OPENAI_TIMEOUT_SECONDS", 15)),

		GeminiAPIKey:  strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GeminiModel:   getEnv("GEMINI_MODEL", "gemini-1.5-flash"),
		GeminiBaseURL: getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta"),
		GeminiTimeout: time.Second * time.Duration(getEnvInt("GEMINI_TIMEOUT_SECONDS", 30)),

		VisionIntermediaryURL:  getEnv("VISION_INTERMEDIARY_URL", "http://localhost:8081/v1/vision/analyze"),
		VisionTimeout:          time.Second * time.Duration(getEnvInt("VISION_TIMEOUT_SECONDS", 35)),
		VisionCacheFingerprint: strings.ToLower(getEnv("VISION_CACHE_FINGERPRINT", "prefix")),

		JobMinDelay:          time.Millisecond * time.Duration(getEnvInt("JOB_MIN_DELAY_MS", 3000)),
		JobMaxDelay:          time.Millisecond * time.Duration(getEnvInt("JOB_MAX_DELAY_MS", 6000)),
		JobFailureRate:       getEnvFloat("JOB_FAILURE_RATE", 0.05),
		LegacyJobFailureRate: getEnvFloat("LEGACY_JOB_FAILURE_RATE", 0.10),

		SessionTTL:          time.Minute * time.Duration(getEnvInt("SESSION_TTL_MINUTES", 30)),
		ResultsRedirectPath: getEnv("RESULTS_REDIRECT_PATH", "/"),
		CORSAllowedOrigins:  getEnvList("CORS_ALLOWED_ORIGINS"),
		RateLimitPerMin:     getEnvInt("RATE_LIMIT_PER_MINUTE", 30),

		HTTPReadTimeout:  time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout: time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 75)),
		HTTPIdleTimeout:  time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.JobMinDelay < 0 || cfg.JobMaxDelay < cfg.JobMinDelay {
		return nil, fmt.Errorf("JOB_MIN_DELAY_MS must be >= 0 and <= JOB_MAX_DELAY_MS")
	}
	if cfg.JobFailureRate < 0 || cfg.JobFailureRate > 1 {
		return nil, fmt.Errorf("JOB_FAILURE_RATE must be between 0 and 1")
	}
	if cfg.LegacyJobFailureRate < 0 || cfg.LegacyJobFailureRate > 1 {
		return nil, fmt.Errorf("LEGACY_JOB_FAILURE_RATE must be between 0 and 1")
	}
	switch cfg.VisionCacheFingerprint {
	case "prefix", "sha256":
	default:
		return nil, fmt.Errorf("VISION_CACHE_FINGERPRINT must be prefix or sha256")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvList(key string) []string {
	var out []string
	for _, part := range strings.Split(os.Getenv(key), ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
