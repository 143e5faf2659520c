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
	AppEnv             string
	Port               string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
	RateLimitPerMin    int
	SessionIdleTimeout time.Duration
	MaxSessions        int
	CORSAllowedOrigins []string
	UploadMaxMemory    int64
}

// DefaultGeminiModel is the image-capable model used when GEMINI_MODEL is unset.
const DefaultGeminiModel = "gemini-2.5-flash-image"

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		GeminiAPIKey:       strings.TrimSpace(getEnv("GEMINI_API_KEY", os.Getenv("API_KEY"))),
		GeminiModel:        getEnv("GEMINI_MODEL", DefaultGeminiModel),
		GeminiBaseURL:      os.Getenv("GEMINI_BASE_URL"),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 15)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
		RateLimitPerMin:    getEnvInt("RATE_LIMIT_PER_MINUTE", 30),
		SessionIdleTimeout: time.Minute * time.Duration(getEnvInt("SESSION_IDLE_TIMEOUT_MINUTES", 60)),
		MaxSessions:        getEnvInt("MAX_SESSIONS", 1000),
		CORSAllowedOrigins: getEnvList("CORS_ALLOWED_ORIGINS"),
		UploadMaxMemory:    int64(getEnvInt("UPLOAD_MAX_MEMORY_MB", 32)) << 20,
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if cfg.MaxSessions <= 0 {
		return nil, fmt.Errorf("MAX_SESSIONS must be positive, got %d", cfg.MaxSessions)
	}

	return cfg, nil
}

// IsDevelopment reports whether the service runs with development defaults.
func (c *Config) IsDevelopment() bool {
	return c != nil && c.AppEnv == "development"
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

func getEnvList(key string) []string {
	raw := os.Getenv(key)
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
