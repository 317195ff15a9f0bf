package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Logging    LoggingConfig
	Vendors    VendorConfig
	Quota      QuotaConfig
	Premium    PremiumConfig
	Redis      RedisConfig
	CORS       CORSConfig
	Monitoring MonitoringConfig
}

type ServerConfig struct {
	Port         int
	Env          string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

type LoggingConfig struct {
	Level  string
	Format string
}

// VendorConfig holds the upstream chat-completion endpoints and keys.
// Premium traffic goes to the OpenAI endpoint, free-tier traffic to
// OpenRouter. A missing key is not a startup failure; it surfaces as a
// 400 on the first request that needs it.
type VendorConfig struct {
	OpenAIKey     string
	OpenAIURL     string
	OpenRouterKey string
	OpenRouterURL string
	Timeout       time.Duration
}

type QuotaConfig struct {
	FreeDailyLimit int
}

type PremiumConfig struct {
	Codes           []string
	EntitlementDays int
}

type RedisConfig struct {
	URL string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type MonitoringConfig struct {
	PrometheusEnabled bool
	PrometheusPort    int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:         getEnvInt("API_PORT", 8080),
			Env:          getEnv("APP_ENV", "development"),
			ReadTimeout:  time.Duration(getEnvInt("READ_TIMEOUT", 15)) * time.Second,
			WriteTimeout: time.Duration(getEnvInt("WRITE_TIMEOUT", 90)) * time.Second,
			IdleTimeout:  time.Duration(getEnvInt("IDLE_TIMEOUT", 120)) * time.Second,
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "console"),
		},
		Vendors: VendorConfig{
			OpenAIKey:     getEnv("OPENAI_KEY", ""),
			OpenAIURL:     getEnv("OPENAI_URL", "https://api.openai.com/v1/chat/completions"),
			OpenRouterKey: getEnv("OPENROUTER_APIKEY", ""),
			OpenRouterURL: getEnv("OPENROUTER_URL", "https://openrouter.ai/api/v1/chat/completions"),
			Timeout:       time.Duration(getEnvInt("UPSTREAM_TIMEOUT", 60)) * time.Second,
		},
		Quota: QuotaConfig{
			FreeDailyLimit: getEnvInt("FREE_DAILY_LIMIT", 2),
		},
		Premium: PremiumConfig{
			Codes:           getEnvList("PREMIUM_CODES"),
			EntitlementDays: getEnvInt("PREMIUM_DAYS", 30),
		},
		Redis: RedisConfig{
			URL: getEnv("REDIS_URL", ""),
		},
		CORS: CORSConfig{
			AllowedOrigins: getEnvListDefault("CORS_ALLOWED_ORIGINS", []string{"*"}),
		},
		Monitoring: MonitoringConfig{
			PrometheusEnabled: getEnvBool("PROMETHEUS_ENABLED", false),
			PrometheusPort:    getEnvInt("PROMETHEUS_PORT", 9090),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
// Vendor keys are deliberately not required here: their absence is
// reported to the caller per request, not at startup.
func (c *Config) Validate() error {
	if c.Quota.FreeDailyLimit < 0 {
		c.Quota.FreeDailyLimit = 0
	}
	if c.Premium.EntitlementDays <= 0 {
		c.Premium.EntitlementDays = 30
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvList(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnvListDefault(key string, defaultValue []string) []string {
	if list := getEnvList(key); list != nil {
		return list
	}
	return defaultValue
}
